package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BloodType is one of the 8 ABO/Rh groups, e.g. "A+", "O-".
type BloodType string

const (
	APos  BloodType = "A+"
	ANeg  BloodType = "A-"
	BPos  BloodType = "B+"
	BNeg  BloodType = "B-"
	ABPos BloodType = "AB+"
	ABNeg BloodType = "AB-"
	OPos  BloodType = "O+"
	ONeg  BloodType = "O-"
)

// Valid reports whether bt is one of the 8 known groups.
func (bt BloodType) Valid() bool {
	switch bt {
	case APos, ANeg, BPos, BNeg, ABPos, ABNeg, OPos, ONeg:
		return true
	}
	return false
}

type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyUrgent   Urgency = "urgent"
	UrgencyRoutine  Urgency = "routine"
)

type RequestState string

const (
	StatePending   RequestState = "pending"
	StateMatched   RequestState = "matched"
	StateScheduled RequestState = "scheduled"
	StateCompleted RequestState = "completed"
	StateCancelled RequestState = "cancelled"
)

type BloodRequest struct {
	ID             string       `json:"id"`
	PatientID      string       `json:"patient_id"`
	HospitalID     string       `json:"hospital_id"`
	BloodType      BloodType    `json:"blood_type"`
	Urgency        Urgency      `json:"urgency"`
	UnitsNeeded    int          `json:"units_needed"`
	RequiredBy     time.Time    `json:"required_by"`
	Hospital       Coord        `json:"hospital"`
	State          RequestState `json:"state"`
	MatchedDonorID string       `json:"matched_donor_id,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type Donor struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	BloodType BloodType `json:"blood_type"`
	Available bool      `json:"available"`
	// Reliability is 0..1 historical performance. nil means no history
	// yet; 0.0 is a real score and is kept distinct from unset.
	Reliability *float64  `json:"reliability,omitempty"`
	Loc         Coord     `json:"loc"`
	Updated     time.Time `json:"updated"`
}

// MatchAttempt is the audit record for one scored donor candidacy.
// Rows are never deleted; at most one per request carries Selected=true.
type MatchAttempt struct {
	ID                string    `json:"id"`
	RequestID         string    `json:"request_id"`
	DonorID           string    `json:"donor_id"`
	Total             float64   `json:"total_score"`
	Compatibility     float64   `json:"compatibility_score"`
	DistanceScore     float64   `json:"distance_score"`
	Reliability       float64   `json:"reliability_score"`
	Availability      float64   `json:"availability_score"`
	UrgencyMultiplier float64   `json:"urgency_multiplier"`
	DistanceKm        float64   `json:"distance_km"`
	TravelTimeMin     int       `json:"travel_time_minutes"`
	Selected          bool      `json:"selected"`
	CreatedAt         time.Time `json:"created_at"`
}

type DonationStatus string

const (
	DonationScheduled DonationStatus = "scheduled"
	DonationCompleted DonationStatus = "completed"
	DonationCancelled DonationStatus = "cancelled"
	DonationNoShow    DonationStatus = "no_show"
)

// Donation is the fulfillment record created when a donor is selected.
type Donation struct {
	ID            string         `json:"id"`
	DonorID       string         `json:"donor_id"`
	RequestID     string         `json:"request_id"`
	HospitalID    string         `json:"hospital_id"`
	ScheduledDate time.Time      `json:"scheduled_date"`
	Status        DonationStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
}

// StatsSnapshot is derived on demand from recent match attempts.
type StatsSnapshot struct {
	TotalMatches      int     `json:"total_matches"`
	SuccessfulMatches int     `json:"successful_matches"`
	SuccessRate       float64 `json:"success_rate"`
	AverageScore      float64 `json:"average_score"`
}
