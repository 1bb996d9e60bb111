package scoring

import (
	"math"

	"github.com/example/blood-matching/internal/compat"
	"github.com/example/blood-matching/internal/geo"
	"github.com/example/blood-matching/internal/models"
)

// Factor weights. Compatibility dominates, then proximity, then the
// donor's track record, then raw availability.
const (
	weightCompatibility = 40.0
	weightDistance      = 25.0
	weightReliability   = 20.0
	weightAvailability  = 15.0

	// distance score decays linearly to zero at this radius; donors
	// beyond it score 0 on the distance factor but stay in the pool
	maxScoredDistanceKm = 50.0

	// coarse travel heuristic: 2.5 min per km, never under 15 minutes
	travelMinPerKm = 2.5
	travelFloorMin = 15
)

// Breakdown is one donor's scored candidacy against a request.
type Breakdown struct {
	Total             float64
	Compatibility     float64
	DistanceScore     float64
	Reliability       float64
	Availability      float64
	UrgencyMultiplier float64
	DistanceKm        float64
	TravelTimeMin     int
}

// UrgencyMultiplier maps an urgency level to its score multiplier.
// Unknown levels fall back to 1.0; that is a documented fallback,
// not an error.
func UrgencyMultiplier(u models.Urgency) float64 {
	switch u {
	case models.UrgencyCritical:
		return 1.5
	case models.UrgencyUrgent:
		return 1.2
	default:
		return 1.0
	}
}

// Compose scores one donor against one request. Pure and deterministic.
func Compose(req *models.BloodRequest, d models.Donor) Breakdown {
	b := Breakdown{UrgencyMultiplier: UrgencyMultiplier(req.Urgency)}

	if compat.Compatible(req.BloodType, d.BloodType) {
		b.Compatibility = 1.0
	}

	b.DistanceKm = geo.DistanceKm(req.Hospital, d.Loc)
	b.DistanceScore = math.Max(0, (maxScoredDistanceKm-b.DistanceKm)/maxScoredDistanceKm)

	if d.Available {
		b.Availability = 1.0
	}

	// no donation history defaults to full reliability; a recorded
	// 0.0 is a real score and stays 0.0
	b.Reliability = 1.0
	if d.Reliability != nil {
		b.Reliability = *d.Reliability
	}

	total := (b.Compatibility*weightCompatibility +
		b.DistanceScore*weightDistance +
		b.Reliability*weightReliability +
		b.Availability*weightAvailability) * b.UrgencyMultiplier
	b.Total = math.Round(total*100) / 100

	b.TravelTimeMin = travelFloorMin
	if m := int(math.Round(b.DistanceKm * travelMinPerKm)); m > travelFloorMin {
		b.TravelTimeMin = m
	}
	return b
}
