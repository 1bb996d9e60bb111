package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/example/blood-matching/internal/models"
)

type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) CreateRequest(ctx context.Context, r *models.BloodRequest) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO blood_requests(id, patient_id, hospital_id, blood_type, urgency, units_needed,
			required_by, hospital_lat, hospital_lon, state, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		r.ID, r.PatientID, r.HospitalID, r.BloodType, r.Urgency, r.UnitsNeeded,
		r.RequiredBy, r.Hospital.Lat, r.Hospital.Lon, r.State, r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PostgresStore) GetRequest(ctx context.Context, id string) (*models.BloodRequest, error) {
	var r models.BloodRequest
	var donor sql.NullString
	err := p.db.QueryRowxContext(ctx, `
		SELECT id, patient_id, hospital_id, blood_type, urgency, units_needed,
			required_by, hospital_lat, hospital_lon, state, matched_donor_id, created_at, updated_at
		FROM blood_requests WHERE id = $1`, id).
		Scan(&r.ID, &r.PatientID, &r.HospitalID, &r.BloodType, &r.Urgency, &r.UnitsNeeded,
			&r.RequiredBy, &r.Hospital.Lat, &r.Hospital.Lon, &r.State, &donor, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.MatchedDonorID = donor.String
	return &r, nil
}

func (p *PostgresStore) InsertMatchAttempt(ctx context.Context, a *models.MatchAttempt) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO match_attempts(id, request_id, donor_id, total_score, compatibility_score,
			distance_score, reliability_score, availability_score, urgency_multiplier,
			distance_km, travel_time_minutes, selected, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		a.ID, a.RequestID, a.DonorID, a.Total, a.Compatibility,
		a.DistanceScore, a.Reliability, a.Availability, a.UrgencyMultiplier,
		a.DistanceKm, a.TravelTimeMin, a.Selected, a.CreatedAt)
	return err
}

func (p *PostgresStore) HasAttempt(ctx context.Context, requestID, donorID string) (bool, error) {
	var exists bool
	err := p.db.QueryRowxContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM match_attempts WHERE request_id = $1 AND donor_id = $2)`,
		requestID, donorID).Scan(&exists)
	return exists, err
}

// MarkSelected is a single conditional update: it refuses to flip the
// attempt when any attempt for the request is already selected.
func (p *PostgresStore) MarkSelected(ctx context.Context, requestID, donorID string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE match_attempts SET selected = TRUE
		WHERE request_id = $1 AND donor_id = $2 AND NOT selected
		  AND NOT EXISTS (SELECT 1 FROM match_attempts WHERE request_id = $1 AND selected)`,
		requestID, donorID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := p.db.QueryRowxContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM match_attempts WHERE request_id = $1 AND donor_id = $2)`,
			requestID, donorID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

// UpdateRequestState transitions pending -> matched with an optimistic
// guard on the current state, so concurrent selections cannot both win.
func (p *PostgresStore) UpdateRequestState(ctx context.Context, requestID, donorID string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE blood_requests
		SET state = $2, matched_donor_id = $3, updated_at = $4
		WHERE id = $1 AND state = $5 AND matched_donor_id IS NULL`,
		requestID, models.StateMatched, donorID, time.Now(), models.StatePending)
	if err != nil {
		return err
	}
	return p.conditionalOutcome(ctx, res, requestID)
}

func (p *PostgresStore) CancelRequest(ctx context.Context, requestID string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE blood_requests SET state = $2, updated_at = $3
		WHERE id = $1 AND state IN ($4, $5)`,
		requestID, models.StateCancelled, time.Now(), models.StatePending, models.StateMatched)
	if err != nil {
		return err
	}
	return p.conditionalOutcome(ctx, res, requestID)
}

func (p *PostgresStore) conditionalOutcome(ctx context.Context, res sql.Result, requestID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := p.db.QueryRowxContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM blood_requests WHERE id = $1)`, requestID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

func (p *PostgresStore) InsertDonation(ctx context.Context, d *models.Donation) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO donations(id, donor_id, request_id, hospital_id, scheduled_date, status, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7)`,
		d.ID, d.DonorID, d.RequestID, d.HospitalID, d.ScheduledDate, d.Status, d.CreatedAt)
	return err
}

func (p *PostgresStore) RecentAttempts(ctx context.Context, limit int) ([]models.MatchAttempt, error) {
	rows, err := p.db.QueryxContext(ctx, `
		SELECT id, request_id, donor_id, total_score, compatibility_score, distance_score,
			reliability_score, availability_score, urgency_multiplier, distance_km,
			travel_time_minutes, selected, created_at
		FROM match_attempts ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.MatchAttempt
	for rows.Next() {
		var a models.MatchAttempt
		if err := rows.Scan(&a.ID, &a.RequestID, &a.DonorID, &a.Total, &a.Compatibility,
			&a.DistanceScore, &a.Reliability, &a.Availability, &a.UrgencyMultiplier,
			&a.DistanceKm, &a.TravelTimeMin, &a.Selected, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
