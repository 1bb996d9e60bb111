package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/example/blood-matching/internal/dispatch"
	"github.com/example/blood-matching/internal/donors"
	"github.com/example/blood-matching/internal/models"
	"github.com/example/blood-matching/internal/observability"
	"github.com/example/blood-matching/internal/scoring"
	"github.com/example/blood-matching/internal/storage"
)

// NoDonorsMessage is the informational message returned when the
// eligible pool is empty. An empty pool is not an error.
const NoDonorsMessage = "no eligible donors available for this request"

// Service orchestrates matching runs and commits donor selections.
type Service struct {
	Store    storage.Store
	Donors   donors.Directory
	Notifier dispatch.Notifier // optional, best-effort
	Logger   *slog.Logger
	Deadline time.Duration // overall bound per matching run
}

// Result is one completed matching run. Attempts are ranked by total
// score descending; equal totals keep donor retrieval order.
// FailedWrites counts attempts that scored but could not be persisted.
type Result struct {
	Attempts     []models.MatchAttempt `json:"attempts"`
	Message      string                `json:"message,omitempty"`
	FailedWrites int                   `json:"failed_writes,omitempty"`
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// RunMatching scores every available donor of the request's exact blood
// type and persists one MatchAttempt per donor as the audit trail.
// Donors are scored concurrently; individual attempt writes that fail
// are logged and counted without aborting the batch. Failure to load
// the request or the pool aborts the whole call.
func (s *Service) RunMatching(ctx context.Context, requestID string) (*Result, error) {
	deadline := s.Deadline
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	observability.MatchRunsTotal.Inc()
	defer func() { observability.MatchRunDuration.Observe(time.Since(start).Seconds()) }()

	req, err := s.Store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request %s: %w", requestID, err)
	}
	pool, err := s.Donors.Eligible(ctx, req.BloodType)
	if err != nil {
		return nil, fmt.Errorf("load donor pool for %s: %w", req.BloodType, err)
	}
	if len(pool) == 0 {
		s.logger().Info("matching run found no donors", "request_id", requestID, "blood_type", req.BloodType)
		return &Result{Attempts: []models.MatchAttempt{}, Message: NoDonorsMessage}, nil
	}

	type outcome struct {
		idx     int
		attempt models.MatchAttempt
		err     error
	}
	results := make(chan outcome, len(pool))
	now := time.Now()
	for i, d := range pool {
		go func(idx int, d models.Donor) {
			b := scoring.Compose(req, d)
			a := models.MatchAttempt{
				ID:                uuid.NewString(),
				RequestID:         req.ID,
				DonorID:           d.ID,
				Total:             b.Total,
				Compatibility:     b.Compatibility,
				DistanceScore:     b.DistanceScore,
				Reliability:       b.Reliability,
				Availability:      b.Availability,
				UrgencyMultiplier: b.UrgencyMultiplier,
				DistanceKm:        b.DistanceKm,
				TravelTimeMin:     b.TravelTimeMin,
				CreatedAt:         now,
			}
			results <- outcome{idx: idx, attempt: a, err: s.Store.InsertMatchAttempt(ctx, &a)}
		}(i, d)
	}

	// collect in retrieval order so ties rank consistently
	ordered := make([]models.MatchAttempt, len(pool))
	failed := 0
	for range pool {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("matching run for %s: %w", requestID, err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("matching run for %s: %w", requestID, ctx.Err())
		case o := <-results:
			if o.err != nil {
				failed++
				observability.AttemptPersistErrors.Inc()
				s.logger().Error("attempt persist failed", "request_id", requestID, "donor_id", o.attempt.DonorID, "error", o.err)
			}
			ordered[o.idx] = o.attempt
		}
	}
	observability.AttemptsScoredTotal.Add(float64(len(pool)))

	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Total > ordered[j].Total })

	res := &Result{Attempts: ordered, FailedWrites: failed}
	s.logger().Info("matching run complete",
		"request_id", requestID, "candidates", len(ordered), "failed_writes", failed,
		"duration_ms", time.Since(start).Milliseconds())
	s.notify(req.HospitalID, dispatch.MatchNotice{
		RequestID:  req.ID,
		Event:      "matched",
		Candidates: len(ordered),
		TopDonorID: ordered[0].DonorID,
		TopScore:   ordered[0].Total,
	})
	return res, nil
}

// SelectMatch commits donorID as the fulfillment path for the request.
// A donor that was never scored for the request is rejected with
// storage.ErrNotFound before any state changes. The pending->matched
// transition is one conditional write, so exactly one caller wins;
// losers and reused requests get storage.ErrConflict. Only a winning
// commit marks the attempt selected and creates the Donation record.
func (s *Service) SelectMatch(ctx context.Context, requestID, donorID string) (*models.Donation, error) {
	req, err := s.Store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request %s: %w", requestID, err)
	}

	// only scored donors may win the commit; attempts are never
	// deleted, so a hit here cannot vanish before MarkSelected
	ok, err := s.Store.HasAttempt(ctx, requestID, donorID)
	if err != nil {
		return nil, fmt.Errorf("check attempt for %s/%s: %w", requestID, donorID, err)
	}
	if !ok {
		return nil, fmt.Errorf("no match attempt for %s/%s: %w", requestID, donorID, storage.ErrNotFound)
	}

	if err := s.Store.UpdateRequestState(ctx, requestID, donorID); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			observability.SelectionConflicts.Inc()
		}
		return nil, fmt.Errorf("commit selection for %s: %w", requestID, err)
	}
	if err := s.Store.MarkSelected(ctx, requestID, donorID); err != nil {
		return nil, fmt.Errorf("mark attempt selected for %s/%s: %w", requestID, donorID, err)
	}

	scheduled := req.RequiredBy
	if scheduled.IsZero() {
		scheduled = time.Now().Add(24 * time.Hour)
	}
	donation := &models.Donation{
		ID:            uuid.NewString(),
		DonorID:       donorID,
		RequestID:     requestID,
		HospitalID:    req.HospitalID,
		ScheduledDate: scheduled,
		Status:        models.DonationScheduled,
		CreatedAt:     time.Now(),
	}
	if err := s.Store.InsertDonation(ctx, donation); err != nil {
		return nil, fmt.Errorf("create donation for %s: %w", requestID, err)
	}

	observability.SelectionsTotal.Inc()
	s.logger().Info("selection committed", "request_id", requestID, "donor_id", donorID, "donation_id", donation.ID)
	s.notify(req.HospitalID, dispatch.MatchNotice{RequestID: requestID, Event: "selected", TopDonorID: donorID})
	return donation, nil
}

func (s *Service) notify(hospitalID string, n dispatch.MatchNotice) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(hospitalID, n); err != nil && !errors.Is(err, dispatch.ErrNoSession) {
		s.logger().Warn("dashboard notify failed", "hospital_id", hospitalID, "error", err)
	}
}
