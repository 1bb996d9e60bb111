package stats

import (
	"context"
	"fmt"
	"math"

	"github.com/example/blood-matching/internal/models"
	"github.com/example/blood-matching/internal/storage"
)

// DefaultWindow bounds how many recent attempts a snapshot covers.
const DefaultWindow = 1000

// Service aggregates dashboard statistics over the persisted audit
// trail. Read-only; it never mutates attempts.
type Service struct {
	Store  storage.Store
	Window int
}

// Snapshot computes totals over the most recent Window attempts,
// newest first. An empty history yields all zeros.
func (s *Service) Snapshot(ctx context.Context) (models.StatsSnapshot, error) {
	window := s.Window
	if window <= 0 {
		window = DefaultWindow
	}
	attempts, err := s.Store.RecentAttempts(ctx, window)
	if err != nil {
		return models.StatsSnapshot{}, fmt.Errorf("load recent attempts: %w", err)
	}

	snap := models.StatsSnapshot{TotalMatches: len(attempts)}
	if len(attempts) == 0 {
		return snap, nil
	}
	var sum float64
	for _, a := range attempts {
		if a.Selected {
			snap.SuccessfulMatches++
		}
		sum += a.Total
	}
	snap.SuccessRate = round2(float64(snap.SuccessfulMatches) / float64(snap.TotalMatches) * 100)
	snap.AverageScore = round2(sum / float64(snap.TotalMatches))
	return snap, nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
