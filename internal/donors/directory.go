package donors

import (
	"context"
	"sync"
	"time"

	"github.com/example/blood-matching/internal/models"
)

// Directory is the donor pool boundary the matcher draws from.
// Eligible applies the pre-filter: exact blood-type equality and
// availability. Donors failing either never reach scoring.
type Directory interface {
	Eligible(ctx context.Context, bt models.BloodType) ([]models.Donor, error)
	Upsert(ctx context.Context, d models.Donor) error
	// CountAvailable reports how many donors are currently available,
	// across all blood types.
	CountAvailable(ctx context.Context) (int, error)
}

// Index is an in-memory Directory for local runs and tests.
type Index struct {
	mu     sync.RWMutex
	donors map[string]models.Donor
	order  []string
}

func NewIndex() *Index {
	return &Index{donors: make(map[string]models.Donor)}
}

func (g *Index) Upsert(ctx context.Context, d models.Donor) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	d.Updated = time.Now()
	if _, ok := g.donors[d.ID]; !ok {
		g.order = append(g.order, d.ID)
	}
	g.donors[d.ID] = d
	return nil
}

func (g *Index) CountAvailable(ctx context.Context) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, d := range g.donors {
		if d.Available {
			n++
		}
	}
	return n, nil
}

// Eligible returns donors in insertion order so repeated runs over the
// same pool rank ties consistently.
func (g *Index) Eligible(ctx context.Context, bt models.BloodType) ([]models.Donor, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]models.Donor, 0, len(g.order))
	for _, id := range g.order {
		d := g.donors[id]
		if !d.Available || d.BloodType != bt {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
