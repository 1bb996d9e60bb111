package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/example/blood-matching/internal/models"
)

var (
	// ErrNotFound means the request or attempt does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a conditional update lost: the request already
	// left pending or another attempt is already selected.
	ErrConflict = errors.New("conflict")
)

// Store defines persistence for requests, match attempts and donations.
// Attempts form a permanent audit trail and are never deleted.
type Store interface {
	CreateRequest(ctx context.Context, r *models.BloodRequest) error
	GetRequest(ctx context.Context, id string) (*models.BloodRequest, error)

	InsertMatchAttempt(ctx context.Context, a *models.MatchAttempt) error
	// HasAttempt reports whether a scored attempt exists for the pair.
	HasAttempt(ctx context.Context, requestID, donorID string) (bool, error)
	// MarkSelected flips the attempt for (requestID, donorID) to selected.
	// At most one attempt per request may be selected; a second winner
	// returns ErrConflict.
	MarkSelected(ctx context.Context, requestID, donorID string) error
	// UpdateRequestState transitions the request from pending to matched
	// with the given donor in a single conditional write. Requests that
	// already left pending return ErrConflict.
	UpdateRequestState(ctx context.Context, requestID, donorID string) error
	// CancelRequest moves a pending or matched request to cancelled.
	CancelRequest(ctx context.Context, requestID string) error

	InsertDonation(ctx context.Context, d *models.Donation) error
	// RecentAttempts returns up to limit attempts, newest first.
	RecentAttempts(ctx context.Context, limit int) ([]models.MatchAttempt, error)
}

// MemoryStore is a mutex-guarded in-memory Store, used for local runs
// and as the test double for the engine.
type MemoryStore struct {
	mu        sync.RWMutex
	requests  map[string]*models.BloodRequest
	attempts  []models.MatchAttempt
	donations map[string]*models.Donation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:  make(map[string]*models.BloodRequest),
		donations: make(map[string]*models.Donation),
	}
}

func (m *MemoryStore) CreateRequest(ctx context.Context, r *models.BloodRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *MemoryStore) GetRequest(ctx context.Context, id string) (*models.BloodRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) InsertMatchAttempt(ctx context.Context, a *models.MatchAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, *a)
	return nil
}

func (m *MemoryStore) HasAttempt(ctx context.Context, requestID, donorID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.attempts {
		if m.attempts[i].RequestID == requestID && m.attempts[i].DonorID == donorID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) MarkSelected(ctx context.Context, requestID, donorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := -1
	for i := range m.attempts {
		if m.attempts[i].RequestID != requestID {
			continue
		}
		if m.attempts[i].Selected {
			return ErrConflict
		}
		if m.attempts[i].DonorID == donorID && idx == -1 {
			idx = i
		}
	}
	if idx == -1 {
		return ErrNotFound
	}
	m.attempts[idx].Selected = true
	return nil
}

func (m *MemoryStore) UpdateRequestState(ctx context.Context, requestID, donorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[requestID]
	if !ok {
		return ErrNotFound
	}
	if r.State != models.StatePending || r.MatchedDonorID != "" {
		return ErrConflict
	}
	r.State = models.StateMatched
	r.MatchedDonorID = donorID
	r.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) CancelRequest(ctx context.Context, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[requestID]
	if !ok {
		return ErrNotFound
	}
	if r.State != models.StatePending && r.State != models.StateMatched {
		return ErrConflict
	}
	r.State = models.StateCancelled
	r.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) InsertDonation(ctx context.Context, d *models.Donation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.donations[d.ID] = &cp
	return nil
}

func (m *MemoryStore) RecentAttempts(ctx context.Context, limit int) ([]models.MatchAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.MatchAttempt, len(m.attempts))
	copy(out, m.attempts)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Donation returns the stored donation for a request, for tests and
// local inspection.
func (m *MemoryStore) Donation(requestID string) (*models.Donation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.donations {
		if d.RequestID == requestID {
			cp := *d
			return &cp, true
		}
	}
	return nil, false
}
