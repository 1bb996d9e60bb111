package dispatch

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

var ErrNoSession = errors.New("no ws session")

// WSSession is one connected hospital dashboard.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(n MatchNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(n)
}

// WSRegistry holds dashboard sessions keyed by hospital ID.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[string]*WSSession)} }

func (r *WSRegistry) Add(hospitalID string, conn *websocket.Conn) *WSSession {
	s := &WSSession{conn: conn}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[hospitalID] = s
	return s
}

// Remove drops the session only if it is still the registered one, so
// a stale removal cannot evict a reconnected dashboard.
func (r *WSRegistry) Remove(hospitalID string, s *WSSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[hospitalID]; ok && cur == s {
		delete(r.sessions, hospitalID)
	}
}

// Notify delivers the notice and evicts the session on a write error;
// a dead dashboard never stays registered.
func (r *WSRegistry) Notify(hospitalID string, n MatchNotice) error {
	r.mu.RLock()
	s, ok := r.sessions[hospitalID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(n); err != nil {
		r.Remove(hospitalID, s)
		_ = s.conn.Close()
		return err
	}
	return nil
}
