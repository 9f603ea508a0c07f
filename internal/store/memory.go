package store

import (
	"context"
	"sync"
	"time"

	"github.com/ashureev/companion/internal/domain"
)

// MemoryStore keeps sessions in process memory for the lifetime of the process.
// There is no eviction.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	keys     *keyLock
	now      func() time.Time
	closed   bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.Session),
		keys:     newKeyLock(),
		now:      time.Now,
	}
}

// GetOrCreate returns a snapshot of the user's session, creating it if needed.
func (s *MemoryStore) GetOrCreate(ctx context.Context, userID string) (*domain.Session, error) {
	var snap *domain.Session
	err := s.Update(ctx, userID, func(sess *domain.Session) error {
		snap = sess.Clone()
		return nil
	})
	return snap, err
}

// Get returns a snapshot of the user's session or nil.
func (s *MemoryStore) Get(_ context.Context, userID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.sessions[userID].Clone(), nil
}

// Update runs fn with exclusive access to the user's session.
func (s *MemoryStore) Update(ctx context.Context, userID string, fn func(*domain.Session) error) error {
	unlock := s.keys.Lock(userID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	closed := s.closed
	current := s.sessions[userID]
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	var work *domain.Session
	if current == nil {
		work = domain.NewSession(userID, s.now())
	} else {
		work = current.Clone()
	}

	if err := fn(work); err != nil {
		return err
	}
	work.UpdatedAt = s.now()

	s.mu.Lock()
	s.sessions[userID] = work
	s.mu.Unlock()
	return nil
}

// Count returns the number of sessions.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

// Ping always succeeds while the store is open.
func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the store closed. Sessions are discarded.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.sessions = make(map[string]*domain.Session)
	return nil
}
