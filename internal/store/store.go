// Package store provides session persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/companion/internal/domain"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Store persists one Session per user.
//
// Implementations serialize Update calls for the same user ID: fn runs with
// exclusive access to that user's session and no other Update for the same
// user starts until it returns. Updates for different users run in parallel.
type Store interface {
	// GetOrCreate returns a snapshot of the user's session, creating it with
	// defaults on first use.
	GetOrCreate(ctx context.Context, userID string) (*domain.Session, error)

	// Get returns a snapshot of the user's session or nil if none exists.
	Get(ctx context.Context, userID string) (*domain.Session, error)

	// Update runs fn on a working copy of the user's session, creating the
	// session on first use. The copy replaces the stored session only when fn
	// returns nil; on error or panic the stored session is left untouched.
	Update(ctx context.Context, userID string, fn func(*domain.Session) error) error

	// Count returns the number of stored sessions.
	Count(ctx context.Context) (int, error)

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
