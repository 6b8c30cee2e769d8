// Package session keeps viewer selection sessions.
//
// A session is one client's walk through the selection state machine
// (none → cluster → school). The viewer creates a session per page, applies
// clicks through a [selection.Controller] restored from the stored state
// and writes the result back.
//
// Sessions live in memory only and expire after a sliding TTL. Reloading the
// dataset invalidates every selection, so stores support [Store.Clear].
//
// # Usage
//
//	store := session.NewMemoryStore()
//	sess := session.New(session.DefaultTTL)
//	store.Set(ctx, sess)
//
//	sess, err := store.Get(ctx, id)
//	if errors.Is(err, errors.ErrCodeSessionNotFound) {
//	    // unknown or expired
//	}
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/schoolmaps/overcrowding/pkg/selection"
)

// DefaultTTL is how long an idle session survives.
const DefaultTTL = 30 * time.Minute

// Session stores one client's selection.
type Session struct {
	ID        string          `json:"id"`
	State     selection.State `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`

	ttl time.Duration
}

// New creates a session in the None state with a random UUID.
func New(ttl time.Duration) *Session {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		ttl:       ttl,
	}
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Touch extends the expiry by the session TTL from now.
func (s *Session) Touch() {
	ttl := s.ttl
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.ExpiresAt = time.Now().Add(ttl)
}

// ValidID reports whether id has the session ID format.
func ValidID(id string) bool {
	return uuid.Validate(id) == nil
}

// Store is the interface for session storage backends.
type Store interface {
	// Get retrieves a session by ID. Unknown and expired sessions return an
	// ErrCodeSessionNotFound error.
	Get(ctx context.Context, id string) (*Session, error)

	// Set stores a session, replacing any previous value.
	Set(ctx context.Context, sess *Session) error

	// Delete removes a session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired sessions and returns how many were removed.
	Cleanup(ctx context.Context) (int, error)

	// Clear removes every session.
	Clear(ctx context.Context) error

	// Len returns the number of stored sessions, expired ones included.
	Len() int
}
