// Package session keeps the per-operator context objects: the pending
// assessment and the verification challenge of each session.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cardiocare-risk-server/internal/domain"
)

// Store persists sessions. Every returned session is a private copy.
type Store interface {
	// Create starts a new idle session.
	Create(ctx context.Context) (*domain.Session, error)

	// Get returns the session or an error wrapping domain.ErrSessionNotFound.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Update runs fn on the session under the store's write serialization and
	// saves the result. Changes made by fn are saved even when fn returns an
	// error, since failed operations such as a code mismatch still move the
	// session's state. fn's error is returned unchanged.
	Update(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error)

	// Delete removes the session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases the store's resources.
	Close() error
}

func newSession(now time.Time) *domain.Session {
	return domain.NewSession(uuid.New().String(), now)
}
