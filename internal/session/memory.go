package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/cardiocare-risk-server/internal/domain"
)

// MemoryStore keeps sessions in a bounded LRU. A session expires idleTTL
// after its last update, and the least recently used one is evicted once
// maxSessions is reached.
type MemoryStore struct {
	mu     sync.Mutex
	cache  *expirable.LRU[string, *domain.Session]
	logger *logrus.Logger
	now    func() time.Time
}

// NewMemoryStore creates an in-process session store.
func NewMemoryStore(maxSessions int, idleTTL time.Duration, logger *logrus.Logger) *MemoryStore {
	onEvict := func(id string, _ *domain.Session) {
		logger.WithField("session_id", id).Debug("Session evicted")
	}
	return &MemoryStore{
		cache:  expirable.NewLRU[string, *domain.Session](maxSessions, onEvict, idleTTL),
		logger: logger,
		now:    time.Now,
	}
}

// Create starts a new session.
func (m *MemoryStore) Create(ctx context.Context) (*domain.Session, error) {
	sess := newSession(m.now())

	m.mu.Lock()
	m.cache.Add(sess.ID, sess.Clone())
	m.mu.Unlock()

	m.logger.WithField("session_id", sess.ID).Info("Session created")
	return sess, nil
}

// Get returns a copy of the session.
func (m *MemoryStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return sess.Clone(), nil
}

// Update applies fn to a copy of the session and stores the copy.
func (m *MemoryStore) Update(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}

	sess := current.Clone()
	fnErr := fn(sess)
	sess.Touch(m.now())
	m.cache.Add(id, sess.Clone())

	return sess, fnErr
}

// Delete removes the session.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Remove(id)
	return nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}

// Close drops all sessions.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Purge()
	return nil
}
