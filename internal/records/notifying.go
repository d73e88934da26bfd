package records

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cardiocare-risk-server/internal/domain"
	"github.com/cardiocare-risk-server/internal/metrics"
)

const subscriberBuffer = 16

// NotifyingStore decorates a Store: every successful append is counted and
// published to the current subscribers. Slow subscribers miss records rather
// than block writers.
type NotifyingStore struct {
	Store
	backend string
	logger  *logrus.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]chan *domain.PatientRecord
}

// NewNotifyingStore wraps store. backend labels the append metric.
func NewNotifyingStore(store Store, backend string, logger *logrus.Logger) *NotifyingStore {
	return &NotifyingStore{
		Store:   store,
		backend: backend,
		logger:  logger,
		subs:    make(map[int]chan *domain.PatientRecord),
	}
}

// Backend returns the wrapped backend name.
func (n *NotifyingStore) Backend() string {
	return n.backend
}

// Append appends to the wrapped store and publishes the record on success.
func (n *NotifyingStore) Append(ctx context.Context, record *domain.PatientRecord) error {
	if err := n.Store.Append(ctx, record); err != nil {
		return err
	}
	metrics.RecordsAppended.WithLabelValues(n.backend).Inc()

	n.mu.Lock()
	defer n.mu.Unlock()
	for id, ch := range n.subs {
		snapshot := *record
		select {
		case ch <- &snapshot:
		default:
			n.logger.WithField("subscriber", id).Warn("Record subscriber is full, dropping update")
		}
	}
	return nil
}

// Subscribe registers a listener for appended records. The returned cancel
// function unregisters it and closes the channel.
func (n *NotifyingStore) Subscribe() (<-chan *domain.PatientRecord, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	ch := make(chan *domain.PatientRecord, subscriberBuffer)
	n.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of active listeners.
func (n *NotifyingStore) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
