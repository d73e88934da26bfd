package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cardiocare-risk-server/internal/domain"
)

const (
	keyPrefix        = "cardiocare:session:"
	maxUpdateRetries = 5
)

// RedisStore shares sessions between server instances. Each session is a
// JSON value whose TTL is reset on every update.
type RedisStore struct {
	client  *redis.Client
	idleTTL time.Duration
	logger  *logrus.Logger
	now     func() time.Time
}

// NewRedisStore connects to redisURL (redis://host:port/db).
func NewRedisStore(ctx context.Context, redisURL string, idleTTL time.Duration, logger *logrus.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	logger.WithField("addr", opts.Addr).Info("Redis session store connected")
	return &RedisStore{
		client:  client,
		idleTTL: idleTTL,
		logger:  logger,
		now:     time.Now,
	}, nil
}

func sessionKey(id string) string {
	return keyPrefix + id
}

// Create starts a new session.
func (r *RedisStore) Create(ctx context.Context) (*domain.Session, error) {
	sess := newSession(r.now())
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(sess.ID), data, r.idleTTL).Err(); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}

	r.logger.WithField("session_id", sess.ID).Info("Session created")
	return sess, nil
}

// Get loads the session.
func (r *RedisStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	return r.load(ctx, r.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisStore) load(ctx context.Context, c getter, id string) (*domain.Session, error) {
	data, err := c.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &sess, nil
}

// Update applies fn inside an optimistic WATCH transaction, retrying when
// another writer changed the session concurrently.
func (r *RedisStore) Update(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error) {
	key := sessionKey(id)

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		var (
			result *domain.Session
			fnErr  error
		)
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			sess, err := r.load(ctx, tx, id)
			if err != nil {
				return err
			}
			fnErr = fn(sess)
			sess.Touch(r.now())

			data, err := json.Marshal(sess)
			if err != nil {
				return fmt.Errorf("encoding session: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, r.idleTTL)
				return nil
			})
			result = sess
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			r.logger.WithFields(logrus.Fields{
				"session_id": id,
				"attempt":    attempt + 1,
			}).Debug("Session changed concurrently, retrying update")
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, fnErr
	}

	return nil, fmt.Errorf("updating session %s: too many concurrent writers", id)
}

// Delete removes the session.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, sessionKey(id)).Err()
}

// Close closes the redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
