package session

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cardiocare-risk-server/internal/domain"
)

const (
	defaultMaxSessions = 1024
	defaultIdleTTL     = 30 * time.Minute
)

// Open builds the configured session store.
func Open(ctx context.Context, cfg domain.SessionConfig, logger *logrus.Logger) (Store, error) {
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = defaultIdleTTL
	}

	switch cfg.Backend {
	case "", domain.SessionBackendMemory:
		size := cfg.MaxSessions
		if size <= 0 {
			size = defaultMaxSessions
		}
		return NewMemoryStore(size, ttl, logger), nil
	case domain.SessionBackendRedis:
		return NewRedisStore(ctx, cfg.RedisURL, ttl, logger)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
