package records

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cardiocare-risk-server/internal/database"
	"github.com/cardiocare-risk-server/internal/domain"
)

// Open builds the configured record backend wrapped in a NotifyingStore.
// For the Postgres backend it also opens the pool and applies migrations;
// Close on the returned store releases everything.
func Open(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*NotifyingStore, error) {
	backend := cfg.Records.Backend
	if backend == "" {
		backend = BackendCSV
	}

	var store Store
	switch backend {
	case BackendCSV:
		s, err := NewCSVStore(cfg.Records.CSVPath)
		if err != nil {
			return nil, fmt.Errorf("opening CSV record store: %w", err)
		}
		store = s
	case BackendSQLite:
		s, err := NewSQLiteStore(cfg.Records.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening SQLite record store: %w", err)
		}
		store = s
	case BackendPostgres:
		s, err := openPostgres(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("opening Postgres record store: %w", err)
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown records backend %q", backend)
	}

	logger.WithField("backend", backend).Info("Record store opened")
	return NewNotifyingStore(store, backend, logger), nil
}

// pooledStore owns the pool behind a PostgresStore.
type pooledStore struct {
	*PostgresStore
	db *database.DB
}

func (p *pooledStore) Close() error {
	p.db.Close()
	return nil
}

func openPostgres(ctx context.Context, cfg domain.DatabaseConfig, logger *logrus.Logger) (Store, error) {
	dbConfig := database.ConfigFrom(cfg)
	if err := database.Migrate(ctx, dbConfig, cfg.MigrationsPath, logger); err != nil {
		return nil, err
	}

	db, err := database.NewConnection(ctx, dbConfig, logger)
	if err != nil {
		return nil, err
	}

	store, err := NewPostgresStore(ctx, db.Pool)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &pooledStore{PostgresStore: store, db: db}, nil
}
