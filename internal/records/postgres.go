package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardiocare-risk-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
// It expects the patient_records table to exist (created via migrations).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store on an established pool.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("database connection pool is required")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Append inserts a record.
func (s *PostgresStore) Append(ctx context.Context, record *domain.PatientRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO patient_records (
			patient_id, patient_name, contact_info, age,
			sex, prediction_result, confidence_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		record.PatientID,
		record.PatientName,
		record.ContactInfo,
		record.Age,
		string(record.Sex),
		string(record.PredictionResult),
		record.ConfidenceScore,
	)
	if err != nil {
		return domain.NewPersistenceError("append", err)
	}
	return nil
}

// All returns every record ordered by insertion.
func (s *PostgresStore) All(ctx context.Context) ([]*domain.PatientRecord, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+selectColumns+" FROM patient_records ORDER BY seq ASC")
	if err != nil {
		return nil, domain.NewPersistenceError("read", err)
	}
	defer rows.Close()

	all := []*domain.PatientRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, domain.NewPersistenceError("read", fmt.Errorf("failed to scan row: %w", err))
		}
		all = append(all, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("read", err)
	}
	return all, nil
}

// FindFirstByID returns the earliest record with patientID.
func (s *PostgresStore) FindFirstByID(ctx context.Context, patientID string) (*domain.PatientRecord, bool, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+selectColumns+" FROM patient_records WHERE patient_id = $1 ORDER BY seq ASC LIMIT 1",
		patientID)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.NewPersistenceError("find", err)
	}
	return rec, true, nil
}

// Count returns the total number of records.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM patient_records").Scan(&count); err != nil {
		return 0, domain.NewPersistenceError("count", err)
	}
	return count, nil
}

// Close is a no-op; the pool belongs to the caller.
func (s *PostgresStore) Close() error {
	return nil
}
