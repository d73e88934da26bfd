package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/cardiocare-risk-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite record store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers; busy_timeout below is per connection
	db.SetMaxOpenConns(1)

	// WAL lets readers proceed while a single writer appends
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// NewSQLiteStoreWithDB wraps an open connection whose schema already exists.
func NewSQLiteStoreWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*domain.PatientRecord, error) {
	rec := &domain.PatientRecord{}
	var sex, result string

	err := s.Scan(
		&rec.PatientID, &rec.PatientName, &rec.ContactInfo,
		&rec.Age, &sex, &result, &rec.ConfidenceScore,
	)
	if err != nil {
		return nil, err
	}

	rec.Sex = domain.Sex(sex)
	rec.PredictionResult = domain.RiskLabel(result)
	return rec, nil
}

// createSchema creates the records table. seq preserves insertion order.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS patient_records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id TEXT NOT NULL,
		patient_name TEXT NOT NULL,
		contact_info TEXT NOT NULL,
		age INTEGER NOT NULL,
		sex TEXT NOT NULL,
		prediction_result TEXT NOT NULL,
		confidence_score TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_patient_records_patient_id ON patient_records(patient_id);
	`

	_, err := db.Exec(schema)
	return err
}

const selectColumns = `patient_id, patient_name, contact_info, age, sex, prediction_result, confidence_score`

// Append inserts a record.
func (s *SQLiteStore) Append(ctx context.Context, record *domain.PatientRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patient_records (
			patient_id, patient_name, contact_info, age,
			sex, prediction_result, confidence_score
		) VALUES (?, ?, ?, ?, ?, ?, ?)
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
func (s *SQLiteStore) All(ctx context.Context) ([]*domain.PatientRecord, error) {
	rows, err := s.db.QueryContext(ctx,
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
func (s *SQLiteStore) FindFirstByID(ctx context.Context, patientID string) (*domain.PatientRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM patient_records WHERE patient_id = ? ORDER BY seq ASC LIMIT 1",
		patientID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.NewPersistenceError("find", err)
	}
	return rec, true, nil
}

// Count returns the total number of records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM patient_records").Scan(&count); err != nil {
		return 0, domain.NewPersistenceError("count", err)
	}
	return count, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
