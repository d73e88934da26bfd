// Package records provides durable, append-only storage for patient
// assessment records. Records are never updated or deleted, and duplicate
// patient IDs are kept side by side; lookups return the first match in
// insertion order.
package records

import (
	"context"
	"time"

	"github.com/cardiocare-risk-server/internal/domain"
)

// Backend names, also used as metric labels.
const (
	BackendCSV      = domain.RecordsBackendCSV
	BackendSQLite   = domain.RecordsBackendSQLite
	BackendPostgres = domain.RecordsBackendPostgres
)

// Store defines the record storage operations.
type Store interface {
	// Append adds one record after all existing ones. A failed append
	// returns a *domain.PersistenceError and leaves prior records intact.
	Append(ctx context.Context, record *domain.PatientRecord) error

	// All returns every record in insertion order. A store that was never
	// written to returns an empty slice.
	All(ctx context.Context) ([]*domain.PatientRecord, error)

	// FindFirstByID returns the earliest record with the given patient ID.
	// found is false on a miss; a miss is not an error.
	FindFirstByID(ctx context.Context, patientID string) (record *domain.PatientRecord, found bool, err error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	// Close releases the store's resources.
	Close() error
}

// RecordExport is the JSON export format.
type RecordExport struct {
	Version    string                  `json:"version"`
	ExportedAt time.Time               `json:"exported_at"`
	Count      int                     `json:"count"`
	Records    []*domain.PatientRecord `json:"records"`
}

// findFirst scans records in order for the first ID match.
func findFirst(all []*domain.PatientRecord, patientID string) (*domain.PatientRecord, bool) {
	for _, r := range all {
		if r.PatientID == patientID {
			return r, true
		}
	}
	return nil, false
}
