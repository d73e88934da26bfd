package records

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cardiocare-risk-server/internal/domain"
)

// CSVStore keeps records in a single CSV file with the columns of
// domain.RecordColumns. Every append rewrites the full snapshot into a
// temporary file and renames it over the original, so readers never see a
// partially written file.
type CSVStore struct {
	path string
	mu   sync.RWMutex
}

// NewCSVStore creates a CSV store at path. A missing file is an empty store;
// the file is created on the first append.
func NewCSVStore(path string) (*CSVStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &CSVStore{path: path}, nil
}

// Path returns the backing file path.
func (s *CSVStore) Path() string {
	return s.path
}

// Append adds a record to the end of the file.
func (s *CSVStore) Append(ctx context.Context, record *domain.PatientRecord) error {
	if err := ctx.Err(); err != nil {
		return domain.NewPersistenceError("append", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return domain.NewPersistenceError("append", err)
	}
	all = append(all, record)

	if err := s.writeSnapshot(all); err != nil {
		return domain.NewPersistenceError("append", err)
	}
	return nil
}

// All returns every record in file order.
func (s *CSVStore) All(ctx context.Context) ([]*domain.PatientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.read()
	if err != nil {
		return nil, domain.NewPersistenceError("read", err)
	}
	return all, nil
}

// FindFirstByID returns the first record with patientID.
func (s *CSVStore) FindFirstByID(ctx context.Context, patientID string) (*domain.PatientRecord, bool, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, false, err
	}
	rec, found := findFirst(all, patientID)
	return rec, found, nil
}

// Count returns the number of records in the file.
func (s *CSVStore) Count(ctx context.Context) (int64, error) {
	all, err := s.All(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(all)), nil
}

// Close is a no-op; the file is only open during reads and writes.
func (s *CSVStore) Close() error {
	return nil
}

func (s *CSVStore) read() ([]*domain.PatientRecord, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []*domain.PatientRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer f.Close()

	return decodeCSV(f)
}

func (s *CSVStore) writeSnapshot(all []*domain.PatientRecord) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".records-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := encodeCSV(tmp, all); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	committed = true
	return nil
}

// encodeCSV writes the header row followed by one row per record.
func encodeCSV(w io.Writer, all []*domain.PatientRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.RecordColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range all {
		row := []string{
			r.PatientID,
			r.PatientName,
			r.ContactInfo,
			strconv.Itoa(r.Age),
			string(r.Sex),
			string(r.PredictionResult),
			r.ConfidenceScore,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write record %s: %w", r.PatientID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// decodeCSV parses a file produced by encodeCSV. An empty input is an empty
// store.
func decodeCSV(r io.Reader) ([]*domain.PatientRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(domain.RecordColumns)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []*domain.PatientRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, col := range domain.RecordColumns {
		if header[i] != col {
			return nil, fmt.Errorf("unexpected column %d: got %q, want %q", i, header[i], col)
		}
	}

	all := []*domain.PatientRecord{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}
		age, err := strconv.Atoi(row[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid age %q: %w", line, row[3], err)
		}
		all = append(all, &domain.PatientRecord{
			PatientID:        row[0],
			PatientName:      row[1],
			ContactInfo:      row[2],
			Age:              age,
			Sex:              domain.Sex(row[4]),
			PredictionResult: domain.RiskLabel(row[5]),
			ConfidenceScore:  row[6],
		})
	}
	return all, nil
}
