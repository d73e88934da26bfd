package records

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cardiocare-risk-server/internal/domain"
)

const exportVersion = "1.0"

// ExportJSON writes every record of store as a RecordExport document.
func ExportJSON(ctx context.Context, store Store, writer io.Writer) error {
	all, err := store.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	export := &RecordExport{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Records:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ExportCSV writes every record of store in the record file format.
func ExportCSV(ctx context.Context, store Store, writer io.Writer) error {
	all, err := store.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}
	return encodeCSV(writer, all)
}

// ImportJSON appends the records of a RecordExport document to store, in
// document order. Records failing validation are skipped.
func ImportJSON(ctx context.Context, store Store, reader io.Reader) (imported int, skipped int, err error) {
	var export RecordExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, rec := range export.Records {
		if rec == nil || ValidateRecord(rec) != nil {
			skipped++
			continue
		}
		if err := store.Append(ctx, rec); err != nil {
			return imported, skipped, fmt.Errorf("failed to append %s: %w", rec.PatientID, err)
		}
		imported++
	}

	return imported, skipped, nil
}

// ValidateRecord checks the fields every persisted record must carry.
func ValidateRecord(rec *domain.PatientRecord) error {
	switch {
	case rec.PatientID == "":
		return domain.NewValidationError("patient_id", "is required", rec.PatientID)
	case rec.PatientName == "":
		return domain.NewValidationError("patient_name", "is required", rec.PatientName)
	case rec.ContactInfo == "":
		return domain.NewValidationError("contact_info", "is required", rec.ContactInfo)
	case rec.Age < domain.MinAge || rec.Age > domain.MaxAge:
		return domain.NewValidationError("age", fmt.Sprintf("must be between %d and %d", domain.MinAge, domain.MaxAge), rec.Age)
	case !rec.PredictionResult.IsValid():
		return domain.NewValidationError("prediction_result", "must be High Risk or Low Risk", rec.PredictionResult)
	}
	return nil
}
