package records

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardiocare-risk-server/internal/domain"
)

func createCSVStore(t *testing.T) *CSVStore {
	t.Helper()
	store, err := NewCSVStore(filepath.Join(t.TempDir(), "data", "patient_records.csv"))
	require.NoError(t, err)
	return store
}

func TestCSVStore_Contract(t *testing.T) {
	testStoreContract(t, createCSVStore(t))
}

func TestCSVStore_MissingFileIsEmpty(t *testing.T) {
	store := createCSVStore(t)

	_, err := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err), "file should not exist before first append")

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCSVStore_FileFormat(t *testing.T) {
	store := createCSVStore(t)
	ctx := context.Background()

	rec := testRecord("P001", "Doe, Jane")
	require.NoError(t, store.Append(ctx, rec))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	want := "Patient ID,Patient Name,Contact Info,Age,Sex,Prediction Result,Confidence Score\n" +
		"P001,\"Doe, Jane\",555-0100,54,Female,Low Risk,82.00%\n"
	assert.Equal(t, want, string(data))
}

func TestCSVStore_ReadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patient_records.csv")
	content := strings.Join([]string{
		"Patient ID,Patient Name,Contact Info,Age,Sex,Prediction Result,Confidence Score",
		"A1,Ann,ann@example.com,61,Female,High Risk,91.25%",
		"B2,Bob,555-0199,47,Male,Low Risk,66.40%",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	store, err := NewCSVStore(path)
	require.NoError(t, err)

	rec, found, err := store.FindFirstByID(context.Background(), "B2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, &domain.PatientRecord{
		PatientID:        "B2",
		PatientName:      "Bob",
		ContactInfo:      "555-0199",
		Age:              47,
		Sex:              domain.SexMale,
		PredictionResult: domain.RiskLow,
		ConfidenceScore:  "66.40%",
	}, rec)
}

func TestCSVStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patient_records.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name\nx,y\n"), 0644))

	store, err := NewCSVStore(path)
	require.NoError(t, err)

	_, err = store.All(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	err = store.Append(context.Background(), testRecord("P1", "Jane"))
	assert.ErrorIs(t, err, domain.ErrPersistence)

	// The unreadable file is left untouched
	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "id,name\nx,y\n", string(data))
}

func TestCSVStore_FailedAppendKeepsPriorData(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}
	store := createCSVStore(t)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, testRecord("P001", "Jane Doe")))

	dir := filepath.Dir(store.Path())
	require.NoError(t, os.Chmod(dir, 0555))
	defer os.Chmod(dir, 0755)

	err := store.Append(ctx, testRecord("P002", "John Roe"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "P001", all[0].PatientID)
}

func TestCSVStore_CanceledContext(t *testing.T) {
	store := createCSVStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Append(ctx, testRecord("P001", "Jane"))
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, context.Canceled)
}
