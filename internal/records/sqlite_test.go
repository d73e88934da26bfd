package records

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardiocare-risk-server/internal/domain"
)

func createSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "records.db")

	store, err := NewSQLiteStore(dbPath)

	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestSQLiteStore_Contract(t *testing.T) {
	testStoreContract(t, createSQLiteStore(t))
}

func TestSQLiteStore_ReopenKeepsRecords(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "records.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, testRecord("P001", "Jane Doe")))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	rec, found, err := reopened.FindFirstByID(ctx, "P001")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Jane Doe", rec.PatientName)
}

func TestSQLiteStore_AppendFailureIsPersistenceError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	diskFull := errors.New("database or disk is full")
	mock.ExpectExec("INSERT INTO patient_records").
		WithArgs("P001", "Jane Doe", "555-0100", 54, "Female", "Low Risk", "82.00%").
		WillReturnError(diskFull)

	store := NewSQLiteStoreWithDB(db)
	err = store.Append(context.Background(), testRecord("P001", "Jane Doe"))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, diskFull)

	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "append", perr.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_ReadFailureIsPersistenceError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM patient_records ORDER BY seq").
		WillReturnError(errors.New("database is locked"))
	mock.ExpectQuery("SELECT (.+) FROM patient_records WHERE patient_id").
		WithArgs("P001").
		WillReturnError(errors.New("database is locked"))

	store := NewSQLiteStoreWithDB(db)

	_, err = store.All(context.Background())
	assert.ErrorIs(t, err, domain.ErrPersistence)

	_, found, err := store.FindFirstByID(context.Background(), "P001")
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_FindFirstByIDMiss(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM patient_records WHERE patient_id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"patient_id", "patient_name", "contact_info", "age",
			"sex", "prediction_result", "confidence_score",
		}))

	rec, found, err := NewSQLiteStoreWithDB(db).FindFirstByID(context.Background(), "missing")

	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, rec)
}
