package records

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardiocare-risk-server/internal/domain"
)

func testRecord(id, name string) *domain.PatientRecord {
	return &domain.PatientRecord{
		PatientID:        id,
		PatientName:      name,
		ContactInfo:      "555-0100",
		Age:              54,
		Sex:              domain.SexFemale,
		PredictionResult: domain.RiskLow,
		ConfidenceScore:  "82.00%",
	}
}

// testStoreContract exercises the behavior every backend shares. The store
// must be empty.
func testStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		all, err := store.All(ctx)
		require.NoError(t, err)
		assert.NotNil(t, all)
		assert.Empty(t, all)

		rec, found, err := store.FindFirstByID(ctx, "P001")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, rec)
	})

	t.Run("append and read back", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, testRecord("P001", "Jane Doe")))
		high := testRecord("P002", "John Roe")
		high.Sex = domain.SexMale
		high.PredictionResult = domain.RiskHigh
		high.ConfidenceScore = "70.00%"
		require.NoError(t, store.Append(ctx, high))

		all, err := store.All(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, testRecord("P001", "Jane Doe"), all[0])
		assert.Equal(t, high, all[1])

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("duplicate ids keep first match", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, testRecord("P001", "Second Jane")))

		rec, found, err := store.FindFirstByID(ctx, "P001")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Jane Doe", rec.PatientName)

		all, err := store.All(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
		assert.Equal(t, "Second Jane", all[2].PatientName)
	})

	t.Run("lookup is exact", func(t *testing.T) {
		_, found, err := store.FindFirstByID(ctx, "p001")
		require.NoError(t, err)
		assert.False(t, found)

		_, found, err = store.FindFirstByID(ctx, "")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("concurrent appends are all kept", func(t *testing.T) {
		before, err := store.Count(ctx)
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- store.Append(ctx, testRecord(fmt.Sprintf("C%02d", i), "Concurrent"))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		after, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, before+10, after)
	})
}
