package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardiocare-risk-server/internal/domain"
)

// testStoreBehavior runs the checks shared by every session store.
func testStoreBehavior(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		sess, err := store.Create(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, sess.ID)
		assert.Equal(t, domain.GateIdle, sess.GateState)

		got, err := store.Get(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, sess.ID, got.ID)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		_, err = store.Update(ctx, "missing", func(*domain.Session) error { return nil })
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("update persists even when fn fails", func(t *testing.T) {
		sess, err := store.Create(ctx)
		require.NoError(t, err)

		mismatch := errors.New("mismatch")
		_, err = store.Update(ctx, sess.ID, func(s *domain.Session) error {
			s.GateState = domain.GateFailed
			return mismatch
		})
		assert.ErrorIs(t, err, mismatch)

		got, err := store.Get(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.GateFailed, got.GateState)
	})

	t.Run("returned sessions are copies", func(t *testing.T) {
		sess, err := store.Create(ctx)
		require.NoError(t, err)
		_, err = store.Update(ctx, sess.ID, func(s *domain.Session) error {
			s.LastAssessment = &domain.PendingAssessment{Age: 50, Sex: domain.SexMale}
			return nil
		})
		require.NoError(t, err)

		got, err := store.Get(ctx, sess.ID)
		require.NoError(t, err)
		got.LastAssessment.Age = 99

		again, err := store.Get(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, 50, again.LastAssessment.Age)
	})

	t.Run("sessions are isolated", func(t *testing.T) {
		a, err := store.Create(ctx)
		require.NoError(t, err)
		b, err := store.Create(ctx)
		require.NoError(t, err)

		_, err = store.Update(ctx, a.ID, func(s *domain.Session) error {
			s.Challenge = &domain.VerificationChallenge{TargetPatientID: "P001", ExpectedCode: "123456"}
			return nil
		})
		require.NoError(t, err)

		got, err := store.Get(ctx, b.ID)
		require.NoError(t, err)
		assert.Nil(t, got.Challenge)
	})

	t.Run("concurrent updates are serialized", func(t *testing.T) {
		sess, err := store.Create(ctx)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Update(ctx, sess.ID, func(s *domain.Session) error {
					if s.Challenge == nil {
						s.Challenge = &domain.VerificationChallenge{}
					}
					s.Challenge.FailedAttempts++
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := store.Get(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.Challenge.FailedAttempts)
	})

	t.Run("delete", func(t *testing.T) {
		sess, err := store.Create(ctx)
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, sess.ID))
		require.NoError(t, store.Delete(ctx, sess.ID))

		_, err = store.Get(ctx, sess.ID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := NewMemoryStore(100, time.Hour, logger)
	defer store.Close()

	testStoreBehavior(t, store)
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := NewMemoryStore(2, time.Hour, logger)
	ctx := context.Background()

	first, err := store.Create(ctx)
	require.NoError(t, err)
	_, err = store.Create(ctx)
	require.NoError(t, err)
	_, err = store.Create(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, store.Len())
	_, err = store.Get(ctx, first.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemoryStore_IdleExpiry(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := NewMemoryStore(10, 50*time.Millisecond, logger)
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := store.Get(ctx, sess.ID)
		return errors.Is(err, domain.ErrSessionNotFound)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRedisStore(t *testing.T) {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL not set, skipping Redis tests")
	}
	logger, _ := test.NewNullLogger()

	store, err := NewRedisStore(context.Background(), redisURL, time.Minute, logger)
	require.NoError(t, err)
	defer store.Close()

	testStoreBehavior(t, store)
}

func TestOpen(t *testing.T) {
	logger, _ := test.NewNullLogger()

	store, err := Open(context.Background(), domain.SessionConfig{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = Open(context.Background(), domain.SessionConfig{Backend: "etcd"}, logger)
	assert.Error(t, err)
}
