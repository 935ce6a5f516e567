// Package kvtest holds the behavioural test suite every kv.Store backend
// must pass.
package kvtest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/persistence/kv"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) kv.Store

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("SetGetDelete", func(t *testing.T) { testSetGetDelete(t, newStore(t)) })
	t.Run("KeysByPrefix", func(t *testing.T) { testKeys(t, newStore(t)) })
	t.Run("UpdateCreatesAndSkips", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("UpdateErrorAborts", func(t *testing.T) { testUpdateError(t, newStore(t)) })
	t.Run("ConcurrentUpdates", func(t *testing.T) { testConcurrentUpdates(t, newStore(t)) })
	t.Run("Ping", func(t *testing.T) { testPing(t, newStore(t)) })
}

func closeStore(t *testing.T, s kv.Store) {
	t.Helper()
	assert.NoError(t, s.Close())
}

func testGetMissing(t *testing.T, s kv.Store) {
	defer closeStore(t, s)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func testSetGetDelete(t *testing.T, s kv.Store) {
	defer closeStore(t, s)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "streaks:ana", []byte(`{"count":1}`)))
	got, err := s.Get(ctx, "streaks:ana")
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":1}`, string(got))

	require.NoError(t, s.Set(ctx, "streaks:ana", []byte(`{"count":2}`)))
	got, err = s.Get(ctx, "streaks:ana")
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":2}`, string(got))

	require.NoError(t, s.Delete(ctx, "streaks:ana"))
	_, err = s.Get(ctx, "streaks:ana")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	// Deleting a missing key is not an error.
	assert.NoError(t, s.Delete(ctx, "streaks:ana"))
}

func testKeys(t *testing.T, s kv.Store) {
	defer closeStore(t, s)
	ctx := context.Background()

	for _, k := range []string{"users:cy", "users:ana", "users:bo", "progress:ana"} {
		require.NoError(t, s.Set(ctx, k, []byte(`{}`)))
	}

	keys, err := s.Keys(ctx, "users:")
	require.NoError(t, err)
	assert.Equal(t, []string{"users:ana", "users:bo", "users:cy"}, keys)

	keys, err = s.Keys(ctx, "streaks:")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func testUpdate(t *testing.T, s kv.Store) {
	defer closeStore(t, s)
	ctx := context.Background()

	err := s.Update(ctx, "k", func(cur []byte, exists bool) ([]byte, error) {
		assert.False(t, exists)
		return []byte("1"), nil
	})
	require.NoError(t, err)

	err = s.Update(ctx, "k", func(cur []byte, exists bool) ([]byte, error) {
		assert.True(t, exists)
		assert.Equal(t, "1", string(cur))
		return nil, nil
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "1", string(got))
}

func testUpdateError(t *testing.T, s kv.Store) {
	defer closeStore(t, s)
	ctx := context.Background()
	boom := errors.New("boom")

	require.NoError(t, s.Set(ctx, "k", []byte("keep")))
	err := s.Update(ctx, "k", func(cur []byte, exists bool) ([]byte, error) {
		return []byte("lost"), boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "keep", string(got))
}

func testConcurrentUpdates(t *testing.T, s kv.Store) {
	defer closeStore(t, s)
	ctx := context.Background()
	const workers, perWorker = 8, 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				err := s.Update(ctx, "counter", func(cur []byte, exists bool) ([]byte, error) {
					n := 0
					if exists {
						var err error
						if n, err = strconv.Atoi(string(cur)); err != nil {
							return nil, err
						}
					}
					return []byte(strconv.Itoa(n + 1)), nil
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(workers*perWorker), string(got))
}

func testPing(t *testing.T, s kv.Store) {
	assert.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
}
