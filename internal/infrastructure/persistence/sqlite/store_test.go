package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/persistence/kv"
	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/persistence/kv/kvtest"
)

func TestStore_ContractInMemory(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store {
		s, err := Open(context.Background(), Config{Path: MemoryPath})
		require.NoError(t, err)
		return s
	})
}

func TestStore_ContractOnDisk(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store {
		s, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "data", "hub.db")})
		require.NoError(t, err)
		return s
	})
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hub.db")

	s, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "streaks:ana", []byte(`{"count":3,"lastLogin":"2024-01-02"}`)))
	require.NoError(t, s.Close())

	s, err = Open(ctx, Config{Path: path})
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "streaks:ana")
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":3,"lastLogin":"2024-01-02"}`, string(got))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"streaks": 1}, stats)
}

func TestStore_KeysDoesNotTreatPrefixAsPattern(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "users:a_b", []byte(`{}`)))
	require.NoError(t, s.Set(ctx, "users:axb", []byte(`{}`)))

	keys, err := s.Keys(ctx, "users:a_")
	require.NoError(t, err)
	assert.Equal(t, []string{"users:a_b"}, keys)
}
