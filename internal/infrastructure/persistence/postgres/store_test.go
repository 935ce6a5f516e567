package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/persistence/kv"
	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/persistence/kv/kvtest"
)

// testURL returns the database used by integration tests, skipping when unset.
func testURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("LINGOLEAP_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LINGOLEAP_TEST_DATABASE_URL not set")
	}
	return url
}

func openClean(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, Config{URL: testURL(t)})
	require.NoError(t, err)
	_, err = s.Connection().Exec(ctx, `TRUNCATE kv_records`)
	require.NoError(t, err)
	return s
}

func TestStore_Contract(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store { return openClean(t) })
}

func TestStore_KeysDoesNotTreatPrefixAsPattern(t *testing.T) {
	ctx := context.Background()
	s := openClean(t)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "users:a%b", []byte(`{}`)))
	require.NoError(t, s.Set(ctx, "users:axb", []byte(`{}`)))

	keys, err := s.Keys(ctx, "users:a%")
	require.NoError(t, err)
	assert.Equal(t, []string{"users:a%b"}, keys)
}

func TestMigrator_StatusAndRollback(t *testing.T) {
	ctx := context.Background()
	s := openClean(t)
	defer s.Close()

	m := NewMigrator(s.Connection())
	status, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, len(GetMigrations()))
	for _, mig := range status {
		assert.True(t, mig.IsApplied, mig.Name)
	}

	require.NoError(t, m.Rollback(ctx))
	ran, err := m.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
}

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "secret"
	assert.Equal(t,
		"host=localhost port=5432 dbname=lingoleap user=postgres password=secret sslmode=disable connect_timeout=10",
		cfg.DSN())

	cfg.URL = "postgres://u@db/x"
	assert.Equal(t, "postgres://u@db/x", cfg.DSN())

	pc, err := DefaultConfig().PoolConfig()
	require.NoError(t, err)
	assert.EqualValues(t, 10, pc.MaxConns)
}
