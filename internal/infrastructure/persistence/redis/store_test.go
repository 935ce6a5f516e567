package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/persistence/kv"
	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/persistence/kv/kvtest"
)

// testConfig points at LINGOLEAP_TEST_REDIS_URL under a fresh namespace so
// runs never see each other's keys.
func testConfig(t *testing.T) Config {
	t.Helper()
	url := os.Getenv("LINGOLEAP_TEST_REDIS_URL")
	if url == "" {
		t.Skip("LINGOLEAP_TEST_REDIS_URL not set")
	}
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.Namespace = "lingoleap-test:" + uuid.NewString() + ":"
	return cfg
}

func TestStore_Contract(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store {
		s, err := Open(context.Background(), testConfig(t))
		require.NoError(t, err)
		return s
	})
}

func TestStore_KeysStripNamespaceAndEscapeGlob(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, testConfig(t))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "users:a*b", []byte(`{}`)))
	require.NoError(t, s.Set(ctx, "users:axb", []byte(`{}`)))

	keys, err := s.Keys(ctx, "users:a*")
	require.NoError(t, err)
	assert.Equal(t, []string{"users:a*b"}, keys)
}

func TestNewStore_DoesNotCloseSharedClient(t *testing.T) {
	ctx := context.Background()
	owner, err := Open(ctx, testConfig(t))
	require.NoError(t, err)
	defer owner.Close()

	shared := NewStore(owner.Client(), "other:")
	require.NoError(t, shared.Close())
	assert.NoError(t, owner.Ping(ctx))
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `users:a\*b\?\[x\]\\`, escapeGlob(`users:a*b?[x]\`))
	assert.Equal(t, "progress:ana", escapeGlob("progress:ana"))
}

func TestConfig_Options(t *testing.T) {
	opts, err := DefaultConfig().Options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 10, opts.PoolSize)

	cfg := DefaultConfig()
	cfg.URL = "redis://:pw@cache:6380/2"
	opts, err = cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)

	cfg.URL = "http://nope"
	_, err = cfg.Options()
	assert.Error(t, err)
}

func TestPubSubChannel(t *testing.T) {
	assert.Equal(t, "lingoleap:pubsub:lesson.completed", PubSubChannel("lingoleap:", "lesson.completed"))
}
