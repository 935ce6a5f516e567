package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/persistence/kv"
	"github.com/lingoleap/lingoleap-hub/pkg/retry"
)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 500

// Store is a kv.Store on plain Redis string keys.
type Store struct {
	client    *redis.Client
	namespace string
	ownClient bool
}

// NewStore wraps an existing client. Close leaves the client open.
func NewStore(client *redis.Client, namespace string) *Store {
	return &Store{client: client, namespace: namespace}
}

// Open connects using cfg. The returned store owns the client.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{client: client, namespace: cfg.Namespace, ownClient: true}, nil
}

// Client returns the underlying client.
func (s *Store) Client() *redis.Client {
	return s.client
}

func (s *Store) key(k string) string {
	return s.namespace + k
}

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return v, nil
}

// Set implements kv.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Delete implements kv.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete %q: %w", key, err)
	}
	return nil
}

// Keys implements kv.Store. SCAN may report a key more than once, so the
// result is deduplicated before sorting.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	match := escapeGlob(s.key(prefix)) + "*"
	seen := make(map[string]struct{})

	iter := s.client.Scan(ctx, 0, match, scanBatch).Iterator()
	for iter.Next(ctx) {
		seen[strings.TrimPrefix(iter.Val(), s.namespace)] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis keys %q: %w", prefix, err)
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

// Update implements kv.Store with WATCH/MULTI. A transaction that loses the
// race to another writer fails with redis.TxFailedErr and is replayed.
func (s *Store) Update(ctx context.Context, key string, fn kv.UpdateFunc) error {
	full := s.key(key)

	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, full).Bytes()
		exists := true
		if errors.Is(err, redis.Nil) {
			exists, err = false, nil
		}
		if err != nil {
			return fmt.Errorf("redis read %q: %w", key, err)
		}

		next, err := fn(cur, exists)
		if err != nil {
			return retry.Permanent(err)
		}
		if next == nil {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, full, next, 0)
			return nil
		})
		return err
	}

	r := retry.ConflictRetrier(func(err error) bool { return errors.Is(err, redis.TxFailedErr) })
	err := r.Do(ctx, func(ctx context.Context) error {
		return s.client.Watch(ctx, txf, full)
	})
	if errors.Is(err, retry.ErrExhausted) {
		return kv.ConflictError(key, err)
	}
	return err
}

// Ping implements kv.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements kv.Store.
func (s *Store) Close() error {
	if !s.ownClient {
		return nil
	}
	return s.client.Close()
}

var _ kv.Store = (*Store)(nil)
