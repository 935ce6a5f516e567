// Package kv defines the key-value store used for all progression records and
// the typed repositories built on it. Concrete backends live in sibling
// packages (sqlite, postgres, redis); an in-memory backend lives here.
package kv

import (
	"context"
	"errors"

	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = shared.NewDomainError("kv", "Get", shared.ErrNotFound, "key not found")

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("kv: store closed")

// UpdateFunc computes the next value of a key from its current value.
// exists is false when the key is absent. Returning a nil slice with a nil
// error leaves the key untouched. Returning an error aborts the update and
// is passed back to the caller unchanged.
type UpdateFunc func(current []byte, exists bool) (next []byte, err error)

// Store is a byte-oriented key-value store.
//
// Update is the only read-modify-write primitive: backends guarantee that no
// other Update or Set on the same key interleaves with fn, either by locking
// or by re-running fn after an optimistic conflict. fn may therefore run
// more than once and must not have side effects outside its return values.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys returns every key starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Ping(ctx context.Context) error
	Close() error
}

// Backend names accepted by configuration.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// ConflictError reports an update that kept losing optimistic races.
func ConflictError(key string, err error) error {
	return shared.WrapError("kv", "Update", shared.ErrConcurrentModification, "too many conflicting writers on "+key, err)
}
