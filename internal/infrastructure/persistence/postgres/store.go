package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/persistence/kv"
	"github.com/lingoleap/lingoleap-hub/pkg/retry"
)

// Store is a kv.Store backed by the kv_records table.
type Store struct {
	conn *Connection
}

// NewStore wraps an open connection. Run the Migrator first.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

// Open connects, applies pending migrations and returns a ready store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	conn, err := NewConnection(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := NewMigrator(conn).Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return NewStore(conn), nil
}

// Connection returns the underlying connection.
func (s *Store) Connection() *Connection {
	return s.conn
}

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.conn.QueryRow(ctx, `SELECT value FROM kv_records WHERE key = $1`, key).Scan(&v)
	if IsNoRows(err) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %q: %w", key, err)
	}
	return v, nil
}

// Set implements kv.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.conn.Exec(ctx, upsertSQL, key, value); err != nil {
		return fmt.Errorf("postgres set %q: %w", key, err)
	}
	return nil
}

// Delete implements kv.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.conn.Exec(ctx, `DELETE FROM kv_records WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres delete %q: %w", key, err)
	}
	return nil
}

// Keys implements kv.Store.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT key FROM kv_records WHERE left(key, length($1)) = $1 ORDER BY key COLLATE "C"`,
		prefix)
	if err != nil {
		return nil, fmt.Errorf("postgres keys %q: %w", prefix, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres keys %q: %w", prefix, err)
	}
	return keys, nil
}

// Update implements kv.Store. A transaction-scoped advisory lock on the key
// serialises updaters even before the row exists; the row lock then blocks
// plain Set calls until commit.
func (s *Store) Update(ctx context.Context, key string, fn kv.UpdateFunc) error {
	return retry.ConflictRetrier(IsSerializationFailure).Do(ctx, func(ctx context.Context) error {
		return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
				return fmt.Errorf("postgres lock %q: %w", key, err)
			}

			var cur []byte
			exists := true
			err := tx.QueryRow(ctx, `SELECT value FROM kv_records WHERE key = $1 FOR UPDATE`, key).Scan(&cur)
			if IsNoRows(err) {
				exists, err = false, nil
			}
			if err != nil {
				return fmt.Errorf("postgres read %q: %w", key, err)
			}

			next, err := fn(cur, exists)
			if err != nil {
				return retry.Permanent(err)
			}
			if next == nil {
				return nil
			}
			if _, err := tx.Exec(ctx, upsertSQL, key, next); err != nil {
				return fmt.Errorf("postgres write %q: %w", key, err)
			}
			return nil
		})
	})
}

// Ping implements kv.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close implements kv.Store.
func (s *Store) Close() error {
	s.conn.Close()
	return nil
}

const upsertSQL = `
INSERT INTO kv_records (key, value, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

var _ kv.Store = (*Store)(nil)
