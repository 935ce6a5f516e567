package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lingoleap/lingoleap-hub/internal/domain/account"
	"github.com/lingoleap/lingoleap-hub/internal/domain/lesson"
	"github.com/lingoleap/lingoleap-hub/internal/domain/proficiency"
	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
	"github.com/lingoleap/lingoleap-hub/internal/domain/streak"
)

// Key namespaces. Each user has at most one record per namespace.
const (
	PrefixUsers       = "users:"
	PrefixProgress    = "progress:"
	PrefixProficiency = "proficiency:"
	PrefixStreaks     = "streaks:"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERIC JSON RECORD
// ══════════════════════════════════════════════════════════════════════════════

// records stores one JSON value of type T per username under prefix.
type records[T any] struct {
	store  Store
	prefix string
	zero   func() T
}

func (r records[T]) key(u shared.Username) string {
	return r.prefix + string(u)
}

// get returns the stored value, or zero() with found=false.
func (r records[T]) get(ctx context.Context, u shared.Username) (T, bool, error) {
	raw, err := r.store.Get(ctx, r.key(u))
	if errors.Is(err, shared.ErrNotFound) {
		return r.zero(), false, nil
	}
	if err != nil {
		return r.zero(), false, err
	}
	v, err := r.decode(raw)
	if err != nil {
		return r.zero(), false, err
	}
	return v, true, nil
}

func (r records[T]) decode(raw []byte) (T, error) {
	v := r.zero()
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return r.zero(), fmt.Errorf("decode %s record: %w", strings.TrimSuffix(r.prefix, ":"), err)
	}
	return v, nil
}

// update runs fn atomically on the record of u. fn returning changed=false
// skips the write.
func (r records[T]) update(ctx context.Context, u shared.Username, fn func(cur T, exists bool) (next T, changed bool, err error)) (T, error) {
	var result T
	err := r.store.Update(ctx, r.key(u), func(raw []byte, exists bool) ([]byte, error) {
		cur, err := r.decode(raw)
		if err != nil {
			return nil, err
		}
		next, changed, err := fn(cur, exists)
		if err != nil {
			return nil, err
		}
		result = next
		if !changed {
			return nil, nil
		}
		return json.Marshal(next)
	})
	if err != nil {
		return r.zero(), err
	}
	return result, nil
}

func (r records[T]) set(ctx context.Context, u shared.Username, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, r.key(u), raw)
}

// usernames lists every user that has a record in this namespace.
func (r records[T]) usernames(ctx context.Context) ([]shared.Username, error) {
	keys, err := r.store.Keys(ctx, r.prefix)
	if err != nil {
		return nil, err
	}
	out := make([]shared.Username, 0, len(keys))
	for _, k := range keys {
		out = append(out, shared.Username(strings.TrimPrefix(k, r.prefix)))
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// USERS
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository stores registered accounts.
type UserRepository struct {
	r records[account.User]
}

// NewUserRepository creates a UserRepository.
func NewUserRepository(store Store) *UserRepository {
	return &UserRepository{r: records[account.User]{
		store: store, prefix: PrefixUsers,
		zero: func() account.User { return account.User{} },
	}}
}

// Get returns a user or an ErrNotFound domain error.
func (repo *UserRepository) Get(ctx context.Context, u shared.Username) (account.User, error) {
	user, found, err := repo.r.get(ctx, u)
	if err != nil {
		return account.User{}, err
	}
	if !found {
		return account.User{}, shared.NewDomainError("account", "Get", shared.ErrNotFound, "user not found")
	}
	user.Username = u
	return user, nil
}

// Create stores user unless the username is taken. created is false when it
// already existed.
func (repo *UserRepository) Create(ctx context.Context, user account.User) (created bool, err error) {
	_, err = repo.r.update(ctx, user.Username, func(cur account.User, exists bool) (account.User, bool, error) {
		if exists {
			created = false
			return cur, false, nil
		}
		created = true
		return user, true, nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// List returns all registered usernames, sorted.
func (repo *UserRepository) List(ctx context.Context) ([]shared.Username, error) {
	return repo.r.usernames(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFICIENCY
// ══════════════════════════════════════════════════════════════════════════════

// ProficiencyRepository stores per-language XP and level.
type ProficiencyRepository struct {
	r records[proficiency.Record]
}

// NewProficiencyRepository creates a ProficiencyRepository.
func NewProficiencyRepository(store Store) *ProficiencyRepository {
	return &ProficiencyRepository{r: records[proficiency.Record]{
		store: store, prefix: PrefixProficiency,
		zero: func() proficiency.Record { return proficiency.Record{} },
	}}
}

// Get returns the user's record; missing users get an empty record.
func (repo *ProficiencyRepository) Get(ctx context.Context, u shared.Username) (proficiency.Record, error) {
	rec, _, err := repo.r.get(ctx, u)
	return rec, err
}

// Update atomically changes the user's record.
func (repo *ProficiencyRepository) Update(ctx context.Context, u shared.Username, fn func(proficiency.Record) (proficiency.Record, bool, error)) (proficiency.Record, error) {
	return repo.r.update(ctx, u, func(cur proficiency.Record, _ bool) (proficiency.Record, bool, error) {
		if cur == nil {
			cur = proficiency.Record{}
		}
		return fn(cur)
	})
}

// Replace overwrites the user's record.
func (repo *ProficiencyRepository) Replace(ctx context.Context, u shared.Username, rec proficiency.Record) error {
	return repo.r.set(ctx, u, rec)
}

// All returns every stored record keyed by username.
func (repo *ProficiencyRepository) All(ctx context.Context) (map[shared.Username]proficiency.Record, error) {
	users, err := repo.r.usernames(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[shared.Username]proficiency.Record, len(users))
	for _, u := range users {
		rec, found, err := repo.r.get(ctx, u)
		if err != nil {
			return nil, err
		}
		if found {
			out[u] = rec
		}
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository stores lesson progress per language.
type ProgressRepository struct {
	r records[lesson.Record]
}

// NewProgressRepository creates a ProgressRepository.
func NewProgressRepository(store Store) *ProgressRepository {
	return &ProgressRepository{r: records[lesson.Record]{
		store: store, prefix: PrefixProgress,
		zero: func() lesson.Record { return lesson.Record{} },
	}}
}

// Get returns the user's record; missing users get an empty record.
func (repo *ProgressRepository) Get(ctx context.Context, u shared.Username) (lesson.Record, error) {
	rec, _, err := repo.r.get(ctx, u)
	return rec, err
}

// Update atomically changes the user's record.
func (repo *ProgressRepository) Update(ctx context.Context, u shared.Username, fn func(lesson.Record) (lesson.Record, bool, error)) (lesson.Record, error) {
	return repo.r.update(ctx, u, func(cur lesson.Record, _ bool) (lesson.Record, bool, error) {
		if cur == nil {
			cur = lesson.Record{}
		}
		return fn(cur)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAKS
// ══════════════════════════════════════════════════════════════════════════════

// StreakRepository stores daily login streaks.
type StreakRepository struct {
	r records[streak.Data]
}

// NewStreakRepository creates a StreakRepository.
func NewStreakRepository(store Store) *StreakRepository {
	return &StreakRepository{r: records[streak.Data]{
		store: store, prefix: PrefixStreaks,
		zero:  streak.Default,
	}}
}

// Get returns the user's streak, or the default.
func (repo *StreakRepository) Get(ctx context.Context, u shared.Username) (streak.Data, error) {
	d, _, err := repo.r.get(ctx, u)
	return d, err
}

// Update atomically changes the user's streak.
func (repo *StreakRepository) Update(ctx context.Context, u shared.Username, fn func(streak.Data) (streak.Data, bool, error)) (streak.Data, error) {
	return repo.r.update(ctx, u, func(cur streak.Data, _ bool) (streak.Data, bool, error) {
		return fn(cur)
	})
}

// Set overwrites the user's streak.
func (repo *StreakRepository) Set(ctx context.Context, u shared.Username, d streak.Data) error {
	return repo.r.set(ctx, u, d)
}

// ══════════════════════════════════════════════════════════════════════════════
// BUNDLE
// ══════════════════════════════════════════════════════════════════════════════

// Repositories groups the typed views over one store.
type Repositories struct {
	Users       *UserRepository
	Proficiency *ProficiencyRepository
	Progress    *ProgressRepository
	Streaks     *StreakRepository
}

// NewRepositories builds all repositories over store.
func NewRepositories(store Store) Repositories {
	return Repositories{
		Users:       NewUserRepository(store),
		Proficiency: NewProficiencyRepository(store),
		Progress:    NewProgressRepository(store),
		Streaks:     NewStreakRepository(store),
	}
}
