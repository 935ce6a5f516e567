package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConflict = errors.New("conflict")

func TestRetrier_SucceedsAfterConflicts(t *testing.T) {
	calls := 0
	r := ConflictRetrier(func(err error) bool { return errors.Is(err, errConflict) },
		WithInitialDelay(0))

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errConflict
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrier_StopsOnNonMatchingError(t *testing.T) {
	other := errors.New("disk on fire")
	calls := 0
	r := ConflictRetrier(func(err error) bool { return errors.Is(err, errConflict) })

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return other
	})

	assert.ErrorIs(t, err, other)
	assert.Equal(t, 1, calls)
}

func TestRetrier_Exhausted(t *testing.T) {
	r := New(WithMaxAttempts(3), WithInitialDelay(0), WithJitter(0))
	calls := 0

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errConflict
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errConflict)
	assert.Equal(t, 3, calls)
}

func TestRetrier_PermanentUnwraps(t *testing.T) {
	err := Do(context.Background(), func(ctx context.Context) error {
		return Permanent(errConflict)
	})
	assert.Equal(t, errConflict, err)
}

func TestRetrier_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetrier_DelayCapped(t *testing.T) {
	r := New(WithInitialDelay(time.Second), WithMaxDelay(2*time.Second), WithJitter(0))
	assert.Equal(t, time.Second, r.delay(1))
	assert.Equal(t, 2*time.Second, r.delay(2))
	assert.Equal(t, 2*time.Second, r.delay(10))
}

func TestDoWithData(t *testing.T) {
	v, err := DoWithData(context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
