package command

import (
	"context"

	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
	"github.com/lingoleap/lingoleap-hub/internal/domain/streak"
	"github.com/lingoleap/lingoleap-hub/pkg/logger"
	"github.com/lingoleap/lingoleap-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE STREAK COMMAND
// Runs once per login or app load. Same day is a no-op, the next day extends
// the streak and anything else restarts it at 1.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateStreakCommand records a login for Username.
type UpdateStreakCommand struct {
	Username string

	// Today overrides the handler clock when set.
	Today timeutil.Date
}

// UpdateStreakResult is the streak after the login.
type UpdateStreakResult struct {
	Streak  streak.Data    `json:"streak"`
	Outcome streak.Outcome `json:"-"`
	// Persisted is false when the store failed and Streak was computed from
	// defaults.
	Persisted bool `json:"-"`
}

// UpdateStreakHandler handles UpdateStreakCommand.
type UpdateStreakHandler struct {
	streaks StreakStore
	clock   timeutil.Clock
	events  shared.EventPublisher
	log     *logger.Logger
}

// NewUpdateStreakHandler creates the handler.
func NewUpdateStreakHandler(streaks StreakStore, clock timeutil.Clock, events shared.EventPublisher, log *logger.Logger) *UpdateStreakHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &UpdateStreakHandler{streaks: streaks, clock: clock, events: events, log: orNop(log)}
}

// Handle applies the streak rule. Storage failures never reach the caller:
// an unreadable record counts as the default and a failed write still
// returns the computed streak.
func (h *UpdateStreakHandler) Handle(ctx context.Context, cmd UpdateStreakCommand) (UpdateStreakResult, error) {
	u, err := shared.NewUsername(cmd.Username)
	if err != nil {
		return UpdateStreakResult{}, err
	}

	today := cmd.Today
	if today.IsZero() {
		today = timeutil.Today(h.clock)
	}

	var (
		next    streak.Data
		outcome streak.Outcome
		applied bool
	)
	_, err = h.streaks.Update(ctx, u, func(cur streak.Data) (streak.Data, bool, error) {
		next, outcome = streak.Record(cur, today)
		applied = true
		return next, outcome != streak.Unchanged, nil
	})
	if err != nil {
		h.log.Error("streak update failed, using computed value",
			logger.Username(string(u)),
			logger.Err(err),
		)
		if !applied {
			next, outcome = streak.Record(streak.Default(), today)
		}
		return UpdateStreakResult{Streak: next, Outcome: outcome}, nil
	}

	if outcome != streak.Unchanged {
		publish(h.events, h.log, shared.NewStreakUpdatedEvent(
			string(u), next.Count, next.LastLogin.String(), outcome == streak.Started))
	}

	return UpdateStreakResult{Streak: next, Outcome: outcome, Persisted: true}, nil
}
