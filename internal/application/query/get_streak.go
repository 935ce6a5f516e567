package query

import (
	"context"

	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
	"github.com/lingoleap/lingoleap-hub/internal/domain/streak"
	"github.com/lingoleap/lingoleap-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STREAK QUERY
// The stored streak as last written by a login. Reading never records a visit.
// ══════════════════════════════════════════════════════════════════════════════

// StreakReader reads login streaks.
type StreakReader interface {
	Get(ctx context.Context, u shared.Username) (streak.Data, error)
}

// GetStreakHandler serves stored streaks.
type GetStreakHandler struct {
	streaks StreakReader
	log     *logger.Logger
}

// NewGetStreakHandler creates the handler.
func NewGetStreakHandler(streaks StreakReader, log *logger.Logger) *GetStreakHandler {
	return &GetStreakHandler{streaks: streaks, log: orNop(log)}
}

// Handle returns the user's streak, {0, ""} when none is stored or the store
// cannot be read.
func (h *GetStreakHandler) Handle(ctx context.Context, username string) (streak.Data, error) {
	u, err := shared.NewUsername(username)
	if err != nil {
		return streak.Data{}, err
	}
	d, err := h.streaks.Get(ctx, u)
	if err != nil {
		h.log.Error("reading streak failed", logger.Username(string(u)), logger.Err(err))
		return streak.Default(), nil
	}
	return d, nil
}
