package query

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/lingoleap/lingoleap-hub/internal/domain/leaderboard"
	"github.com/lingoleap/lingoleap-hub/internal/domain/proficiency"
	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
	"github.com/lingoleap/lingoleap-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Total XP across languages per user, recomputed on every call.
// ══════════════════════════════════════════════════════════════════════════════

// MaxLeaderboardLimit caps one page.
const MaxLeaderboardLimit = 1000

// GetLeaderboardQuery selects a page of the board. Limit 0 returns every
// entry after Offset.
type GetLeaderboardQuery struct {
	Limit  int
	Offset int
}

// Validate checks the paging parameters.
func (q GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 || q.Limit > MaxLeaderboardLimit {
		return shared.ValidationError("leaderboard", "Get", "limit must be between 0 and 1000")
	}
	if q.Offset < 0 {
		return shared.ValidationError("leaderboard", "Get", "offset cannot be negative")
	}
	return nil
}

// GetLeaderboardResult is one page of the board.
type GetLeaderboardResult struct {
	Entries    []leaderboard.Entry `json:"entries"`
	TotalCount int                 `json:"total_count"`
	HasMore    bool                `json:"has_more"`
}

// GetLeaderboardHandler handles GetLeaderboardQuery.
type GetLeaderboardHandler struct {
	users       UserLister
	proficiency ProficiencyReader
	log         *logger.Logger
}

// NewGetLeaderboardHandler creates the handler.
func NewGetLeaderboardHandler(users UserLister, prof ProficiencyReader, log *logger.Logger) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{users: users, proficiency: prof, log: orNop(log)}
}

// Handle builds the board. An unreadable namespace contributes nothing
// instead of failing the whole board.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return GetLeaderboardResult{}, err
	}

	var (
		users   []shared.Username
		records map[shared.Username]proficiency.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if users, err = h.users.List(gctx); err != nil {
			h.log.Error("listing users failed", logger.Err(err))
			users = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if records, err = h.proficiency.All(gctx); err != nil {
			h.log.Error("reading proficiency failed", logger.Err(err))
			records = nil
		}
		return nil
	})
	_ = g.Wait()

	all := leaderboard.Build(users, records)

	res := GetLeaderboardResult{TotalCount: len(all)}
	if q.Offset >= len(all) {
		res.Entries = []leaderboard.Entry{}
		return res, nil
	}
	page := leaderboard.Top(all[q.Offset:], q.Limit)
	res.Entries = page
	res.HasMore = q.Offset+len(page) < len(all)
	return res, nil
}
