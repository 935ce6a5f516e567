package command

import (
	"context"

	"github.com/lingoleap/lingoleap-hub/internal/domain/lesson"
	"github.com/lingoleap/lingoleap-hub/internal/domain/proficiency"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE ACTIVITY COMMAND
// The flow a client runs when a lesson game ends: award XP for the score,
// then record the score against the lesson.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteActivityCommand reports a finished activity.
type CompleteActivityCommand struct {
	Username      string
	Language      string
	LessonID      int
	ActivityTitle string
	Score         int
}

// CompleteActivityResult combines the XP and lesson outcomes.
type CompleteActivityResult struct {
	XPGained      int                     `json:"xpGained"`
	LeveledUp     bool                    `json:"leveledUp"`
	Proficiency   proficiency.State       `json:"proficiency"`
	Progress      lesson.LanguageProgress `json:"progress"`
	JustCompleted bool                    `json:"justCompleted"`
}

// CompleteActivityHandler handles CompleteActivityCommand.
type CompleteActivityHandler struct {
	xp     *ApplyXPHandler
	scores *RecordScoreHandler
}

// NewCompleteActivityHandler composes the XP and score handlers.
func NewCompleteActivityHandler(xp *ApplyXPHandler, scores *RecordScoreHandler) *CompleteActivityHandler {
	return &CompleteActivityHandler{xp: xp, scores: scores}
}

// Handle validates both halves before touching storage so an invalid score
// never awards XP.
func (h *CompleteActivityHandler) Handle(ctx context.Context, cmd CompleteActivityCommand) (CompleteActivityResult, error) {
	scoreCmd := RecordScoreCommand(cmd)
	if err := scoreCmd.Validate(); err != nil {
		return CompleteActivityResult{}, err
	}

	gained := proficiency.XPForScore(cmd.Score)
	xp, err := h.xp.Handle(ctx, ApplyXPCommand{
		Username: cmd.Username,
		Language: cmd.Language,
		Amount:   gained,
		Source:   "activity",
	})
	if err != nil {
		return CompleteActivityResult{}, err
	}

	rec, err := h.scores.Handle(ctx, scoreCmd)
	if err != nil {
		return CompleteActivityResult{}, err
	}

	return CompleteActivityResult{
		XPGained:      gained,
		LeveledUp:     xp.LeveledUp,
		Proficiency:   xp.NewState,
		Progress:      rec.Progress,
		JustCompleted: rec.JustCompleted,
	}, nil
}
