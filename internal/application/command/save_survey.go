package command

import (
	"context"
	"fmt"

	"github.com/lingoleap/lingoleap-hub/internal/domain/proficiency"
	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
	"github.com/lingoleap/lingoleap-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SAVE INITIAL PROFICIENCY COMMAND
// The onboarding survey: each chosen language starts at the threshold XP of
// the level the user picked.
// ══════════════════════════════════════════════════════════════════════════════

// SaveSurveyCommand maps language codes to survey answers ("None",
// "Beginner", "Intermediate" or "Advanced").
type SaveSurveyCommand struct {
	Username string
	Levels   map[string]string
}

// SaveSurveyHandler handles SaveSurveyCommand.
type SaveSurveyHandler struct {
	proficiency ProficiencyStore
	log         *logger.Logger
}

// NewSaveSurveyHandler creates the handler.
func NewSaveSurveyHandler(store ProficiencyStore, log *logger.Logger) *SaveSurveyHandler {
	return &SaveSurveyHandler{proficiency: store, log: orNop(log)}
}

// Handle replaces the user's whole proficiency record. A storage failure is
// logged and the record that would have been saved is still returned.
func (h *SaveSurveyHandler) Handle(ctx context.Context, cmd SaveSurveyCommand) (proficiency.Record, error) {
	u, err := shared.NewUsername(cmd.Username)
	if err != nil {
		return nil, err
	}
	if len(cmd.Levels) == 0 {
		return nil, shared.ValidationError("proficiency", "SaveSurvey", "at least one language is required")
	}

	rec := make(proficiency.Record, len(cmd.Levels))
	for rawLang, rawLevel := range cmd.Levels {
		lang, err := shared.NewLanguageCode(rawLang)
		if err != nil {
			return nil, err
		}
		level, err := proficiency.ParseSurveyLevel(rawLevel)
		if err != nil {
			return nil, shared.WrapError("proficiency", "SaveSurvey", shared.ErrValidation,
				fmt.Sprintf("unknown level %q for %s", rawLevel, lang), err)
		}
		rec[lang] = proficiency.ForSurvey(level)
	}

	// Swapped under the same per-key update that ApplyXP uses.
	_, err = h.proficiency.Update(ctx, u, func(proficiency.Record) (proficiency.Record, bool, error) {
		return rec, true, nil
	})
	if err != nil {
		h.log.Error("saving survey failed", logger.Username(string(u)), logger.Err(err))
	}
	return rec, nil
}
