package command

import (
	"context"

	"github.com/lingoleap/lingoleap-hub/internal/domain/proficiency"
	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
	"github.com/lingoleap/lingoleap-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLY XP COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// ApplyXPCommand adds Amount XP to one language of a user.
type ApplyXPCommand struct {
	Username string
	Language string
	Amount   int

	// Source names what earned the XP, for events only.
	Source string
}

type applyXPInput struct {
	user shared.Username
	lang shared.LanguageCode
}

// Validate checks the command.
func (c ApplyXPCommand) Validate() error {
	_, err := c.parse()
	return err
}

func (c ApplyXPCommand) parse() (applyXPInput, error) {
	u, err := shared.NewUsername(c.Username)
	if err != nil {
		return applyXPInput{}, err
	}
	lang, err := shared.NewLanguageCode(c.Language)
	if err != nil {
		return applyXPInput{}, err
	}
	if c.Amount < 0 {
		return applyXPInput{}, shared.ErrNegativeXP
	}
	return applyXPInput{user: u, lang: lang}, nil
}

// ApplyXPHandler handles ApplyXPCommand.
type ApplyXPHandler struct {
	proficiency ProficiencyStore
	events      shared.EventPublisher
	log         *logger.Logger
}

// NewApplyXPHandler creates the handler.
func NewApplyXPHandler(store ProficiencyStore, events shared.EventPublisher, log *logger.Logger) *ApplyXPHandler {
	return &ApplyXPHandler{proficiency: store, events: events, log: orNop(log)}
}

// Handle adds XP atomically and promotes the level when a threshold is
// crossed. A delta that would overflow the stored total is rejected and
// nothing is written. A storage failure is logged and the result computed
// from the last state seen (or the default) is returned.
func (h *ApplyXPHandler) Handle(ctx context.Context, cmd ApplyXPCommand) (proficiency.Result, error) {
	in, err := cmd.parse()
	if err != nil {
		return proficiency.Result{}, err
	}

	var res proficiency.Result
	applied := false
	_, err = h.proficiency.Update(ctx, in.user, func(rec proficiency.Record) (proficiency.Record, bool, error) {
		r, err := proficiency.Apply(rec.Get(in.lang), cmd.Amount)
		if err != nil {
			return nil, false, err
		}
		res, applied = r, true

		_, had := rec[in.lang]
		if cmd.Amount == 0 && had {
			return rec, false, nil
		}
		rec[in.lang] = r.NewState
		return rec, true, nil
	})
	if shared.IsValidation(err) {
		return proficiency.Result{}, err
	}
	if err != nil {
		h.log.Error("proficiency update failed",
			logger.Username(string(in.user)),
			logger.Language(string(in.lang)),
			logger.XPAmount(cmd.Amount),
			logger.Err(err),
		)
		if !applied {
			res, _ = proficiency.Apply(proficiency.Default(), cmd.Amount)
		}
		return res, nil
	}

	if cmd.Amount > 0 {
		publish(h.events, h.log, shared.NewXPGainedEvent(
			string(in.user), string(in.lang), cmd.Amount, res.NewState.XP, cmd.Source))
	}
	if res.LeveledUp {
		h.log.Info("level up",
			logger.Username(string(in.user)),
			logger.Language(string(in.lang)),
			logger.String("level", string(res.NewState.Level)),
		)
		publish(h.events, h.log, shared.NewLevelUpEvent(
			string(in.user), string(in.lang), string(res.OldLevel), string(res.NewState.Level), res.NewState.XP))
	}

	return res, nil
}
