package command

import (
	"context"

	"github.com/lingoleap/lingoleap-hub/internal/domain/lesson"
	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
	"github.com/lingoleap/lingoleap-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ACTIVITY SCORE COMMAND
// Best score per activity wins. A lesson completes once every activity the
// catalog lists for it has a score, and stays completed.
// ══════════════════════════════════════════════════════════════════════════════

// RecordScoreCommand stores one activity result.
type RecordScoreCommand struct {
	Username      string
	Language      string
	LessonID      int
	ActivityTitle string
	Score         int
}

type recordScoreInput struct {
	user  shared.Username
	lang  shared.LanguageCode
	score lesson.ScoreInput
}

func (c RecordScoreCommand) parse() (recordScoreInput, error) {
	u, err := shared.NewUsername(c.Username)
	if err != nil {
		return recordScoreInput{}, err
	}
	lang, err := shared.NewLanguageCode(c.Language)
	if err != nil {
		return recordScoreInput{}, err
	}
	in := lesson.ScoreInput{LessonID: c.LessonID, Title: c.ActivityTitle, Score: c.Score}
	if err := in.Validate(); err != nil {
		return recordScoreInput{}, err
	}
	return recordScoreInput{user: u, lang: lang, score: in}, nil
}

// Validate checks the command.
func (c RecordScoreCommand) Validate() error {
	_, err := c.parse()
	return err
}

// RecordScoreResult is the progress of the whole language after the score.
type RecordScoreResult struct {
	Progress      lesson.LanguageProgress `json:"progress"`
	Recorded      bool                    `json:"recorded"`
	JustCompleted bool                    `json:"justCompleted"`
}

// RecordScoreHandler handles RecordScoreCommand.
type RecordScoreHandler struct {
	progress ProgressStore
	catalog  lesson.Catalog
	events   shared.EventPublisher
	log      *logger.Logger
}

// NewRecordScoreHandler creates the handler.
func NewRecordScoreHandler(store ProgressStore, catalog lesson.Catalog, events shared.EventPublisher, log *logger.Logger) *RecordScoreHandler {
	return &RecordScoreHandler{progress: store, catalog: catalog, events: events, log: orNop(log)}
}

// Handle records the score atomically. On a storage failure the returned
// progress is what the update computed, or empty when nothing could be read.
func (h *RecordScoreHandler) Handle(ctx context.Context, cmd RecordScoreCommand) (RecordScoreResult, error) {
	in, err := cmd.parse()
	if err != nil {
		return RecordScoreResult{}, err
	}

	var tmpl *lesson.Template
	if h.catalog != nil {
		if t, ok := h.catalog.Lesson(in.lang, in.score.LessonID); ok {
			tmpl = &t
		}
	}

	var res RecordScoreResult
	_, err = h.progress.Update(ctx, in.user, func(rec lesson.Record) (lesson.Record, bool, error) {
		lp := rec.Get(in.lang).Clone()
		out, err := lesson.RecordScore(lp, in.score, tmpl)
		if err != nil {
			return nil, false, err
		}
		res = RecordScoreResult{Progress: lp, Recorded: out.Recorded, JustCompleted: out.JustCompleted}
		if !out.Recorded && !out.JustCompleted {
			return rec, false, nil
		}
		rec[in.lang] = lp
		return rec, true, nil
	})
	if err != nil {
		h.log.Error("lesson progress update failed",
			logger.Username(string(in.user)),
			logger.Language(string(in.lang)),
			logger.LessonID(in.score.LessonID),
			logger.Err(err),
		)
		if res.Progress == nil {
			lp := lesson.LanguageProgress{}
			out, _ := lesson.RecordScore(lp, in.score, tmpl)
			res = RecordScoreResult{Progress: lp, Recorded: out.Recorded, JustCompleted: out.JustCompleted}
		}
		return res, nil
	}

	if tmpl == nil {
		h.log.Debug("score for lesson missing from catalog",
			logger.Language(string(in.lang)),
			logger.LessonID(in.score.LessonID),
		)
	}
	if res.JustCompleted {
		publish(h.events, h.log, shared.NewLessonCompletedEvent(string(in.user), string(in.lang), in.score.LessonID))
	}
	return res, nil
}
