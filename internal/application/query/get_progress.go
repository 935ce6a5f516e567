package query

import (
	"context"

	"github.com/lingoleap/lingoleap-hub/internal/domain/lesson"
	"github.com/lingoleap/lingoleap-hub/internal/domain/proficiency"
	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
	"github.com/lingoleap/lingoleap-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFICIENCY AND LESSON READS
// Missing records and storage failures both read as defaults.
// ══════════════════════════════════════════════════════════════════════════════

// UserLanguageQuery names one language of one user.
type UserLanguageQuery struct {
	Username string
	Language string
}

func (q UserLanguageQuery) parse() (shared.Username, shared.LanguageCode, error) {
	u, err := shared.NewUsername(q.Username)
	if err != nil {
		return "", "", err
	}
	lang, err := shared.NewLanguageCode(q.Language)
	if err != nil {
		return "", "", err
	}
	return u, lang, nil
}

// ProgressHandler serves proficiency, lesson progress and the lesson list.
type ProgressHandler struct {
	proficiency ProficiencyReader
	progress    ProgressReader
	catalog     lesson.Catalog
	log         *logger.Logger
}

// NewProgressHandler creates the handler.
func NewProgressHandler(prof ProficiencyReader, progress ProgressReader, catalog lesson.Catalog, log *logger.Logger) *ProgressHandler {
	return &ProgressHandler{proficiency: prof, progress: progress, catalog: catalog, log: orNop(log)}
}

// Proficiency returns the user's state in a language, Beginner/0 by default.
func (h *ProgressHandler) Proficiency(ctx context.Context, q UserLanguageQuery) (proficiency.State, error) {
	u, lang, err := q.parse()
	if err != nil {
		return proficiency.State{}, err
	}
	rec, err := h.proficiency.Get(ctx, u)
	if err != nil {
		h.log.Error("reading proficiency failed", logger.Username(string(u)), logger.Err(err))
		return proficiency.Default(), nil
	}
	return rec.Get(lang), nil
}

// LessonProgress returns every lesson the user touched in a language.
func (h *ProgressHandler) LessonProgress(ctx context.Context, q UserLanguageQuery) (lesson.LanguageProgress, error) {
	u, lang, err := q.parse()
	if err != nil {
		return nil, err
	}
	rec, err := h.progress.Get(ctx, u)
	if err != nil {
		h.log.Error("reading lesson progress failed", logger.Username(string(u)), logger.Err(err))
		return lesson.LanguageProgress{}, nil
	}
	return rec.Get(lang), nil
}

// AvailableLesson is a catalog lesson within the user's level.
type AvailableLesson struct {
	lesson.Template
	Completed bool          `json:"completed"`
	Status    lesson.Status `json:"status"`
}

// AvailableLessonsResult lists the lessons of the user's level in catalog
// order.
type AvailableLessonsResult struct {
	Level   proficiency.Level `json:"level"`
	Lessons []AvailableLesson `json:"lessons"`
}

// AvailableLessons returns the lessons at or below the user's level, each
// marked completed, unlocked or locked by the lesson before it in the list.
func (h *ProgressHandler) AvailableLessons(ctx context.Context, q UserLanguageQuery) (AvailableLessonsResult, error) {
	state, err := h.Proficiency(ctx, q)
	if err != nil {
		return AvailableLessonsResult{}, err
	}
	progress, err := h.LessonProgress(ctx, q)
	if err != nil {
		return AvailableLessonsResult{}, err
	}

	lang, _ := shared.NewLanguageCode(q.Language)
	res := AvailableLessonsResult{Level: state.Level, Lessons: []AvailableLesson{}}
	if h.catalog == nil {
		return res, nil
	}
	var visible []lesson.Template
	for _, t := range h.catalog.Lessons(lang) {
		if state.Level.AtLeast(t.Level) {
			visible = append(visible, t)
		}
	}
	for i, st := range lesson.Statuses(visible, progress) {
		t := visible[i]
		res.Lessons = append(res.Lessons, AvailableLesson{Template: t, Completed: progress[t.ID].Completed, Status: st})
	}
	return res, nil
}
