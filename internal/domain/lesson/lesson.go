// Package lesson tracks per-lesson activity scores and lesson completion.
package lesson

import (
	"maps"
	"strings"

	"github.com/lingoleap/lingoleap-hub/internal/domain/proficiency"
	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// Content
// ═══════════════════════════════════════════════════════════════════════════

// Activity is one scored game inside a lesson. Title is its identity.
type Activity struct {
	Type  string `json:"type" yaml:"type"`
	Title string `json:"title" yaml:"title"`
}

// Template is the static definition of a lesson.
type Template struct {
	ID         int               `json:"id" yaml:"id"`
	Title      string            `json:"title" yaml:"title"`
	Level      proficiency.Level `json:"level" yaml:"level"`
	Scenario   string            `json:"scenario,omitempty" yaml:"scenario,omitempty"`
	Activities []Activity        `json:"activities" yaml:"activities"`
}

// ActivityTitles returns the titles that must all be scored to complete
// the lesson.
func (t Template) ActivityTitles() []string {
	out := make([]string, 0, len(t.Activities))
	for _, a := range t.Activities {
		out = append(out, a.Title)
	}
	return out
}

// Catalog supplies lesson templates per language.
type Catalog interface {
	// Lessons returns the ordered lessons of a language.
	Lessons(lang shared.LanguageCode) []Template
	// Lesson returns one lesson by id.
	Lesson(lang shared.LanguageCode, id int) (Template, bool)
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress
// ═══════════════════════════════════════════════════════════════════════════

// Progress is a user's state in one lesson.
type Progress struct {
	Completed bool           `json:"completed"`
	Scores    map[string]int `json:"scores"`
}

// NewProgress returns empty progress.
func NewProgress() Progress {
	return Progress{Scores: make(map[string]int)}
}

// Clone returns a deep copy.
func (p Progress) Clone() Progress {
	c := Progress{Completed: p.Completed, Scores: make(map[string]int, len(p.Scores))}
	maps.Copy(c.Scores, p.Scores)
	return c
}

// BestScore returns the recorded score for title.
func (p Progress) BestScore(title string) (int, bool) {
	s, ok := p.Scores[title]
	return s, ok
}

// CoversAll reports whether every title has a recorded score.
func (p Progress) CoversAll(titles []string) bool {
	for _, t := range titles {
		if _, ok := p.Scores[t]; !ok {
			return false
		}
	}
	return true
}

// LanguageProgress maps lesson id to progress for one language.
type LanguageProgress map[int]Progress

// Clone returns a deep copy.
func (lp LanguageProgress) Clone() LanguageProgress {
	out := make(LanguageProgress, len(lp))
	for id, p := range lp {
		out[id] = p.Clone()
	}
	return out
}

// Record holds all languages of one user.
type Record map[shared.LanguageCode]LanguageProgress

// Get returns the progress map of lang, never nil.
func (r Record) Get(lang shared.LanguageCode) LanguageProgress {
	if lp, ok := r[lang]; ok && lp != nil {
		return lp
	}
	return LanguageProgress{}
}

// Status tells a client whether a lesson can be played.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusUnlocked  Status = "unlocked"
	StatusLocked    Status = "locked"
)

// Statuses walks lessons in order. The first lesson is always playable and
// every later one opens once the lesson before it is completed.
func Statuses(lessons []Template, lp LanguageProgress) []Status {
	out := make([]Status, len(lessons))
	for i, t := range lessons {
		switch {
		case lp[t.ID].Completed:
			out[i] = StatusCompleted
		case i == 0 || lp[lessons[i-1].ID].Completed:
			out[i] = StatusUnlocked
		default:
			out[i] = StatusLocked
		}
	}
	return out
}

// ScoreInput is one activity result.
type ScoreInput struct {
	LessonID int
	Title    string
	Score    int
}

// Validate checks the input ranges.
func (in ScoreInput) Validate() error {
	if in.LessonID <= 0 {
		return shared.ErrInvalidLessonID
	}
	if strings.TrimSpace(in.Title) == "" {
		return shared.ErrEmptyActivityTitle
	}
	if _, err := shared.NewScore(in.Score); err != nil {
		return err
	}
	return nil
}

// ScoreOutcome reports what RecordScore changed.
type ScoreOutcome struct {
	// Recorded is true when the stored score changed.
	Recorded bool
	// JustCompleted is true when this call flipped the lesson to completed.
	JustCompleted bool
}

// RecordScore applies one activity result to lp in place. The first result
// for a title is always stored; later results replace it only when strictly
// higher. Completion is evaluated against tmpl when known and never reverts.
func RecordScore(lp LanguageProgress, in ScoreInput, tmpl *Template) (ScoreOutcome, error) {
	if err := in.Validate(); err != nil {
		return ScoreOutcome{}, err
	}

	p, ok := lp[in.LessonID]
	if !ok {
		p = NewProgress()
	} else {
		p = p.Clone()
	}

	var out ScoreOutcome
	if prev, seen := p.Scores[in.Title]; !seen || in.Score > prev {
		p.Scores[in.Title] = in.Score
		out.Recorded = true
	}

	if tmpl != nil && !p.Completed && p.CoversAll(tmpl.ActivityTitles()) {
		p.Completed = true
		out.JustCompleted = true
	}

	lp[in.LessonID] = p
	return out, nil
}
