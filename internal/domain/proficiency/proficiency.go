// Package proficiency models per-language XP and the level it unlocks.
//
// Levels are derived from XP through a single ordered threshold table and are
// promotion-only: once a level is reached it is kept, even when a stored
// record carries less XP than its level's threshold.
package proficiency

import (
	"math"
	"strings"

	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
)

// Level is a proficiency level.
type Level string

const (
	Beginner     Level = "Beginner"
	Intermediate Level = "Intermediate"
	Advanced     Level = "Advanced"

	// None is accepted only from the onboarding survey and maps to Beginner.
	None Level = "None"
)

// tier is one row of the threshold table.
type tier struct {
	threshold int
	level     Level
}

// tiers is ordered by ascending threshold. The first row must start at 0.
var tiers = []tier{
	{threshold: 0, level: Beginner},
	{threshold: 1000, level: Intermediate},
	{threshold: 3000, level: Advanced},
}

// Levels returns all levels in ascending order.
func Levels() []Level {
	out := make([]Level, len(tiers))
	for i, t := range tiers {
		out[i] = t.level
	}
	return out
}

// rank returns the position of l in the table, -1 when unknown.
func (l Level) rank() int {
	for i, t := range tiers {
		if t.level == l {
			return i
		}
	}
	return -1
}

// IsValid reports whether l is one of the stored levels.
func (l Level) IsValid() bool {
	return l.rank() >= 0
}

// String implements fmt.Stringer.
func (l Level) String() string { return string(l) }

// Less reports whether l orders before other.
func (l Level) Less(other Level) bool {
	return l.rank() < other.rank()
}

// AtLeast reports whether l is the same as or above other.
func (l Level) AtLeast(other Level) bool {
	return l.rank() >= other.rank()
}

// Threshold returns the minimum XP of l. Unknown levels return 0.
func (l Level) Threshold() int {
	if r := l.rank(); r >= 0 {
		return tiers[r].threshold
	}
	return 0
}

// LevelFor returns the highest level whose threshold xp reaches.
func LevelFor(xp int) Level {
	level := tiers[0].level
	for _, t := range tiers {
		if xp < t.threshold {
			break
		}
		level = t.level
	}
	return level
}

// Max returns the higher of two levels.
func Max(a, b Level) Level {
	if a.Less(b) {
		return b
	}
	return a
}

// ParseLevel parses a stored level, case-insensitively.
func ParseLevel(s string) (Level, error) {
	for _, t := range tiers {
		if strings.EqualFold(s, string(t.level)) {
			return t.level, nil
		}
	}
	return "", shared.ErrInvalidLevel
}

// ParseSurveyLevel parses a survey answer, where None means Beginner.
func ParseSurveyLevel(s string) (Level, error) {
	if strings.EqualFold(strings.TrimSpace(s), string(None)) {
		return Beginner, nil
	}
	return ParseLevel(strings.TrimSpace(s))
}

// ═══════════════════════════════════════════════════════════════════════════
// State
// ═══════════════════════════════════════════════════════════════════════════

// State is the proficiency of one user in one language.
type State struct {
	Level Level `json:"level"`
	XP    int   `json:"xp"`
}

// Default is the state of a language the user has never touched.
func Default() State {
	return State{Level: Beginner, XP: 0}
}

// Normalize repairs records written by older clients: unknown levels become
// the level their XP implies and negative XP becomes 0.
func (s State) Normalize() State {
	if s.XP < 0 {
		s.XP = 0
	}
	if !s.Level.IsValid() {
		s.Level = LevelFor(s.XP)
	}
	return s
}

// Result is the outcome of applying XP.
type Result struct {
	LeveledUp bool  `json:"leveledUp"`
	NewState  State `json:"newState"`
	OldLevel  Level `json:"oldLevel"`
}

// Apply adds delta XP to s and promotes the level when a threshold is passed.
func Apply(s State, delta int) (Result, error) {
	if delta < 0 {
		return Result{}, shared.ErrNegativeXP
	}
	old := s.Normalize()
	if delta > math.MaxInt-old.XP {
		return Result{}, shared.ErrXPOverflow
	}
	next := State{XP: old.XP + delta}
	next.Level = Max(old.Level, LevelFor(next.XP))

	return Result{
		LeveledUp: next.Level != old.Level,
		NewState:  next,
		OldLevel:  old.Level,
	}, nil
}

// ForSurvey returns the starting state for a level chosen in the survey.
func ForSurvey(l Level) State {
	if l == None || !l.IsValid() {
		l = Beginner
	}
	return State{Level: l, XP: l.Threshold()}
}

// XPForScore converts an activity percentage into XP. A perfect score is
// worth 150 XP.
func XPForScore(score int) int {
	if score <= 0 {
		return 0
	}
	return int(math.Round(float64(score) * 1.5))
}

// ═══════════════════════════════════════════════════════════════════════════
// Record
// ═══════════════════════════════════════════════════════════════════════════

// Record holds every language of one user, keyed by language code.
type Record map[shared.LanguageCode]State

// Get returns the state for lang, or the default.
func (r Record) Get(lang shared.LanguageCode) State {
	if s, ok := r[lang]; ok {
		return s.Normalize()
	}
	return Default()
}

// TotalXP sums XP over all languages, saturating at math.MaxInt.
func (r Record) TotalXP() int {
	total := 0
	for _, s := range r {
		if s.XP <= 0 {
			continue
		}
		if s.XP > math.MaxInt-total {
			return math.MaxInt
		}
		total += s.XP
	}
	return total
}
