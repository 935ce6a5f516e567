package shared

import (
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// Username
// ═══════════════════════════════════════════════════════════════════════════

// Username identifies a user. It is the key of every per-user record.
type Username string

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,31}$`)

// IsValid checks the username format.
func (u Username) IsValid() bool {
	return usernameRegex.MatchString(string(u))
}

// String returns the string representation.
func (u Username) String() string {
	return string(u)
}

// NewUsername trims and validates a username. Case is preserved.
func NewUsername(s string) (Username, error) {
	u := Username(strings.TrimSpace(s))
	if !u.IsValid() {
		return "", ErrInvalidUsername
	}
	return u, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// LanguageCode
// ═══════════════════════════════════════════════════════════════════════════

// LanguageCode is an ISO 639 code with an optional region, e.g. "hi", "pt-BR".
type LanguageCode string

var languageRegex = regexp.MustCompile(`^[a-z]{2,3}(-[A-Za-z]{2,4})?$`)

// IsValid checks the language code format.
func (l LanguageCode) IsValid() bool {
	return languageRegex.MatchString(string(l))
}

// String returns the string representation.
func (l LanguageCode) String() string {
	return string(l)
}

// NewLanguageCode trims, lowercases the primary subtag and validates.
func NewLanguageCode(s string) (LanguageCode, error) {
	s = strings.TrimSpace(s)
	if primary, region, ok := strings.Cut(s, "-"); ok {
		s = strings.ToLower(primary) + "-" + region
	} else {
		s = strings.ToLower(s)
	}
	l := LanguageCode(s)
	if !l.IsValid() {
		return "", ErrInvalidLanguage
	}
	return l, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Score
// ═══════════════════════════════════════════════════════════════════════════

// Score is an activity result in percent.
type Score int

const (
	MinScore Score = 0
	MaxScore Score = 100
)

// IsValid checks if the score is within 0..100.
func (s Score) IsValid() bool {
	return s >= MinScore && s <= MaxScore
}

// Int returns the underlying int value.
func (s Score) Int() int {
	return int(s)
}

// NewScore validates a percentage score.
func NewScore(v int) (Score, error) {
	s := Score(v)
	if !s.IsValid() {
		return 0, ErrScoreOutOfRange
	}
	return s, nil
}
