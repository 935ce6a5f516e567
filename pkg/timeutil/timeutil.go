// Package timeutil provides calendar-date helpers and an injectable clock.
// Streaks are counted in whole calendar days in the configured timezone, so
// everything here works at YYYY-MM-DD granularity.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

// DateLayout is the wire and storage format of a calendar date.
const DateLayout = "2006-01-02"

// Date is a calendar date formatted as YYYY-MM-DD. The zero value means
// "never".
type Date string

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// ParseDate validates and normalizes a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// MustDate is ParseDate for literals known to be valid.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String implements fmt.Stringer.
func (d Date) String() string { return string(d) }

// IsZero reports whether d is the empty date.
func (d Date) IsZero() bool { return d == "" }

// Time returns midnight UTC of d. Invalid dates return the zero time.
func (d Date) Time() time.Time {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	t := d.Time()
	if t.IsZero() {
		return d
	}
	return DateOf(t.AddDate(0, 0, n))
}

// DaysBetween returns the number of calendar days from a to b. The result is
// negative when b is before a. ok is false when either date is empty or
// malformed.
func DaysBetween(a, b Date) (days int, ok bool) {
	ta, tb := a.Time(), b.Time()
	if ta.IsZero() || tb.IsZero() {
		return 0, false
	}
	// Both are UTC midnights, so the difference is an exact multiple of 24h.
	return int(tb.Sub(ta).Hours() / 24), true
}

// IsConsecutiveDay reports whether b is exactly the day after a.
func IsConsecutiveDay(a, b Date) bool {
	n, ok := DaysBetween(a, b)
	return ok && n == 1
}

// ═══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ═══════════════════════════════════════════════════════════════════════════════

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in Location (time.Local when nil).
type SystemClock struct {
	Location *time.Location
}

// Now returns the current time in the clock's location.
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock is a settable clock for tests and the CLI's --date flag.
type FixedClock struct {
	mu sync.RWMutex
	t  time.Time
}

// NewFixedClock returns a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

// ClockAt returns a clock frozen at noon UTC of d.
func ClockAt(d Date) *FixedClock {
	return NewFixedClock(d.Time().Add(12 * time.Hour))
}

// Now returns the frozen time.
func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// SetDate moves the clock to noon UTC of d.
func (c *FixedClock) SetDate(d Date) {
	c.Set(d.Time().Add(12 * time.Hour))
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Today returns the current calendar date according to clock.
func Today(clock Clock) Date {
	return DateOf(clock.Now())
}

// LoadLocation resolves a timezone name. Empty or "Local" selects the host
// timezone.
func LoadLocation(name string) (*time.Location, error) {
	switch name {
	case "", "Local", "local":
		return time.Local, nil
	case "UTC", "utc":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}
