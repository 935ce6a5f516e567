// Package streak counts consecutive calendar days with a login.
package streak

import (
	"github.com/lingoleap/lingoleap-hub/pkg/timeutil"
)

// Data is the streak record of one user.
type Data struct {
	Count     int           `json:"count"`
	LastLogin timeutil.Date `json:"lastLogin"`
}

// Default is the record of a user who has never logged in.
func Default() Data {
	return Data{Count: 0, LastLogin: ""}
}

// Outcome describes what Record did.
type Outcome int

const (
	// Unchanged means the user already logged in today.
	Unchanged Outcome = iota
	// Extended means yesterday's streak grew by one.
	Extended
	// Started means a new streak began at 1, either the first login or
	// after a gap.
	Started
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Extended:
		return "extended"
	default:
		return "started"
	}
}

// Record applies a login on today to d.
func Record(d Data, today timeutil.Date) (Data, Outcome) {
	if d.LastLogin == today {
		return d, Unchanged
	}

	days, ok := timeutil.DaysBetween(d.LastLogin, today)
	switch {
	case ok && days == 1:
		return Data{Count: d.Count + 1, LastLogin: today}, Extended
	default:
		// No prior login, a gap of more than a day, or a clock that moved
		// backwards.
		return Data{Count: 1, LastLogin: today}, Started
	}
}
