// Package leaderboard ranks users by XP summed across all their languages.
// The board is derived on every read and never stored.
package leaderboard

import (
	"fmt"
	"sort"

	"github.com/lingoleap/lingoleap-hub/internal/domain/proficiency"
	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Rank is a 1-based position on the board.
type Rank int

// IsValid reports whether the rank is positive.
func (r Rank) IsValid() bool {
	return r > 0
}

// String returns "#n".
func (r Rank) String() string {
	return fmt.Sprintf("#%d", r)
}

// Entry is one row of the board.
type Entry struct {
	Rank     Rank            `json:"rank"`
	Username shared.Username `json:"username"`
	TotalXP  int             `json:"totalXp"`
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATION
// ══════════════════════════════════════════════════════════════════════════════

// Build ranks every registered user. users is the user registry; records
// holds proficiency by username and may miss users or contain users that are
// no longer registered. Unregistered records are still ranked so no XP is
// dropped from the total.
func Build(users []shared.Username, records map[shared.Username]proficiency.Record) []Entry {
	totals := make(map[shared.Username]int, len(users)+len(records))
	for _, u := range users {
		totals[u] = 0
	}
	for u, rec := range records {
		totals[u] = rec.TotalXP()
	}

	entries := make([]Entry, 0, len(totals))
	for u, xp := range totals {
		entries = append(entries, Entry{Username: u, TotalXP: xp})
	}

	// Username order keeps equal totals deterministic.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalXP != entries[j].TotalXP {
			return entries[i].TotalXP > entries[j].TotalXP
		}
		return entries[i].Username < entries[j].Username
	})

	for i := range entries {
		entries[i].Rank = Rank(i + 1)
	}
	return entries
}

// Top returns at most n entries. n <= 0 returns all of them.
func Top(entries []Entry, n int) []Entry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}

// Find returns the entry of u.
func Find(entries []Entry, u shared.Username) (Entry, bool) {
	for _, e := range entries {
		if e.Username == u {
			return e, true
		}
	}
	return Entry{}, false
}

// TotalXP sums all entries.
func TotalXP(entries []Entry) int {
	total := 0
	for _, e := range entries {
		total += e.TotalXP
	}
	return total
}
