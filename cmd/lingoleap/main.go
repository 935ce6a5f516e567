// Command lingoleap runs the LingoLeap progression hub.
//
// Streaks, per-language XP, lesson progress and the leaderboard live in one
// key-value store (memory, SQLite, PostgreSQL or Redis, chosen by
// STORAGE_BACKEND). "lingoleap serve" exposes them over HTTP; the other
// subcommands operate on the same store directly.
package main

import (
	"context"
	"os"

	"github.com/lingoleap/lingoleap-hub/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:]))
}
