// Package command contains the write operations of the progression hub.
// Every load-modify-store goes through an atomic Update of the backing store.
package command

import (
	"context"

	"github.com/lingoleap/lingoleap-hub/internal/domain/account"
	"github.com/lingoleap/lingoleap-hub/internal/domain/lesson"
	"github.com/lingoleap/lingoleap-hub/internal/domain/proficiency"
	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
	"github.com/lingoleap/lingoleap-hub/internal/domain/streak"
	"github.com/lingoleap/lingoleap-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// Implemented by kv.Repositories and the session registry.
// ══════════════════════════════════════════════════════════════════════════════

// UserStore persists accounts.
type UserStore interface {
	Get(ctx context.Context, u shared.Username) (account.User, error)
	Create(ctx context.Context, user account.User) (created bool, err error)
}

// ProficiencyStore persists per-language XP.
type ProficiencyStore interface {
	Update(ctx context.Context, u shared.Username, fn func(proficiency.Record) (proficiency.Record, bool, error)) (proficiency.Record, error)
}

// ProgressStore persists lesson progress.
type ProgressStore interface {
	Update(ctx context.Context, u shared.Username, fn func(lesson.Record) (lesson.Record, bool, error)) (lesson.Record, error)
}

// StreakStore persists login streaks.
type StreakStore interface {
	Update(ctx context.Context, u shared.Username, fn func(streak.Data) (streak.Data, bool, error)) (streak.Data, error)
}

// SessionStore tracks logged-in clients.
type SessionStore interface {
	Create(u shared.Username) account.Session
	Lookup(token string) (account.Session, error)
	Delete(token string) bool
}

// publish sends e and logs delivery failures. Events never fail a command.
func publish(pub shared.EventPublisher, log *logger.Logger, e shared.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(e); err != nil {
		log.Warn("event not published",
			logger.String("event_type", string(e.EventType())),
			logger.Err(err),
		)
	}
}

func orNop(log *logger.Logger) *logger.Logger {
	if log == nil {
		return logger.Nop()
	}
	return log
}
