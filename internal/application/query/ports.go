// Package query contains the read operations of the progression hub.
// Queries never modify state.
package query

import (
	"context"

	"github.com/lingoleap/lingoleap-hub/internal/domain/lesson"
	"github.com/lingoleap/lingoleap-hub/internal/domain/proficiency"
	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
	"github.com/lingoleap/lingoleap-hub/pkg/logger"
)

// UserLister lists registered usernames.
type UserLister interface {
	List(ctx context.Context) ([]shared.Username, error)
}

// ProficiencyReader reads proficiency records.
type ProficiencyReader interface {
	Get(ctx context.Context, u shared.Username) (proficiency.Record, error)
	All(ctx context.Context) (map[shared.Username]proficiency.Record, error)
}

// ProgressReader reads lesson progress records.
type ProgressReader interface {
	Get(ctx context.Context, u shared.Username) (lesson.Record, error)
}

func orNop(log *logger.Logger) *logger.Logger {
	if log == nil {
		return logger.Nop()
	}
	return log
}
