package account

import (
	"time"

	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
)

// Session is an authenticated client. Sessions live only in process memory.
type Session struct {
	Token     string          `json:"token"`
	Username  shared.Username `json:"username"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Expired reports whether s is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
