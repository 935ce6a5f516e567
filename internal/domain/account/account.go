// Package account holds registered users and the result types of the
// sign-up and login flows.
package account

import (
	"time"

	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
	"github.com/lingoleap/lingoleap-hub/internal/domain/streak"
)

// User-facing failure messages. They are returned as data, not errors, so a
// client can show them directly.
const (
	MsgUsernameTaken      = "Username already exists."
	MsgInvalidCredentials = "Invalid username or password."
	MsgSignUpSucceeded    = "Sign up successful! Please log in."
	MsgLoginSucceeded     = "Login successful."
)

// User is a registered account.
type User struct {
	Username     shared.Username `json:"username"`
	PasswordHash string          `json:"password_hash"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Profile is the public view of a user.
type Profile struct {
	Username shared.Username `json:"username"`
}

// Profile returns the public view of u.
func (u User) Profile() Profile {
	return Profile{Username: u.Username}
}

// SignUpResult is returned by sign-up.
type SignUpResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LoginResult is returned by login and session resume.
type LoginResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    *Profile     `json:"user,omitempty"`
	Token   string       `json:"token,omitempty"`
	Streak  *streak.Data `json:"streak,omitempty"`
}

// ValidatePassword enforces the bcrypt input limits.
func ValidatePassword(pw string) error {
	if len(pw) == 0 || len(pw) > 72 {
		return shared.ErrInvalidPassword
	}
	return nil
}
