package command

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/lingoleap/lingoleap-hub/internal/domain/account"
	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
	"github.com/lingoleap/lingoleap-hub/pkg/logger"
	"github.com/lingoleap/lingoleap-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SIGN UP COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// SignUpCommand registers a new account.
type SignUpCommand struct {
	Username string
	Password string
}

// SignUpHandler handles SignUpCommand.
type SignUpHandler struct {
	users      UserStore
	clock      timeutil.Clock
	bcryptCost int
	events     shared.EventPublisher
	log        *logger.Logger
}

// NewSignUpHandler creates the handler. A zero cost uses bcrypt.DefaultCost.
func NewSignUpHandler(users UserStore, clock timeutil.Clock, bcryptCost int, events shared.EventPublisher, log *logger.Logger) *SignUpHandler {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &SignUpHandler{users: users, clock: clock, bcryptCost: bcryptCost, events: events, log: orNop(log)}
}

// Handle creates the account. A taken username is a failed result, not an
// error. Storage failures are returned as ErrStorage because reporting
// success for an account that was never written would break the next login.
func (h *SignUpHandler) Handle(ctx context.Context, cmd SignUpCommand) (account.SignUpResult, error) {
	u, err := shared.NewUsername(cmd.Username)
	if err != nil {
		return account.SignUpResult{}, err
	}
	if err := account.ValidatePassword(cmd.Password); err != nil {
		return account.SignUpResult{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), h.bcryptCost)
	if err != nil {
		return account.SignUpResult{}, shared.WrapError("account", "SignUp", shared.ErrInvalidInput, "password cannot be hashed", err)
	}

	created, err := h.users.Create(ctx, account.User{
		Username:     u,
		PasswordHash: string(hash),
		CreatedAt:    h.clock.Now().UTC(),
	})
	if err != nil {
		h.log.Error("sign up failed", logger.Username(string(u)), logger.Err(err))
		return account.SignUpResult{}, shared.StorageError("account", "SignUp", err)
	}
	if !created {
		return account.SignUpResult{Success: false, Message: account.MsgUsernameTaken}, nil
	}

	publish(h.events, h.log, shared.NewUserRegisteredEvent(string(u)))
	return account.SignUpResult{Success: true, Message: account.MsgSignUpSucceeded}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LOGIN / RESUME / LOGOUT
// ══════════════════════════════════════════════════════════════════════════════

// LoginCommand authenticates a user.
type LoginCommand struct {
	Username string
	Password string
}

// SessionHandler handles login, session resume and logout. Every successful
// login or resume counts as a daily visit for the streak.
type SessionHandler struct {
	users    UserStore
	sessions SessionStore
	streaks  *UpdateStreakHandler
	events   shared.EventPublisher
	log      *logger.Logger
}

// NewSessionHandler creates the handler.
func NewSessionHandler(users UserStore, sessions SessionStore, streaks *UpdateStreakHandler, events shared.EventPublisher, log *logger.Logger) *SessionHandler {
	return &SessionHandler{users: users, sessions: sessions, streaks: streaks, events: events, log: orNop(log)}
}

// dummyHash equalises timing between unknown users and wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("lingoleap-dummy-password"), bcrypt.MinCost)

// Login checks credentials, opens a session and updates the streak. Unknown
// users, wrong passwords and unreadable accounts all produce the same
// failed result.
func (h *SessionHandler) Login(ctx context.Context, cmd LoginCommand) (account.LoginResult, error) {
	failed := account.LoginResult{Success: false, Message: account.MsgInvalidCredentials}

	u, err := shared.NewUsername(cmd.Username)
	if err != nil || cmd.Password == "" {
		return failed, nil
	}

	user, err := h.users.Get(ctx, u)
	if err != nil {
		if !shared.IsNotFound(err) {
			h.log.Error("reading account failed", logger.Username(string(u)), logger.Err(err))
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(cmd.Password))
		return failed, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(cmd.Password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			h.log.Warn("stored password hash unusable", logger.Username(string(u)), logger.Err(err))
		}
		return failed, nil
	}

	sess := h.sessions.Create(u)
	res, err := h.open(ctx, u)
	if err != nil {
		h.sessions.Delete(sess.Token)
		return account.LoginResult{}, err
	}
	res.Token = sess.Token
	res.Message = account.MsgLoginSucceeded
	return res, nil
}

// Resume returns the user of an existing session and updates the streak.
func (h *SessionHandler) Resume(ctx context.Context, token string) (account.LoginResult, error) {
	sess, err := h.sessions.Lookup(token)
	if err != nil {
		return account.LoginResult{}, err
	}
	res, err := h.open(ctx, sess.Username)
	if err != nil {
		return account.LoginResult{}, err
	}
	res.Token = sess.Token
	return res, nil
}

// Logout ends a session. Unknown tokens are ignored.
func (h *SessionHandler) Logout(_ context.Context, token string) {
	h.sessions.Delete(token)
}

// Authenticate resolves a token to its username without touching the streak.
func (h *SessionHandler) Authenticate(token string) (shared.Username, error) {
	sess, err := h.sessions.Lookup(token)
	if err != nil {
		return "", err
	}
	return sess.Username, nil
}

func (h *SessionHandler) open(ctx context.Context, u shared.Username) (account.LoginResult, error) {
	st, err := h.streaks.Handle(ctx, UpdateStreakCommand{Username: string(u)})
	if err != nil {
		return account.LoginResult{}, err
	}
	publish(h.events, h.log, shared.NewUserLoggedInEvent(string(u), st.Streak.Count))

	profile := account.Profile{Username: u}
	data := st.Streak
	return account.LoginResult{Success: true, User: &profile, Streak: &data}, nil
}
