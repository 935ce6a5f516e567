package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/lingoleap/lingoleap-hub/internal/application/command"
	"github.com/lingoleap/lingoleap-hub/internal/application/query"
	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
	"github.com/lingoleap/lingoleap-hub/internal/interface/http/handlers"
	"github.com/lingoleap/lingoleap-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST BODIES
// ══════════════════════════════════════════════════════════════════════════════

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type surveyRequest struct {
	Levels map[string]string `json:"levels"`
}

type xpRequest struct {
	Amount *int   `json:"amount"`
	Source string `json:"source"`
}

type scoreRequest struct {
	ActivityTitle string `json:"activityTitle"`
	Score         *int   `json:"score"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"name":    "LingoLeap Progression Hub API",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":      "/health",
			"signup":      "/api/v1/auth/signup",
			"login":       "/api/v1/auth/login",
			"leaderboard": "/api/v1/leaderboard",
			"users":       "/api/v1/users/{username}/...",
		},
	})
}

// handleHealth reports every registered check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// handleReady handles the readiness probe.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSONErrorWithDetails(w, r, http.StatusServiceUnavailable, "not_ready", "Service is not ready", status.Message)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleSignUp handles POST /api/v1/auth/signup.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.deps.SignUp.Handle(r.Context(), command.SignUpCommand{Username: req.Username, Password: req.Password})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !res.Success {
		writeJSONError(w, r, http.StatusConflict, "username_taken", res.Message)
		return
	}
	writeJSON(w, r, http.StatusCreated, res)
}

// handleLogin handles POST /api/v1/auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.deps.Sessions.Login(r.Context(), command.LoginCommand{Username: req.Username, Password: req.Password})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !res.Success {
		writeJSONError(w, r, http.StatusUnauthorized, "invalid_credentials", res.Message)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleLogout handles POST /api/v1/auth/logout behind SessionAuth.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.deps.Sessions.Logout(r.Context(), handlers.SessionToken(r.Context()))
	writeJSON(w, r, http.StatusOK, map[string]bool{"loggedOut": true})
}

// handleSession handles GET /api/v1/auth/session: resume on app load.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	token := handlers.BearerToken(r)
	if token == "" {
		writeJSONError(w, r, http.StatusUnauthorized, "missing_token", "A Bearer session token is required")
		return
	}

	res, err := s.deps.Sessions.Resume(r.Context(), token)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetStreak handles GET /api/v1/users/{username}/streak.
func (s *Server) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Streak.Handle(r.Context(), r.PathValue("username"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, d)
}

// handleUpdateStreak handles POST /api/v1/users/{username}/streak.
func (s *Server) handleUpdateStreak(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.UpdateStreak.Handle(r.Context(), command.UpdateStreakCommand{Username: r.PathValue("username")})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res.Streak)
}

// handleGetProficiency handles GET /api/v1/users/{username}/proficiency/{language}.
func (s *Server) handleGetProficiency(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Progress.Proficiency(r.Context(), userLanguage(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

// handleSaveSurvey handles POST /api/v1/users/{username}/proficiency.
func (s *Server) handleSaveSurvey(w http.ResponseWriter, r *http.Request) {
	var req surveyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := s.deps.SaveSurvey.Handle(r.Context(), command.SaveSurveyCommand{
		Username: r.PathValue("username"),
		Levels:   req.Levels,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

// handleApplyXP handles POST /api/v1/users/{username}/proficiency/{language}/xp.
func (s *Server) handleApplyXP(w http.ResponseWriter, r *http.Request) {
	var req xpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Amount == nil {
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", "amount is required")
		return
	}

	res, err := s.deps.ApplyXP.Handle(r.Context(), command.ApplyXPCommand{
		Username: r.PathValue("username"),
		Language: r.PathValue("language"),
		Amount:   *req.Amount,
		Source:   req.Source,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleGetProgress handles GET /api/v1/users/{username}/progress/{language}.
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.deps.Progress.LessonProgress(r.Context(), userLanguage(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, progress)
}

// handleRecordScore handles POST .../lessons/{lessonID}/scores.
func (s *Server) handleRecordScore(w http.ResponseWriter, r *http.Request) {
	cmd, ok := scoreCommand(w, r)
	if !ok {
		return
	}

	res, err := s.deps.RecordScore.Handle(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleCompleteActivity handles POST .../lessons/{lessonID}/complete.
func (s *Server) handleCompleteActivity(w http.ResponseWriter, r *http.Request) {
	cmd, ok := scoreCommand(w, r)
	if !ok {
		return
	}

	res, err := s.deps.CompleteActivity.Handle(r.Context(), command.CompleteActivityCommand(cmd))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleAvailableLessons handles GET /api/v1/users/{username}/lessons/{language}.
func (s *Server) handleAvailableLessons(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Progress.AvailableLessons(r.Context(), userLanguage(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleLeaderboard handles GET /api/v1/leaderboard?limit=&offset=.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, okLimit := getQueryParamInt(r, "limit", 0)
	offset, okOffset := getQueryParamInt(r, "offset", 0)
	if !okLimit || !okOffset {
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", "limit and offset must be integers")
		return
	}

	q := query.GetLeaderboardQuery{Limit: limit, Offset: offset}
	res, err := s.deps.Leaderboard.Handle(r.Context(), q)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, res.Entries, &ResponseMeta{
		TotalCount: res.TotalCount,
		Limit:      limit,
		Offset:     offset,
		HasMore:    res.HasMore,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func userLanguage(r *http.Request) query.UserLanguageQuery {
	return query.UserLanguageQuery{Username: r.PathValue("username"), Language: r.PathValue("language")}
}

func scoreCommand(w http.ResponseWriter, r *http.Request) (command.RecordScoreCommand, bool) {
	lessonID, err := strconv.Atoi(r.PathValue("lessonID"))
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", "lesson id must be an integer")
		return command.RecordScoreCommand{}, false
	}

	var req scoreRequest
	if !decodeJSON(w, r, &req) {
		return command.RecordScoreCommand{}, false
	}
	if req.Score == nil {
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", "score is required")
		return command.RecordScoreCommand{}, false
	}

	return command.RecordScoreCommand{
		Username:      r.PathValue("username"),
		Language:      r.PathValue("language"),
		LessonID:      lessonID,
		ActivityTitle: req.ActivityTitle,
		Score:         *req.Score,
	}, true
}

// decodeJSON reads one JSON object into dst and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "invalid_json", "Request body must be a JSON object", err.Error())
		return false
	}
	return true
}

// writeDomainError maps a domain error kind to an HTTP status.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	message := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		message = de.Message
	}

	switch {
	case shared.IsValidation(err):
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", message)
	case shared.IsUnauthorized(err):
		writeJSONError(w, r, http.StatusUnauthorized, "unauthorized", message)
	case shared.IsNotFound(err):
		writeJSONError(w, r, http.StatusNotFound, "not_found", message)
	case shared.IsAlreadyExists(err):
		writeJSONError(w, r, http.StatusConflict, "conflict", message)
	case shared.IsRetryable(err):
		writeJSONError(w, r, http.StatusServiceUnavailable, "unavailable", "Please retry shortly")
	default:
		logger.FromContext(r.Context()).Error("request failed", logger.Err(err), logger.String("path", r.URL.Path))
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
