// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package web is the HTTP boundary of Gatehouse. It is a thin
// collaborator: it decodes requests, invokes the auth service and
// access predicates, and maps the error taxonomy to status codes.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/access"
	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/logging"
	"github.com/gatehouse/gatehouse/internal/observability"
)

// SessionCookieName is the cookie carrying the plaintext session token.
const SessionCookieName = "gatehouse_session"

// Handler serves the Gatehouse HTTP API.
type Handler struct {
	svc       *auth.Service
	users     auth.UserRepository
	logger    *slog.Logger
	metrics   *observability.Metrics
	cookieTTL time.Duration
}

// NewHandler creates a Handler. metrics may be nil.
func NewHandler(svc *auth.Service, users auth.UserRepository, logger *slog.Logger, metrics *observability.Metrics, cookieTTL time.Duration) (*Handler, error) {
	if svc == nil {
		return nil, oops.Code("WEB_HANDLER_INVALID").Errorf("auth service is required")
	}
	if users == nil {
		return nil, oops.Code("WEB_HANDLER_INVALID").Errorf("user repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cookieTTL <= 0 {
		cookieTTL = auth.DefaultSessionExpiry
	}
	return &Handler{
		svc:       svc,
		users:     users,
		logger:    logger,
		metrics:   metrics,
		cookieTTL: cookieTTL,
	}, nil
}

// Routes builds the API router with the identity middleware applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /register", h.handleRegister)
	mux.HandleFunc("POST /login", h.handleLogin)
	mux.HandleFunc("POST /logout", h.handleLogout)
	mux.Handle("GET /me", h.requireAuthenticated(http.HandlerFunc(h.handleMe)))
	mux.Handle("GET /admin/users", h.requireRole(auth.RoleAdmin, http.HandlerFunc(h.handleAdminUsers)))

	return h.withIdentity(mux)
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.RecordRegistration(observability.OutcomeInvalid)
		h.writeError(w, oops.Code("AUTH_VALIDATION_FAILED").Wrap(auth.ErrValidation))
		return
	}

	user, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.metrics.RecordRegistration(registrationOutcome(err))
		h.writeError(w, err)
		return
	}

	h.metrics.RecordRegistration(observability.OutcomeSuccess)
	h.writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.RecordLogin(observability.OutcomeInvalid)
		h.writeError(w, oops.Code("AUTH_VALIDATION_FAILED").Wrap(auth.ErrValidation))
		return
	}

	session, token, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.metrics.RecordLogin(loginOutcome(err))
		h.writeError(w, err)
		return
	}

	h.metrics.RecordLogin(observability.OutcomeSuccess)
	h.metrics.RecordSessionIssued()

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(h.cookieTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	h.writeJSON(w, http.StatusOK, map[string]string{
		"token":      token,
		"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r)

	// Idempotent: logging out without a live session still succeeds.
	if err := h.svc.Logout(r.Context(), token); err != nil {
		h.writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := access.IdentityFromContext(r.Context())

	user, err := h.users.GetByID(r.Context(), identity.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// tokenFromRequest extracts the session token from the cookie or the
// Authorization header.
func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authHeader := r.Header.Get("Authorization")
	if token, found := strings.CutPrefix(authHeader, "Bearer "); found {
		return token
	}
	return ""
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.LogError(h.logger, "failed to encode response", err)
	}
}

// writeError maps the error taxonomy to an HTTP status. Messages come
// from the sentinel errors, so internals never leak to clients.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, message := http.StatusInternalServerError, "internal error"

	switch {
	case errors.Is(err, auth.ErrValidation):
		status, message = http.StatusBadRequest, auth.ErrValidation.Error()
	case errors.Is(err, auth.ErrDuplicateUsername):
		status, message = http.StatusConflict, auth.ErrDuplicateUsername.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, auth.ErrInvalidCredentials.Error()
	case errors.Is(err, auth.ErrAccountDeactivated):
		status, message = http.StatusForbidden, auth.ErrAccountDeactivated.Error()
	case errors.Is(err, access.ErrUnauthenticated):
		status, message = http.StatusUnauthorized, access.ErrUnauthenticated.Error()
	case errors.Is(err, access.ErrForbidden):
		status, message = http.StatusForbidden, access.ErrForbidden.Error()
	case errors.Is(err, auth.ErrNotFound):
		status, message = http.StatusNotFound, auth.ErrNotFound.Error()
	default:
		logging.LogError(h.logger, "request failed", err)
	}

	h.writeJSON(w, status, map[string]string{"error": message})
}

func registrationOutcome(err error) string {
	switch {
	case errors.Is(err, auth.ErrDuplicateUsername):
		return observability.OutcomeDuplicate
	case errors.Is(err, auth.ErrValidation):
		return observability.OutcomeInvalid
	default:
		return observability.OutcomeError
	}
}

func loginOutcome(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return observability.OutcomeInvalidCredentials
	case errors.Is(err, auth.ErrAccountDeactivated):
		return observability.OutcomeDeactivated
	default:
		return observability.OutcomeError
	}
}
