package handlers

import (
	"net/http"
	"time"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/logging"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/services"
)

// AuthAPI serves the JSON registration, login and session endpoints.
type AuthAPI struct {
	svc   *services.AccountService
	guard *auth.Guard
	log   logging.Logger
}

func NewAuthAPI(svc *services.AccountService, guard *auth.Guard, log logging.Logger) *AuthAPI {
	return &AuthAPI{svc: svc, guard: guard, log: log.With("handler", "auth_api")}
}

type sessionUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type sessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      sessionUser `json:"user"`
}

func toSessionResponse(s *services.Session) sessionResponse {
	return sessionResponse{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		User: sessionUser{
			ID:    s.Claims.Subject,
			Name:  s.Claims.Name,
			Email: s.Claims.Email,
			Role:  s.Claims.Role,
		},
	}
}

type registerResponse struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

// Register handles POST /api/auth/register.
func (h *AuthAPI) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, registerResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
}

// Login handles POST /api/auth/login. Every credential failure produces the
// same 401 body.
func (h *AuthAPI) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	sess, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.guard.SetSession(w, sess.Token, sess.ExpiresAt)
	httpx.JSON(w, http.StatusOK, toSessionResponse(sess))
}

// Logout handles POST /api/auth/logout.
func (h *AuthAPI) Logout(w http.ResponseWriter, r *http.Request) {
	h.guard.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/auth/session and returns the decoded claims.
func (h *AuthAPI) Session(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, h.log, services.ErrInvalidSession)
		return
	}
	httpx.JSON(w, http.StatusOK, claims)
}

// RefreshSession handles PATCH /api/auth/session: the supplied profile fields
// are merged into the token, which is re-signed with the same expiry.
func (h *AuthAPI) RefreshSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, h.log, services.ErrInvalidSession)
		return
	}
	var upd services.SessionUpdate
	if err := httpx.DecodeJSON(w, r, &upd); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	sess, err := h.svc.RefreshSession(claims, upd)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.guard.SetSession(w, sess.Token, sess.ExpiresAt)
	httpx.JSON(w, http.StatusOK, toSessionResponse(sess))
}

// RevokeSessions handles POST /api/auth/sessions/revoke. Every other token of
// the caller stops working; the response carries the replacement.
func (h *AuthAPI) RevokeSessions(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, h.log, services.ErrInvalidSession)
		return
	}
	sess, err := h.svc.RevokeSessions(r.Context(), uid)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.guard.SetSession(w, sess.Token, sess.ExpiresAt)
	httpx.JSON(w, http.StatusOK, toSessionResponse(sess))
}
