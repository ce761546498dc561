package handlers

import (
	"context"
	"net/http"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/gate"
	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/logging"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/services"
)

// Authorizer answers permission questions about the current request's user.
type Authorizer interface {
	Authorize(ctx context.Context, action gate.Action, resourceType string, resource any) error
	CurrentProfile(ctx context.Context) (gate.Profile, error)
}

// UserAPI serves the signed-in user's own profile, password and preferences.
type UserAPI struct {
	svc   *services.AccountService
	guard *auth.Guard
	authz Authorizer
	log   logging.Logger
}

func NewUserAPI(svc *services.AccountService, guard *auth.Guard, authz Authorizer, log logging.Logger) *UserAPI {
	return &UserAPI{svc: svc, guard: guard, authz: authz, log: log.With("handler", "user_api")}
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type profileResponse struct {
	messageResponse
	Profile models.Profile `json:"profile"`
}

// GetProfile handles GET /api/user/profile.
func (h *UserAPI) GetProfile(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	u, err := h.svc.Profile(r.Context(), uid)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, u.Profile())
}

// UpdateProfile handles PUT /api/user/profile and refreshes the session
// cookie so the token's profile snapshot follows the change.
func (h *UserAPI) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	var req services.UpdateProfileRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), claims.Subject, req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if sess, err := h.svc.SyncSession(claims, u); err == nil {
		h.guard.SetSession(w, sess.Token, sess.ExpiresAt)
	} else {
		h.log.Warn(r.Context(), "refresh session after profile update", "user_id", u.ID, "error", err)
	}
	httpx.JSON(w, http.StatusOK, profileResponse{
		messageResponse: messageResponse{Success: true, Message: "Profile updated successfully"},
		Profile:         u.Profile(),
	})
}

// ChangePassword handles PUT /api/user/password.
func (h *UserAPI) ChangePassword(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	var req services.ChangePasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), uid, req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, messageResponse{Success: true, Message: "Password updated successfully"})
}

// GetNotifications handles GET /api/user/notifications.
func (h *UserAPI) GetNotifications(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	ns, err := h.svc.NotificationSettings(r.Context(), uid)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ns)
}

// UpdateNotifications handles PUT /api/user/notifications.
func (h *UserAPI) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	var req services.NotificationSettingsRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ns, err := h.svc.SaveNotificationSettings(r.Context(), uid, req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ns)
}

type permissionsResponse struct {
	Role        string            `json:"role"`
	Permissions []gate.Permission `json:"permissions"`
}

// Permissions handles GET /api/user/permissions with the authoritative role.
func (h *UserAPI) Permissions(w http.ResponseWriter, r *http.Request) {
	p, err := h.authz.CurrentProfile(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{Role: p.Name(), Permissions: p.Permissions()})
}
