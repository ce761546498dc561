package handlers

import (
	"net/http"

	"github.com/diewo77/go-crm/gate"
	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/logging"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/diewo77/go-crm/view"
)

// AdminUserHandler manages accounts: listing, invitations, role and status
// changes. Routes are mounted behind the admin guard.
type AdminUserHandler struct {
	svc   *services.AccountService
	authz Authorizer
	log   logging.Logger
}

func NewAdminUserHandler(svc *services.AccountService, authz Authorizer, log logging.Logger) *AdminUserHandler {
	return &AdminUserHandler{svc: svc, authz: authz, log: log.With("handler", "admin_users")}
}

// List handles GET /api/users and GET /admin/users.
func (h *AdminUserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		if !httpx.WantsJSON(r) {
			h.log.Error(r.Context(), "list users", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeError(w, r, h.log, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, users)
		return
	}
	if err := view.Render(w, r, "admin_users.html", map[string]any{"Users": users}); err != nil {
		h.log.Error(r.Context(), "render admin users", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// Create handles POST /api/users: an admin creates an account with an
// explicit role.
func (h *AdminUserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.InviteRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	u, err := h.svc.Invite(r.Context(), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, u.Public())
}

type roleRequest struct {
	Role models.Role `json:"role"`
}

// SetRole handles PUT /api/users/{id}/role. Admins cannot change their own role.
func (h *AdminUserHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.authz.Authorize(r.Context(), gate.ActionUpdate, "user", &models.User{ID: id}); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.SetRole(r.Context(), id, req.Role); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type activeRequest struct {
	Active bool `json:"active"`
}

// SetActive handles PUT /api/users/{id}/active. Deactivation takes effect on
// the user's next request.
func (h *AdminUserHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.authz.Authorize(r.Context(), gate.ActionUpdate, "user", &models.User{ID: id}); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var req activeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.SetActive(r.Context(), id, req.Active); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
