package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/i18n"
	"github.com/diewo77/go-crm/internal/logging"
	"github.com/diewo77/go-crm/internal/middleware"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/diewo77/go-crm/view"
)

const dashboardPath = "/dashboard"

// PageHandler serves the server-rendered sign-in, sign-up, dashboard and
// settings pages.
type PageHandler struct {
	svc   *services.AccountService
	guard *auth.Guard
	log   logging.Logger
}

func NewPageHandler(svc *services.AccountService, guard *auth.Guard, log logging.Logger) *PageHandler {
	return &PageHandler{svc: svc, guard: guard, log: log.With("handler", "pages")}
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if _, ok := data["Flash"]; !ok {
		data["Flash"] = middleware.PopFlash(w, r)
	}
	if err := view.RenderStatus(w, r, status, name, data); err != nil {
		h.log.Error(r.Context(), "render page", "page", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// errorText translates the wire code of err into the request's language.
func errorText(r *http.Request, err error) string {
	_, code := statusOf(err)
	return i18n.T(middleware.LangFrom(r), code)
}

func (h *PageHandler) Landing(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// LoginForm handles GET /login.
func (h *PageHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	next := auth.SafeRedirect(r.URL.Query().Get("next"), dashboardPath)
	if _, ok := auth.UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "login.html", map[string]any{"Next": next, "Email": ""})
}

// Login handles POST /login.
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		middleware.Flash(w, r, "flash_form_invalid")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	next := auth.SafeRedirect(r.PostFormValue("next"), dashboardPath)
	req := services.LoginRequest{Email: r.PostFormValue("email"), Password: r.PostFormValue("password")}

	sess, err := h.svc.Login(r.Context(), req)
	if err != nil {
		status, _ := statusOf(err)
		h.render(w, r, status, "login.html", map[string]any{
			"Next":  next,
			"Email": req.Email,
			"Error": errorText(r, err),
		})
		return
	}
	h.guard.SetSession(w, sess.Token, sess.ExpiresAt)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// SignupForm handles GET /signup.
func (h *PageHandler) SignupForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "signup.html", map[string]any{"Name": "", "Email": ""})
}

// Signup handles POST /signup. A successful registration signs the new user in.
func (h *PageHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		middleware.Flash(w, r, "flash_form_invalid")
		http.Redirect(w, r, "/signup", http.StatusSeeOther)
		return
	}
	req := services.RegisterRequest{
		Name:     r.PostFormValue("name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		status, _ := statusOf(err)
		data := map[string]any{"Name": req.Name, "Email": req.Email}
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			data["Errors"] = verr.Violations
		} else {
			data["Error"] = errorText(r, err)
		}
		h.render(w, r, status, "signup.html", data)
		return
	}
	sess, err := h.svc.IssueSession(u)
	if err != nil {
		h.log.Error(r.Context(), "issue session after signup", "user_id", u.ID, "error", err)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	h.guard.SetSession(w, sess.Token, sess.ExpiresAt)
	middleware.Flash(w, r, "flash_registered")
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

// Logout handles POST /logout.
func (h *PageHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.guard.ClearSession(w)
	middleware.Flash(w, r, "flash_signed_out")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Dashboard is rendered from the session claims alone.
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	name := claims.Name
	if name == "" {
		name = claims.Email
	}
	h.render(w, r, http.StatusOK, "dashboard.html", map[string]any{
		"Welcome": i18n.Tf(middleware.LangFrom(r), "dashboard_welcome", map[string]any{"Name": name}),
	})
}

// Settings handles GET /settings.
func (h *PageHandler) Settings(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	u, err := h.svc.Profile(r.Context(), uid)
	if err != nil {
		status, _ := statusOf(err)
		http.Error(w, errorText(r, err), status)
		return
	}
	h.render(w, r, http.StatusOK, "settings.html", map[string]any{"Profile": u.Profile()})
}

// profileRequestFromForm maps form names onto the update request. Absent fields
// stay nil and are left unchanged.
func profileRequestFromForm(r *http.Request) services.UpdateProfileRequest {
	field := func(name string) *string {
		if _, ok := r.PostForm[name]; !ok {
			return nil
		}
		v := r.PostForm.Get(name)
		return &v
	}
	return services.UpdateProfileRequest{
		FirstName: field("firstName"),
		LastName:  field("lastName"),
		Email:     field("email"),
		JobTitle:  field("jobTitle"),
		Phone:     field("phone"),
		Timezone:  field("timezone"),
		Language:  field("language"),
	}
}

// UpdateProfile handles POST /settings/profile.
func (h *PageHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		middleware.Flash(w, r, "flash_form_invalid")
		http.Redirect(w, r, "/settings", http.StatusSeeOther)
		return
	}
	req := profileRequestFromForm(r)
	u, err := h.svc.UpdateProfile(r.Context(), claims.Subject, req)
	if err != nil {
		var verr *services.ValidationError
		if !errors.As(err, &verr) {
			middleware.Flash(w, r, codeOf(err))
			http.Redirect(w, r, "/settings", http.StatusSeeOther)
			return
		}
		h.render(w, r, http.StatusBadRequest, "settings.html", map[string]any{
			"Profile": submittedProfile(req),
			"Errors":  verr.Violations,
		})
		return
	}
	if sess, err := h.svc.SyncSession(claims, u); err == nil {
		h.guard.SetSession(w, sess.Token, sess.ExpiresAt)
	} else {
		h.log.Warn(r.Context(), "refresh session after profile update", "user_id", u.ID, "error", err)
	}
	middleware.Flash(w, r, "flash_profile_saved")
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

// ChangePassword handles POST /settings/password. Outcomes are reported as a
// flash message on the settings page.
func (h *PageHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		middleware.Flash(w, r, "flash_form_invalid")
		http.Redirect(w, r, "/settings", http.StatusSeeOther)
		return
	}
	err := h.svc.ChangePassword(r.Context(), uid, services.ChangePasswordRequest{
		CurrentPassword: r.PostFormValue("currentPassword"),
		NewPassword:     r.PostFormValue("newPassword"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	})
	if err != nil {
		middleware.Flash(w, r, codeOf(err))
	} else {
		middleware.Flash(w, r, "flash_password_saved")
	}
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func codeOf(err error) string {
	_, code := statusOf(err)
	return code
}

func submittedProfile(req services.UpdateProfileRequest) models.Profile {
	get := func(v *string) string {
		if v == nil {
			return ""
		}
		return *v
	}
	return models.Profile{
		FirstName: get(req.FirstName),
		LastName:  get(req.LastName),
		Email:     get(req.Email),
		JobTitle:  get(req.JobTitle),
		Phone:     get(req.Phone),
		Timezone:  get(req.Timezone),
		Language:  get(req.Language),
	}
}
