package main

import (
	"net/http"

	"github.com/diewo77/go-crm/gate"
	"github.com/diewo77/go-crm/internal/handlers"
	"github.com/diewo77/go-crm/internal/middleware"
	"github.com/diewo77/go-crm/internal/policy"
	"github.com/diewo77/go-crm/view"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux       *http.ServeMux
	handler   http.Handler
	routerCfg *policy.RouterConfig
}

// NewApp creates a new application with all routes configured. defaultLang is
// the UI language used when the request expresses no preference.
func NewApp(routerCfg *policy.RouterConfig, defaultLang string) *App {
	app := &App{
		mux:       http.NewServeMux(),
		routerCfg: routerCfg,
	}
	// Templates reach permissions and language through callbacks so the view
	// package does not import policy.
	view.SetLangResolver(middleware.LangFrom)
	view.SetCanProfileResolver(func(r *http.Request, resource, action string) bool {
		return routerCfg.AuthGate.CanProfile(r.Context(), gate.Action(action), resource)
	})
	view.SetIsAdminResolver(func(r *http.Request) bool {
		return routerCfg.AuthGate.IsAdmin(r.Context())
	})
	app.setupRoutes()
	// Apply global middleware: session claims, then language preference.
	app.handler = routerCfg.Guard.Middleware(middleware.Prefs(defaultLang)(app.mux))
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	cfg := a.routerCfg

	// ─────────────────────────────────────────────────────────────────────────
	// Public routes (no auth required)
	// ─────────────────────────────────────────────────────────────────────────
	pages := cfg.Pages
	a.mux.HandleFunc("GET /healthz", handlers.Health(cfg.Accounts))
	a.mux.HandleFunc("GET /{$}", pages.Landing)
	a.mux.HandleFunc("GET /login", pages.LoginForm)
	a.mux.HandleFunc("POST /login", pages.Login)
	a.mux.HandleFunc("GET /signup", pages.SignupForm)
	a.mux.HandleFunc("POST /signup", pages.Signup)
	a.mux.HandleFunc("GET /logout", pages.Logout)
	a.mux.HandleFunc("POST /logout", pages.Logout)

	api := cfg.AuthAPI
	a.mux.HandleFunc("POST /api/auth/register", api.Register)
	a.mux.HandleFunc("POST /api/auth/login", api.Login)
	a.mux.HandleFunc("POST /api/auth/logout", api.Logout)

	// ─────────────────────────────────────────────────────────────────────────
	// Authenticated routes (require a valid session)
	// ─────────────────────────────────────────────────────────────────────────
	a.mux.Handle("GET /dashboard", a.requireAuth(pages.Dashboard))
	a.mux.Handle("GET /settings", a.requireAuth(pages.Settings))
	a.mux.Handle("POST /settings/profile", a.requireAuth(pages.UpdateProfile))
	a.mux.Handle("POST /settings/password", a.requireAuth(pages.ChangePassword))

	a.mux.Handle("GET /api/auth/session", a.requireAuth(api.Session))
	a.mux.Handle("PATCH /api/auth/session", a.requireAuth(api.RefreshSession))
	a.mux.Handle("POST /api/auth/sessions/revoke", a.requireAuth(api.RevokeSessions))

	ua := cfg.UserAPI
	a.mux.Handle("GET /api/user/profile", a.requireAuth(ua.GetProfile))
	a.mux.Handle("PUT /api/user/profile", a.requireAuth(ua.UpdateProfile))
	a.mux.Handle("PUT /api/user/password", a.requireAuth(ua.ChangePassword))
	a.mux.Handle("GET /api/user/notifications", a.requireAuth(ua.GetNotifications))
	a.mux.Handle("PUT /api/user/notifications", a.requireAuth(ua.UpdateNotifications))
	a.mux.Handle("GET /api/user/permissions", a.requireAuth(ua.Permissions))

	// ─────────────────────────────────────────────────────────────────────────
	// Admin routes (require the *:* superadmin permission)
	// ─────────────────────────────────────────────────────────────────────────
	au := cfg.AdminUsers
	a.mux.Handle("GET /admin/users", a.requireAdmin(au.List))
	a.mux.Handle("GET /api/users", a.requireAdmin(au.List))
	a.mux.Handle("POST /api/users", a.requireAdmin(au.Create))
	a.mux.Handle("PUT /api/users/{id}/role", a.requireAdmin(au.SetRole))
	a.mux.Handle("PUT /api/users/{id}/active", a.requireAdmin(au.SetActive))
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

// requireAuth wraps a handler to require authentication.
func (a *App) requireAuth(h http.HandlerFunc) http.Handler {
	return a.routerCfg.Guard.RequireAuth(h)
}

// requireAdmin wraps a handler to require a session and admin permissions.
func (a *App) requireAdmin(h http.HandlerFunc) http.Handler {
	return a.routerCfg.Guard.RequireAuth(a.routerCfg.AuthGate.RequireAdmin()(h))
}
