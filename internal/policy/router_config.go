package policy

import (
	"time"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/internal/handlers"
	"github.com/diewo77/go-crm/internal/logging"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/diewo77/go-crm/internal/store"
)

// RouterConfig holds configured handlers and middleware for the application.
type RouterConfig struct {
	// AuthGate provides authorization checks and middleware
	AuthGate *AuthGate
	// Guard decodes session tokens and protects authenticated routes
	Guard *auth.Guard

	Accounts *services.AccountService

	AuthAPI    *handlers.AuthAPI
	UserAPI    *handlers.UserAPI
	AdminUsers *handlers.AdminUserHandler
	Pages      *handlers.PageHandler
}

// RouterOptions tunes session handling.
type RouterOptions struct {
	// CacheTTL bounds how long a role or status change can go unnoticed.
	CacheTTL time.Duration
	// VerifySessions re-checks the account on every authenticated request.
	VerifySessions bool
	SecureCookie   bool
	// ServiceOptions are passed to the account service (e.g. a test clock).
	ServiceOptions []services.Option
}

// NewRouterConfig wires the authorization gate, account service and handlers.
//
//	cfg := policy.NewRouterConfig(st, issuer, hasher, policy.RouterOptions{CacheTTL: time.Minute}, log)
//	mux.Handle("GET /admin/users", cfg.Guard.RequireAuth(cfg.AuthGate.RequireAdmin()(http.HandlerFunc(cfg.AdminUsers.List))))
func NewRouterConfig(st store.Store, issuer *auth.Issuer, hasher *auth.Hasher, opts RouterOptions, log logging.Logger) *RouterConfig {
	authGate := NewAuthGate(st, opts.CacheTTL, log)

	svcOpts := append([]services.Option{services.WithInvalidator(authGate)}, opts.ServiceOptions...)
	accounts := services.NewAccountService(st, hasher, issuer, log, svcOpts...)

	guardOpts := []auth.GuardOption{auth.WithSecureCookie(opts.SecureCookie)}
	if opts.VerifySessions {
		guardOpts = append(guardOpts, auth.WithVerifier(authGate.VerifySession))
	}
	guard := auth.NewGuard(issuer, guardOpts...)

	return &RouterConfig{
		AuthGate:   authGate,
		Guard:      guard,
		Accounts:   accounts,
		AuthAPI:    handlers.NewAuthAPI(accounts, guard, log),
		UserAPI:    handlers.NewUserAPI(accounts, guard, authGate, log),
		AdminUsers: handlers.NewAdminUserHandler(accounts, authGate, log),
		Pages:      handlers.NewPageHandler(accounts, guard, log),
	}
}
