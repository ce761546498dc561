package policy

import (
	"context"
	"net/http"
	"time"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/gate"
	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/logging"
	"github.com/diewo77/go-crm/internal/store"
)

// AuthGate holds the configured HybridGate with caching.
// It is the central authorization point of the application.
type AuthGate struct {
	Gate          *gate.HybridGate[string]
	CacheResolver *gate.CachedResolver[string]
	log           logging.Logger
}

// NewAuthGate resolves access from the credential store, caching each user's
// state for cacheTTL.
func NewAuthGate(st store.Store, cacheTTL time.Duration, log logging.Logger) *AuthGate {
	cachedResolver := gate.NewCachedResolver[string](NewStoreResolver(st), cacheTTL)
	hybridGate := gate.NewHybridGate[string](cachedResolver)
	hybridGate.Register(ResourceUser, NewNotSelfPolicy(gate.ActionUpdate, gate.ActionDelete))

	return &AuthGate{
		Gate:          hybridGate,
		CacheResolver: cachedResolver,
		log:           log.With("component", "authgate"),
	}
}

// Authorize checks if the current user can perform an action on a resource.
// Returns nil if authorized, gate.ErrUnauthorized otherwise.
func (ag *AuthGate) Authorize(ctx context.Context, action gate.Action, resourceType string, resource any) error {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return gate.ErrUnauthorized
	}
	return ag.Gate.Authorize(ctx, userID, action, resourceType, resource)
}

// CanProfile checks only profile permissions (no policy check).
// Used by templates to show or hide links.
func (ag *AuthGate) CanProfile(ctx context.Context, action gate.Action, resourceType string) bool {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return false
	}
	return ag.Gate.CanProfile(ctx, userID, action, resourceType)
}

// IsAdmin reports whether the current user holds the superadmin permission.
func (ag *AuthGate) IsAdmin(ctx context.Context) bool {
	return ag.CanProfile(ctx, gate.WildcardAll, gate.WildcardAll)
}

// CurrentProfile returns the authoritative permission profile of the current
// user. Its name is the user's role.
func (ag *AuthGate) CurrentProfile(ctx context.Context) (gate.Profile, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return nil, gate.ErrUnauthorized
	}
	return ag.Gate.Profile(ctx, userID)
}

// VerifySession is the guard's SessionVerifier: the account must still exist,
// be active and carry the session version stamped in the token. Store failures
// reject the session.
func (ag *AuthGate) VerifySession(ctx context.Context, c *auth.Claims) bool {
	p, err := ag.CacheResolver.Resolve(ctx, c.Subject)
	if err != nil {
		ag.log.Error(ctx, "verify session", "user_id", c.Subject, "error", err)
		return false
	}
	a, ok := p.(*Access)
	if !ok || a == nil {
		return false
	}
	return a.Active && a.SessionVersion == c.Version
}

// InvalidateUser clears the cache for a specific user.
// Call this when a user's role, status or session version changes.
func (ag *AuthGate) InvalidateUser(userID string) {
	ag.CacheResolver.Invalidate(userID)
}

// RequireAdmin returns middleware that only allows users with the "*:*"
// superadmin permission, as resolved from the store.
func (ag *AuthGate) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				unauthorized(w, r)
				return
			}

			profile, err := ag.CacheResolver.Resolve(r.Context(), userID)
			if err != nil {
				ag.log.Error(r.Context(), "resolve profile", "user_id", userID, "error", err)
				httpx.JSONError(w, http.StatusServiceUnavailable, "service_unavailable", nil)
				return
			}
			if profile == nil || !profile.HasPermission(gate.PermissionSuperAdmin) {
				ag.log.Warn(r.Context(), "admin route denied", "user_id", userID, "path", r.URL.Path)
				forbidden(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func forbidden(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	http.Error(w, "Forbidden", http.StatusForbidden)
}
