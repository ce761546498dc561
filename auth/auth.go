package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/diewo77/go-crm/httpx"
)

type ctxKey string

const (
	SessionCookieName = "session"
	claimsCtxKey      = ctxKey("claims")
	loginPath         = "/login"
)

// Decoder turns a bearer token into trusted claims.
type Decoder interface {
	Decode(token string) (*Claims, error)
}

// SessionVerifier is an optional check run by RequireAuth after a token has
// decoded, e.g. to reject revoked sessions or deactivated accounts.
type SessionVerifier func(ctx context.Context, c *Claims) bool

// Guard attaches session claims to requests and blocks anonymous ones.
// It never reads the credential store itself.
type Guard struct {
	decoder      Decoder
	verifier     SessionVerifier
	cookieSecure bool
	loginPath    string
}

type GuardOption func(*Guard)

// WithVerifier installs a SessionVerifier. Without one, a valid signature and
// expiry are sufficient.
func WithVerifier(v SessionVerifier) GuardOption {
	return func(g *Guard) { g.verifier = v }
}

// WithSecureCookie marks the session cookie Secure (HTTPS deployments).
func WithSecureCookie(secure bool) GuardOption {
	return func(g *Guard) { g.cookieSecure = secure }
}

func NewGuard(d Decoder, opts ...GuardOption) *Guard {
	g := &Guard{decoder: d, loginPath: loginPath}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetSession writes the session cookie for a freshly issued token.
func (g *Guard) SetSession(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}

// ClearSession deletes the session cookie.
func (g *Guard) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: SessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), MaxAge: -1, HttpOnly: true, Secure: g.cookieSecure, SameSite: http.SameSiteLaxMode})
}

// TokenFromRequest returns the bearer token from the Authorization header or
// the session cookie, in that order.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// WithClaims stores session claims in context.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, c)
}

// ClaimsFromContext extracts the session claims.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsCtxKey).(*Claims)
	return c, ok && c != nil
}

// UserIDFromContext extracts the session subject.
func UserIDFromContext(ctx context.Context) (string, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok || c.Subject == "" {
		return "", false
	}
	return c.Subject, true
}

// Middleware attaches decoded claims to the request context if the token is valid.
// Invalid tokens are ignored here; RequireAuth decides what to do.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := TokenFromRequest(r); tok != "" {
			if claims, err := g.decoder.Decode(tok); err == nil {
				r = r.WithContext(WithClaims(r.Context(), claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth redirects to the login page (HTML) or returns 401 JSON when the
// request carries no valid session.
func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			if TokenFromRequest(r) != "" {
				// expired or tampered: drop the stale cookie
				g.ClearSession(w)
			}
			g.deny(w, r)
			return
		}
		if g.verifier != nil && !g.verifier(r.Context(), claims) {
			// Session refers to a revoked session or disabled user: clear and treat as unauthorized.
			g.ClearSession(w)
			g.deny(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Guard) deny(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	target := g.loginPath
	if r.Method == http.MethodGet && r.URL.Path != "/" {
		target += "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// SafeRedirect returns next if it is a local absolute path, otherwise fallback.
func SafeRedirect(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return next
}
