package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultSessionTTL = 30 * 24 * time.Hour
	DefaultIssuer     = "go-crm"
)

// ErrInvalidSession covers every decode failure: bad signature, malformed
// token, wrong algorithm, wrong issuer or expiry.
var ErrInvalidSession = errors.New("invalid session")

// ProfileSnapshot is the denormalized profile copied into a token at issuance.
type ProfileSnapshot struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	JobTitle string `json:"job_title,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	Language string `json:"language,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// ProfileSnapshotUpdate overlays supplied (non-nil) fields onto a snapshot.
type ProfileSnapshotUpdate struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	JobTitle *string `json:"job_title,omitempty"`
	Timezone *string `json:"timezone,omitempty"`
	Language *string `json:"language,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
}

func (u ProfileSnapshotUpdate) apply(s *ProfileSnapshot) {
	overlay := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	overlay(&s.Name, u.Name)
	overlay(&s.Email, u.Email)
	overlay(&s.JobTitle, u.JobTitle)
	overlay(&s.Timezone, u.Timezone)
	overlay(&s.Language, u.Language)
	overlay(&s.Avatar, u.Avatar)
}

// Claims is the decoded content of a session token.
type Claims struct {
	Role    string `json:"role"`
	Version int    `json:"ver"`
	ProfileSnapshot
	jwt.RegisteredClaims
}

// UserID returns the session subject.
func (c *Claims) UserID() string { return c.Subject }

// Issuer signs and verifies session tokens with a server-held HMAC secret.
type Issuer struct {
	secret   []byte
	lifetime time.Duration
	name     string
	now      func() time.Time
}

type IssuerOption func(*Issuer)

// WithClock overrides the time source used for iat/exp and for expiry checks.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) { i.name = name }
}

// NewIssuer returns an Issuer; lifetime 0 selects DefaultSessionTTL.
func NewIssuer(secret []byte, lifetime time.Duration, opts ...IssuerOption) *Issuer {
	if lifetime <= 0 {
		lifetime = DefaultSessionTTL
	}
	i := &Issuer{secret: secret, lifetime: lifetime, name: DefaultIssuer, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Issuer) Lifetime() time.Duration { return i.lifetime }

// Issue stamps the registered claims (iat, exp, iss, jti) onto c and signs it.
// The caller provides subject, role, version and profile snapshot.
func (i *Issuer) Issue(c Claims) (string, *Claims, error) {
	if c.Subject == "" {
		return "", nil, errors.New("auth: cannot issue a token without subject")
	}
	now := i.now()
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(i.lifetime))
	c.Issuer = i.name
	c.ID = uuid.NewString()
	return i.sign(&c)
}

// Merge overlays the supplied profile fields onto existing claims and re-signs.
// Subject, role, version and issuance metadata are preserved.
func (i *Issuer) Merge(existing *Claims, upd ProfileSnapshotUpdate) (string, *Claims, error) {
	if existing == nil || existing.Subject == "" {
		return "", nil, ErrInvalidSession
	}
	merged := *existing
	upd.apply(&merged.ProfileSnapshot)
	return i.sign(&merged)
}

func (i *Issuer) sign(c *Claims) (string, *Claims, error) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("auth: sign token: %w", err)
	}
	return tok, c, nil
}

// Decode verifies signature, issuer and expiry. Every failure is reported as
// ErrInvalidSession; the wrapped detail is for logs only.
func (i *Issuer) Decode(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(i.name),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}
