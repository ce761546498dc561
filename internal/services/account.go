// Package services implements the account boundary operations: registration,
// login, password change, session refresh and profile management.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/internal/logging"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/store"
	"github.com/diewo77/go-crm/validation"
	"github.com/google/uuid"
)

// Session is a freshly signed token and what it asserts.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Claims    *auth.Claims `json:"-"`
}

// Invalidator drops cached authorization state for a user.
type Invalidator interface {
	InvalidateUser(userID string)
}

type AccountService struct {
	store       store.Store
	hasher      *auth.Hasher
	issuer      *auth.Issuer
	log         logging.Logger
	invalidator Invalidator
	now         func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

type Option func(*AccountService)

// WithInvalidator registers the cache to flush on role, active flag and
// session version changes.
func WithInvalidator(inv Invalidator) Option {
	return func(s *AccountService) { s.invalidator = inv }
}

func WithClock(now func() time.Time) Option {
	return func(s *AccountService) { s.now = now }
}

func NewAccountService(st store.Store, h *auth.Hasher, iss *auth.Issuer, log logging.Logger, opts ...Option) *AccountService {
	s := &AccountService{
		store:  st,
		hasher: h,
		issuer: iss,
		log:    log.With("component", "account"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account. The first account ever created becomes admin.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if err := invalid(req.Validate()); err != nil {
		return nil, err
	}
	u, err := s.create(ctx, store.NewIdentity{Email: req.Email, Name: strings.TrimSpace(req.Name)}, req.Password)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Invite creates an account with an explicit role on behalf of an admin.
func (s *AccountService) Invite(ctx context.Context, req InviteRequest) (*models.User, error) {
	if err := invalid(req.Validate()); err != nil {
		return nil, err
	}
	u, err := s.create(ctx, store.NewIdentity{Email: req.Email, Name: strings.TrimSpace(req.Name), Role: req.Role}, req.Password)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "user invited", "user_id", u.ID, "role", u.Role)
	return u, nil
}

func (s *AccountService) create(ctx context.Context, in store.NewIdentity, password string) (*models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.log.Error(ctx, "hash password", "error", err)
		return nil, fmt.Errorf("%w: hash", ErrUnavailable)
	}
	in.PasswordHash = hash
	u, err := s.store.Create(ctx, in)
	if err != nil {
		return nil, s.storeErr(ctx, "create", err)
	}
	return u, nil
}

// Login verifies credentials and issues a session. Unknown email, wrong
// password and a deactivated account are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	email := models.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		// equalize timing with the wrong-password path
		s.hasher.Verify(req.Password, s.dummy())
		s.log.Info(ctx, "login rejected", "reason", "unknown_email")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, s.storeErr(ctx, "login", err)
	}
	if !s.hasher.Verify(req.Password, u.PasswordHash) {
		s.log.Info(ctx, "login rejected", "reason", "wrong_password", "user_id", u.ID)
		return nil, ErrInvalidCredentials
	}
	if !u.Active {
		s.log.Info(ctx, "login rejected", "reason", "inactive", "user_id", u.ID)
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.store.TouchLastLogin(ctx, u.ID, now); err != nil {
		s.log.Warn(ctx, "record last login", "user_id", u.ID, "error", err)
	}
	u.LastLogin = &now

	sess, err := s.IssueSession(u)
	if err != nil {
		s.log.Error(ctx, "issue session", "user_id", u.ID, "error", err)
		return nil, fmt.Errorf("%w: issue", ErrUnavailable)
	}
	s.log.Info(ctx, "login succeeded", "user_id", u.ID)
	return sess, nil
}

func (s *AccountService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyDigest, _ = s.hasher.Hash(uuid.NewString())
	})
	return s.dummyDigest
}

// IssueSession signs a new token for u.
func (s *AccountService) IssueSession(u *models.User) (*Session, error) {
	c := auth.Claims{
		Role:            string(u.Role),
		Version:         u.SessionVersion,
		ProfileSnapshot: SnapshotOf(u),
	}
	c.Subject = u.ID
	tok, claims, err := s.issuer.Issue(c)
	if err != nil {
		return nil, err
	}
	return newSession(tok, claims), nil
}

func newSession(tok string, c *auth.Claims) *Session {
	return &Session{Token: tok, ExpiresAt: c.ExpiresAt.Time, Claims: c}
}

// SnapshotOf is the profile copy carried in a session token.
func SnapshotOf(u *models.User) auth.ProfileSnapshot {
	name := u.Name
	if name == "" {
		name = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	p := u.Profile()
	return auth.ProfileSnapshot{
		Name:     name,
		Email:    u.Email,
		JobTitle: u.JobTitle,
		Timezone: p.Timezone,
		Language: p.Language,
		Avatar:   u.ProfileImage,
	}
}

// DecodeSession verifies a token. Every failure is ErrInvalidSession.
func (s *AccountService) DecodeSession(token string) (*auth.Claims, error) {
	return s.issuer.Decode(token)
}

// RefreshSession overlays upd on the session's profile snapshot and re-signs
// it. Subject, role, version and expiry are unchanged. Supplied fields are
// held to the same rules as a profile update.
func (s *AccountService) RefreshSession(claims *auth.Claims, upd SessionUpdate) (*Session, error) {
	if err := invalid(validateSessionUpdate(upd)); err != nil {
		return nil, err
	}
	if upd.Email != nil {
		email := models.NormalizeEmail(*upd.Email)
		upd.Email = &email
	}
	return s.resign(claims, upd)
}

func (s *AccountService) resign(claims *auth.Claims, upd SessionUpdate) (*Session, error) {
	tok, merged, err := s.issuer.Merge(claims, upd)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidSession) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("%w: merge", ErrUnavailable)
	}
	return newSession(tok, merged), nil
}

// SyncSession refreshes the session snapshot from a freshly loaded user.
func (s *AccountService) SyncSession(claims *auth.Claims, u *models.User) (*Session, error) {
	snap := SnapshotOf(u)
	return s.resign(claims, SessionUpdate{
		Name:     &snap.Name,
		Email:    &snap.Email,
		JobTitle: &snap.JobTitle,
		Timezone: &snap.Timezone,
		Language: &snap.Language,
		Avatar:   &snap.Avatar,
	})
}

// ChangePassword replaces the password after verifying the current one.
// Checks run in order: presence, confirmation, length, lookup, current password.
func (s *AccountService) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	v := validation.Violations{}
	validation.Required("currentPassword", req.CurrentPassword, v)
	validation.Required("newPassword", req.NewPassword, v)
	validation.Required("confirmPassword", req.ConfirmPassword, v)
	if err := invalid(v); err != nil {
		return err
	}
	if req.NewPassword != req.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if len([]rune(req.NewPassword)) < auth.MinPasswordLength {
		return ErrPasswordTooShort
	}

	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return s.storeErr(ctx, "change password", err)
	}
	if !s.hasher.Verify(req.CurrentPassword, u.PasswordHash) {
		s.log.Info(ctx, "password change rejected", "user_id", userID)
		return ErrInvalidCurrentPassword
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return &ValidationError{Violations: validation.Violations{"newPassword": "too_long"}}
	}
	if err != nil {
		s.log.Error(ctx, "hash password", "error", err)
		return fmt.Errorf("%w: hash", ErrUnavailable)
	}
	if err := s.store.UpdatePassword(ctx, userID, hash); err != nil {
		return s.storeErr(ctx, "change password", err)
	}
	s.log.Info(ctx, "password changed", "user_id", userID)
	return nil
}

func (s *AccountService) Profile(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return nil, s.storeErr(ctx, "profile", err)
	}
	return u, nil
}

// UpdateProfile applies the supplied fields and returns the updated record.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*models.User, error) {
	if err := invalid(req.Validate()); err != nil {
		return nil, err
	}
	u, err := s.store.UpdateProfile(ctx, userID, req.update())
	if err != nil {
		return nil, s.storeErr(ctx, "update profile", err)
	}
	return u, nil
}

// RevokeSessions invalidates every outstanding token for the user and returns
// a replacement session for the caller.
func (s *AccountService) RevokeSessions(ctx context.Context, userID string) (*Session, error) {
	if _, err := s.store.BumpSessionVersion(ctx, userID); err != nil {
		return nil, s.storeErr(ctx, "revoke sessions", err)
	}
	s.invalidate(userID)
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return nil, s.storeErr(ctx, "revoke sessions", err)
	}
	sess, err := s.IssueSession(u)
	if err != nil {
		return nil, fmt.Errorf("%w: issue", ErrUnavailable)
	}
	s.log.Info(ctx, "sessions revoked", "user_id", userID, "version", u.SessionVersion)
	return sess, nil
}

// ListUsers returns every account, newest first, without credentials.
func (s *AccountService) ListUsers(ctx context.Context) ([]models.PublicUser, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, s.storeErr(ctx, "list users", err)
	}
	out := make([]models.PublicUser, len(users))
	for i := range users {
		out[i] = users[i].Public()
	}
	return out, nil
}

func (s *AccountService) SetRole(ctx context.Context, userID string, role models.Role) error {
	if !role.Valid() {
		return &ValidationError{Violations: validation.Violations{"role": "invalid_choice"}}
	}
	if err := s.store.SetRole(ctx, userID, role); err != nil {
		return s.storeErr(ctx, "set role", err)
	}
	s.invalidate(userID)
	s.log.Info(ctx, "role changed", "user_id", userID, "role", role)
	return nil
}

func (s *AccountService) SetActive(ctx context.Context, userID string, active bool) error {
	if err := s.store.SetActive(ctx, userID, active); err != nil {
		return s.storeErr(ctx, "set active", err)
	}
	s.invalidate(userID)
	s.log.Info(ctx, "account status changed", "user_id", userID, "active", active)
	return nil
}

func (s *AccountService) NotificationSettings(ctx context.Context, userID string) (*models.NotificationSettings, error) {
	ns, err := s.store.NotificationSettings(ctx, userID)
	if err != nil {
		return nil, s.storeErr(ctx, "notification settings", err)
	}
	return ns, nil
}

func (s *AccountService) SaveNotificationSettings(ctx context.Context, userID string, req NotificationSettingsRequest) (*models.NotificationSettings, error) {
	if err := invalid(req.Validate()); err != nil {
		return nil, err
	}
	ns := &models.NotificationSettings{
		UserID:              userID,
		EmailNotifications:  req.EmailNotifications,
		SystemNotifications: req.SystemNotifications,
		Frequency:           req.Frequency,
	}
	if err := s.store.SaveNotificationSettings(ctx, ns); err != nil {
		return nil, s.storeErr(ctx, "save notification settings", err)
	}
	return ns, nil
}

// Health reports whether the credential store is reachable.
func (s *AccountService) Health(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return s.storeErr(ctx, "health", err)
	}
	return nil
}

func (s *AccountService) invalidate(userID string) {
	if s.invalidator != nil {
		s.invalidator.InvalidateUser(userID)
	}
}

// storeErr maps store errors onto the service taxonomy. Anything unexpected is
// logged with full detail and reported as ErrUnavailable.
func (s *AccountService) storeErr(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrDuplicateIdentity):
		return ErrDuplicateIdentity
	}
	s.log.Error(ctx, "store failure", "op", op, "error", err)
	return fmt.Errorf("%w: %s", ErrUnavailable, op)
}
