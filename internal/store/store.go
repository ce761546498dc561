// Package store persists identity records. Every backend normalizes email
// addresses, enforces their uniqueness and makes first-user admin promotion
// atomic.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/diewo77/go-crm/internal/models"
)

var (
	// ErrNotFound is the explicit absence signal for lookups.
	ErrNotFound = errors.New("identity not found")
	// ErrDuplicateIdentity is returned when the normalized email is taken.
	ErrDuplicateIdentity = errors.New("duplicate identity")
)

// NewIdentity is the input to Store.Create.
type NewIdentity struct {
	Email        string
	Name         string
	PasswordHash string
	// Role, when set, is used as-is (admin invites). When empty the store
	// assigns admin to the first identity ever created and user otherwise.
	Role models.Role
}

// Store is the credential store. Implementations are safe for concurrent use.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	// Create returns the persisted record with PasswordHash cleared.
	Create(ctx context.Context, in NewIdentity) (*models.User, error)
	// UpdateProfile applies a partial update and returns the fresh record.
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error)
	// UpdatePassword overwrites the hash. Callers verify the old password first.
	UpdatePassword(ctx context.Context, id, hash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	// BumpSessionVersion increments the session version and returns the new value.
	BumpSessionVersion(ctx context.Context, id string) (int, error)
	SetRole(ctx context.Context, id string, role models.Role) error
	SetActive(ctx context.Context, id string, active bool) error
	// List returns all identities, newest first, without password hashes.
	List(ctx context.Context) ([]models.User, error)

	NotificationSettings(ctx context.Context, userID string) (*models.NotificationSettings, error)
	SaveNotificationSettings(ctx context.Context, s *models.NotificationSettings) error

	Ping(ctx context.Context) error
}

func withoutHash(u *models.User) *models.User {
	u.PasswordHash = ""
	return u
}

var (
	_ Store = (*GormStore)(nil)
	_ Store = (*MongoStore)(nil)
)
