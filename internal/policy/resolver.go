package policy

import (
	"context"
	"errors"

	"github.com/diewo77/go-crm/gate"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/store"
)

// Access is the authoritative authorization state of an account: its role
// profile plus the flags a session is checked against.
type Access struct {
	*gate.StaticProfile
	Role           models.Role
	Active         bool
	SessionVersion int
}

// HasPermission grants nothing to a deactivated account.
func (a *Access) HasPermission(p gate.Permission) bool {
	return a.Active && a.StaticProfile.HasPermission(p)
}

// StoreResolver resolves user ids to their Access from the credential store.
type StoreResolver struct {
	store store.Store
}

func NewStoreResolver(st store.Store) *StoreResolver {
	return &StoreResolver{store: st}
}

// Resolve returns (nil, nil) for unknown users.
func (r *StoreResolver) Resolve(ctx context.Context, userID string) (gate.Profile, error) {
	u, err := r.store.FindByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Access{
		StaticProfile:  RoleProfile(u.Role),
		Role:           u.Role,
		Active:         u.Active,
		SessionVersion: u.SessionVersion,
	}, nil
}
