package policy_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/gate"
	"github.com/diewo77/go-crm/internal/logging"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/policy"
	"github.com/diewo77/go-crm/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newStore(t *testing.T) *store.GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:policy_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	st := store.NewGormStore(db)
	require.NoError(t, st.AutoMigrate())
	return st
}

func createUser(t *testing.T, st store.Store, email string, role models.Role) *models.User {
	t.Helper()
	u, err := st.Create(context.Background(), store.NewIdentity{Email: email, Name: email, PasswordHash: "x", Role: role})
	require.NoError(t, err)
	return u
}

func ctxFor(userID string, version int) context.Context {
	c := &auth.Claims{Version: version}
	c.Subject = userID
	return auth.WithClaims(context.Background(), c)
}

func TestRoleProfile(t *testing.T) {
	admin := policy.RoleProfile(models.RoleAdmin)
	assert.True(t, admin.HasPermission("user:delete"))
	assert.True(t, admin.HasPermission("anything:goes"))

	manager := policy.RoleProfile(models.RoleManager)
	assert.True(t, manager.HasPermission("deal:delete"))
	assert.True(t, manager.HasPermission("user:list"))
	assert.False(t, manager.HasPermission("user:update"))

	sales := policy.RoleProfile(models.RoleSales)
	assert.True(t, sales.HasPermission("contact:create"))
	assert.False(t, sales.HasPermission("company:delete"))

	user := policy.RoleProfile(models.RoleUser)
	assert.True(t, user.HasPermission("deal:view"))
	assert.False(t, user.HasPermission("deal:create"))

	assert.Empty(t, policy.RoleProfile("owner").Permissions())
}

func TestNotSelfPolicy(t *testing.T) {
	p := policy.NewNotSelfPolicy(gate.ActionUpdate, gate.ActionDelete)
	ctx := context.Background()
	self := &models.User{ID: "u1"}
	other := &models.User{ID: "u2"}

	assert.False(t, p.Can(ctx, "u1", gate.ActionUpdate, self))
	assert.False(t, p.Can(ctx, "u1", gate.ActionDelete, self))
	assert.True(t, p.Can(ctx, "u1", gate.ActionView, self))
	assert.True(t, p.Can(ctx, "u1", gate.ActionUpdate, other))
	assert.True(t, p.Can(ctx, "u1", gate.ActionUpdate, struct{}{}))
}

func TestStoreResolver(t *testing.T) {
	st := newStore(t)
	u := createUser(t, st, "sales@example.com", models.RoleSales)
	r := policy.NewStoreResolver(st)

	p, err := r.Resolve(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "sales", p.Name())
	assert.True(t, p.HasPermission("deal:create"))

	require.NoError(t, st.SetActive(context.Background(), u.ID, false))
	p, err = r.Resolve(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, p.HasPermission("deal:create"), "inactive accounts hold no permissions")

	p, err = r.Resolve(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestAuthGate_Authorize(t *testing.T) {
	st := newStore(t)
	admin := createUser(t, st, "admin@example.com", models.RoleAdmin)
	member := createUser(t, st, "member@example.com", models.RoleUser)
	ag := policy.NewAuthGate(st, time.Minute, logging.Nop())

	adminCtx := ctxFor(admin.ID, 0)
	assert.NoError(t, ag.Authorize(adminCtx, gate.ActionUpdate, policy.ResourceUser, member))
	assert.ErrorIs(t, ag.Authorize(adminCtx, gate.ActionUpdate, policy.ResourceUser, admin), gate.ErrUnauthorized)
	assert.True(t, ag.IsAdmin(adminCtx))

	memberCtx := ctxFor(member.ID, 0)
	assert.ErrorIs(t, ag.Authorize(memberCtx, gate.ActionUpdate, policy.ResourceUser, admin), gate.ErrUnauthorized)
	assert.False(t, ag.IsAdmin(memberCtx))
	assert.True(t, ag.CanProfile(memberCtx, gate.ActionView, policy.ResourceDeal))

	assert.ErrorIs(t, ag.Authorize(context.Background(), gate.ActionView, policy.ResourceDeal, nil), gate.ErrUnauthorized)

	p, err := ag.CurrentProfile(memberCtx)
	require.NoError(t, err)
	assert.Equal(t, "user", p.Name())
}

func TestAuthGate_RoleChangeNeedsInvalidation(t *testing.T) {
	st := newStore(t)
	u := createUser(t, st, "promoted@example.com", models.RoleUser)
	ag := policy.NewAuthGate(st, time.Hour, logging.Nop())
	ctx := ctxFor(u.ID, 0)

	assert.False(t, ag.IsAdmin(ctx))
	require.NoError(t, st.SetRole(context.Background(), u.ID, models.RoleAdmin))
	assert.False(t, ag.IsAdmin(ctx), "cached until invalidated")

	ag.InvalidateUser(u.ID)
	assert.True(t, ag.IsAdmin(ctx))
}

func TestAuthGate_VerifySession(t *testing.T) {
	st := newStore(t)
	u := createUser(t, st, "verify@example.com", models.RoleUser)
	ag := policy.NewAuthGate(st, time.Minute, logging.Nop())

	claims := func(sub string, ver int) *auth.Claims {
		c := &auth.Claims{Version: ver}
		c.Subject = sub
		return c
	}
	ctx := context.Background()

	assert.True(t, ag.VerifySession(ctx, claims(u.ID, 0)))
	assert.False(t, ag.VerifySession(ctx, claims("ghost", 0)))

	_, err := st.BumpSessionVersion(ctx, u.ID)
	require.NoError(t, err)
	ag.InvalidateUser(u.ID)
	assert.False(t, ag.VerifySession(ctx, claims(u.ID, 0)))
	assert.True(t, ag.VerifySession(ctx, claims(u.ID, 1)))

	require.NoError(t, st.SetActive(ctx, u.ID, false))
	ag.InvalidateUser(u.ID)
	assert.False(t, ag.VerifySession(ctx, claims(u.ID, 1)))
}

type failingStore struct{ store.Store }

func (failingStore) FindByID(context.Context, string) (*models.User, error) {
	return nil, errors.New("connection refused")
}

func TestAuthGate_FailsClosed(t *testing.T) {
	ag := policy.NewAuthGate(failingStore{}, time.Minute, logging.Nop())
	c := &auth.Claims{}
	c.Subject = "u1"
	assert.False(t, ag.VerifySession(context.Background(), c))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req = req.WithContext(ctxFor("u1", 0))
	rr := httptest.NewRecorder()
	ag.RequireAdmin()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestAuthGate_RequireAdmin(t *testing.T) {
	st := newStore(t)
	admin := createUser(t, st, "admin@example.com", models.RoleAdmin)
	member := createUser(t, st, "member@example.com", models.RoleUser)
	ag := policy.NewAuthGate(st, time.Minute, logging.Nop())
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	serve := func(path, accept string, ctx context.Context) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx)
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		rr := httptest.NewRecorder()
		ag.RequireAdmin()(ok).ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusNoContent, serve("/api/users", "", ctxFor(admin.ID, 0)).Code)
	assert.Equal(t, http.StatusForbidden, serve("/api/users", "", ctxFor(member.ID, 0)).Code)
	assert.Equal(t, http.StatusUnauthorized, serve("/api/users", "", context.Background()).Code)

	rr := serve("/admin/users", "text/html", context.Background())
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
}
