package db

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/diewo77/go-crm/internal/config"
	"github.com/diewo77/go-crm/internal/logging"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStoreSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.DatabaseConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "crm.db")}

	s, closeFn, err := OpenStore(ctx, cfg, logging.Nop(), true)
	require.NoError(t, err)
	defer func() { assert.NoError(t, closeFn(ctx)) }()

	require.NoError(t, s.Ping(ctx))
	u, err := s.Create(ctx, store.NewIdentity{Email: "a@example.com", Name: "A", PasswordHash: "h"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, _, err := OpenStore(context.Background(), config.DatabaseConfig{Driver: "oracle"}, logging.Nop(), false)
	assert.ErrorContains(t, err, `unsupported driver "oracle"`)
}

func TestOpenSQL_LogsWithoutBoundValues(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	cfg := config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "crm.db"),
		SlowQuery:  time.Nanosecond,
	}

	s, closeFn, err := OpenStore(ctx, cfg, logging.New(&buf, "debug", "json"), true)
	require.NoError(t, err)
	defer func() { assert.NoError(t, closeFn(ctx)) }()

	u, err := s.Create(ctx, store.NewIdentity{Email: "secret@example.com", Name: "S", PasswordHash: "$2a$10$storeddigest"})
	require.NoError(t, err)
	require.NoError(t, s.UpdatePassword(ctx, u.ID, "$2a$10$replacementdigest"))

	out := buf.String()
	assert.Contains(t, out, "slow sql")
	assert.NotContains(t, out, "secret@example.com")
	assert.NotContains(t, out, "storeddigest")
	assert.NotContains(t, out, "replacementdigest")
}
