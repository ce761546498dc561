package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newPostgresMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewGormStore(db), mock
}

func TestGormStorePostgres_FindByEmailDriverError(t *testing.T) {
	s, mock := newPostgresMockStore(t)
	down := errors.New("connection refused")
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).WillReturnError(down)

	_, err := s.FindByEmail(context.Background(), "Alice@Example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, down)
	assert.NotErrorIs(t, err, ErrNotFound, "an unreachable store is not an absent identity")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStorePostgres_FindByEmailNoRows(t *testing.T) {
	s, mock := newPostgresMockStore(t)
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}))

	_, err := s.FindByEmail(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStorePostgres_UpdatePasswordNoRow(t *testing.T) {
	s, mock := newPostgresMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := s.UpdatePassword(context.Background(), "missing", "$2a$10$x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStorePostgres_Ping(t *testing.T) {
	s, _ := newPostgresMockStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
