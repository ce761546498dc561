package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/go-crm/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the SQL credential store (PostgreSQL in production, SQLite in
// tests and local dev).
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore wraps an open connection pool. The caller owns its lifecycle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// AutoMigrate creates or updates the tables this store needs.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&models.User{}, &models.BootstrapClaim{}, &models.NotificationSettings{})
}

func (s *GormStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "store.FindByEmail"

	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).Take(&u).Error
	if err != nil {
		return nil, translate(op, err)
	}
	return &u, nil
}

func (s *GormStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	const op = "store.FindByID"

	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error; err != nil {
		return nil, translate(op, err)
	}
	return &u, nil
}

// Create inserts the identity inside a transaction. The first-admin promotion
// is decided by inserting the unique bootstrap claim: concurrent first
// registrations block on the claim's key and only one of them wins.
func (s *GormStore) Create(ctx context.Context, in NewIdentity) (*models.User, error) {
	const op = "store.Create"

	u := models.User{
		Email:        models.NormalizeEmail(in.Email),
		Name:         in.Name,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Active:       true,
	}
	u.ApplyDefaults()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.User{}).Where("email = ?", u.Email).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrDuplicateIdentity
		}

		if in.Role == "" {
			admin, err := s.claimFirstAdmin(tx, &u)
			if err != nil {
				return err
			}
			if admin {
				u.Role = models.RoleAdmin
			}
		}

		return tx.Create(&u).Error
	})
	if err != nil {
		return nil, translate(op, err)
	}
	return withoutHash(&u), nil
}

func (s *GormStore) claimFirstAdmin(tx *gorm.DB, u *models.User) (bool, error) {
	var existing int64
	if err := tx.Model(&models.User{}).Count(&existing).Error; err != nil {
		return false, err
	}
	if existing > 0 {
		return false, nil
	}
	if u.ID == "" {
		if err := u.BeforeCreate(tx); err != nil {
			return false, err
		}
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.BootstrapClaim{
		Name:      models.FirstAdminClaim,
		UserID:    u.ID,
		ClaimedAt: s.now().UTC(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	const op = "store.UpdateProfile"

	cols := upd.Columns()
	if len(cols) == 0 {
		return s.FindByID(ctx, id)
	}

	var u models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if email, ok := cols["email"]; ok {
			var taken int64
			if err := tx.Model(&models.User{}).Where("email = ? AND id <> ?", email, id).Count(&taken).Error; err != nil {
				return err
			}
			if taken > 0 {
				return ErrDuplicateIdentity
			}
		}
		res := tx.Model(&models.User{}).Where("id = ?", id).Updates(cols)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("id = ?", id).Take(&u).Error
	})
	if err != nil {
		return nil, translate(op, err)
	}
	return &u, nil
}

func (s *GormStore) UpdatePassword(ctx context.Context, id, hash string) error {
	return s.updateColumns(ctx, "store.UpdatePassword", id, map[string]any{"password": hash})
}

func (s *GormStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.updateColumns(ctx, "store.TouchLastLogin", id, map[string]any{"last_login": at})
}

func (s *GormStore) SetRole(ctx context.Context, id string, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("store.SetRole: invalid role %q", role)
	}
	return s.updateColumns(ctx, "store.SetRole", id, map[string]any{"role": role})
}

func (s *GormStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.updateColumns(ctx, "store.SetActive", id, map[string]any{"active": active})
}

func (s *GormStore) BumpSessionVersion(ctx context.Context, id string) (int, error) {
	const op = "store.BumpSessionVersion"

	var u models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", id).
			Update("session_version", gorm.Expr("session_version + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Select("session_version").Where("id = ?", id).Take(&u).Error
	})
	if err != nil {
		return 0, translate(op, err)
	}
	return u.SessionVersion, nil
}

func (s *GormStore) updateColumns(ctx context.Context, op, id string, cols map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return translate(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return translate(op, ErrNotFound)
	}
	return nil
}

func (s *GormStore) List(ctx context.Context) ([]models.User, error) {
	const op = "store.List"

	var users []models.User
	if err := s.db.WithContext(ctx).Omit("password").Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, translate(op, err)
	}
	return users, nil
}

func (s *GormStore) NotificationSettings(ctx context.Context, userID string) (*models.NotificationSettings, error) {
	const op = "store.NotificationSettings"

	var ns models.NotificationSettings
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&ns).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultNotificationSettings(userID), nil
	}
	if err != nil {
		return nil, translate(op, err)
	}
	return &ns, nil
}

func (s *GormStore) SaveNotificationSettings(ctx context.Context, ns *models.NotificationSettings) error {
	const op = "store.SaveNotificationSettings"

	ns.UpdatedAt = s.now().UTC()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(ns).Error
	if err != nil {
		return translate(op, err)
	}
	return nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("store.Ping: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("store.Ping: %w", err)
	}
	return nil
}

// translate maps gorm errors onto the store's sentinels and tags the rest
// with the operation name.
func translate(op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, ErrDuplicateIdentity), errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateIdentity
	}
	return fmt.Errorf("%s: %w", op, err)
}
