package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the coarse authorization level of an account.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleSales   Role = "sales"
	RoleUser    Role = "user"
)

// Roles lists every assignable role, most privileged first.
var Roles = []Role{RoleAdmin, RoleManager, RoleSales, RoleUser}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

const (
	DefaultTimezone = "UTC"
	DefaultLanguage = "en"
)

// NormalizeEmail trims and lowercases an address. It is idempotent.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// User represents one account. It is the identity record behind every session.
type User struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Email          string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name           string     `gorm:"size:255;not null" json:"name"`
	PasswordHash   string     `gorm:"column:password;size:255;not null" json:"-"` // bcrypt digest, never exposed in JSON
	Role           Role       `gorm:"size:20;not null;default:user" json:"role"`
	FirstName      string     `gorm:"size:100" json:"first_name,omitempty"`
	LastName       string     `gorm:"size:100" json:"last_name,omitempty"`
	JobTitle       string     `gorm:"size:150" json:"job_title,omitempty"`
	Phone          string     `gorm:"size:50" json:"phone,omitempty"`
	Timezone       string     `gorm:"size:64;default:UTC" json:"timezone"`
	Language       string     `gorm:"size:10;default:en" json:"language"`
	ProfileImage   string     `gorm:"size:512" json:"profile_image,omitempty"`
	Active         bool       `gorm:"not null;default:true" json:"active"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	SessionVersion int        `gorm:"not null;default:0" json:"-"`
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// SubjectID identifies the account as an authorization resource.
func (u *User) SubjectID() string { return u.ID }

// ApplyDefaults fills the profile fields that have documented defaults.
func (u *User) ApplyDefaults() {
	if u.Timezone == "" {
		u.Timezone = DefaultTimezone
	}
	if u.Language == "" {
		u.Language = DefaultLanguage
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
}

// PublicUser is the registration/listing view of an account.
type PublicUser struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	Active    bool       `json:"active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Public strips everything but identity fields.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Active:    u.Active,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}
