package services

import (
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/validation"
	"golang.org/x/text/language"
)

const (
	maxNameLen  = 255
	maxEmailLen = 255
	maxFieldLen = 150
	maxImageLen = 512
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r RegisterRequest) Validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("name", r.Name, v)
	validation.MaxLength("name", r.Name, maxNameLen, v)
	validation.Required("email", r.Email, v)
	validation.Email("email", r.Email, v)
	validation.MaxLength("email", r.Email, maxEmailLen, v)
	validatePassword("password", r.Password, v)
	return v
}

func validatePassword(field, pw string, v validation.Violations) {
	validation.Required(field, pw, v)
	validation.MinLength(field, pw, auth.MinPasswordLength, v)
	validation.MaxLength(field, pw, auth.MaxPasswordBytes, v)
}

// InviteRequest is an admin-created account with an explicit role.
type InviteRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

func (r InviteRequest) Validate() validation.Violations {
	v := RegisterRequest{Name: r.Name, Email: r.Email, Password: r.Password}.Validate()
	validation.Required("role", string(r.Role), v)
	validation.OneOf("role", string(r.Role), roleNames(), v)
	return v
}

func roleNames() []string {
	names := make([]string, len(models.Roles))
	for i, r := range models.Roles {
		names[i] = string(r)
	}
	return names
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// UpdateProfileRequest is a partial update: absent (nil) fields are kept.
// First name, last name and email may be omitted but not blanked.
type UpdateProfileRequest struct {
	Name         *string `json:"name,omitempty"`
	FirstName    *string `json:"firstName,omitempty"`
	LastName     *string `json:"lastName,omitempty"`
	Email        *string `json:"email,omitempty"`
	JobTitle     *string `json:"jobTitle,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Timezone     *string `json:"timezone,omitempty"`
	Language     *string `json:"language,omitempty"`
	ProfileImage *string `json:"profileImage,omitempty"`
}

func (r UpdateProfileRequest) Validate() validation.Violations {
	v := validation.Violations{}
	required := func(field string, val *string, max int) {
		if val == nil {
			return
		}
		validation.Required(field, *val, v)
		validation.MaxLength(field, *val, max, v)
	}
	required("name", r.Name, maxNameLen)
	required("firstName", r.FirstName, maxFieldLen)
	required("lastName", r.LastName, maxFieldLen)
	required("email", r.Email, maxEmailLen)
	if r.Email != nil {
		validation.Email("email", *r.Email, v)
	}
	if r.JobTitle != nil {
		validation.MaxLength("jobTitle", *r.JobTitle, maxFieldLen, v)
	}
	if r.Phone != nil {
		validation.MaxLength("phone", *r.Phone, 50, v)
	}
	if r.Timezone != nil && *r.Timezone != "" {
		if _, err := time.LoadLocation(*r.Timezone); err != nil {
			v.Add("timezone", "invalid_choice")
		}
	}
	if r.Language != nil && *r.Language != "" {
		if _, err := language.Parse(*r.Language); err != nil || len(*r.Language) > 10 {
			v.Add("language", "invalid_choice")
		}
	}
	if r.ProfileImage != nil {
		validation.MaxLength("profileImage", *r.ProfileImage, maxImageLen, v)
	}
	return v
}

func (r UpdateProfileRequest) update() models.ProfileUpdate {
	trim := func(s *string) *string {
		if s == nil {
			return nil
		}
		t := strings.TrimSpace(*s)
		return &t
	}
	return models.ProfileUpdate{
		Name:         trim(r.Name),
		Email:        r.Email,
		FirstName:    trim(r.FirstName),
		LastName:     trim(r.LastName),
		JobTitle:     trim(r.JobTitle),
		Phone:        trim(r.Phone),
		Timezone:     trim(r.Timezone),
		Language:     trim(r.Language),
		ProfileImage: trim(r.ProfileImage),
	}
}

type NotificationSettingsRequest struct {
	EmailNotifications  models.EmailNotifications  `json:"emailNotifications"`
	SystemNotifications models.SystemNotifications `json:"systemNotifications"`
	Frequency           models.Frequency           `json:"notificationFrequency"`
}

func (r NotificationSettingsRequest) Validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("notificationFrequency", string(r.Frequency), v)
	if r.Frequency != "" && !r.Frequency.Valid() {
		v.Add("notificationFrequency", "invalid_choice")
	}
	return v
}

// SessionUpdate lists the profile snapshot fields a session refresh may change.
type SessionUpdate = auth.ProfileSnapshotUpdate

// sessionFields renames profile violations to the session update's keys.
var sessionFields = map[string]string{"jobTitle": "job_title", "profileImage": "avatar"}

func validateSessionUpdate(upd SessionUpdate) validation.Violations {
	pv := UpdateProfileRequest{
		Name:         upd.Name,
		Email:        upd.Email,
		JobTitle:     upd.JobTitle,
		Timezone:     upd.Timezone,
		Language:     upd.Language,
		ProfileImage: upd.Avatar,
	}.Validate()
	v := validation.Violations{}
	for field, code := range pv {
		if k, ok := sessionFields[field]; ok {
			field = k
		}
		v.Add(field, code)
	}
	return v
}
