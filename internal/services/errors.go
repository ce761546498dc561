package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/validation"
)

// Errors returned by AccountService. The messages double as the wire codes.
var (
	ErrInvalidCredentials     = errors.New("invalid_credentials")
	ErrInvalidCurrentPassword = errors.New("invalid_current_password")
	ErrPasswordTooShort       = errors.New("password_too_short")
	ErrPasswordMismatch       = errors.New("password_mismatch")
	ErrDuplicateIdentity      = errors.New("duplicate_identity")
	ErrNotFound               = errors.New("not_found")
	ErrUnavailable            = errors.New("service_unavailable")

	ErrInvalidSession = auth.ErrInvalidSession
)

// ValidationError carries field-level violations.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f, code := range e.Violations {
		fields = append(fields, f+"="+code)
	}
	sort.Strings(fields)
	return fmt.Sprintf("validation_error: %s", strings.Join(fields, ", "))
}

func invalid(v validation.Violations) error {
	if v.Empty() {
		return nil
	}
	return &ValidationError{Violations: v}
}
