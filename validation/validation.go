package validation

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Violations maps a field name to a machine-readable violation code.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Add records a violation unless the field already has one.
func (v Violations) Add(field, code string) {
	if _, exists := v[field]; !exists {
		v[field] = code
	}
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required")
	}
}

// Email checks for a bare address (no display name).
func Email(field, value string, v Violations) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		v.Add(field, "invalid_email")
	}
}

func MinLength(field, value string, min int, v Violations) {
	if value != "" && utf8.RuneCountInString(value) < min {
		v.Add(field, "too_short")
	}
}

func MaxLength(field, value string, max int, v Violations) {
	if len(value) > max {
		v.Add(field, "too_long")
	}
}

// OneOf checks value against an allow-list. Empty values are left to Required.
func OneOf(field, value string, allowed []string, v Violations) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.Add(field, "invalid_choice")
}
