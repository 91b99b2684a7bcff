package envrig

import (
	"fmt"
	"strings"
)

// FieldError codes.
const (
	ErrCodeRequired     = "required"
	ErrCodeMin          = "min"
	ErrCodeMax          = "max"
	ErrCodeOneOf        = "oneof"
	ErrCodeInvalidType  = "invalid_type"
	ErrCodeUnknownKey   = "unknown_key"
	ErrCodeValidate     = "validate"
	ErrCodeDuplicateKey = "duplicate_key"
)

// FieldError is one problem with one field or key.
type FieldError struct {
	FieldPath string // "Database.Host", "Servers[0].Port", or a key in strict mode
	Code      string
	Message   string
}

// ValidationError collects every FieldError found by a single Load.
type ValidationError struct {
	FieldErrors []FieldError
}

func (e *ValidationError) Error() string {
	n := len(e.FieldErrors)
	if n == 0 {
		return "config validation failed: no errors"
	}

	noun := "errors"
	if n == 1 {
		noun = "error"
	}
	lines := make([]string, 0, n+1)
	lines = append(lines, fmt.Sprintf("config validation failed: %d %s", n, noun))
	for _, fe := range e.FieldErrors {
		lines = append(lines, fmt.Sprintf("  - %s: %s (%s)", fe.FieldPath, fe.Code, fe.Message))
	}
	return strings.Join(lines, "\n")
}
