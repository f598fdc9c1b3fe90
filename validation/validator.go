package validation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/kbukum/meetingflow/errors"
)

// FieldError is one failed rule. A list of them travels in the
// AppError details under "fields".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator accumulates FieldErrors from chained checks.
type Validator struct {
	fields []FieldError
}

func New() *Validator { return &Validator{} }

func (v *Validator) AddError(field, message string) *Validator {
	v.fields = append(v.fields, FieldError{Field: field, Message: message})
	return v
}

// Custom fails field with message unless ok.
func (v *Validator) Custom(ok bool, field, message string) *Validator {
	if !ok {
		v.AddError(field, message)
	}
	return v
}

func (v *Validator) Required(field, value string) *Validator {
	return v.Custom(strings.TrimSpace(value) != "", field, "is required")
}

// OptionalUUID accepts an empty value.
func (v *Validator) OptionalUUID(field, value string) *Validator {
	if value == "" {
		return v
	}
	_, err := uuid.Parse(value)
	return v.Custom(err == nil, field, "must be a valid UUID")
}

func (v *Validator) AtLeast(field string, value, lo int) *Validator {
	return v.Custom(value >= lo, field, fmt.Sprintf("must be at least %d", lo))
}

// Range is inclusive on both ends.
func (v *Validator) Range(field string, value, lo, hi float64) *Validator {
	return v.Custom(value >= lo && value <= hi, field, fmt.Sprintf("must be between %g and %g", lo, hi))
}

// OneOf accepts an empty value.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	if value == "" {
		return v
	}
	return v.Custom(slices.Contains(allowed, value), field, "must be one of: "+strings.Join(allowed, ", "))
}

func (v *Validator) HasErrors() bool { return len(v.fields) > 0 }

func (v *Validator) Errors() []FieldError { return v.fields }

// Err returns nil or an invalid-input AppError listing every failure.
func (v *Validator) Err() error {
	if len(v.fields) == 0 {
		return nil
	}
	parts := make([]string, 0, len(v.fields))
	for _, f := range v.fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	appErr := errors.Validation(strings.Join(parts, "; "))
	appErr.Details = map[string]any{"fields": v.fields}
	return appErr
}
