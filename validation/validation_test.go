package validation

import (
	"strings"
	"testing"

	"github.com/kbukum/meetingflow/errors"
)

func TestValidatorRequired(t *testing.T) {
	v := New().Required("job_id", "  ")
	if !v.HasErrors() {
		t.Fatal("expected error for blank value")
	}
	if v.Errors()[0].Field != "job_id" {
		t.Errorf("unexpected field %q", v.Errors()[0].Field)
	}
	if New().Required("job_id", "j-1").HasErrors() {
		t.Error("expected no error for non-empty value")
	}
}

func TestValidatorOptionalUUID(t *testing.T) {
	if New().OptionalUUID("tenant_id", "").HasErrors() {
		t.Error("empty optional UUID must pass")
	}
	if !New().OptionalUUID("tenant_id", "nope").HasErrors() {
		t.Error("invalid UUID must fail")
	}
	if New().OptionalUUID("tenant_id", "123e4567-e89b-12d3-a456-426614174000").HasErrors() {
		t.Error("valid UUID must pass")
	}
}

func TestValidatorRange(t *testing.T) {
	tests := []struct {
		value float64
		ok    bool
	}{
		{0, true}, {0.58, true}, {1, true}, {-0.1, false}, {1.5, false},
	}
	for _, tt := range tests {
		if got := !New().Range("threshold", tt.value, 0, 1).HasErrors(); got != tt.ok {
			t.Errorf("value %v: expected ok=%v", tt.value, tt.ok)
		}
	}
}

func TestValidatorOneOfMinCustom(t *testing.T) {
	v := New().
		OneOf("format", "xml", []string{"json", "console"}).
		AtLeast("workers", 0, 1).
		Custom(false, "order", "must be a permutation")

	if len(v.Errors()) != 3 {
		t.Fatalf("expected 3 errors, got %v", v.Errors())
	}
	err := v.Err()
	if errors.CodeOf(err) != errors.ErrCodeInvalidInput {
		t.Errorf("expected invalid input code, got %s", errors.CodeOf(err))
	}
	if !strings.Contains(err.Error(), "order: must be a permutation") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestValidatorErrNilWhenValid(t *testing.T) {
	if err := New().Required("a", "b").Err(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

type descriptor struct {
	JobID   string   `json:"job_id" validate:"required"`
	Sources []string `json:"sources" validate:"required,min=1,dive,required"`
	Score   float64  `json:"score" validate:"gte=0,lte=1"`
}

func TestValidateStruct(t *testing.T) {
	if err := Validate(descriptor{JobID: "j", Sources: []string{"a.wav"}, Score: 0.5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := Validate(descriptor{Sources: []string{"a.wav", ""}, Score: 2})
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"job_id: is required", "sources[1]: is required", "score: must be less than or equal to 1"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}

	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatal("expected AppError")
	}
	if fields, ok := appErr.Details["fields"].([]FieldError); !ok || len(fields) != 3 {
		t.Errorf("expected 3 field errors, got %v", appErr.Details["fields"])
	}
}

func TestValidateStructEmptySources(t *testing.T) {
	err := Validate(descriptor{JobID: "j", Sources: []string{}})
	if err == nil || !strings.Contains(err.Error(), "sources: must contain at least 1 items") {
		t.Errorf("expected min error on sources, got %v", err)
	}
}
