package application

import (
	"errors"
	"fmt"
	"testing"

	"github.com/example/meal-access/internal/persistence"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "validation failed" {
		t.Fatalf("expected generic message for nil error, got %q", err.Error())
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"field": "invalid", "other": "bad"}}
	if got := withFields.Error(); got != "validation failed: 2 field(s)" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	var nilErr *ValidationError
	if nilErr.HasErrors() {
		t.Fatalf("expected nil error to report no issues")
	}
	if (&ValidationError{}).HasErrors() {
		t.Fatalf("expected HasErrors to report false for empty error")
	}
	if !fieldError("field", "bad").HasErrors() {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestAccessDeniedError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reason DenialReason
		want   string
	}{
		{ReasonNotPermitted, "access denied: Ana is not permitted at Central"},
		{ReasonVenueExpiredOrUnconfigured, "access denied: venue Central is expired or has no validity window"},
		{ReasonQuotaExceeded, "access denied: Ana already reached the daily limit of 2 meal(s)"},
		{"other", "access denied"},
	}

	for _, tt := range tests {
		err := fmt.Errorf("wrapped: %w", &AccessDeniedError{Reason: tt.reason, EmployeeName: "Ana", Venue: "Central", Quota: 2})
		if !errors.Is(err, ErrAccessDenied) {
			t.Fatalf("expected %s to match ErrAccessDenied", tt.reason)
		}
		if got := errors.Unwrap(err).Error(); got != tt.want {
			t.Fatalf("reason %s: got %q want %q", tt.reason, got, tt.want)
		}
		if reason, ok := DenialReasonOf(err); !ok || reason != tt.reason {
			t.Fatalf("expected reason %s, got %s (%v)", tt.reason, reason, ok)
		}
	}

	if _, ok := DenialReasonOf(ErrNotFound); ok {
		t.Fatal("expected no reason for unrelated error")
	}
}

func TestMapRepoError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   error
		want error
	}{
		{nil, nil},
		{persistence.ErrNotFound, ErrNotFound},
		{fmt.Errorf("get: %w", persistence.ErrNotFound), ErrNotFound},
		{fmt.Errorf("insert: %w", persistence.ErrDuplicate), ErrAlreadyExists},
		{ErrAlreadyExists, ErrAlreadyExists},
		{errStub, errStub},
	}
	for _, tt := range tests {
		if got := mapRepoError(tt.in); !errors.Is(got, tt.want) || (tt.want == nil && got != nil) {
			t.Fatalf("mapRepoError(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
