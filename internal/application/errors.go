package application

import (
	"errors"
	"fmt"

	"github.com/example/meal-access/internal/facematch"
	"github.com/example/meal-access/internal/persistence"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when no employee or record matches.
	ErrNotFound = errors.New("application: not found")
	// ErrVenueNotFound is returned when the target venue does not exist.
	ErrVenueNotFound = fmt.Errorf("%w: venue", ErrNotFound)
	// ErrAlreadyExists is returned when a unique identifier is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when login credentials do not match.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrSessionExpired is returned when a session is past its expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when a session was logged out.
	ErrSessionRevoked = errors.New("application: session revoked")
	// ErrReauthenticationRequired is returned when report access needs a fresh password check.
	ErrReauthenticationRequired = errors.New("application: reauthentication required")
	// ErrAccessDenied matches every *AccessDeniedError.
	ErrAccessDenied = errors.New("application: access denied")
	// ErrNoFaceDetected is returned when a photo contains no face.
	ErrNoFaceDetected = facematch.ErrNoFaceDetected
	// ErrMultipleFaces is returned when a photo contains more than one face.
	ErrMultipleFaces = facematch.ErrMultipleFaces
)

// DenialReason distinguishes business-rule denials.
type DenialReason string

const (
	// ReasonNotPermitted means the venue is not in the employee's permitted set.
	ReasonNotPermitted DenialReason = "not_permitted"
	// ReasonVenueExpiredOrUnconfigured means today is outside the venue window or the window is unset.
	ReasonVenueExpiredOrUnconfigured DenialReason = "venue_expired_or_unconfigured"
	// ReasonQuotaExceeded means the employee already used today's meals.
	ReasonQuotaExceeded DenialReason = "quota_exceeded"
)

// AccessDeniedError reports a gate failure together with the employee it concerns.
type AccessDeniedError struct {
	Reason       DenialReason
	EmployeeID   string
	EmployeeName string
	Venue        string
	Quota        int
}

// Error implements the error interface.
func (e *AccessDeniedError) Error() string {
	if e == nil {
		return ""
	}
	switch e.Reason {
	case ReasonNotPermitted:
		return fmt.Sprintf("access denied: %s is not permitted at %s", e.EmployeeName, e.Venue)
	case ReasonVenueExpiredOrUnconfigured:
		return fmt.Sprintf("access denied: venue %s is expired or has no validity window", e.Venue)
	case ReasonQuotaExceeded:
		return fmt.Sprintf("access denied: %s already reached the daily limit of %d meal(s)", e.EmployeeName, e.Quota)
	}
	return "access denied"
}

// Is lets errors.Is(err, ErrAccessDenied) match any denial.
func (e *AccessDeniedError) Is(target error) bool {
	return target == ErrAccessDenied
}

// DenialReasonOf extracts the denial reason from err, if any.
func DenialReasonOf(err error) (DenialReason, bool) {
	var denied *AccessDeniedError
	if errors.As(err, &denied) {
		return denied.Reason, true
	}
	return "", false
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %d field(s)", len(v.FieldErrors))
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

func fieldError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	}
	return err
}
