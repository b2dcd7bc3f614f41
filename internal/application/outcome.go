package application

import (
	"context"
	"errors"
)

// AuthorizationOutcome classifies the result of an authorization attempt for the caller.
type AuthorizationOutcome string

const (
	OutcomeAuthorized     AuthorizationOutcome = "authorized"
	OutcomeDenied         AuthorizationOutcome = "denied"
	OutcomeNotFound       AuthorizationOutcome = "not_found"
	OutcomeNoFaceDetected AuthorizationOutcome = "no_face_detected"
	OutcomeMultipleFaces  AuthorizationOutcome = "multiple_faces"
	OutcomeInvalidInput   AuthorizationOutcome = "invalid_input"
	OutcomeForbidden      AuthorizationOutcome = "forbidden"
	OutcomeSystemError    AuthorizationOutcome = "system_error"
)

// AuthorizationResult is the operator-facing view of an attempt.
type AuthorizationResult struct {
	Outcome      AuthorizationOutcome
	EmployeeName string
	Reason       DenialReason
	Event        *MealEvent
}

// Outcome maps an Authorize error onto the operator-facing outcomes. Every
// denial reason stays distinguishable through AuthorizationResult.Reason.
func Outcome(err error) AuthorizationOutcome {
	switch {
	case err == nil:
		return OutcomeAuthorized
	case errors.Is(err, ErrAccessDenied):
		return OutcomeDenied
	case errors.Is(err, ErrNoFaceDetected):
		return OutcomeNoFaceDetected
	case errors.Is(err, ErrMultipleFaces):
		return OutcomeMultipleFaces
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrUnauthorized):
		return OutcomeForbidden
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeSystemError
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return OutcomeInvalidInput
	}
	return OutcomeSystemError
}

// ResultOf builds the operator-facing result for an Authorize call.
func ResultOf(auth Authorization, err error) AuthorizationResult {
	result := AuthorizationResult{Outcome: Outcome(err)}
	if err == nil {
		event := auth.Event
		result.EmployeeName = auth.Employee.Name
		result.Event = &event
		return result
	}
	var denied *AccessDeniedError
	if errors.As(err, &denied) {
		result.Reason = denied.Reason
		result.EmployeeName = denied.EmployeeName
	}
	return result
}
