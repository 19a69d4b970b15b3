// Package errors provides coded domain errors for the simulation.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Input errors
	CodeValidation Code = "VALIDATION_ERROR"

	// Lookup errors
	CodeNotFound Code = "NOT_FOUND"

	// Business preconditions
	CodePrecondition       Code = "PRECONDITION_FAILED"
	CodeCooldownActive     Code = "COOLDOWN_ACTIVE"
	CodeRequirementsNotMet Code = "REQUIREMENTS_NOT_MET"
	CodeLeadLocked         Code = "LEAD_LOCKED"
	CodeInvalidTransition  Code = "INVALID_TRANSITION"

	// Transport errors
	CodeRateLimited Code = "RATE_LIMITED"

	// Infrastructure errors
	CodeInternal Code = "INTERNAL"
)

// IsPrecondition reports whether the code describes a request that was well
// formed but cannot be carried out against the current state.
func (c Code) IsPrecondition() bool {
	switch c {
	case CodePrecondition, CodeCooldownActive, CodeRequirementsNotMet, CodeLeadLocked, CodeInvalidTransition:
		return true
	}
	return false
}

// HTTPStatus maps the code to a response status.
func (c Code) HTTPStatus() int {
	switch {
	case c == CodeValidation:
		return http.StatusBadRequest
	case c == CodeNotFound:
		return http.StatusNotFound
	case c.IsPrecondition():
		return http.StatusConflict
	case c == CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
