// Package handlers defines HTTP-layer error codes used across all API
// endpoints. Codes are lowercase snake_case, stable, and supplement the
// human-readable message so clients can branch programmatically.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeNotLoggedIn      = "not_logged_in"
	ErrCodeStationActive    = "station_active"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
