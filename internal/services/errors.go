// Package services defines the business logic for station presence, message
// relay, and statistics maintenance. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

var (
	// ErrStationActive indicates that another identity currently holds the
	// requested station code online.
	ErrStationActive = errors.New("station already active")

	// ErrNotLoggedIn is returned when the caller has no online presence row
	// for an operation that requires one, or logs out without ever having
	// logged in.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrMessageNotFound indicates that the requested message does not exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrEmptyStationCode is returned when a login or send names a blank
	// station code after normalization.
	ErrEmptyStationCode = errors.New("station code is empty")

	// ErrInvalidStatus is returned when a status update names a value outside
	// the Pending/Delivered/Failed set.
	ErrInvalidStatus = errors.New("invalid message status")
)
