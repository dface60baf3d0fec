package model

import "errors"

var (
	// ErrAuthentication is returned for a missing, invalid or expired connection token.
	ErrAuthentication = errors.New("authentication failed")
	// ErrDirectoryUnavailable wraps presence store I/O failures.
	ErrDirectoryUnavailable = errors.New("presence directory unavailable")
	// ErrBusUnavailable wraps publish/subscribe failures.
	ErrBusUnavailable = errors.New("notification bus unavailable")
	// ErrDelivery is returned when an emit to a resolved handle fails.
	ErrDelivery = errors.New("delivery failed")
	// ErrValidation is returned for malformed ingress requests.
	ErrValidation = errors.New("validation failed")

	ErrHandleNotFound = errors.New("handle not found")
	ErrNotOwned       = errors.New("handle is owned by another node")
)
