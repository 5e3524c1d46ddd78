// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service/transport layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated indicates a missing, invalid or expired identity where one is required.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnauthorized indicates a valid identity without sufficient privilege.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyExists indicates a unique constraint violation (email or provider id taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrProvider indicates an upstream OAuth exchange or profile fetch failed.
	ErrProvider = errors.New("identity provider error")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("validation")
)
