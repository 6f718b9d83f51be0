// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import "errors"

// Sentinel errors for the authentication taxonomy. Services wrap these
// with oops codes for structured context; callers match with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateUsername is returned when a registration collides
	// with an existing username.
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrValidation is returned when registration input fails shape
	// validation.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCredentials is returned for both unknown usernames and
	// wrong passwords. The two cases must stay indistinguishable to
	// callers.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrAccountDeactivated is returned when credentials verify but the
	// account has been deactivated.
	ErrAccountDeactivated = errors.New("account is deactivated")
)
