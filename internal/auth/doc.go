// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package auth provides authentication primitives for Gatehouse.
//
// # Domain Types
//
// Domain types (User, Session) should be created using their
// constructors:
//   - NewUser - creates a User with a validated username and role
//   - NewSession - creates a Session bound to a user with an expiry
//
// Direct struct initialization bypasses validation and may create
// invalid state. Repository implementations receive pre-validated
// types from these constructors.
//
// # Services
//
// The Service type coordinates registration, login, logout and
// session identity resolution. The session Manager issues, resolves
// and destroys opaque session tokens; only the SHA-256 hash of a
// token is ever stored server-side.
package auth
