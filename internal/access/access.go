// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package access provides authorization predicates for Gatehouse.
//
// The predicates are pure: they evaluate an Identity that the caller
// has already resolved and perform no I/O. The transport boundary
// decides how a deny decision maps to a user-visible response.
package access

import (
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// Authorization errors. ErrForbidden is distinct from
// ErrUnauthenticated: the caller is known but holds the wrong role.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient privileges")
)

// Identity is the resolved caller of a request. The zero value is
// anonymous.
type Identity struct {
	UserID   ulid.ULID
	Username string
	Role     auth.Role
}

// IdentityFromUser builds an Identity from a resolved user. A nil user
// yields the anonymous Identity.
func IdentityFromUser(user *auth.User) Identity {
	if user == nil {
		return Identity{}
	}
	return Identity{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}
}

// IsAnonymous reports whether the identity is unauthenticated.
func (i Identity) IsAnonymous() bool {
	return i.UserID.Compare(ulid.ULID{}) == 0
}

// RequireAuthenticated denies anonymous identities.
func RequireAuthenticated(identity Identity) error {
	if identity.IsAnonymous() {
		return oops.Code("ACCESS_UNAUTHENTICATED").Wrap(ErrUnauthenticated)
	}
	return nil
}

// RequireRole denies identities that do not hold the given role.
// Admins satisfy every role check. Anonymous identities get
// ErrUnauthenticated, authenticated-but-wrong-role gets ErrForbidden.
func RequireRole(identity Identity, role auth.Role) error {
	if err := RequireAuthenticated(identity); err != nil {
		return err
	}
	if identity.Role == role || identity.Role == auth.RoleAdmin {
		return nil
	}
	return oops.Code("ACCESS_FORBIDDEN").
		With("required_role", string(role)).
		With("role", string(identity.Role)).
		Wrap(ErrForbidden)
}
