// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package access

import "context"

type identityKey struct{}

// WithIdentity returns a context carrying the resolved identity.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext extracts the identity stored by WithIdentity.
// Returns the anonymous Identity when none was stored.
func IdentityFromContext(ctx context.Context) Identity {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	if !ok {
		return Identity{}
	}
	return identity
}
