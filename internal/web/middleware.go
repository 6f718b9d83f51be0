// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web

import (
	"net/http"

	"github.com/gatehouse/gatehouse/internal/access"
	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/logging"
)

// withIdentity resolves the request's session token into an Identity
// and stores it in the request context. Requests without a resolvable
// session proceed anonymously; the access predicates decide what that
// means per route.
func (h *Handler) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)

		user, err := h.svc.CurrentIdentity(r.Context(), token)
		if err != nil {
			logging.LogError(h.logger, "identity resolution failed", err)
			h.writeError(w, err)
			return
		}

		ctx := access.WithIdentity(r.Context(), access.IdentityFromUser(user))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuthenticated denies anonymous requests with 401.
func (h *Handler) requireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := access.RequireAuthenticated(access.IdentityFromContext(r.Context())); err != nil {
			h.writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireRole denies requests whose identity lacks the role: 401 for
// anonymous callers, 403 for authenticated callers with the wrong role.
func (h *Handler) requireRole(role auth.Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := access.RequireRole(access.IdentityFromContext(r.Context()), role); err != nil {
			h.writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
