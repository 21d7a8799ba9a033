package httpx

import (
	"context"
	"net/http"
	"strings"

	"librarydesk/internal/identity"
	"librarydesk/internal/platform/crypto"
)

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(token string) (*crypto.Claims, error)
}

// RevocationList reports tokens ended by logout.
type RevocationList interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthMiddleware rejects requests without a valid, unrevoked bearer token and
// stores the caller's principal and claims in the request context. A nil
// revoked list skips the revocation check.
func AuthMiddleware(tokens TokenParser, revoked RevocationList) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
				return
			}

			claims, err := tokens.Parse(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
				return
			}

			if revoked != nil {
				gone, err := revoked.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					WriteError(w, r, err)
					return
				}
				if gone {
					JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
					return
				}
			}

			p := identity.Principal{UserID: claims.Subject, Role: claims.Role}
			ctx := context.WithValue(identity.WithPrincipal(r.Context(), p), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows the request through only when allowed reports true for the caller.
func RequireRole(allowed func(identity.Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed(PrincipalFrom(r)) {
				JSONError(w, r, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var (
	RequireAdmin = RequireRole(identity.Principal.IsAdmin)
	RequireStaff = RequireRole(identity.Principal.IsStaff)
)
