package httpx

import (
	"context"
	"net/http"

	"librarydesk/internal/identity"
	"librarydesk/internal/platform/crypto"
)

type contextKey string

const (
	requestIDKey contextKey = "requestID"
	claimsKey    contextKey = "claims"
)

// ContextWithRequestID returns a new context carrying the request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFrom retrieves the request ID from the request context.
func RequestIDFrom(r *http.Request) string {
	if v, ok := r.Context().Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// PrincipalFrom retrieves the authenticated caller.
func PrincipalFrom(r *http.Request) identity.Principal {
	return identity.FromContext(r.Context())
}

// UserIDFrom retrieves the user ID from the request context.
func UserIDFrom(r *http.Request) string {
	return PrincipalFrom(r).UserID
}

// ClaimsFrom returns the verified token claims, or nil outside AuthMiddleware.
func ClaimsFrom(r *http.Request) *crypto.Claims {
	c, _ := r.Context().Value(claimsKey).(*crypto.Claims)
	return c
}
