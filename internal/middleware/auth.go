package middleware

import (
	"context"
	"net/http"
	"strings"

	"sellora-core/internal/user"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller as carried through request context.
type Identity struct {
	UserID   uint
	Email    string
	Role     user.Role
	SellerID *string
}

func (id Identity) IsAdmin() bool  { return id.Role == user.RoleAdmin }
func (id Identity) IsSeller() bool { return id.Role == user.RoleSeller && id.SellerID != nil }

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the caller identity, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// RequireAuth rejects requests without a valid bearer token and injects the
// parsed identity into the request context.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := user.ParseJWT(jwtSecret, tokenStr)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			id := Identity{
				UserID:   claims.UserID,
				Email:    claims.Email,
				Role:     user.Role(claims.Role),
				SellerID: claims.SellerID,
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
