package httpx

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/bizconnect/marketplace/internal/accounts"
)

type ctxKey struct{}

func withIdentity(ctx context.Context, id accounts.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the caller set by Authenticate.
func IdentityFrom(ctx context.Context) (accounts.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(accounts.Identity)
	return id, ok
}

// Authenticate requires a valid Bearer token.
func Authenticate(tokens *accounts.Tokens, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authorization header is missing"})
				return
			}
			raw := strings.TrimPrefix(header, "Bearer ")
			if raw == header {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token format"})
				return
			}
			id, err := tokens.Parse(raw)
			if err != nil {
				log.Debugw("invalid token", "error", err)
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token"})
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}

// RequireRole lets through callers holding one of roles.
func RequireRole(roles ...accounts.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok || !slices.Contains(roles, id.Role) {
				writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identity(r *http.Request) accounts.Identity {
	id, _ := IdentityFrom(r.Context())
	return id
}
