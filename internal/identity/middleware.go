package identity

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/meridian-consulting/meridian-auth/internal/platform/httpx"
)

// AuthContext identifies the authenticated caller of a request.
type AuthContext struct {
	AccountID string
	Email     string
	Token     string
}

type authContextKey struct{}

// ContextWithAuth stores the auth context in the request context.
func ContextWithAuth(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// AuthFromContext extracts the auth context, or nil for anonymous requests.
func AuthFromContext(ctx context.Context) *AuthContext {
	ac, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return ac
}

// RequireAuth rejects requests without a valid bearer token and stores the
// resolved auth context for downstream handlers.
func (s *Service) RequireAuth(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			claims, err := s.Authenticate(r.Context(), token)
			if err != nil {
				if err != ErrTokenUnknown && logger != nil {
					logger.Error("authenticate token", slog.Any("error", err))
				}
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			ctx := ContextWithAuth(r.Context(), &AuthContext{
				AccountID: claims.AccountID,
				Email:     claims.Email,
				Token:     token,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
