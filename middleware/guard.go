package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the claims placed by Guard or RequireToken.
func ClaimsFromContext(ctx context.Context) (*goSession.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*goSession.Claims)
	return claims, ok
}

// Guard rejects requests without a valid bearer credential. Accepted
// requests refresh the subject's presence marker and last-activity time.
//
// Authentication failures answer 401. A backend error under the
// fail-closed policy answers 503.
func Guard(engine *goSession.Engine) func(http.Handler) http.Handler {
	return guard(engine, engine.Authenticate)
}

// RequireToken is Guard without the presence writes.
func RequireToken(engine *goSession.Engine) func(http.Handler) http.Handler {
	return guard(engine, engine.ValidateToken)
}

func guard(engine *goSession.Engine, check func(context.Context, string) (*goSession.Claims, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := goSession.WithClientIP(r.Context(), ClientIP(r))
			claims, err := check(ctx, token)
			if err != nil {
				if errors.Is(err, goSession.ErrBackendUnavailable) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the credential from an "Authorization: Bearer <t>"
// header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
