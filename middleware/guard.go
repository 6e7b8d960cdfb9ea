package middleware

import (
	"context"
	"net/http"
	"strings"

	rotauth "github.com/rotauth/rotauth"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the validated identity injected by [Guard].
func AuthResultFromContext(ctx context.Context) (*rotauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*rotauth.AuthResult)
	return res, ok
}

// Guard returns middleware that requires a valid bearer access token on
// every request. The validated [rotauth.AuthResult] is injected into the
// request context; the client IP is attached so downstream Engine calls
// rate-limit on the right key.
func Guard(engine *rotauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := rotauth.WithClientIP(r.Context(), ClientIP(r))

			res, err := engine.ValidateAccess(ctx, token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
