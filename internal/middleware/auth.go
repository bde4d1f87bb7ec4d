package middleware

import (
	"net/http"

	"github.com/ayush/estate-marketplace/internal/apierror"
	"github.com/ayush/estate-marketplace/internal/auth"
)

// TokenValidator verifies session tokens.
type TokenValidator interface {
	Validate(token string) (auth.Identity, error)
}

// RequireAuth is middleware that validates the session cookie and injects
// the caller's identity into the request context. A missing cookie is 401;
// any invalid token is 403 with one generic message.
func RequireAuth(tokens TokenValidator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				apierror.Write(w, r, apierror.Unauthenticated("No token, authorization denied"))
				return
			}

			id, err := tokens.Validate(cookie.Value)
			if err != nil {
				apierror.Write(w, r, apierror.Forbidden("Unauthorized access"))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}
