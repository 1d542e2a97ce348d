package middleware

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/authlink"
)

// RequireClaims rejects requests that carry no signed-in principal. An
// expired session also has its platform cookies expired so the browser
// signs in again.
func RequireClaims(engine *authlink.Engine) func(http.Handler) http.Handler {
	return guard(engine, false)
}

// RequireAdmin is [RequireClaims] plus a 403 for non-admin principals.
func RequireAdmin(engine *authlink.Engine) func(http.Handler) http.Handler {
	return guard(engine, true)
}

func guard(engine *authlink.Engine, admin bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			c := authlink.ClaimsFromContext(r.Context())
			if c == nil {
				var err error
				c, err = engine.CurrentClaims(r)
				switch {
				case err == nil:
				case errors.Is(err, authlink.ErrStaleSession):
					engine.OnSessionDestroyed(r.Context(), w.Header())
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				case errors.Is(err, authlink.ErrInvalidSession):
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				default:
					http.Error(w, "internal error", http.StatusInternalServerError)
					return
				}
			}
			if c == nil || c.AuthID == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if admin && !c.IsAdmin {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := authlink.WithClaims(r.Context(), c)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
