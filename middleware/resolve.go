package middleware

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/authlink"
)

// ResolveUser maps the principal stored by [RequireClaims] to its internal
// user ID, creating one on first sight, and stores it with
// authlink.WithUserID. It must run after RequireClaims or RequireAdmin.
func ResolveUser(engine *authlink.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			c := authlink.ClaimsFromContext(r.Context())
			userID, _, err := engine.ResolveUser(r.Context(), c, nil)
			switch {
			case err == nil:
			case errors.Is(err, authlink.ErrUnauthorized):
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			case errors.Is(err, authlink.ErrStoreUnavailable):
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			ctx := authlink.WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SignOutHandler expires the platform session cookies. It redirects to
// redirectTo with 303 when set and answers 204 otherwise.
func SignOutHandler(engine *authlink.Engine, redirectTo string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if engine != nil {
			engine.OnSessionDestroyed(r.Context(), w.Header())
		}
		if redirectTo != "" {
			http.Redirect(w, r, redirectTo, http.StatusSeeOther)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
