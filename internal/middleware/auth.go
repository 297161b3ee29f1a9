package middleware

import (
	"net/http"

	"github.com/ciipa/plataforma/internal/auth"
	"github.com/ciipa/plataforma/internal/store"
)

// SessionCookieName is the persistent login cookie.
const SessionCookieName = "ciipa_session"

// RequireAuth validates the session cookie, resolves the user, and attaches
// an immutable Identity to the request context.
func RequireAuth(sessionStore *store.SessionStore, userStore *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			sess, err := sessionStore.GetByToken(cookie.Value)
			if err != nil || sess == nil {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			user, err := userStore.GetByID(sess.UserID)
			if err != nil || user == nil {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			id := auth.Identity{
				UserID:       user.ID,
				Email:        user.Email,
				Role:         user.Role,
				SessionToken: sess.Token,
			}

			ctx := auth.WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin evaluates the admin authorization decision. A denied request
// is sent to the role-appropriate landing page instead of a 403, preserving
// the site's browser-first UX.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d := auth.Authorize(r.Context(), "admin"); !d.Allowed {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
