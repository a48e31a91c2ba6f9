package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/dukerupert/listacompra/internal/apperror"
	"github.com/dukerupert/listacompra/internal/auth"
	"github.com/dukerupert/listacompra/internal/session"
	"golang.org/x/crypto/bcrypt"
)

const (
	SessionCookieName = "listacompra_session"
	// MarkerCookieName holds the last room id so a session can be restored.
	MarkerCookieName = "auth_room_id"
)

// RequireRoom validates the session cookie and populates AuthContext.
func RequireRoom(registry *session.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				apperror.WriteJSON(w, apperror.ErrUnauthenticated)
				return
			}

			sess, ok := registry.Get(cookie.Value)
			if !ok || sess.State != session.StateAuthenticated {
				apperror.WriteJSON(w, apperror.ErrUnauthenticated)
				return
			}

			ac := auth.AuthContext{
				RoomID: sess.RoomID,
				UID:    sess.UID,
				Token:  sess.Token,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// RequireAdmin checks HTTP basic credentials against the configured user and
// bcrypt password hash. With no hash configured every request is refused.
func RequireAdmin(username, passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if passwordHash == "" {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			user, pass, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
				bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(pass)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="listacompra admin"`)
				apperror.WriteJSON(w, apperror.ErrUnauthenticated)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
