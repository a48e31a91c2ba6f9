package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/listacompra/internal/middleware"
	"github.com/dukerupert/listacompra/internal/session"
)

// cookieMarker keeps the last room id in a signed cookie that lasts for the
// browser session. A value that fails verification counts as no marker.
type cookieMarker struct {
	w        http.ResponseWriter
	signer   *session.MarkerSigner
	roomID   string
	set      bool
	rejected bool
	secure   bool
	logger   *slog.Logger
}

func (h *SessionHandler) marker(w http.ResponseWriter, r *http.Request) *cookieMarker {
	m := &cookieMarker{w: w, signer: h.signer, secure: h.secure, logger: h.logger}
	if c, err := r.Cookie(middleware.MarkerCookieName); err == nil && c.Value != "" {
		if roomID, ok := h.signer.Verify(c.Value); ok {
			m.roomID, m.set = roomID, true
		} else {
			m.rejected = true
		}
	}
	return m
}

func (m *cookieMarker) RoomID() (string, bool) {
	return m.roomID, m.set
}

func (m *cookieMarker) Set(roomID string) {
	m.roomID, m.set = roomID, true
	value, err := m.signer.Sign(roomID)
	if err != nil {
		m.logger.Error("set marker", "room", roomID, "error", err)
		return
	}
	http.SetCookie(m.w, &http.Cookie{
		Name:     middleware.MarkerCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *cookieMarker) Clear() {
	m.roomID, m.set = "", false
	http.SetCookie(m.w, &http.Cookie{
		Name:     middleware.MarkerCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type SessionHandler struct {
	auth     *session.Authenticator
	registry *session.Registry
	signer   *session.MarkerSigner
	secure   bool
	restore  http.Handler
	logger   *slog.Logger
}

func NewSessionHandler(auth *session.Authenticator, registry *session.Registry, signer *session.MarkerSigner, secureCookies bool, logger *slog.Logger) *SessionHandler {
	h := &SessionHandler{auth: auth, registry: registry, signer: signer, secure: secureCookies, logger: logger}
	h.restore = http.HandlerFunc(h.restoreSession)
	return h
}

// LimitRestore wraps the marker restore path, which runs only when a request
// without a live session carries a marker cookie.
func (h *SessionHandler) LimitRestore(mw func(http.Handler) http.Handler) {
	h.restore = mw(h.restore)
}

type loginRequest struct {
	Code string `json:"code" validate:"required,len=4,numeric"`
}

type sessionResponse struct {
	State  session.State `json:"state"`
	RoomID string        `json:"room_id,omitempty"`
}

// Get returns the current session, restoring it from the marker cookie when
// the session cookie is missing or stale.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.current(r); ok {
		writeJSON(w, http.StatusOK, sessionResponse{State: s.State, RoomID: s.RoomID})
		return
	}
	if c, err := r.Cookie(middleware.MarkerCookieName); err != nil || c.Value == "" {
		writeJSON(w, http.StatusOK, sessionResponse{State: session.StateLoggedOut})
		return
	}
	h.restore.ServeHTTP(w, r)
}

func (h *SessionHandler) restoreSession(w http.ResponseWriter, r *http.Request) {
	marker := h.marker(w, r)
	if marker.rejected {
		h.logger.Warn("rejected marker cookie", "ip", middleware.RealIP(r))
		marker.Clear()
	}

	s, err := h.auth.Restore(r.Context(), marker)
	if err != nil {
		h.logger.Warn("restore session", "error", err)
		writeError(w, err)
		return
	}
	if s == nil {
		writeJSON(w, http.StatusOK, sessionResponse{State: session.StateLoggedOut})
		return
	}
	if err := h.start(w, s); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{State: s.State, RoomID: s.RoomID})
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if prev, ok := h.current(r); ok {
		h.registry.Remove(prev.Token)
		h.auth.End(r.Context(), prev)
	}

	marker := h.marker(w, r)
	s, err := h.auth.Login(r.Context(), req.Code, marker)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.start(w, s); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{State: s.State, RoomID: s.RoomID})
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	marker := h.marker(w, r)
	if s, ok := h.current(r); ok {
		h.registry.Remove(s.Token)
		h.auth.Logout(r.Context(), &s, marker)
	} else {
		h.auth.Logout(r.Context(), nil, marker)
	}
	h.setSessionCookie(w, "", -1)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) current(r *http.Request) (session.Session, bool) {
	c, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || c.Value == "" {
		return session.Session{}, false
	}
	return h.registry.Get(c.Value)
}

func (h *SessionHandler) start(w http.ResponseWriter, s *session.Session) error {
	token, err := h.registry.Add(s)
	if err != nil {
		return err
	}
	h.setSessionCookie(w, token, int(time.Until(s.ExpiresAt).Seconds()))
	return nil
}

func (h *SessionHandler) setSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
