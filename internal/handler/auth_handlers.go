package handler

import (
	"log/slog"
	"net/http"

	"github.com/Otise/opendatakit.build/internal/session"
)

// LoginHandler - authenticates username/password and opens a session.
// The session token is set as a cookie and echoed in X-Auth-Token for
// clients that prefer a Bearer header.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(w, r)
	if err != nil {
		errorValidationFailed(w)
		return
	}

	user, err := h.auth.Authenticate(r.Context(), p["username"], p["password"])
	if err != nil {
		h.log.InfoContext(r.Context(), "login failed", slog.String("username", p["username"]))
		h.fail(w, r, err)
		return
	}

	if prev := currentSession(r); prev != nil {
		if err := h.sessions.Delete(r.Context(), prev.ID); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	sess := session.New(user.Username, h.sessionTTL)
	if err := h.sessions.Create(r.Context(), sess); err != nil {
		h.fail(w, r, err)
		return
	}

	token, err := h.tokens.GenerateToken(sess.ID, sess.Username, sess.ExpiresAt)
	if err != nil {
		_ = h.sessions.Delete(r.Context(), sess.ID)
		h.fail(w, r, err)
		return
	}

	h.setSessionCookie(w, sess, token)
	w.Header().Set("X-Auth-Token", token)
	h.log.InfoContext(r.Context(), "login", slog.String("username", user.Username))
	writeJSON(w, http.StatusOK, user)
}

// LogoutHandler - ends the current session, if any
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if sess := currentSession(r); sess != nil {
		if err := h.sessions.Delete(r.Context(), sess.ID); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"user": "none"})
}

// UnauthenticatedHandler - fixed target for clients redirected after an auth failure
func (h *Handler) UnauthenticatedHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusUnauthorized, msgUnauthenticated)
}
