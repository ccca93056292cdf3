package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Otise/opendatakit.build/internal/auth"
	"github.com/Otise/opendatakit.build/internal/domain"
	"github.com/Otise/opendatakit.build/internal/models"
	"github.com/Otise/opendatakit.build/internal/session"
)

type identityKey struct{}

// identity - the authenticated user of a request and the session that proved it
type identity struct {
	user    *models.User
	session *session.Session
}

// currentUser returns the session user, or nil for anonymous requests.
func currentUser(r *http.Request) *models.User {
	if id, ok := r.Context().Value(identityKey{}).(*identity); ok {
		return id.user
	}
	return nil
}

func currentSession(r *http.Request) *session.Session {
	if id, ok := r.Context().Value(identityKey{}).(*identity); ok {
		return id.session
	}
	return nil
}

// loadSession resolves the request token to a session and its user. Bad,
// expired or revoked tokens leave the request anonymous; routes decide
// whether that is acceptable.
func (h *Handler) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.GetTokenFromRequest(r, h.cookie.Name)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := h.resolveIdentity(r.Context(), token)
		if err != nil {
			h.log.DebugContext(r.Context(), "ignoring session token", slog.String("reason", err.Error()))
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) resolveIdentity(ctx context.Context, token string) (*identity, error) {
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	sess, err := h.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) && !errors.Is(err, session.ErrExpired) {
			h.log.ErrorContext(ctx, "session lookup failed", slog.String("error", err.Error()))
		}
		return nil, err
	}
	if sess.Username != claims.Username {
		return nil, auth.ErrInvalidToken
	}

	user, err := h.users.Find(ctx, sess.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = h.sessions.Delete(ctx, sess.ID)
		} else {
			h.log.ErrorContext(ctx, "session user lookup failed", slog.String("error", err.Error()))
		}
		return nil, err
	}

	return &identity{user: user, session: sess}, nil
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, sess *session.Session, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Domain:   h.cookie.Domain,
		Expires:  sess.ExpiresAt,
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Domain:   h.cookie.Domain,
		MaxAge:   -1,
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
