package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Otise/opendatakit.build/internal/auth"
	"github.com/Otise/opendatakit.build/internal/domain"
	"github.com/Otise/opendatakit.build/internal/models"
)

// ListUsersHandler - listing accounts is disabled
func (h *Handler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusForbidden, msgForbidden)
}

// CreateUserHandler - registers an account from username, password and email
func (h *Handler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(w, r)
	if err != nil {
		errorValidationFailed(w)
		return
	}

	attrs := models.NewUser{
		Username: strings.TrimSpace(p["username"]),
		Password: p["password"],
		Email:    strings.TrimSpace(p["email"]),
	}
	if !validUsername(attrs.Username) || !validPassword(attrs.Password) || attrs.Email == "" {
		errorValidationFailed(w)
		return
	}

	_, err = h.users.Find(r.Context(), attrs.Username)
	if err == nil {
		errorValidationFailed(w)
		return
	}
	if !errors.Is(err, domain.ErrNotFound) {
		h.fail(w, r, err)
		return
	}

	user, err := h.users.Create(r.Context(), attrs)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.log.InfoContext(r.Context(), "user created", "username", user.Username)
	writeJSON(w, http.StatusOK, user)
}

// CurrentUserHandler - the authenticated user of this session
func (h *Handler) CurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		errorPermissionDenied(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetUserHandler - public profile lookup by username
func (h *Handler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Find(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateUserHandler - changes the email and/or password of the session user.
// Without a new password the current one must be supplied as old_password.
func (h *Handler) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil || user.Username != mux.Vars(r)["username"] {
		errorPermissionDenied(w)
		return
	}

	p, err := readParams(w, r)
	if err != nil {
		errorValidationFailed(w)
		return
	}

	newPassword, changePassword := p["password"]
	if !changePassword && !auth.CheckPassword(p["old_password"], user.PasswordHash) {
		errorValidationFailed(w)
		return
	}
	if changePassword && !validPassword(newPassword) {
		errorValidationFailed(w)
		return
	}

	if p.has("email") {
		email := strings.TrimSpace(p["email"])
		if email == "" {
			errorValidationFailed(w)
			return
		}
		user.Email = email
	}

	if changePassword {
		hash, err := auth.HashPassword(newPassword)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		user.PasswordHash = hash
	}

	if err := h.users.Save(r.Context(), user); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteUserHandler - removes the session user's account, forms and sessions
func (h *Handler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil || user.Username != mux.Vars(r)["username"] {
		errorPermissionDenied(w)
		return
	}

	if err := h.users.Delete(r.Context(), user); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.sessions.DeleteByUsername(r.Context(), user.Username); err != nil {
		h.fail(w, r, err)
		return
	}

	h.clearSessionCookie(w)
	h.log.InfoContext(r.Context(), "user deleted", "username", user.Username)
	writeSuccess(w)
}

func validPassword(password string) bool {
	return password != "" && len(password) <= auth.MaxPasswordBytes
}

// validUsername rejects names that cannot round-trip through /user/{username}.
func validUsername(username string) bool {
	return username != "" && !strings.ContainsAny(username, "/?#% \t\r\n")
}
