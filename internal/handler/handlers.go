package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/Otise/opendatakit.build/internal/auth"
	"github.com/Otise/opendatakit.build/internal/domain"
	"github.com/Otise/opendatakit.build/internal/session"
	"github.com/Otise/opendatakit.build/pkg/health"
	"github.com/Otise/opendatakit.build/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Error messages of the JSON error body.
const (
	msgValidationFailed = "validation failed"
	msgPermissionDenied = "permission denied"
	msgNotFound         = "not found"
	msgForbidden        = "forbidden"
	msgUnauthenticated  = "unauthenticated"
	msgMethodNotAllowed = "method not allowed"
	msgInternal         = "internal error"
)

var errValidation = errors.New(msgValidationFailed)

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
}

// Dependencies are the collaborators a Handler delegates to.
type Dependencies struct {
	Users      domain.UserStore
	Forms      domain.FormStore
	Auth       auth.Strategy
	Sessions   session.Store
	Tokens     *auth.TokenIssuer
	Cookie     CookieConfig
	SessionTTL time.Duration
	Checks     health.Checks
	Logger     *slog.Logger
}

// Handler holds dependencies
type Handler struct {
	users      domain.UserStore
	forms      domain.FormStore
	auth       auth.Strategy
	sessions   session.Store
	tokens     *auth.TokenIssuer
	cookie     CookieConfig
	sessionTTL time.Duration
	checks     health.Checks
	log        *slog.Logger
}

// NewHandler creates a Handler, filling in defaults for optional settings
func NewHandler(deps Dependencies) *Handler {
	h := &Handler{
		users:      deps.Users,
		forms:      deps.Forms,
		auth:       deps.Auth,
		sessions:   deps.Sessions,
		tokens:     deps.Tokens,
		cookie:     deps.Cookie,
		sessionTTL: deps.SessionTTL,
		checks:     deps.Checks,
		log:        deps.Logger,
	}

	if h.cookie.Name == "" {
		h.cookie.Name = "auth_token"
	}
	if h.sessionTTL <= 0 {
		h.sessionTTL = 24 * time.Hour
	}
	if h.log == nil {
		h.log = logger.Discard()
	}
	return h
}

// Router builds the route table
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(requestID, h.accessLog, h.recoverer, jsonContentType, h.loadSession)

	// users
	r.HandleFunc("/users", h.ListUsersHandler).Methods(http.MethodGet)
	r.HandleFunc("/users", h.CreateUserHandler).Methods(http.MethodPost)
	r.HandleFunc("/user", h.CurrentUserHandler).Methods(http.MethodGet)
	r.HandleFunc("/user/{username}", h.GetUserHandler).Methods(http.MethodGet)
	r.HandleFunc("/user/{username}", h.UpdateUserHandler).Methods(http.MethodPut)
	r.HandleFunc("/user/{username}", h.DeleteUserHandler).Methods(http.MethodDelete)

	// forms
	r.HandleFunc("/forms", h.ListFormsHandler).Methods(http.MethodGet)
	r.HandleFunc("/forms", h.CreateFormHandler).Methods(http.MethodPost)
	r.HandleFunc("/form/{id}", h.GetFormHandler).Methods(http.MethodGet)
	r.HandleFunc("/form/{id}", h.UpdateFormHandler).Methods(http.MethodPut)
	r.HandleFunc("/form/{id}", h.DeleteFormHandler).Methods(http.MethodDelete)

	// auth
	r.HandleFunc("/login", h.LoginHandler).Methods(http.MethodPost)
	r.HandleFunc("/logout", h.LogoutHandler).Methods(http.MethodGet)
	r.HandleFunc("/unauthenticated", h.UnauthenticatedHandler).Methods(http.MethodGet)

	r.Handle("/health", health.Handler(h.checks, h.log)).Methods(http.MethodGet)

	// mux does not run middleware for these two
	r.NotFoundHandler = requestID(h.accessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, msgNotFound)
	})))
	r.MethodNotAllowedHandler = requestID(h.accessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	})))

	return r
}

// writeJSON - serializes v with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func errorValidationFailed(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, msgValidationFailed)
}

func errorPermissionDenied(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, msgPermissionDenied)
}

func errorNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, msgNotFound)
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"success": "true"})
}

// fail maps store and auth errors onto the standard error bodies. Anything
// unexpected is logged and reported as a 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errValidation), errors.Is(err, domain.ErrUsernameTaken),
		errors.Is(err, auth.ErrPasswordTooLong):
		errorValidationFailed(w)
	case errors.Is(err, auth.ErrInvalidCredentials):
		errorPermissionDenied(w)
	case errors.Is(err, domain.ErrNotFound):
		errorNotFound(w)
	default:
		h.log.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

// params - flat string parameters of a request
type params map[string]string

func (p params) has(key string) bool {
	_, ok := p[key]
	return ok
}

// readParams collects request parameters from a JSON object body, a
// form-encoded body and the query string, in that order of precedence.
// Non-string JSON values are ignored.
func readParams(w http.ResponseWriter, r *http.Request) (params, error) {
	p := params{}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if isJSON(r) {
		var body map[string]any
		if err := decodeJSON(r.Body, &body); err != nil {
			return nil, err
		}
		for k, v := range body {
			if s, ok := v.(string); ok {
				p[k] = s
			}
		}
		for k, v := range r.URL.Query() {
			if !p.has(k) && len(v) > 0 {
				p[k] = v[0]
			}
		}
		return p, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, errors.Join(errValidation, err)
	}
	for k, v := range r.Form {
		if len(v) > 0 {
			p[k] = v[0]
		}
	}
	return p, nil
}

// decodeJSON reads exactly one JSON value from r. Trailing data other than
// whitespace is a validation error.
func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return errors.Join(errValidation, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errValidation
	}
	return nil
}

func isJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	return err == nil && strings.EqualFold(mediaType, "application/json")
}
