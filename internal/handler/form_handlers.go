package handler

import (
	"encoding/json"
	"html"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/microcosm-cc/bluemonday"

	"github.com/Otise/opendatakit.build/internal/models"
)

// titles are plain text; any markup is stripped before validation
var titlePolicy = bluemonday.StrictPolicy()

func cleanTitle(s string) string {
	return strings.TrimSpace(html.UnescapeString(titlePolicy.Sanitize(s)))
}

// formDocument - a decoded form body split into title and free-form fields
type formDocument struct {
	title    string
	hasTitle bool
	fields   map[string]json.RawMessage
	cleared  []string
}

// decodeFormDocument reads a JSON object body. A present title must be a
// non-empty string. Server-managed keys are dropped; keys set to null are
// collected in cleared.
func decodeFormDocument(w http.ResponseWriter, r *http.Request) (*formDocument, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var body map[string]json.RawMessage
	if err := decodeJSON(r.Body, &body); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errValidation
	}

	doc := &formDocument{fields: make(map[string]json.RawMessage, len(body))}
	for key, raw := range body {
		switch {
		case key == "title":
			var title string
			if err := json.Unmarshal(raw, &title); err != nil {
				return nil, errValidation
			}
			doc.title = cleanTitle(title)
			doc.hasTitle = true
			if doc.title == "" {
				return nil, errValidation
			}
		case models.IsReservedFormKey(key):
		case string(raw) == "null":
			doc.cleared = append(doc.cleared, key)
		default:
			doc.fields[key] = raw
		}
	}
	return doc, nil
}

// ListFormsHandler - summaries of the session user's forms
func (h *Handler) ListFormsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		errorPermissionDenied(w)
		return
	}

	forms, err := h.forms.ListByOwner(r.Context(), user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forms)
}

// CreateFormHandler - stores a JSON form document owned by the session user
func (h *Handler) CreateFormHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		errorPermissionDenied(w)
		return
	}

	doc, err := decodeFormDocument(w, r)
	if err != nil || !doc.hasTitle {
		errorValidationFailed(w)
		return
	}

	form, err := h.forms.Create(r.Context(), user, doc.title, doc.fields)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// GetFormHandler - a single form of the session user
func (h *Handler) GetFormHandler(w http.ResponseWriter, r *http.Request) {
	form, ok := h.loadOwnedForm(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// UpdateFormHandler - merges the JSON body into the form; null removes a field
func (h *Handler) UpdateFormHandler(w http.ResponseWriter, r *http.Request) {
	form, ok := h.loadOwnedForm(w, r)
	if !ok {
		return
	}

	doc, err := decodeFormDocument(w, r)
	if err != nil {
		errorValidationFailed(w)
		return
	}

	if doc.hasTitle {
		form.Title = doc.title
	}
	if form.Fields == nil {
		form.Fields = make(map[string]json.RawMessage, len(doc.fields))
	}
	for key, raw := range doc.fields {
		form.Fields[key] = raw
	}
	for _, key := range doc.cleared {
		delete(form.Fields, key)
	}

	if err := h.forms.Save(r.Context(), form); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// DeleteFormHandler - removes a form of the session user
func (h *Handler) DeleteFormHandler(w http.ResponseWriter, r *http.Request) {
	form, ok := h.loadOwnedForm(w, r)
	if !ok {
		return
	}

	if err := h.forms.Delete(r.Context(), form); err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w)
}

// loadOwnedForm finds the form named in the path and checks that the
// session user owns it. It writes the error response itself.
func (h *Handler) loadOwnedForm(w http.ResponseWriter, r *http.Request) (*models.Form, bool) {
	form, err := h.forms.Find(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}

	user := currentUser(r)
	if user == nil || form.Owner != user.Username {
		errorPermissionDenied(w)
		return nil, false
	}
	return form, true
}
