package models

import (
	"encoding/json"
	"time"
)

type User struct {
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never leaves the server
	Forms        []string  `json:"forms"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser - attributes accepted when registering an account
type NewUser struct {
	Username string
	Password string
	Email    string
}

// OwnsForm reports whether the form id is in the user's form list.
func (u *User) OwnsForm(id string) bool {
	for _, formID := range u.Forms {
		if formID == id {
			return true
		}
	}
	return false
}

// Form is a user-owned JSON document. Fields holds every attribute besides
// the ones modelled explicitly; values are kept as raw JSON.
type Form struct {
	ID        string
	Title     string
	Owner     string
	Fields    map[string]json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Keys of a form document managed by the server. Clients cannot set them.
var reservedFormKeys = map[string]bool{
	"id":         true,
	"owner":      true,
	"created_at": true,
	"updated_at": true,
}

// IsReservedFormKey reports whether key is managed by the server.
func IsReservedFormKey(key string) bool {
	return reservedFormKeys[key]
}

// MarshalJSON flattens the free-form fields together with the managed ones.
func (f Form) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(f.Fields)+5)
	for k, v := range f.Fields {
		doc[k] = v
	}
	doc["id"] = f.ID
	doc["title"] = f.Title
	doc["owner"] = f.Owner
	doc["created_at"] = f.CreatedAt
	doc["updated_at"] = f.UpdatedAt
	return json.Marshal(doc)
}

// FormSummary - entry of a user's form listing
type FormSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
