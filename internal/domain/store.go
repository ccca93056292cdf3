package domain

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Otise/opendatakit.build/internal/models"
)

var (
	// ErrNotFound is returned when a user or form does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUsernameTaken is returned when creating a user whose username is in use.
	ErrUsernameTaken = errors.New("username already taken")
)

// UserStore persists user accounts.
type UserStore interface {
	Find(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, attrs models.NewUser) (*models.User, error)
	// Save writes the mutable profile fields (email, password hash).
	Save(ctx context.Context, u *models.User) error
	// Delete removes the user together with every form it owns.
	Delete(ctx context.Context, u *models.User) error
}

// FormStore persists forms. Creating and deleting a form keeps the owner's
// ordered form list in step.
type FormStore interface {
	Find(ctx context.Context, id string) (*models.Form, error)
	Create(ctx context.Context, owner *models.User, title string, fields map[string]json.RawMessage) (*models.Form, error)
	Save(ctx context.Context, f *models.Form) error
	Delete(ctx context.Context, f *models.Form) error
	ListByOwner(ctx context.Context, owner *models.User) ([]models.FormSummary, error)
}
