package auth

import (
	"context"
	"errors"

	"github.com/Otise/opendatakit.build/internal/domain"
	"github.com/Otise/opendatakit.build/internal/models"
)

// ErrInvalidCredentials is returned when a username/password pair does not
// resolve to a user. Unknown users and wrong passwords are not told apart.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Strategy resolves submitted credentials to a user.
type Strategy interface {
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
}

// UserFinder is the part of the user store a PasswordStrategy needs.
type UserFinder interface {
	Find(ctx context.Context, username string) (*models.User, error)
}

// PasswordStrategy checks a password against the stored bcrypt hash.
type PasswordStrategy struct {
	users UserFinder
}

func NewPasswordStrategy(users UserFinder) *PasswordStrategy {
	return &PasswordStrategy{users: users}
}

func (s *PasswordStrategy) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.Find(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
