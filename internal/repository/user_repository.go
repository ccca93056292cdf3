package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Otise/opendatakit.build/internal/auth"
	"github.com/Otise/opendatakit.build/internal/domain"
	"github.com/Otise/opendatakit.build/internal/models"
	"github.com/Otise/opendatakit.build/pkg/database"
)

// UserRepository is the SQL-backed domain.UserStore.
type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Find(ctx context.Context, username string) (*models.User, error) {
	var (
		u         models.User
		formIDs   string
		createdAt int64
		updatedAt int64
	)

	err := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT username, email, password_hash, form_ids, created_at, updated_at
		FROM users
		WHERE username = ?
	`), username).Scan(&u.Username, &u.Email, &u.PasswordHash, &formIDs, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %q: %w", username, err)
	}

	if u.Forms, err = decodeFormIDs(formIDs); err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

// Create hashes the password and inserts the user. A username that is
// already in use yields domain.ErrUsernameTaken.
func (r *UserRepository) Create(ctx context.Context, attrs models.NewUser) (*models.User, error) {
	hash, err := auth.HashPassword(attrs.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ts := now()
	u := &models.User{
		Username:     attrs.Username,
		Email:        attrs.Email,
		PasswordHash: hash,
		Forms:        []string{},
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO users (username, email, password_hash, form_ids, created_at, updated_at)
		VALUES (?, ?, ?, '[]', ?, ?)
	`), u.Username, u.Email, u.PasswordHash, toMillis(ts), toMillis(ts))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, domain.ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user %q: %w", attrs.Username, err)
	}

	return u, nil
}

func (r *UserRepository) Save(ctx context.Context, u *models.User) error {
	ts := now()

	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE users SET email = ?, password_hash = ?, updated_at = ?
		WHERE username = ?
	`), u.Email, u.PasswordHash, toMillis(ts), u.Username)
	if err != nil {
		return fmt.Errorf("save user %q: %w", u.Username, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}

	u.UpdatedAt = ts
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, u *models.User) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.db.Rebind("DELETE FROM forms WHERE owner = ?"), u.Username); err != nil {
			return fmt.Errorf("delete forms of %q: %w", u.Username, err)
		}

		res, err := tx.ExecContext(ctx, r.db.Rebind("DELETE FROM users WHERE username = ?"), u.Username)
		if err != nil {
			return fmt.Errorf("delete user %q: %w", u.Username, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}
