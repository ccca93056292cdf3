package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/Otise/opendatakit.build/internal/domain"
	"github.com/Otise/opendatakit.build/internal/models"
	"github.com/Otise/opendatakit.build/pkg/database"
)

// FormRepository is the SQL-backed domain.FormStore.
type FormRepository struct {
	db *database.DB
}

func NewFormRepository(db *database.DB) *FormRepository {
	return &FormRepository{db: db}
}

func (r *FormRepository) Find(ctx context.Context, id string) (*models.Form, error) {
	var (
		f         models.Form
		data      string
		createdAt int64
		updatedAt int64
	)

	err := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, owner, title, data, created_at, updated_at
		FROM forms
		WHERE id = ?
	`), id).Scan(&f.ID, &f.Owner, &f.Title, &data, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find form %q: %w", id, err)
	}

	if err := json.Unmarshal([]byte(data), &f.Fields); err != nil {
		return nil, fmt.Errorf("decode form %q: %w", id, err)
	}
	f.CreatedAt = fromMillis(createdAt)
	f.UpdatedAt = fromMillis(updatedAt)
	return &f, nil
}

// Create inserts the form and appends its id to the owner's form list in
// one transaction. On success owner.Forms reflects the stored list.
func (r *FormRepository) Create(ctx context.Context, owner *models.User, title string, fields map[string]json.RawMessage) (*models.Form, error) {
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}

	ts := now()
	f := &models.Form{
		ID:        uuid.NewString(),
		Title:     title,
		Owner:     owner.Username,
		Fields:    fields,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	var formIDs []string
	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		ids, err := loadFormIDs(ctx, r.db, tx, owner.Username)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO forms (id, owner, title, data, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`), f.ID, f.Owner, f.Title, string(data), toMillis(ts), toMillis(ts))
		if err != nil {
			return fmt.Errorf("insert form: %w", err)
		}

		formIDs = append(ids, f.ID)
		return r.storeFormIDs(ctx, tx, owner.Username, formIDs)
	})
	if err != nil {
		return nil, err
	}

	owner.Forms = formIDs
	return f, nil
}

func (r *FormRepository) Save(ctx context.Context, f *models.Form) error {
	if f.Fields == nil {
		f.Fields = map[string]json.RawMessage{}
	}
	data, err := json.Marshal(f.Fields)
	if err != nil {
		return fmt.Errorf("encode form: %w", err)
	}

	ts := now()
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE forms SET title = ?, data = ?, updated_at = ?
		WHERE id = ?
	`), f.Title, string(data), toMillis(ts), f.ID)
	if err != nil {
		return fmt.Errorf("save form %q: %w", f.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}

	f.UpdatedAt = ts
	return nil
}

// Delete removes the form and drops its id from the owner's form list.
func (r *FormRepository) Delete(ctx context.Context, f *models.Form) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		ids, err := loadFormIDs(ctx, r.db, tx, f.Owner)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		res, err := tx.ExecContext(ctx, r.db.Rebind("DELETE FROM forms WHERE id = ?"), f.ID)
		if err != nil {
			return fmt.Errorf("delete form %q: %w", f.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}

		if ids == nil {
			return nil
		}
		return r.storeFormIDs(ctx, tx, f.Owner, slices.DeleteFunc(ids, func(id string) bool {
			return id == f.ID
		}))
	})
}

// ListByOwner returns the owner's forms in the order of owner.Forms. Rows
// missing from that list are appended by creation time.
func (r *FormRepository) ListByOwner(ctx context.Context, owner *models.User) ([]models.FormSummary, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT id, title
		FROM forms
		WHERE owner = ?
		ORDER BY created_at, id
	`), owner.Username)
	if err != nil {
		return nil, fmt.Errorf("list forms of %q: %w", owner.Username, err)
	}
	defer rows.Close()

	byID := make(map[string]models.FormSummary)
	var unlisted []models.FormSummary
	for rows.Next() {
		var s models.FormSummary
		if err := rows.Scan(&s.ID, &s.Title); err != nil {
			return nil, fmt.Errorf("scan form: %w", err)
		}
		if owner.OwnsForm(s.ID) {
			byID[s.ID] = s
		} else {
			unlisted = append(unlisted, s)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list forms of %q: %w", owner.Username, err)
	}

	forms := make([]models.FormSummary, 0, len(byID)+len(unlisted))
	for _, id := range owner.Forms {
		if s, ok := byID[id]; ok {
			forms = append(forms, s)
		}
	}
	return append(forms, unlisted...), nil
}

func (r *FormRepository) storeFormIDs(ctx context.Context, tx *sql.Tx, username string, ids []string) error {
	raw, err := encodeFormIDs(ids)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, r.db.Rebind(`
		UPDATE users SET form_ids = ?, updated_at = ?
		WHERE username = ?
	`), raw, toMillis(now()), username)
	if err != nil {
		return fmt.Errorf("update form ids of %q: %w", username, err)
	}
	return nil
}
