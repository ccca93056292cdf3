// Package repository implements the user and form stores on top of SQL.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Otise/opendatakit.build/internal/domain"
	"github.com/Otise/opendatakit.build/pkg/database"
)

var (
	_ domain.UserStore = (*UserRepository)(nil)
	_ domain.FormStore = (*FormRepository)(nil)
)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func now() time.Time {
	return time.UnixMilli(time.Now().UnixMilli()).UTC()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// loadFormIDs reads the owner's ordered form list, locking the row when
// called inside a postgres transaction.
func loadFormIDs(ctx context.Context, db *database.DB, q queryRower, username string) ([]string, error) {
	var raw string
	err := q.QueryRowContext(ctx,
		db.Rebind("SELECT form_ids FROM users WHERE username = ?"+db.ForUpdate()),
		username,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load form ids: %w", err)
	}
	return decodeFormIDs(raw)
}

func decodeFormIDs(raw string) ([]string, error) {
	ids := []string{}
	if raw == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode form ids: %w", err)
	}
	return ids, nil
}

func encodeFormIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode form ids: %w", err)
	}
	return string(data), nil
}
