package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Otise/opendatakit.build/internal/domain"
	"github.com/Otise/opendatakit.build/internal/models"
	"github.com/Otise/opendatakit.build/pkg/database/dbtest"
)

func newStores(t *testing.T) (*UserRepository, *FormRepository) {
	t.Helper()
	db := dbtest.New(t)
	return NewUserRepository(db), NewFormRepository(db)
}

func createUser(t *testing.T, users *UserRepository, username string) *models.User {
	t.Helper()
	u, err := users.Create(context.Background(), models.NewUser{
		Username: username,
		Password: "pw",
		Email:    username + "@example.com",
	})
	require.NoError(t, err)
	return u
}

func TestFormRepository_CreateFind(t *testing.T) {
	users, forms := newStores(t)
	ctx := context.Background()
	alice := createUser(t, users, "alice")

	fields := map[string]json.RawMessage{
		"controls": json.RawMessage(`[{"type":"inputText","name":"q1"}]`),
		"version":  json.RawMessage(`3`),
	}
	f, err := forms.Create(ctx, alice, "Household survey", fields)
	require.NoError(t, err)
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, "alice", f.Owner)
	assert.Equal(t, []string{f.ID}, alice.Forms)

	found, err := forms.Find(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Household survey", found.Title)
	assert.Equal(t, "alice", found.Owner)
	assert.JSONEq(t, `[{"type":"inputText","name":"q1"}]`, string(found.Fields["controls"]))
	assert.JSONEq(t, `3`, string(found.Fields["version"]))

	stored, err := users.Find(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{f.ID}, stored.Forms)
}

func TestFormRepository_CreateForMissingOwner(t *testing.T) {
	_, forms := newStores(t)

	_, err := forms.Create(context.Background(), &models.User{Username: "ghost"}, "Orphan", nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFormRepository_FindMissing(t *testing.T) {
	_, forms := newStores(t)

	_, err := forms.Find(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFormRepository_Save(t *testing.T) {
	users, forms := newStores(t)
	ctx := context.Background()
	alice := createUser(t, users, "alice")

	f, err := forms.Create(ctx, alice, "Draft", nil)
	require.NoError(t, err)

	f.Title = "Final"
	f.Fields["published"] = json.RawMessage(`true`)
	require.NoError(t, forms.Save(ctx, f))

	found, err := forms.Find(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Final", found.Title)
	assert.JSONEq(t, `true`, string(found.Fields["published"]))

	err = forms.Save(ctx, &models.Form{ID: "missing"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFormRepository_Delete(t *testing.T) {
	users, forms := newStores(t)
	ctx := context.Background()
	alice := createUser(t, users, "alice")

	first, err := forms.Create(ctx, alice, "First", nil)
	require.NoError(t, err)
	second, err := forms.Create(ctx, alice, "Second", nil)
	require.NoError(t, err)

	require.NoError(t, forms.Delete(ctx, first))

	_, err = forms.Find(ctx, first.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	stored, err := users.Find(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID}, stored.Forms)

	require.ErrorIs(t, forms.Delete(ctx, first), domain.ErrNotFound)
}

func TestFormRepository_ListByOwner(t *testing.T) {
	users, forms := newStores(t)
	ctx := context.Background()
	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")

	var want []models.FormSummary
	for _, title := range []string{"One", "Two", "Three"} {
		f, err := forms.Create(ctx, alice, title, nil)
		require.NoError(t, err)
		want = append(want, models.FormSummary{ID: f.ID, Title: title})
	}
	_, err := forms.Create(ctx, bob, "Bob's", nil)
	require.NoError(t, err)

	got, err := forms.ListByOwner(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	nobody := createUser(t, users, "carol")
	empty, err := forms.ListByOwner(ctx, nobody)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
