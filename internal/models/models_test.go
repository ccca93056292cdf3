package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserJSONHidesPasswordHash(t *testing.T) {
	u := User{Username: "alice", Email: "alice@example.com", PasswordHash: "$2a$10$secret", Forms: []string{"f1"}}

	data, err := json.Marshal(u)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "secret")
	assert.Contains(t, string(data), `"forms":["f1"]`)
}

func TestUserOwnsForm(t *testing.T) {
	u := &User{Forms: []string{"a", "b"}}

	assert.True(t, u.OwnsForm("b"))
	assert.False(t, u.OwnsForm("c"))
}

func TestFormMarshalFlattensFields(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f := Form{
		ID:    "form-1",
		Title: "Survey",
		Owner: "alice",
		Fields: map[string]json.RawMessage{
			"controls": json.RawMessage(`[{"type":"text"}]`),
			"title":    json.RawMessage(`"shadowed"`),
		},
		CreatedAt: created,
		UpdatedAt: created,
	}

	data, err := json.Marshal(f)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "form-1", doc["id"])
	assert.Equal(t, "Survey", doc["title"])
	assert.Equal(t, "alice", doc["owner"])
	assert.Equal(t, []any{map[string]any{"type": "text"}}, doc["controls"])
	assert.Equal(t, "2026-01-02T03:04:05Z", doc["created_at"])
}

func TestIsReservedFormKey(t *testing.T) {
	assert.True(t, IsReservedFormKey("owner"))
	assert.True(t, IsReservedFormKey("id"))
	assert.False(t, IsReservedFormKey("title"))
	assert.False(t, IsReservedFormKey("controls"))
}
