package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	t.Run("no checks is healthy", func(t *testing.T) {
		resp := Run(context.Background(), nil, time.Second)
		assert.Equal(t, StatusHealthy, resp.Status)
	})

	t.Run("one failure marks unhealthy", func(t *testing.T) {
		resp := Run(context.Background(), Checks{
			"db":    func(context.Context) error { return nil },
			"redis": func(context.Context) error { return errors.New("connection refused") },
		}, time.Second)

		assert.Equal(t, StatusUnhealthy, resp.Status)
		assert.Equal(t, StatusHealthy, resp.Checks["db"].Status)
		assert.Equal(t, "connection refused", resp.Checks["redis"].Error)
	})

	t.Run("slow check hits timeout", func(t *testing.T) {
		resp := Run(context.Background(), Checks{
			"slow": func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		}, 10*time.Millisecond)

		assert.Equal(t, StatusUnhealthy, resp.Status)
	})
}

func TestHandler(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ok := Handler(Checks{"db": func(context.Context) error { return nil }}, log)
	rec := httptest.NewRecorder()
	ok(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	failing := Handler(Checks{"db": func(context.Context) error { return errors.New("down") }}, log)
	rec = httptest.NewRecorder()
	failing(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, StatusUnhealthy, body.Status)
	assert.Equal(t, "down", body.Checks["db"].Error)
}
