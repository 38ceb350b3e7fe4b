package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/modmail-relay-go/internal/metrics"
)

type stubCounter struct {
	count int
	err   error
}

func (s stubCounter) Count(ctx context.Context) (int, error) {
	return s.count, s.err
}

func TestHealthHandler(t *testing.T) {
	m := metrics.New()
	m.SetActiveConversations(2)
	srv := httptest.NewServer(NewHealthHandler(stubCounter{count: 2}, m.Handler()).Routes())
	defer srv.Close()

	t.Run("root answers with the liveness banner", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Bot is running 24/7!", string(body))
	})

	t.Run("health reports status and open tickets", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, float64(2), body["activeConversations"])
		assert.NotZero(t, body["timestamp"])
	})

	t.Run("metrics are exposed", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("unknown path", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/nope")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestHealthHandler_CountFailure(t *testing.T) {
	h := NewHealthHandler(stubCounter{err: errors.New("boom")}, nil)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
