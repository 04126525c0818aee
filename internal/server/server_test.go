package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skybridge-labs/skybridge/internal/config"
	"github.com/skybridge-labs/skybridge/internal/logging"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	srv, err := New(cfg, filepath.Join(t.TempDir(), "server.db"), logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(srv.shutdown)
	return srv
}

func TestHTTPSurface(t *testing.T) {
	t.Run("health", func(t *testing.T) {
		srv := newTestServer(t)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, false, body["authenticated"])
	})

	t.Run("metrics", func(t *testing.T) {
		srv := newTestServer(t)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("message with invalid body", func(t *testing.T) {
		srv := newTestServer(t)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/message", bytes.NewBufferString("not json"))
		req.Header.Set("Content-Type", "application/json")
		srv.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("checkAuth message round trip", func(t *testing.T) {
		srv := newTestServer(t)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/message",
			bytes.NewBufferString(`{"action":"checkAuth"}`))
		req.Header.Set("Content-Type", "application/json")
		srv.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Success bool `json:"success"`
			Data    struct {
				Authenticated bool `json:"authenticated"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.False(t, resp.Data.Authenticated)
	})

	t.Run("unknown action still returns 200 envelope", func(t *testing.T) {
		srv := newTestServer(t)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/message",
			bytes.NewBufferString(`{"action":"explode"}`))
		req.Header.Set("Content-Type", "application/json")
		srv.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "unknown action")
	})
}
