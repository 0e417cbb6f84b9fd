package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-labs/vigilctl/internal/controller"
)

func newTestServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /start", func(w http.ResponseWriter, r *http.Request) {
		var opts controller.StartOptions
		_ = json.NewDecoder(r.Body).Decode(&opts)
		_ = json.NewEncoder(w).Encode(controller.Result{OK: true})
	})
	mux.HandleFunc("POST /stop", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(controller.Result{OK: true})
	})
	mux.HandleFunc("POST /telegram", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "enabled field required"})
			return
		}
		_ = json.NewEncoder(w).Encode(controller.Result{OK: true, Outcome: controller.OutcomeApplied})
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(controller.Snapshot{
			State: controller.StateRunning, Running: true, PID: 7001,
			BaseAddress: "http://127.0.0.1:9108",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second})
	return srv, c
}

func TestClientStartStopToggle(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()

	res, err := c.Start(ctx, controller.StartOptions{TelegramEnabled: true})
	require.NoError(t, err)
	assert.True(t, res.OK)

	res, err = c.SetTelegramEnabled(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, controller.OutcomeApplied, res.Outcome)

	res, err = c.Stop(ctx)
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestClientStatus(t *testing.T) {
	_, c := newTestServer(t)
	snap, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Running)
	assert.Equal(t, 7001, snap.PID)
	assert.Equal(t, "http://127.0.0.1:9108", snap.BaseAddress)
}

func TestClientIsReachable(t *testing.T) {
	_, c := newTestServer(t)
	assert.True(t, c.IsReachable(context.Background()))

	down := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: 500 * time.Millisecond})
	assert.False(t, down.IsReachable(context.Background()))
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "enabled field required"})
	}))
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL, Timeout: time.Second})
	_, err := c.postResult(context.Background(), "/telegram", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enabled field required")
}
