package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-labs/vigilctl/internal/controller"
)

func TestBuildRootHasSubcommands(t *testing.T) {
	root := buildRoot()
	want := map[string]bool{
		"serve": false, "start": false, "stop": false,
		"status": false, "telegram on|off": false, "config": false,
	}
	for _, c := range root.Commands() {
		if _, ok := want[c.Use]; ok {
			want[c.Use] = true
		}
	}
	for use, seen := range want {
		assert.True(t, seen, "missing subcommand %q", use)
	}
}

func TestTelegramRejectsBadArgument(t *testing.T) {
	root := buildRoot()
	root.SetArgs([]string{"telegram", "maybe"})
	root.SilenceUsage = true
	root.SilenceErrors = true
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "on")
}

func TestConfigInitWritesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	root := buildRoot()
	root.SetArgs([]string{"config", "init", "--path", path})
	require.NoError(t, root.Execute())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "listen:")
	assert.Contains(t, string(data), "telegram:")

	// Refuses to clobber without --force.
	root = buildRoot()
	root.SetArgs([]string{"config", "init", "--path", path})
	root.SilenceUsage = true
	root.SilenceErrors = true
	require.Error(t, root.Execute())

	root = buildRoot()
	root.SetArgs([]string{"config", "init", "--path", path, "--force"})
	require.NoError(t, root.Execute())
}

func TestClientCommandsAgainstFakeDaemon(t *testing.T) {
	var gotToggle bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /start", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(controller.Result{OK: true})
	})
	mux.HandleFunc("POST /stop", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(controller.Result{OK: true})
	})
	mux.HandleFunc("POST /telegram", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Enabled bool `json:"enabled"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotToggle = req.Enabled
		_ = json.NewEncoder(w).Encode(controller.Result{OK: true, Outcome: controller.OutcomeApplied})
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(controller.Snapshot{State: controller.StateStopped})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	for _, args := range [][]string{
		{"start", "--api-url", srv.URL},
		{"stop", "--api-url", srv.URL},
		{"status", "--api-url", srv.URL},
		{"telegram", "on", "--api-url", srv.URL},
	} {
		root := buildRoot()
		root.SetArgs(args)
		require.NoError(t, root.Execute(), "args: %v", args)
	}
	assert.True(t, gotToggle)
}
