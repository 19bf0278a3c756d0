package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/projecthub/internal/config"
	"github.com/fyrsmithlabs/projecthub/internal/state"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRun_ServesAndRestoresActiveProject(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	statePath := filepath.Join(t.TempDir(), "state.json")
	store, err := state.Open(statePath)
	require.NoError(t, err)
	p, err := store.CreateProject(context.Background(), "api", t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.NotifyActiveProject(context.Background(), p.ID))
	require.NoError(t, store.Close())

	cfg := config.Default()
	cfg.Server.Port = freePort(t)
	cfg.State.Path = statePath
	cfg.State.SaveDebounce = config.Duration(time.Millisecond)
	base := "http://" + cfg.Server.Addr()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg)
	}()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get(base + "/health")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		ActiveProject string `json:"active_project"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, p.ID, health.ActiveProject, "the stored active project is restored on start")

	metrics, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	assert.Equal(t, http.StatusOK, metrics.StatusCode)

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shutdown in time")
	}

	reopened, err := state.Open(statePath)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, p.ID, reopened.ActiveProjectID())
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Port = 0

	err := run(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "invalid configuration"))
}
