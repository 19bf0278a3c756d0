package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httpapi "github.com/fyrsmithlabs/projecthub/internal/http"
	"github.com/fyrsmithlabs/projecthub/internal/notify"
	"github.com/fyrsmithlabs/projecthub/internal/panels"
	"github.com/fyrsmithlabs/projecthub/internal/project"
	"github.com/fyrsmithlabs/projecthub/internal/state"
	"github.com/fyrsmithlabs/projecthub/internal/workspace"
)

// startDaemon serves the real API over a temp store and points --server at it.
func startDaemon(t *testing.T) *state.Store {
	t.Helper()

	store, err := state.Open(filepath.Join(t.TempDir(), "state.json"), state.WithDebounce(time.Hour))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	set := panels.New(store, panels.Config{GitPollInterval: time.Hour}, nil)
	t.Cleanup(func() { _ = set.Close() })
	reg := workspace.NewRegistry(nil)
	require.NoError(t, set.Register(reg))

	server, err := httpapi.NewServer(httpapi.Deps{
		Projects: store,
		Switcher: workspace.NewCoordinator(reg, store, store),
		Panels:   set,
	}, zap.NewNop(), nil)
	require.NoError(t, err)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	serverURL = ts.URL
	return store
}

// execute runs hubctl with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	outputJSON = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--server", serverURL))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_Commands(t *testing.T) {
	want := []string{
		"health", "projects", "add", "active", "switch", "reload", "state", "dashboard", "watch",
		"todo", "notes", "term", "layout", "pomodoro", "files", "tests", "tool", "git", "browser", "prompt",
	}
	var got []string
	for _, cmd := range rootCmd.Commands() {
		got = append(got, cmd.Name())
	}
	for _, name := range want {
		assert.Contains(t, got, name)
	}
}

func TestHealth(t *testing.T) {
	startDaemon(t)

	out, err := execute(t, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Server Status: ok")
	assert.NotContains(t, out, "Active Project")
}

func TestHealth_Unreachable(t *testing.T) {
	ts := httptest.NewServer(nil)
	serverURL = ts.URL
	ts.Close()

	_, err := execute(t, "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send request")
}

func TestProjectsWorkflow(t *testing.T) {
	store := startDaemon(t)

	out, err := execute(t, "projects")
	require.NoError(t, err)
	assert.Contains(t, out, "No projects registered")

	dir := t.TempDir()
	out, err = execute(t, "add", "api", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Added project api")

	list, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := list[0].ID

	out, err = execute(t, "switch", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Switched to "+id)

	out, err = execute(t, "switch", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Already on "+id)

	out, err = execute(t, "projects")
	require.NoError(t, err)
	assert.Contains(t, out, "*")
	assert.Contains(t, out, dir)

	out, err = execute(t, "active")
	require.NoError(t, err)
	assert.Contains(t, out, "api ("+id+")")

	out, err = execute(t, "reload")
	require.NoError(t, err)
	assert.Contains(t, out, "Reloaded "+id)

	out, err = execute(t, "state", id)
	require.NoError(t, err)
	var st state.ProjectState
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, dir, st.Path)
}

func TestProjects_JSON(t *testing.T) {
	store := startDaemon(t)
	_, err := store.CreateProject(context.Background(), "web", t.TempDir())
	require.NoError(t, err)

	out, err := execute(t, "projects", "--json")
	require.NoError(t, err)

	var resp httpapi.ProjectsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Projects, 1)
	assert.Equal(t, "web", resp.Projects[0].Name)
}

func TestSwitch_Errors(t *testing.T) {
	startDaemon(t)

	_, err := execute(t, "switch", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, err = execute(t, "reload")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")

	_, err = execute(t, "switch")
	assert.Error(t, err, "project id is required")
}

func TestActive_None(t *testing.T) {
	startDaemon(t)

	out, err := execute(t, "active")
	require.NoError(t, err)
	assert.Contains(t, out, "No active project")
}

func TestPrintSwitch_Faults(t *testing.T) {
	outputJSON = false
	var buf bytes.Buffer
	err := printSwitch(&buf, httpapi.SwitchResponse{
		From:         "a",
		To:           "b",
		StateMissing: true,
		Faults: []httpapi.FaultResponse{
			{Handler: "git", Phase: "load", Error: "boom"},
			{Handler: "notes", Phase: "save", Error: "nil map", Panicked: true},
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Switched a -> b")
	assert.Contains(t, out, "hubctl reload")
	assert.Contains(t, out, "git failed in load: boom")
	assert.Contains(t, out, "notes panicked in save: nil map")
}

// syncBuffer is written by the watch loop and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch_PrintsEvents(t *testing.T) {
	ns, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second))
	t.Cleanup(ns.Shutdown)

	outputJSON = false
	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs([]string{"watch", "--nats-url", ns.ClientURL()})

	done := make(chan error, 1)
	go func() { done <- rootCmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Watching")
	}, 5*time.Second, 10*time.Millisecond)

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	pub, err := notify.NewPublisher(nc, notify.DefaultSubject, notify.WithCatalog(staticCatalog{
		&project.Project{ID: "p1", Name: "api", Path: "/src/api"},
	}))
	require.NoError(t, err)
	require.NoError(t, pub.PublishActive(ctx, "p1"))
	require.NoError(t, nc.Flush())

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "p1  api  /src/api")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

type staticCatalog []*project.Project

func (c staticCatalog) Get(_ context.Context, id string) (*project.Project, error) {
	for _, p := range c {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, project.ErrProjectNotFound
}

func (c staticCatalog) List(context.Context) ([]*project.Project, error) { return c, nil }
