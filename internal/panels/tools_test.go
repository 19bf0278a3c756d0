package panels

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projecthub/internal/state"
)

func TestTools_MergesFileAndOverrides(t *testing.T) {
	root := t.TempDir()
	toml := `[tools]
test = "go test ./..."
lint = "golangci-lint run"
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ToolsFile), []byte(toml), 0644))

	store := newCountingStore()
	tl := NewTools(store, zap.NewNop())
	ctx := context.Background()
	ps := &state.ProjectState{ID: "a", Path: root, Tools: map[string]string{"test": "make test"}}

	require.NoError(t, tl.Load(ctx, loadContext(t, "", ps)))
	assert.Equal(t, map[string]string{"test": "make test", "lint": "golangci-lint run"}, tl.Commands())
	assert.Equal(t, []string{"lint", "test"}, tl.Names())

	require.NoError(t, tl.SetOverride(ctx, "fmt", "gofmt -l ."))
	assert.Equal(t, "gofmt -l .", store.states["a"].Tools["fmt"])

	require.NoError(t, tl.SetOverride(ctx, "test", ""))
	assert.Equal(t, "go test ./...", tl.Commands()["test"], "removing an override restores the file command")
	assert.Error(t, tl.SetOverride(ctx, "", "x"))
}

func TestTools_MissingAndMalformedFile(t *testing.T) {
	tl := NewTools(newCountingStore(), zap.NewNop())
	ctx := context.Background()

	root := t.TempDir()
	ps := &state.ProjectState{ID: "a", Path: root, Tools: map[string]string{"run": "go run ."}}
	require.NoError(t, tl.Load(ctx, loadContext(t, "", ps)))
	assert.Equal(t, map[string]string{"run": "go run ."}, tl.Commands())

	require.NoError(t, os.WriteFile(filepath.Join(root, ToolsFile), []byte("[tools\nbroken"), 0644))
	err := tl.Load(ctx, loadContext(t, "", ps))
	require.Error(t, err)
	assert.Equal(t, map[string]string{"run": "go run ."}, tl.Commands(), "overrides survive a bad file")
}
