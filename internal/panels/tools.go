package panels

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projecthub/internal/state"
	"github.com/fyrsmithlabs/projecthub/internal/workspace"
)

// ToolsFile is the per-project tool configuration, read from the project root.
const ToolsFile = ".projecthub.toml"

// ErrEmptyToolName is returned when an override has no tool name.
var ErrEmptyToolName = errors.New("tool name cannot be empty")

// ToolsConfig is the layout of ToolsFile.
//
//	[tools]
//	test = "go test ./..."
//	lint = "golangci-lint run"
type ToolsConfig struct {
	Tools map[string]string `toml:"tools"`
}

// Tools resolves the commands available for the active project: the
// project's ToolsFile merged with the overrides kept in its state.
type Tools struct {
	bound
	store  Store
	logger *zap.Logger

	mu        sync.RWMutex
	file      map[string]string
	overrides map[string]string
}

// NewTools creates the tools panel.
func NewTools(store Store, logger *zap.Logger) *Tools {
	return &Tools{
		store:     store,
		logger:    logger,
		file:      map[string]string{},
		overrides: map[string]string{},
	}
}

// Load parses the incoming project's ToolsFile and overrides. A malformed
// file is reported, while the overrides still apply.
func (t *Tools) Load(_ context.Context, sc *workspace.SwitchContext) error {
	ps, err := requireState(sc)
	if err != nil {
		return err
	}

	file, parseErr := readToolsFile(filepath.Join(ps.Path, ToolsFile))

	t.mu.Lock()
	t.file = file
	t.overrides = cloneMap(ps.Tools)
	t.mu.Unlock()

	t.bind(sc.NewProjectID)
	return parseErr
}

// Commands returns the merged tool commands. Overrides win.
func (t *Tools) Commands() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := cloneMap(t.file)
	for k, v := range t.overrides {
		out[k] = v
	}
	return out
}

// Names returns the tool names, sorted.
func (t *Tools) Names() []string {
	cmds := t.Commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetOverride stores an override for the active project. An empty command
// removes the override.
func (t *Tools) SetOverride(ctx context.Context, name, command string) error {
	id, err := t.active()
	if err != nil {
		return err
	}
	if name == "" {
		return ErrEmptyToolName
	}

	t.mu.Lock()
	if command == "" {
		delete(t.overrides, name)
	} else {
		t.overrides[name] = command
	}
	overrides := cloneMap(t.overrides)
	t.mu.Unlock()

	return t.store.UpdateProjectState(ctx, id, func(ps *state.ProjectState) error {
		ps.Tools = overrides
		return nil
	})
}

func readToolsFile(path string) (map[string]string, error) {
	var cfg ToolsConfig
	_, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return map[string]string{}, fmt.Errorf("parse %s: %w", ToolsFile, err)
	}
	if cfg.Tools == nil {
		cfg.Tools = map[string]string{}
	}
	return cfg.Tools, nil
}

func cloneMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
