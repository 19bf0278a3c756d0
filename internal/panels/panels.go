package panels

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projecthub/internal/ignore"
	"github.com/fyrsmithlabs/projecthub/internal/state"
	"github.com/fyrsmithlabs/projecthub/internal/workspace"
)

// Handler priorities. Lower runs earlier in every phase.
const (
	PriorityTerminal = 10
	PriorityGit      = 20
	PriorityTests    = 30
	PriorityNotes    = 40
	PriorityTodos    = 50
	PriorityPomodoro = 60
	PriorityFiles    = 70
	PriorityTools    = 80
	PriorityBrowser  = 85
	PriorityPrompts  = 90
	PriorityLayout   = 100
)

// ErrNoActiveProject is returned by panel mutations before any project is loaded.
var ErrNoActiveProject = errors.New("panel has no active project")

// Store is the part of state.Store panels persist through.
type Store interface {
	UpdateProjectState(ctx context.Context, projectID string, fn func(*state.ProjectState) error) error
}

// Backend is everything the full panel set persists through.
type Backend interface {
	Store
	GlobalStore
}

// Config holds panel tunables.
type Config struct {
	GitPollInterval    time.Duration
	CoverageFiles      []string
	CoverageReloadRate time.Duration
	Pomodoro           state.PomodoroSettings
}

// Set is the full panel collection of one daemon.
type Set struct {
	Terminal *Terminal
	Git      *Git
	Tests    *Tests
	Notes    *Notes
	Todos    *Todos
	Pomodoro *Pomodoro
	Files    *Files
	Tools    *Tools
	Browser  *Browser
	Prompts  *Prompts
	Layout   *Layout
}

// New creates every panel.
func New(store Backend, cfg Config, logger *zap.Logger) *Set {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Set{
		Terminal: NewTerminal(store, logger.Named("terminal")),
		Git:      NewGit(cfg.GitPollInterval, logger.Named("git")),
		Tests:    NewTests(store, cfg.CoverageFiles, cfg.CoverageReloadRate, logger.Named("tests")),
		Notes:    NewNotes(store),
		Todos:    NewTodos(store),
		Pomodoro: NewPomodoro(store, cfg.Pomodoro),
		Files:    NewFiles(store, ignore.NewDefaultParser(), logger.Named("files")),
		Tools:    NewTools(store, logger.Named("tools")),
		Browser:  NewBrowser(store),
		Prompts:  NewPrompts(store, store),
		Layout:   NewLayout(store, AvailableTabs),
	}
}

// Register adds every panel to the registry at its priority.
func (s *Set) Register(reg *workspace.Registry) error {
	entries := []struct {
		name     string
		priority int
		handler  workspace.Handler
	}{
		{"terminal", PriorityTerminal, s.Terminal},
		{"git", PriorityGit, s.Git},
		{"tests", PriorityTests, s.Tests},
		{"notes", PriorityNotes, s.Notes},
		{"todos", PriorityTodos, s.Todos},
		{"pomodoro", PriorityPomodoro, s.Pomodoro},
		{"files", PriorityFiles, s.Files},
		{"tools", PriorityTools, s.Tools},
		{"browser", PriorityBrowser, s.Browser},
		{"prompts", PriorityPrompts, s.Prompts},
		{"layout", PriorityLayout, s.Layout},
	}
	for _, e := range entries {
		if err := reg.Register(e.name, e.priority, e.handler); err != nil {
			return fmt.Errorf("register %s panel: %w", e.name, err)
		}
	}
	return nil
}

// Snapshot is a read-only view of every panel, for the API and dashboard.
type Snapshot struct {
	ProjectID string             `json:"project_id"`
	Terminal  TerminalSnapshot   `json:"terminal"`
	Git       GitStatus          `json:"git"`
	Tests     TestsSnapshot      `json:"tests"`
	Notes     string             `json:"notes"`
	Todos     []state.TodoItem   `json:"todos"`
	Pomodoro  PomodoroSnapshot   `json:"pomodoro"`
	Files     FilesSnapshot      `json:"files"`
	Tools     map[string]string  `json:"tools"`
	Browser   state.BrowserState `json:"browser"`
	Prompts   []state.Prompt     `json:"prompts"`
	Layout    LayoutSnapshot     `json:"layout"`
}

// Snapshot returns the current view of every panel.
func (s *Set) Snapshot() Snapshot {
	return Snapshot{
		ProjectID: s.ProjectID(),
		Terminal:  s.Terminal.Snapshot(),
		Git:       s.Git.Status(),
		Tests:     s.Tests.Snapshot(),
		Notes:     s.Notes.Text(),
		Todos:     s.Todos.List(),
		Pomodoro:  s.Pomodoro.Snapshot(),
		Files:     s.Files.Snapshot(),
		Tools:     s.Tools.Commands(),
		Browser:   s.Browser.Snapshot(),
		Prompts:   s.Prompts.List(),
		Layout:    s.Layout.Snapshot(),
	}
}

// ProjectID returns the project the panels were last loaded for. Layout
// loads last, so every panel shows this project once it is set.
func (s *Set) ProjectID() string {
	return s.Layout.ProjectID()
}

// Flush persists every panel to the project it was loaded for. Called on
// shutdown, since Save only runs when switching away.
func (s *Set) Flush(ctx context.Context) error {
	persisters := []interface{ Persist(context.Context) error }{
		s.Terminal, s.Tests, s.Notes, s.Todos, s.Pomodoro,
		s.Files, s.Browser, s.Prompts, s.Layout,
	}
	var errs []error
	for _, p := range persisters {
		if err := skipUnbound(p.Persist(ctx)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops background work.
func (s *Set) Close() error {
	s.Git.stop()
	return s.Tests.stop()
}

// bound tracks the project a panel currently shows. Panels persist to this
// project, never to the switch's outgoing id: after a switch whose state
// fetch failed they still hold the earlier project's data.
type bound struct {
	mu        sync.RWMutex
	projectID string
}

func (b *bound) bind(id string) {
	b.mu.Lock()
	b.projectID = id
	b.mu.Unlock()
}

// ProjectID returns the project the panel was last loaded for.
func (b *bound) ProjectID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.projectID
}

func (b *bound) active() (string, error) {
	if id := b.ProjectID(); id != "" {
		return id, nil
	}
	return "", ErrNoActiveProject
}

// skipUnbound drops ErrNoActiveProject: a panel that never loaded a project
// has nothing to write.
func skipUnbound(err error) error {
	if errors.Is(err, ErrNoActiveProject) {
		return nil
	}
	return err
}

// requireState guards Load hooks against a missing fetched state.
func requireState(sc *workspace.SwitchContext) (*state.ProjectState, error) {
	if !sc.HasState() {
		return nil, fmt.Errorf("no project state for %s", sc.NewProjectID)
	}
	return sc.ProjectState, nil
}
