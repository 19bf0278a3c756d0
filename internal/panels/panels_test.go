package panels

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/projecthub/internal/project"
	"github.com/fyrsmithlabs/projecthub/internal/state"
	"github.com/fyrsmithlabs/projecthub/internal/workspace"
)

// env is a daemon in miniature: a real store, every panel and a coordinator.
type env struct {
	store  *state.Store
	panels *Set
	reg    *workspace.Registry
	coord  *workspace.Coordinator
	one    *project.Project
	two    *project.Project
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	store, err := state.Open(filepath.Join(t.TempDir(), "state.json"), state.WithDebounce(time.Hour))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	one, err := store.CreateProject(ctx, "one", t.TempDir())
	require.NoError(t, err)
	two, err := store.CreateProject(ctx, "two", t.TempDir())
	require.NoError(t, err)

	set := New(store, Config{
		GitPollInterval:    20 * time.Millisecond,
		CoverageFiles:      []string{"coverage.out", "coverage/lcov.info"},
		CoverageReloadRate: 10 * time.Millisecond,
		Pomodoro:           state.PomodoroSettings{SessionMinutes: 25, BreakMinutes: 5},
	}, nil)
	t.Cleanup(func() { _ = set.Close() })

	reg := workspace.NewRegistry(nil)
	require.NoError(t, set.Register(reg))

	return &env{
		store:  store,
		panels: set,
		reg:    reg,
		coord:  workspace.NewCoordinator(reg, store, store),
		one:    one,
		two:    two,
	}
}

func (e *env) switchTo(t *testing.T, p *project.Project) *workspace.Result {
	t.Helper()
	res, err := e.coord.Switch(context.Background(), p.ID)
	require.NoError(t, err)
	require.Empty(t, res.Faults)
	return res
}

func TestSet_RegisterOrder(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t,
		[]string{"terminal", "git", "tests", "notes", "todos", "pomodoro", "files", "tools", "browser", "prompts", "layout"},
		e.reg.Names())

	err := e.panels.Register(e.reg)
	require.NoError(t, err, "re-registering replaces")
	assert.Equal(t, 11, e.reg.Len())
}

func TestSet_MutationsNeedActiveProject(t *testing.T) {
	e := newEnv(t)

	_, err := e.panels.Todos.Add("x")
	assert.ErrorIs(t, err, ErrNoActiveProject)
	assert.ErrorIs(t, e.panels.Notes.Set("x"), ErrNoActiveProject)
	_, err = e.panels.Terminal.Open()
	assert.ErrorIs(t, err, ErrNoActiveProject)
	assert.ErrorIs(t, e.panels.Pomodoro.Start(), ErrNoActiveProject)
	_, err = e.panels.Browser.OpenTab("http://localhost:3000", "")
	assert.ErrorIs(t, err, ErrNoActiveProject)
	_, err = e.panels.Prompts.Add(context.Background(), state.Prompt{Title: "t", Content: "c"})
	assert.ErrorIs(t, err, ErrNoActiveProject)
	assert.NoError(t, e.panels.Flush(context.Background()), "nothing to flush is not an error")
}

func TestSet_SwitchRoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.switchTo(t, e.one)
	assert.Equal(t, e.one.ID, e.panels.Snapshot().ProjectID)

	todo, err := e.panels.Todos.Add("ship it")
	require.NoError(t, err)
	require.NoError(t, e.panels.Notes.Set("# one"))
	term, err := e.panels.Terminal.Open()
	require.NoError(t, err)
	require.NoError(t, e.panels.Layout.SetTab("notes"))
	require.NoError(t, e.panels.Layout.SetSplit(true, 30))
	require.NoError(t, e.panels.Files.Select("main.go"))
	require.NoError(t, e.panels.Tests.RecordRun(state.TestRun{Runner: "go", Status: "passed", Passed: 3, Total: 3}))
	tab, err := e.panels.Browser.OpenTab("http://localhost:5173", "vite")
	require.NoError(t, err)
	prompt, err := e.panels.Prompts.Add(ctx, state.Prompt{Title: "review", Content: "review the diff"})
	require.NoError(t, err)

	e.switchTo(t, e.two)

	snap := e.panels.Snapshot()
	assert.Equal(t, e.two.ID, snap.ProjectID)
	assert.Empty(t, snap.Todos)
	assert.Empty(t, snap.Notes)
	assert.Empty(t, snap.Terminal.Sessions)
	assert.Equal(t, "terminal", snap.Layout.ActiveTab)
	assert.Empty(t, snap.Tests.History)
	assert.Empty(t, snap.Browser.Tabs)
	assert.Empty(t, snap.Prompts)

	persisted, err := e.store.FetchProjectState(ctx, e.one.ID)
	require.NoError(t, err)
	require.Len(t, persisted.Todos, 1)
	assert.Equal(t, todo.ID, persisted.Todos[0].ID)
	assert.Equal(t, "# one", persisted.Notes)
	assert.Contains(t, persisted.Terminals, term.ID)
	assert.Equal(t, term.ID, persisted.ActiveTerminalID)
	assert.Equal(t, "notes", persisted.ActiveTab)
	assert.True(t, persisted.SplitView)
	assert.Equal(t, float64(30), persisted.SplitRatio)
	assert.Equal(t, "main.go", persisted.Files.Selected)
	assert.Len(t, persisted.TestHistory, 1)
	require.NotNil(t, persisted.Pomodoro)
	assert.Equal(t, PhaseWork, persisted.Pomodoro.Phase)
	require.Len(t, persisted.Browser.Tabs, 1)
	assert.Equal(t, tab.ID, persisted.Browser.ActiveTabID)
	require.Len(t, persisted.Prompts, 1)
	assert.Equal(t, prompt.ID, persisted.Prompts[0].ID)

	e.switchTo(t, e.one)

	snap = e.panels.Snapshot()
	assert.Equal(t, "# one", snap.Notes)
	require.Len(t, snap.Todos, 1)
	assert.Equal(t, "ship it", snap.Todos[0].Text)
	require.Len(t, snap.Terminal.Sessions, 1)
	assert.Equal(t, term.ID, snap.Terminal.ActiveID)
	assert.True(t, snap.Terminal.Visible)
	assert.Equal(t, "notes", snap.Layout.ActiveTab)
	assert.Equal(t, "main.go", snap.Files.Selected)
	assert.Len(t, snap.Tests.History, 1)
	assert.Equal(t, tab.ID, snap.Browser.ActiveTabID)
	require.Len(t, snap.Prompts, 1)
	assert.Equal(t, "review", snap.Prompts[0].Title)
}

// flakyBackend fails state fetches for one project.
type flakyBackend struct {
	*state.Store
	mu     sync.Mutex
	failID string
}

func (b *flakyBackend) failFetch(id string) {
	b.mu.Lock()
	b.failID = id
	b.mu.Unlock()
}

func (b *flakyBackend) FetchProjectState(ctx context.Context, id string) (*state.ProjectState, error) {
	b.mu.Lock()
	fail := b.failID == id
	b.mu.Unlock()
	if fail {
		return nil, errors.New("backend unavailable")
	}
	return b.Store.FetchProjectState(ctx, id)
}

func TestSet_StateMissingSwitchKeepsProjectsApart(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	backend := &flakyBackend{Store: e.store}
	e.coord = workspace.NewCoordinator(e.reg, e.store, backend)

	e.switchTo(t, e.one)
	_, err := e.panels.Todos.Add("belongs to one")
	require.NoError(t, err)
	require.NoError(t, e.panels.Notes.Set("one's notes"))
	_, err = e.panels.Terminal.Open()
	require.NoError(t, err)
	require.NoError(t, e.panels.Layout.SetTab("git"))

	backend.failFetch(e.two.ID)
	res, err := e.coord.Switch(ctx, e.two.ID)
	require.ErrorIs(t, err, workspace.ErrStateFetch)
	require.True(t, res.StateMissing)
	assert.Equal(t, e.one.ID, e.panels.ProjectID(), "panels still hold the earlier project")

	backend.failFetch("")
	e.switchTo(t, e.one)

	two, err := e.store.FetchProjectState(ctx, e.two.ID)
	require.NoError(t, err)
	assert.Empty(t, two.Todos)
	assert.Empty(t, two.Notes)
	assert.Empty(t, two.Terminals)
	assert.Equal(t, state.DefaultTab, two.ActiveTab)
	assert.Nil(t, two.Pomodoro)

	snap := e.panels.Snapshot()
	assert.Equal(t, e.one.ID, snap.ProjectID)
	require.Len(t, snap.Todos, 1)
	assert.Equal(t, "belongs to one", snap.Todos[0].Text)
	assert.Equal(t, "one's notes", snap.Notes)
	assert.Equal(t, "git", snap.Layout.ActiveTab)
}

func TestSet_ReloadAfterStateMissingSwitch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	backend := &flakyBackend{Store: e.store}
	e.coord = workspace.NewCoordinator(e.reg, e.store, backend)

	e.switchTo(t, e.one)
	_, err := e.panels.Todos.Add("belongs to one")
	require.NoError(t, err)

	backend.failFetch(e.two.ID)
	_, err = e.coord.Switch(ctx, e.two.ID)
	require.Error(t, err)

	backend.failFetch("")
	res, err := e.coord.Reload(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Faults)
	assert.Equal(t, e.two.ID, e.panels.ProjectID())
	assert.Empty(t, e.panels.Todos.List(), "two's panels load two's state")

	one, err := e.store.FetchProjectState(ctx, e.one.ID)
	require.NoError(t, err)
	require.Len(t, one.Todos, 1, "one's edits were saved before leaving it")

	e.switchTo(t, e.one)
	two, err := e.store.FetchProjectState(ctx, e.two.ID)
	require.NoError(t, err)
	assert.Empty(t, two.Todos)
}

func TestSet_Flush(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.switchTo(t, e.one)
	require.NoError(t, e.panels.Notes.Set("unsaved"))
	_, err := e.panels.Todos.Add("unsaved todo")
	require.NoError(t, err)
	_, err = e.panels.Browser.AddBookmark("docs", "https://pkg.go.dev")
	require.NoError(t, err)
	require.NoError(t, e.panels.Flush(ctx))

	ps, err := e.store.FetchProjectState(ctx, e.one.ID)
	require.NoError(t, err)
	assert.Equal(t, "unsaved", ps.Notes)
	assert.Len(t, ps.Todos, 1)
	assert.Len(t, ps.Browser.Bookmarks, 1)
	assert.False(t, e.panels.Notes.Dirty())
}

func TestSet_Reload(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.switchTo(t, e.one)
	require.NoError(t, e.store.UpdateProjectState(ctx, e.one.ID, func(ps *state.ProjectState) error {
		ps.Notes = "edited elsewhere"
		return nil
	}))

	res, err := e.coord.Reload(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Faults)
	assert.Equal(t, "edited elsewhere", e.panels.Notes.Text())
	assert.True(t, e.panels.Git.polling(), "background work runs after reload")
}

// countingStore counts writes per project.
type countingStore struct {
	mu     sync.Mutex
	writes map[string]int
	states map[string]*state.ProjectState
}

func newCountingStore() *countingStore {
	return &countingStore{writes: map[string]int{}, states: map[string]*state.ProjectState{}}
}

func (s *countingStore) UpdateProjectState(_ context.Context, id string, fn func(*state.ProjectState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.states[id]
	if !ok {
		ps = &state.ProjectState{ID: id}
		s.states[id] = ps
	}
	s.writes[id]++
	return fn(ps)
}

func (s *countingStore) count(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[id]
}

// loadContext builds the context Load and AfterSwitch hooks receive.
func loadContext(t *testing.T, prevID string, ps *state.ProjectState) *workspace.SwitchContext {
	t.Helper()
	return &workspace.SwitchContext{
		SwitchID:          "test",
		PreviousProjectID: prevID,
		NewProjectID:      ps.ID,
		NewProject:        ps.Project(),
		ProjectState:      ps,
	}
}

func TestRequireState(t *testing.T) {
	_, err := requireState(&workspace.SwitchContext{NewProjectID: "p"})
	assert.Error(t, err)
}
