package state

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/projecthub/internal/project"
)

type recordingPublisher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (p *recordingPublisher) PublishActive(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
	return p.err
}

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path, append([]Option{WithDebounce(time.Hour)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_MissingFile(t *testing.T) {
	s := openTestStore(t)

	list, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, s.ActiveProjectID())

	_, pomodoro := s.Settings()
	assert.Equal(t, 25, pomodoro.SessionMinutes)
	assert.Equal(t, 5, pomodoro.BreakMinutes)
}

func TestOpen_Corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := Open(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStateCorrupted))
}

func TestOpen_RepairsOlderFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	raw := `{
		"version": 1,
		"activeProjectId": "gone",
		"projects": {
			"p1": {"id": "p1", "name": "one", "path": "/tmp/one"},
			"p2": null
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0600))

	s, err := Open(path)
	require.NoError(t, err)

	assert.Empty(t, s.ActiveProjectID(), "dangling active id should be dropped")

	ps, err := s.FetchProjectState(context.Background(), "p1")
	require.NoError(t, err)
	assert.NotNil(t, ps.Terminals)
	assert.NotNil(t, ps.Todos)
	assert.NotNil(t, ps.Tools)
	assert.Equal(t, DefaultTab, ps.ActiveTab)
	assert.Equal(t, float64(50), ps.SplitRatio)

	_, err = s.Get(context.Background(), "p2")
	assert.True(t, errors.Is(err, project.ErrProjectNotFound))
}

func TestStore_CreateProject(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	p, err := s.CreateProject(ctx, "api", dir)
	require.NoError(t, err)
	assert.NoError(t, p.Validate())
	assert.Equal(t, dir, p.Path)
	assert.Equal(t, project.DefaultColors[0], p.Color)
	assert.Equal(t, project.DefaultIcons[0], p.Icon)

	second, err := s.CreateProject(ctx, "web", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, project.DefaultColors[1], second.Color)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestStore_CreateProject_Errors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := s.CreateProject(ctx, "", dir)
	assert.ErrorIs(t, err, project.ErrEmptyProjectName)

	_, err = s.CreateProject(ctx, "x", "")
	assert.ErrorIs(t, err, project.ErrEmptyProjectPath)

	_, err = s.CreateProject(ctx, "x", filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, project.ErrInvalidProjectPath)

	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))
	_, err = s.CreateProject(ctx, "x", file)
	assert.ErrorIs(t, err, ErrNotDirectory)

	_, err = s.CreateProject(ctx, "first", dir)
	require.NoError(t, err)
	_, err = s.CreateProject(ctx, "again", dir)
	assert.ErrorIs(t, err, project.ErrProjectExists)
}

func TestStore_DeleteProject_ClearsActive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "api", t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.NotifyActiveProject(ctx, p.ID))
	assert.Equal(t, p.ID, s.ActiveProjectID())

	require.NoError(t, s.DeleteProject(ctx, p.ID))
	assert.Empty(t, s.ActiveProjectID())

	err = s.DeleteProject(ctx, p.ID)
	assert.ErrorIs(t, err, project.ErrProjectNotFound)
}

func TestStore_FetchProjectState_ReturnsSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "api", t.TempDir())
	require.NoError(t, err)

	ps, err := s.FetchProjectState(ctx, p.ID)
	require.NoError(t, err)
	ps.Notes = "scribble"
	ps.Todos = append(ps.Todos, TodoItem{ID: "t1"})
	ps.Tools["lint"] = "golangci-lint run"

	fresh, err := s.FetchProjectState(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, fresh.Notes)
	assert.Empty(t, fresh.Todos)
	assert.Empty(t, fresh.Tools)

	_, err = s.FetchProjectState(ctx, "missing")
	assert.ErrorIs(t, err, project.ErrProjectNotFound)

	// a switch keeps reading state after its caller went away
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	ps, err = s.FetchProjectState(cancelled, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, ps.ID)
}

func TestStore_UpdateProjectState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "api", t.TempDir())
	require.NoError(t, err)

	err = s.UpdateProjectState(ctx, p.ID, func(ps *ProjectState) error {
		ps.Notes = "# todo"
		ps.Tools = nil
		return nil
	})
	require.NoError(t, err)

	ps, err := s.FetchProjectState(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "# todo", ps.Notes)
	assert.NotNil(t, ps.Tools, "update should repair nil collections")

	boom := errors.New("boom")
	err = s.UpdateProjectState(ctx, p.ID, func(*ProjectState) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = s.UpdateProjectState(ctx, "missing", func(*ProjectState) error { return nil })
	assert.ErrorIs(t, err, project.ErrProjectNotFound)
}

func TestStore_NotifyActiveProject(t *testing.T) {
	pub := &recordingPublisher{}
	s := openTestStore(t, WithPublisher(pub))
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "api", t.TempDir())
	require.NoError(t, err)

	before := time.Now().UTC()
	require.NoError(t, s.NotifyActiveProject(ctx, p.ID))
	assert.Equal(t, p.ID, s.ActiveProjectID())
	assert.Equal(t, []string{p.ID}, pub.ids)

	ps, err := s.FetchProjectState(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, ps.LastOpened.Before(before))

	err = s.NotifyActiveProject(ctx, "missing")
	assert.ErrorIs(t, err, project.ErrProjectNotFound)
	assert.Equal(t, p.ID, s.ActiveProjectID())
}

func TestStore_NotifyActiveProject_PublisherError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats down")}
	s := openTestStore(t, WithPublisher(pub))
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "api", t.TempDir())
	require.NoError(t, err)

	err = s.NotifyActiveProject(ctx, p.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats down")
	assert.Equal(t, p.ID, s.ActiveProjectID(), "active id is recorded before publishing")
}

func TestStore_SetPublisher(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "api", t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.NotifyActiveProject(ctx, p.ID))

	pub := &recordingPublisher{}
	s.SetPublisher(pub)
	require.NoError(t, s.NotifyActiveProject(ctx, p.ID))
	assert.Equal(t, []string{p.ID}, pub.ids)
}

func TestStore_ClearAllTerminals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "api", t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.UpdateProjectState(ctx, p.ID, func(ps *ProjectState) error {
		ps.Terminals["t1"] = &TerminalState{ID: "t1", ProjectID: p.ID, Name: "Terminal 1", Running: true}
		ps.ActiveTerminalID = "t1"
		return nil
	}))

	s.ClearAllTerminals()

	ps, err := s.FetchProjectState(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, ps.Terminals)
	assert.Empty(t, ps.ActiveTerminalID)
}

func TestStore_SaveSync_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	s, err := Open(path, WithDebounce(time.Hour))
	require.NoError(t, err)

	p, err := s.CreateProject(ctx, "api", t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.NotifyActiveProject(ctx, p.ID))
	require.NoError(t, s.SaveSync())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, p.ID, reopened.ActiveProjectID())
	got, err := reopened.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Path, got.Path)
}

func TestStore_DebouncedSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path, WithDebounce(200*time.Millisecond))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.CreateProject(ctx, "p", t.TempDir())
		require.NoError(t, err)
	}

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing written inside the debounce window")

	require.Eventually(t, func() bool {
		raw, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		var st AppState
		if json.Unmarshal(raw, &st) != nil {
			return false
		}
		return len(st.Projects) == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStore_CloseFlushesAndStopsSaving(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path, WithDebounce(time.Hour))
	require.NoError(t, err)

	_, err = s.CreateProject(context.Background(), "api", t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var st AppState
	require.NoError(t, json.Unmarshal(raw, &st))
	assert.Len(t, st.Projects, 1)
	assert.Equal(t, CurrentVersion, st.Version)
}

func TestStore_ConcurrentFlushesKeepNewestSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path, WithDebounce(0))
	require.NoError(t, err)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "api", t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.UpdateProjectState(ctx, p.ID, func(ps *ProjectState) error {
				ps.TestHistory = append(ps.TestHistory, TestRun{ID: int64(i)})
				return nil
			})
			_ = s.SaveSync()
		}(i)
	}
	wg.Wait()
	require.NoError(t, s.Close())

	// background flushes started by Save may still land after Close; every
	// one of them must carry the final history.
	require.Eventually(t, func() bool {
		raw, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		var st AppState
		if json.Unmarshal(raw, &st) != nil {
			return false
		}
		ps, ok := st.Projects[p.ID]
		return ok && len(ps.TestHistory) == 50
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var st AppState
	require.NoError(t, json.Unmarshal(raw, &st))
	assert.Len(t, st.Projects[p.ID].TestHistory, 50, "an older snapshot overwrote a newer one")
}

func TestStore_GlobalPrompts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path, WithDebounce(time.Hour))
	require.NoError(t, err)
	ctx := context.Background()

	assert.Empty(t, s.GlobalPrompts())

	err = s.UpdateGlobalPrompts(ctx, func(ps []Prompt) ([]Prompt, error) {
		return append(ps, Prompt{ID: "g1", Title: "review", IsGlobal: true}), nil
	})
	require.NoError(t, err)

	got := s.GlobalPrompts()
	require.Len(t, got, 1)
	got[0].Title = "mutated"
	assert.Equal(t, "review", s.GlobalPrompts()[0].Title)

	boom := errors.New("rejected")
	err = s.UpdateGlobalPrompts(ctx, func([]Prompt) ([]Prompt, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Len(t, s.GlobalPrompts(), 1)

	require.NoError(t, s.Close())
	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "g1", reopened.GlobalPrompts()[0].ID)
}
