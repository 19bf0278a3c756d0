package panels

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projecthub/internal/state"
)

func TestGit_NotARepository(t *testing.T) {
	g := NewGit(time.Hour, zap.NewNop())
	ps := &state.ProjectState{ID: "p", Path: t.TempDir()}

	require.NoError(t, g.Load(context.Background(), loadContext(t, "", ps)))
	st := g.Status()
	assert.False(t, st.IsRepo)
	assert.Empty(t, st.Branch)
}

func TestGit_Status(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0644))

	g := NewGit(time.Hour, zap.NewNop())
	ps := &state.ProjectState{ID: "p", Path: dir}
	require.NoError(t, g.Load(context.Background(), loadContext(t, "", ps)))

	st := g.Status()
	assert.True(t, st.IsRepo)
	assert.Equal(t, "master", st.Branch, "unborn branch is read from HEAD")
	assert.Empty(t, st.Head)
	assert.Equal(t, []string{"main.go"}, st.Changed)
	assert.False(t, st.Clean)

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("main.go")
	require.NoError(t, err)
	hash, err := wt.Commit("init", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	require.NoError(t, g.Refresh())
	st = g.Status()
	assert.Equal(t, "master", st.Branch)
	assert.Equal(t, hash.String(), st.Head)
	assert.True(t, st.Clean)
	assert.Empty(t, st.Changed)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("package main\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package main\n"), 0644))
	require.NoError(t, g.Refresh())
	assert.Equal(t, []string{"a.go", "b.go"}, g.Status().Changed)
}

func TestGit_PollerLifecycle(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	g := NewGit(10*time.Millisecond, zap.NewNop())
	ctx := context.Background()
	sc := loadContext(t, "", &state.ProjectState{ID: "p", Path: dir})

	require.NoError(t, g.Load(ctx, sc))
	require.NoError(t, g.AfterSwitch(ctx, sc))
	assert.True(t, g.polling())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0644))
	assert.Eventually(t, func() bool {
		return len(g.Status().Changed) == 1
	}, 2*time.Second, 10*time.Millisecond, "poller picks up changes")

	require.NoError(t, g.BeforeSwitch(ctx, sc))
	assert.False(t, g.polling())
	require.NoError(t, g.BeforeSwitch(ctx, sc), "stopping twice is safe")
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, content, msg string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	_, err = wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func TestGit_History(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	g := NewGit(time.Hour, zap.NewNop())
	ctx := context.Background()

	_, err = g.History(ctx, 0)
	assert.ErrorIs(t, err, ErrNoActiveProject)

	require.NoError(t, g.Load(ctx, loadContext(t, "", &state.ProjectState{ID: "p", Path: dir})))
	history, err := g.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, history, "unborn branch")

	commitFile(t, repo, dir, "main.go", "package main\n", "init")
	commitFile(t, repo, dir, "main.go", "package main\n\nfunc main() {}\n", "add main\n\nwith a body")

	history, err = g.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "add main", history[0].Subject)
	assert.Equal(t, "with a body", history[0].Body)
	assert.Equal(t, "test", history[0].Author)
	assert.Len(t, history[0].ShortHash, 7)
	require.Len(t, history[0].Files, 1)
	assert.Equal(t, "main.go", history[0].Files[0].Path)
	assert.Equal(t, 2, history[0].Insertions)
	assert.Equal(t, "init", history[1].Subject)

	history, err = g.History(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestGit_Diff(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	commitFile(t, repo, dir, "main.go", "package main\n\nvar a = 1\n", "init")

	g := NewGit(time.Hour, zap.NewNop())
	require.NoError(t, g.Load(context.Background(), loadContext(t, "", &state.ProjectState{ID: "p", Path: dir})))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nvar a = 2\n"), 0644))
	fd, err := g.Diff("main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main\n\nvar a = 1\n", fd.OldContent)
	assert.Equal(t, "package main\n\nvar a = 2\n", fd.NewContent)
	assert.Contains(t, fd.Diff, "-var a = 1\n")
	assert.Contains(t, fd.Diff, "+var a = 2\n")
	assert.Contains(t, fd.Diff, " package main\n")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.go"), []byte("package main\n"), 0644))
	fd, err = g.Diff("new.go")
	require.NoError(t, err)
	assert.Empty(t, fd.OldContent)
	assert.Equal(t, "+package main\n", fd.Diff)

	_, err = g.Diff("../outside")
	assert.Error(t, err)
}

func TestGit_HistoryOutsideRepository(t *testing.T) {
	g := NewGit(time.Hour, zap.NewNop())
	require.NoError(t, g.Load(context.Background(), loadContext(t, "", &state.ProjectState{ID: "p", Path: t.TempDir()})))

	_, err := g.History(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNotRepository)
	_, err = g.Diff("main.go")
	assert.ErrorIs(t, err, ErrNotRepository)
}
