package panels

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projecthub/internal/state"
)

const goProfile = `mode: set
pkg/a.go:1.1,3.2 3 1
pkg/a.go:4.1,6.2 1 0
pkg/b.go:1.1,2.2 4 0
pkg/b.go:1.1,2.2 4 1
`

func TestParseGoCoverProfile(t *testing.T) {
	cov, err := parseGoCoverProfile(bufio.NewScanner(strings.NewReader(goProfile)))
	require.NoError(t, err)

	// b.go's block appears twice (two test binaries) and is counted once.
	assert.Equal(t, 8, cov.Total)
	assert.Equal(t, 7, cov.Covered)
	assert.InDelta(t, 87.5, cov.Percent, 0.001)

	_, err = parseGoCoverProfile(bufio.NewScanner(strings.NewReader("mode: set\nbroken line\n")))
	assert.Error(t, err)
}

func TestParseLCOV(t *testing.T) {
	lcov := `TN:
SF:src/a.ts
LF:10
LH:5
end_of_record
SF:src/b.ts
LF:10
LH:10
end_of_record
`
	cov, err := parseLCOV(bufio.NewScanner(strings.NewReader(lcov)))
	require.NoError(t, err)
	assert.Equal(t, 20, cov.Total)
	assert.Equal(t, 15, cov.Covered)
	assert.InDelta(t, 75.0, cov.Percent, 0.001)

	empty, err := parseLCOV(bufio.NewScanner(strings.NewReader("")))
	require.NoError(t, err)
	assert.Zero(t, empty.Percent)
}

func TestTests_LoadReadsCoverage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "coverage"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "coverage", "lcov.info"), []byte("LF:4\nLH:1\n"), 0644))

	tp := NewTests(newCountingStore(), []string{"coverage.out", "coverage/lcov.info"}, 0, zap.NewNop())
	ps := &state.ProjectState{ID: "p", Path: dir, TestHistory: []state.TestRun{{ID: 1, Status: "failed"}}}
	require.NoError(t, tp.Load(context.Background(), loadContext(t, "", ps)))

	snap := tp.Snapshot()
	require.NotNil(t, snap.Coverage)
	assert.Equal(t, "coverage/lcov.info", snap.Coverage.File)
	assert.InDelta(t, 25.0, snap.Coverage.Percent, 0.001)
	assert.Len(t, snap.History, 1)
}

func TestTests_WatcherReloadsCoverage(t *testing.T) {
	dir := t.TempDir()
	tp := NewTests(newCountingStore(), []string{"coverage.out"}, 10*time.Millisecond, zap.NewNop())
	ctx := context.Background()
	sc := loadContext(t, "", &state.ProjectState{ID: "p", Path: dir})

	require.NoError(t, tp.Load(ctx, sc))
	assert.Nil(t, tp.Snapshot().Coverage)

	require.NoError(t, tp.AfterSwitch(ctx, sc))
	assert.True(t, tp.watching())
	defer tp.stop()

	// write atomically so the watcher never sees a partial profile
	tmp := filepath.Join(dir, "coverage.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(goProfile), 0644))
	require.NoError(t, os.Rename(tmp, filepath.Join(dir, "coverage.out")))

	assert.Eventually(t, func() bool {
		c := tp.Snapshot().Coverage
		return c != nil && c.Total == 8
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, tp.BeforeSwitch(ctx, sc))
	assert.False(t, tp.watching())
}

func TestTests_SaveAndHistoryCap(t *testing.T) {
	store := newCountingStore()
	tp := NewTests(store, nil, 0, zap.NewNop())
	ctx := context.Background()

	require.ErrorIs(t, tp.RecordRun(state.TestRun{}), ErrNoActiveProject)

	require.NoError(t, tp.Load(ctx, loadContext(t, "", &state.ProjectState{ID: "p", Path: t.TempDir()})))
	for i := 0; i < MaxTestHistory+5; i++ {
		require.NoError(t, tp.RecordRun(state.TestRun{ID: int64(i + 1), Status: "passed"}))
	}
	history := tp.Snapshot().History
	require.Len(t, history, MaxTestHistory)
	assert.Equal(t, int64(6), history[0].ID, "oldest runs are dropped")

	require.NoError(t, tp.Save(ctx, loadContext(t, "p", &state.ProjectState{ID: "q"})))
	assert.Len(t, store.states["p"].TestHistory, MaxTestHistory)
}

func TestTests_Discover(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"store_test.go":                  "package x\n\nfunc TestA(t *testing.T) {}\nfunc TestB(t *testing.T) {}\nfunc helper() {}\n",
		"test/integration/api_test.go":   "package integration\n\nfunc TestAPI(t *testing.T) {}\n",
		"web/e2e/login.spec.ts":          "test('logs in', () => {})\nit('logs out', () => {})\n",
		"tools/test_parse.py":            "def test_parse():\n    pass\n",
		"node_modules/dep/index.test.js": "it('skipped', () => {})\n",
		"main.go":                        "package main\n\nfunc TestLooksLikeATest() {}\n",
		"empty_test.go":                  "package x\n",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	tp := NewTests(newCountingStore(), nil, 0, zap.NewNop())
	ctx := context.Background()

	_, err := tp.Discover(ctx)
	require.ErrorIs(t, err, ErrNoActiveProject)

	require.NoError(t, tp.Load(ctx, loadContext(t, "", &state.ProjectState{ID: "p", Path: root})))
	d, err := tp.Discover(ctx)
	require.NoError(t, err)

	assert.Equal(t, 6, d.Total)
	assert.Equal(t, 3, d.Unit)
	assert.Equal(t, 1, d.Integration)
	assert.Equal(t, 2, d.E2E)

	var paths []string
	for _, f := range d.Files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"store_test.go", "test/integration/api_test.go", "tools/test_parse.py", "web/e2e/login.spec.ts"}, paths)
}
