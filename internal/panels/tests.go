package panels

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/projecthub/internal/state"
	"github.com/fyrsmithlabs/projecthub/internal/workspace"
)

// MaxTestHistory caps the runs kept per project.
const MaxTestHistory = 50

// Coverage is the parsed content of one coverage file.
type Coverage struct {
	File      string    `json:"file"`
	Percent   float64   `json:"percent"`
	Covered   int       `json:"covered"`
	Total     int       `json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TestsSnapshot is a read-only view of the tests panel.
type TestsSnapshot struct {
	History  []state.TestRun `json:"history"`
	Coverage *Coverage       `json:"coverage,omitempty"`
}

// Tests keeps the test-run history and watches coverage files while the
// project is active.
type Tests struct {
	bound
	store   Store
	files   []string
	limiter *rate.Limiter
	logger  *zap.Logger

	mu       sync.RWMutex
	root     string
	history  []state.TestRun
	coverage *Coverage

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewTests creates the tests panel. files are coverage paths relative to
// the project root; reloads are limited to one per reloadRate.
func NewTests(store Store, files []string, reloadRate time.Duration, logger *zap.Logger) *Tests {
	limit := rate.Inf
	if reloadRate > 0 {
		limit = rate.Every(reloadRate)
	}
	return &Tests{
		store:   store,
		files:   files,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// BeforeSwitch stops the coverage watcher.
func (t *Tests) BeforeSwitch(context.Context, *workspace.SwitchContext) error {
	return t.stop()
}

// Save persists the test history.
func (t *Tests) Save(ctx context.Context, _ *workspace.SwitchContext) error {
	return skipUnbound(t.Persist(ctx))
}

// Persist writes the history to the bound project.
func (t *Tests) Persist(ctx context.Context) error {
	id, err := t.active()
	if err != nil {
		return err
	}

	t.mu.RLock()
	history := append([]state.TestRun(nil), t.history...)
	t.mu.RUnlock()

	return t.store.UpdateProjectState(ctx, id, func(ps *state.ProjectState) error {
		ps.TestHistory = history
		return nil
	})
}

// Load restores the history and reads coverage once.
func (t *Tests) Load(_ context.Context, sc *workspace.SwitchContext) error {
	ps, err := requireState(sc)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.root = ps.Path
	t.history = append([]state.TestRun(nil), ps.TestHistory...)
	t.coverage = nil
	t.mu.Unlock()
	t.bind(sc.NewProjectID)

	return t.reloadCoverage()
}

// AfterSwitch starts watching the coverage files.
func (t *Tests) AfterSwitch(context.Context, *workspace.SwitchContext) error {
	return t.start()
}

// RecordRun appends a run to the active project's history.
func (t *Tests) RecordRun(run state.TestRun) error {
	if _, err := t.active(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if run.ID == 0 {
		run.ID = time.Now().UnixNano()
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}
	t.history = append(t.history, run)
	if n := len(t.history); n > MaxTestHistory {
		t.history = append([]state.TestRun(nil), t.history[n-MaxTestHistory:]...)
	}
	return nil
}

// Snapshot returns the history and current coverage.
func (t *Tests) Snapshot() TestsSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := TestsSnapshot{History: append([]state.TestRun(nil), t.history...)}
	if t.coverage != nil {
		c := *t.coverage
		snap.Coverage = &c
	}
	return snap
}

// reloadCoverage reads the first coverage file that exists.
func (t *Tests) reloadCoverage() error {
	t.mu.RLock()
	root := t.root
	t.mu.RUnlock()

	for _, name := range t.files {
		path := filepath.Join(root, name)
		cov, err := parseCoverageFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		cov.File = name

		t.mu.Lock()
		if t.root == root {
			t.coverage = cov
		}
		t.mu.Unlock()
		return nil
	}
	return nil
}

func (t *Tests) start() error {
	t.watchMu.Lock()
	defer t.watchMu.Unlock()

	if t.watcher != nil {
		return nil
	}

	t.mu.RLock()
	root := t.root
	t.mu.RUnlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create coverage watcher: %w", err)
	}

	// Watch parent directories: coverage files are usually rewritten
	// (remove + create) and may not exist yet.
	watched := make(map[string]bool)
	targets := make(map[string]bool)
	for _, name := range t.files {
		path := filepath.Join(root, name)
		targets[path] = true
		dir := filepath.Dir(path)
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			t.logger.Debug("coverage directory not watched", zap.String("dir", dir), zap.Error(err))
			continue
		}
		watched[dir] = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.watcher = watcher
	t.cancel = cancel
	t.done = done

	go t.watch(ctx, watcher, targets, done)
	return nil
}

func (t *Tests) watch(ctx context.Context, watcher *fsnotify.Watcher, targets map[string]bool, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !targets[filepath.Clean(ev.Name)] || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := t.limiter.Wait(ctx); err != nil {
				return
			}
			if err := t.reloadCoverage(); err != nil {
				t.logger.Warn("coverage reload failed", zap.String("file", ev.Name), zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			t.logger.Warn("coverage watcher error", zap.Error(err))
		}
	}
}

func (t *Tests) stop() error {
	t.watchMu.Lock()
	defer t.watchMu.Unlock()

	if t.watcher == nil {
		return nil
	}
	t.cancel()
	err := t.watcher.Close()
	<-t.done
	t.watcher = nil
	t.cancel = nil
	t.done = nil
	return err
}

func (t *Tests) watching() bool {
	t.watchMu.Lock()
	defer t.watchMu.Unlock()
	return t.watcher != nil
}

// parseCoverageFile reads a Go cover profile or an lcov tracefile.
func parseCoverageFile(path string) (*Coverage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	var cov *Coverage
	if strings.HasSuffix(path, ".info") || strings.HasSuffix(path, ".lcov") {
		cov, err = parseLCOV(bufio.NewScanner(f))
	} else {
		cov, err = parseGoCoverProfile(bufio.NewScanner(f))
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cov.UpdatedAt = info.ModTime().UTC()
	return cov, nil
}

// parseGoCoverProfile sums statements of a `go test -coverprofile` file.
// Lines look like: name.go:12.34,15.2 3 1
func parseGoCoverProfile(sc *bufio.Scanner) (*Coverage, error) {
	cov := &Coverage{}
	// a block may appear once per package test binary; count it once
	blocks := make(map[string]bool)

	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "mode:") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: malformed block %q", line, text)
		}
		stmts, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: statements: %w", line, err)
		}
		count, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: count: %w", line, err)
		}

		seen, ok := blocks[fields[0]]
		if !ok {
			cov.Total += stmts
		}
		if count > 0 && !seen {
			cov.Covered += stmts
			blocks[fields[0]] = true
		} else if !ok {
			blocks[fields[0]] = false
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	cov.Percent = percent(cov.Covered, cov.Total)
	return cov, nil
}

// parseLCOV sums the LH/LF records of an lcov tracefile.
func parseLCOV(sc *bufio.Scanner) (*Coverage, error) {
	cov := &Coverage{}
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		key, value, ok := strings.Cut(text, ":")
		if !ok || (key != "LF" && key != "LH") {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if key == "LF" {
			cov.Total += n
		} else {
			cov.Covered += n
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	cov.Percent = percent(cov.Covered, cov.Total)
	return cov, nil
}

func percent(covered, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(covered) * 100 / float64(total)
}
