package panels

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projecthub/internal/workspace"
)

// DefaultGitPollInterval is used when no poll interval is configured.
const DefaultGitPollInterval = 5 * time.Second

// GitStatus is the repository summary shown for the active project.
type GitStatus struct {
	IsRepo    bool      `json:"is_repo"`
	Branch    string    `json:"branch,omitempty"`
	Head      string    `json:"head,omitempty"`
	Changed   []string  `json:"changed,omitempty"`
	Clean     bool      `json:"clean"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Git reads branch and working tree status with go-git and keeps it fresh
// with a poller while the project is active.
type Git struct {
	bound
	interval time.Duration
	logger   *zap.Logger

	mu     sync.RWMutex
	root   string
	status GitStatus

	pollMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewGit creates the git panel.
func NewGit(interval time.Duration, logger *zap.Logger) *Git {
	if interval <= 0 {
		interval = DefaultGitPollInterval
	}
	return &Git{interval: interval, logger: logger}
}

// BeforeSwitch stops the poller.
func (g *Git) BeforeSwitch(context.Context, *workspace.SwitchContext) error {
	g.stop()
	return nil
}

// Load reads the incoming project's repository status.
func (g *Git) Load(_ context.Context, sc *workspace.SwitchContext) error {
	ps, err := requireState(sc)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.root = ps.Path
	g.status = GitStatus{}
	g.mu.Unlock()
	g.bind(sc.NewProjectID)

	return g.Refresh()
}

// AfterSwitch starts the poller.
func (g *Git) AfterSwitch(context.Context, *workspace.SwitchContext) error {
	g.start()
	return nil
}

// Status returns the last read status.
func (g *Git) Status() GitStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()

	st := g.status
	st.Changed = append([]string(nil), g.status.Changed...)
	return st
}

// Refresh re-reads the repository status. A directory that is not a git
// repository is not an error.
func (g *Git) Refresh() error {
	g.mu.RLock()
	root := g.root
	g.mu.RUnlock()
	if root == "" {
		return nil
	}

	st, err := readGitStatus(root)
	if err != nil {
		return err
	}

	g.mu.Lock()
	if g.root == root {
		g.status = st
	}
	g.mu.Unlock()
	return nil
}

func readGitStatus(root string) (GitStatus, error) {
	st := GitStatus{UpdatedAt: time.Now().UTC()}

	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("open repository %s: %w", root, err)
	}
	st.IsRepo = true

	head, err := repo.Head()
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// no commits yet
		ref, rerr := repo.Reference(plumbing.HEAD, false)
		if rerr == nil && ref.Type() == plumbing.SymbolicReference {
			st.Branch = ref.Target().Short()
		}
	case err != nil:
		return st, fmt.Errorf("read HEAD: %w", err)
	default:
		if head.Name().IsBranch() {
			st.Branch = head.Name().Short()
		}
		st.Head = head.Hash().String()
	}

	wt, err := repo.Worktree()
	if err != nil {
		return st, fmt.Errorf("open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return st, fmt.Errorf("worktree status: %w", err)
	}

	for path, fs := range status {
		if fs.Staging == git.Unmodified && fs.Worktree == git.Unmodified {
			continue
		}
		st.Changed = append(st.Changed, path)
	}
	sort.Strings(st.Changed)
	st.Clean = len(st.Changed) == 0

	return st, nil
}

func (g *Git) start() {
	g.pollMu.Lock()
	defer g.pollMu.Unlock()

	if g.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	g.cancel = cancel
	g.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := g.Refresh(); err != nil {
					g.logger.Warn("git status refresh failed", zap.Error(err))
				}
			}
		}
	}()
}

func (g *Git) stop() {
	g.pollMu.Lock()
	defer g.pollMu.Unlock()

	if g.cancel == nil {
		return
	}
	g.cancel()
	<-g.done
	g.cancel = nil
	g.done = nil
}

// polling reports whether the poller is running.
func (g *Git) polling() bool {
	g.pollMu.Lock()
	defer g.pollMu.Unlock()
	return g.cancel != nil
}
