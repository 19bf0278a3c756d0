package panels

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/projecthub/internal/state"
	"github.com/fyrsmithlabs/projecthub/internal/workspace"
)

// ErrInvalidLayout is returned for unknown tabs and out-of-range splits.
var ErrInvalidLayout = errors.New("invalid layout")

// AvailableTabs are the tabs a project layout may show.
var AvailableTabs = []string{"terminal", "git", "tests", "notes", "todos", "pomodoro", "files", "tools", "browser", "prompts"}

// LayoutSnapshot is a read-only view of the layout.
type LayoutSnapshot struct {
	ActiveTab  string  `json:"active_tab"`
	SplitView  bool    `json:"split_view"`
	SplitRatio float64 `json:"split_ratio"`
}

// Layout holds the active tab and split view. It runs last so the tab it
// validates belongs to a fully loaded project.
type Layout struct {
	bound
	store Store
	tabs  []string

	mu     sync.RWMutex
	layout LayoutSnapshot
}

// NewLayout creates the layout panel over the given tabs.
func NewLayout(store Store, tabs []string) *Layout {
	return &Layout{
		store:  store,
		tabs:   tabs,
		layout: LayoutSnapshot{ActiveTab: state.DefaultTab, SplitRatio: 50},
	}
}

// Save persists tab and split.
func (l *Layout) Save(ctx context.Context, _ *workspace.SwitchContext) error {
	return skipUnbound(l.Persist(ctx))
}

// Persist writes the layout to the bound project.
func (l *Layout) Persist(ctx context.Context) error {
	id, err := l.active()
	if err != nil {
		return err
	}
	snap := l.Snapshot()
	return l.store.UpdateProjectState(ctx, id, func(ps *state.ProjectState) error {
		ps.ActiveTab = snap.ActiveTab
		ps.SplitView = snap.SplitView
		ps.SplitRatio = snap.SplitRatio
		return nil
	})
}

// Load reads the incoming project's layout.
func (l *Layout) Load(_ context.Context, sc *workspace.SwitchContext) error {
	ps, err := requireState(sc)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.layout = LayoutSnapshot{
		ActiveTab:  ps.ActiveTab,
		SplitView:  ps.SplitView,
		SplitRatio: ps.SplitRatio,
	}
	l.mu.Unlock()

	l.bind(sc.NewProjectID)
	return nil
}

// AfterSwitch falls back to the terminal tab if the loaded tab is unknown.
func (l *Layout) AfterSwitch(context.Context, *workspace.SwitchContext) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !contains(l.tabs, l.layout.ActiveTab) {
		l.layout.ActiveTab = state.DefaultTab
	}
	if l.layout.SplitRatio <= 0 || l.layout.SplitRatio >= 100 {
		l.layout.SplitRatio = 50
	}
	return nil
}

// SetTab changes the active tab.
func (l *Layout) SetTab(tab string) error {
	if _, err := l.active(); err != nil {
		return err
	}
	if !contains(l.tabs, tab) {
		return fmt.Errorf("%w: unknown tab %q", ErrInvalidLayout, tab)
	}
	l.mu.Lock()
	l.layout.ActiveTab = tab
	l.mu.Unlock()
	return nil
}

// SetSplit changes the split view. ratio is the left pane share, 10 to 90.
func (l *Layout) SetSplit(enabled bool, ratio float64) error {
	if _, err := l.active(); err != nil {
		return err
	}
	if ratio < 10 || ratio > 90 {
		return fmt.Errorf("%w: split ratio %.0f out of range [10, 90]", ErrInvalidLayout, ratio)
	}
	l.mu.Lock()
	l.layout.SplitView = enabled
	l.layout.SplitRatio = ratio
	l.mu.Unlock()
	return nil
}

// Snapshot returns the layout.
func (l *Layout) Snapshot() LayoutSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.layout
}
