package panels

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/projecthub/internal/state"
	"github.com/fyrsmithlabs/projecthub/internal/workspace"
)

// Browser errors.
var (
	ErrInvalidURL      = errors.New("url must be an absolute http or https address")
	ErrTabNotFound     = errors.New("browser tab not found")
	ErrBookmarkMissing = errors.New("bookmark not found")
)

// Browser tracks the preview tabs and bookmarks of the active project.
type Browser struct {
	bound
	store Store

	mu    sync.RWMutex
	state state.BrowserState
}

// NewBrowser creates the browser panel.
func NewBrowser(store Store) *Browser {
	return &Browser{store: store, state: emptyBrowser()}
}

// Save persists tabs and bookmarks.
func (b *Browser) Save(ctx context.Context, _ *workspace.SwitchContext) error {
	return skipUnbound(b.Persist(ctx))
}

// Persist writes the browser state to the bound project.
func (b *Browser) Persist(ctx context.Context) error {
	id, err := b.active()
	if err != nil {
		return err
	}
	snap := b.Snapshot()
	return b.store.UpdateProjectState(ctx, id, func(ps *state.ProjectState) error {
		ps.Browser = snap
		return nil
	})
}

// Load restores the incoming project's browser.
func (b *Browser) Load(_ context.Context, sc *workspace.SwitchContext) error {
	ps, err := requireState(sc)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.state = cloneBrowser(ps.Browser)
	b.mu.Unlock()

	b.bind(sc.NewProjectID)
	return nil
}

// AfterSwitch re-selects the active tab, falling back to the first one.
func (b *Browser) AfterSwitch(context.Context, *workspace.SwitchContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tabIndex(b.state.ActiveTabID) >= 0 {
		return nil
	}
	b.state.ActiveTabID = ""
	if len(b.state.Tabs) > 0 {
		b.state.ActiveTabID = b.state.Tabs[0].ID
	}
	return nil
}

// OpenTab opens rawURL in a new active tab.
func (b *Browser) OpenTab(rawURL, title string) (state.BrowserTab, error) {
	if _, err := b.active(); err != nil {
		return state.BrowserTab{}, err
	}
	u, err := parseURL(rawURL)
	if err != nil {
		return state.BrowserTab{}, err
	}
	if title == "" {
		title = u.Host
	}

	tab := state.BrowserTab{ID: uuid.NewString(), URL: u.String(), Title: title}
	b.mu.Lock()
	b.state.Tabs = append(b.state.Tabs, tab)
	b.state.ActiveTabID = tab.ID
	b.mu.Unlock()
	return tab, nil
}

// CloseTab closes a tab. Closing the active tab activates its neighbour.
func (b *Browser) CloseTab(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.tabIndex(id)
	if i < 0 {
		return ErrTabNotFound
	}
	b.state.Tabs = append(b.state.Tabs[:i], b.state.Tabs[i+1:]...)
	if b.state.ActiveTabID == id {
		b.state.ActiveTabID = ""
		if n := len(b.state.Tabs); n > 0 {
			b.state.ActiveTabID = b.state.Tabs[min(i, n-1)].ID
		}
	}
	return nil
}

// SelectTab activates a tab.
func (b *Browser) SelectTab(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tabIndex(id) < 0 {
		return ErrTabNotFound
	}
	b.state.ActiveTabID = id
	return nil
}

// AddBookmark saves rawURL under name.
func (b *Browser) AddBookmark(name, rawURL string) (state.Bookmark, error) {
	if _, err := b.active(); err != nil {
		return state.Bookmark{}, err
	}
	u, err := parseURL(rawURL)
	if err != nil {
		return state.Bookmark{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = u.Host
	}

	bm := state.Bookmark{ID: uuid.NewString(), Name: name, URL: u.String()}
	b.mu.Lock()
	b.state.Bookmarks = append(b.state.Bookmarks, bm)
	b.mu.Unlock()
	return bm, nil
}

// RemoveBookmark deletes a bookmark.
func (b *Browser) RemoveBookmark(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.state.Bookmarks {
		if b.state.Bookmarks[i].ID == id {
			b.state.Bookmarks = append(b.state.Bookmarks[:i], b.state.Bookmarks[i+1:]...)
			return nil
		}
	}
	return ErrBookmarkMissing
}

// Snapshot returns a copy of the browser state.
func (b *Browser) Snapshot() state.BrowserState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneBrowser(b.state)
}

// tabIndex returns the index of tab id, or -1. Caller holds mu.
func (b *Browser) tabIndex(id string) int {
	for i := range b.state.Tabs {
		if b.state.Tabs[i].ID == id {
			return i
		}
	}
	return -1
}

func parseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return u, nil
}

func emptyBrowser() state.BrowserState {
	return state.BrowserState{Tabs: []state.BrowserTab{}, Bookmarks: []state.Bookmark{}}
}

func cloneBrowser(in state.BrowserState) state.BrowserState {
	out := emptyBrowser()
	out.ActiveTabID = in.ActiveTabID
	out.Tabs = append(out.Tabs, in.Tabs...)
	out.Bookmarks = append(out.Bookmarks, in.Bookmarks...)
	return out
}
