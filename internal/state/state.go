// Package state persists projecthub's application state as a single JSON
// document: the project list, the active project id, global settings and
// every project's panel state.
//
// Directory structure:
//
//	~/.config/projecthub/
//	├── config.yaml
//	└── state.json    ← AppState, written atomically via state.json.tmp
//
// Store implements the workspace backend contract (FetchProjectState,
// NotifyActiveProject) and the project.Catalog lookup contract.
package state

import (
	"time"

	"github.com/fyrsmithlabs/projecthub/internal/project"
)

// CurrentVersion is the AppState schema version written by this package.
const CurrentVersion = 2

// DefaultTab is the layout tab every project starts on.
const DefaultTab = "terminal"

// AppState is the persisted root document.
type AppState struct {
	Version       int                      `json:"version"`
	ActiveProject string                   `json:"activeProjectId"`
	Projects      map[string]*ProjectState `json:"projects"`
	GlobalPrompts []Prompt                 `json:"globalPrompts"`
	TerminalTheme string                   `json:"terminalTheme"`
	Pomodoro      PomodoroSettings         `json:"pomodoro"`
}

// PomodoroSettings are the global timer durations.
type PomodoroSettings struct {
	SessionMinutes int `json:"sessionMinutes"`
	BreakMinutes   int `json:"breakMinutes"`
}

// ProjectState is the per-project state bag. Each panel owns one slice of it.
type ProjectState struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Path  string `json:"path"`
	Color string `json:"color"`
	Icon  string `json:"icon"`

	// terminal panel
	Terminals        map[string]*TerminalState `json:"terminals"`
	ActiveTerminalID string                    `json:"activeTerminalId"`

	// layout panel
	ActiveTab  string  `json:"activeTab"`
	SplitView  bool    `json:"splitView"`
	SplitRatio float64 `json:"splitRatio"`

	// notes panel (markdown)
	Notes string `json:"notes"`

	// tests panel
	TestHistory []TestRun `json:"testHistory"`

	// todos panel
	Todos []TodoItem `json:"todos"`

	// pomodoro panel
	Pomodoro *PomodoroSession `json:"pomodoro,omitempty"`

	// files panel
	Files FileBrowserState `json:"files"`

	// tools panel overrides, merged over .projecthub.toml
	Tools map[string]string `json:"tools"`

	// prompts panel; global prompts live on AppState
	Prompts []Prompt `json:"prompts"`

	// browser panel
	Browser BrowserState `json:"browser"`

	EnvVars    map[string]string `json:"envVars"`
	LastOpened time.Time         `json:"lastOpened"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// TerminalState is a terminal session belonging to a project.
type TerminalState struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	WorkDir   string `json:"workDir"`
	Running   bool   `json:"running"`
}

// TestRun is a single recorded test run.
type TestRun struct {
	ID        int64         `json:"id"`
	Runner    string        `json:"runner"`
	Status    string        `json:"status"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Total     int           `json:"total"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// TodoItem is a single todo in a project.
type TodoItem struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

// PomodoroSession is a project's timer as it stood when the project was left.
type PomodoroSession struct {
	Phase     string        `json:"phase"`
	Remaining time.Duration `json:"remaining"`
	Completed int           `json:"completed"`
}

// FileBrowserState is the file tree view for a project.
type FileBrowserState struct {
	ExpandedDirs []string `json:"expandedDirs"`
	Selected     string   `json:"selected"`
}

// Prompt is a reusable prompt snippet.
type Prompt struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Category   string    `json:"category"`
	UsageCount int       `json:"usageCount"`
	Pinned     bool      `json:"pinned"`
	IsGlobal   bool      `json:"isGlobal"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// BrowserState is a project's preview browser: open tabs and bookmarks.
type BrowserState struct {
	Tabs        []BrowserTab `json:"tabs"`
	ActiveTabID string       `json:"activeTabId"`
	Bookmarks   []Bookmark   `json:"bookmarks"`
}

// BrowserTab is one open browser tab.
type BrowserTab struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Bookmark is a saved URL.
type Bookmark struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// NewAppState creates an empty app state.
func NewAppState() *AppState {
	return &AppState{
		Version:  CurrentVersion,
		Projects:      make(map[string]*ProjectState),
		GlobalPrompts: []Prompt{},
		Pomodoro:      PomodoroSettings{SessionMinutes: 25, BreakMinutes: 5},
	}
}

// NewProjectState creates a project state with panel defaults.
func NewProjectState(p *project.Project) *ProjectState {
	ps := &ProjectState{
		ID:         p.ID,
		Name:       p.Name,
		Path:       p.Path,
		Color:      p.Color,
		Icon:       p.Icon,
		ActiveTab:  DefaultTab,
		SplitRatio: 50,
		LastOpened: p.CreatedAt,
		CreatedAt:  p.CreatedAt,
	}
	ps.repair()
	return ps
}

// Project returns the identity view of the state.
func (p *ProjectState) Project() *project.Project {
	return &project.Project{
		ID:        p.ID,
		Name:      p.Name,
		Path:      p.Path,
		Color:     p.Color,
		Icon:      p.Icon,
		CreatedAt: p.CreatedAt,
	}
}

// repair initializes nil collections left by older state files.
func (p *ProjectState) repair() {
	if p.Terminals == nil {
		p.Terminals = make(map[string]*TerminalState)
	}
	if p.TestHistory == nil {
		p.TestHistory = []TestRun{}
	}
	if p.Todos == nil {
		p.Todos = []TodoItem{}
	}
	if p.Files.ExpandedDirs == nil {
		p.Files.ExpandedDirs = []string{}
	}
	if p.Tools == nil {
		p.Tools = make(map[string]string)
	}
	if p.EnvVars == nil {
		p.EnvVars = make(map[string]string)
	}
	if p.Prompts == nil {
		p.Prompts = []Prompt{}
	}
	if p.Browser.Tabs == nil {
		p.Browser.Tabs = []BrowserTab{}
	}
	if p.Browser.Bookmarks == nil {
		p.Browser.Bookmarks = []Bookmark{}
	}
	if p.ActiveTab == "" {
		p.ActiveTab = DefaultTab
	}
	if p.SplitRatio <= 0 || p.SplitRatio >= 100 {
		p.SplitRatio = 50
	}
}

// Clone returns a deep copy, so a snapshot handed to panels never aliases
// the store's live data.
func (p *ProjectState) Clone() *ProjectState {
	if p == nil {
		return nil
	}
	c := *p

	c.Terminals = make(map[string]*TerminalState, len(p.Terminals))
	for id, t := range p.Terminals {
		tc := *t
		c.Terminals[id] = &tc
	}
	c.TestHistory = append([]TestRun(nil), p.TestHistory...)
	c.Todos = append([]TodoItem(nil), p.Todos...)
	if p.Pomodoro != nil {
		pc := *p.Pomodoro
		c.Pomodoro = &pc
	}
	c.Files.ExpandedDirs = append([]string(nil), p.Files.ExpandedDirs...)
	c.Tools = cloneMap(p.Tools)
	c.EnvVars = cloneMap(p.EnvVars)
	c.Prompts = append([]Prompt(nil), p.Prompts...)
	c.Browser.Tabs = append([]BrowserTab(nil), p.Browser.Tabs...)
	c.Browser.Bookmarks = append([]Bookmark(nil), p.Browser.Bookmarks...)
	c.repair()

	return &c
}

func cloneMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
