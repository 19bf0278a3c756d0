package panels

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projecthub/internal/state"
	"github.com/fyrsmithlabs/projecthub/internal/workspace"
)

// ErrTerminalNotFound is returned for unknown terminal ids.
var ErrTerminalNotFound = errors.New("terminal not found")

// Terminal tracks the terminal sessions of the active project.
type Terminal struct {
	bound
	store  Store
	logger *zap.Logger

	mu       sync.RWMutex
	workDir  string
	sessions map[string]*state.TerminalState
	activeID string
	visible  bool
}

// TerminalSnapshot is a read-only view of the terminal panel.
type TerminalSnapshot struct {
	Sessions []state.TerminalState `json:"sessions"`
	ActiveID string                `json:"active_id"`
	Visible  bool                  `json:"visible"`
}

// NewTerminal creates the terminal panel.
func NewTerminal(store Store, logger *zap.Logger) *Terminal {
	return &Terminal{
		store:    store,
		logger:   logger,
		sessions: make(map[string]*state.TerminalState),
	}
}

// BeforeSwitch hides the outgoing project's sessions.
func (t *Terminal) BeforeSwitch(context.Context, *workspace.SwitchContext) error {
	t.mu.Lock()
	t.visible = false
	t.mu.Unlock()
	return nil
}

// Save persists the session list and the active terminal.
func (t *Terminal) Save(ctx context.Context, _ *workspace.SwitchContext) error {
	return skipUnbound(t.Persist(ctx))
}

// Persist writes the sessions to the bound project.
func (t *Terminal) Persist(ctx context.Context) error {
	id, err := t.active()
	if err != nil {
		return err
	}

	t.mu.RLock()
	sessions := cloneSessions(t.sessions)
	activeID := t.activeID
	t.mu.RUnlock()

	return t.store.UpdateProjectState(ctx, id, func(ps *state.ProjectState) error {
		ps.Terminals = sessions
		ps.ActiveTerminalID = activeID
		return nil
	})
}

// Load rebuilds the incoming project's sessions.
func (t *Terminal) Load(_ context.Context, sc *workspace.SwitchContext) error {
	ps, err := requireState(sc)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.sessions = cloneSessions(ps.Terminals)
	t.activeID = ps.ActiveTerminalID
	t.workDir = ps.Path
	t.mu.Unlock()

	t.bind(sc.NewProjectID)
	return nil
}

// AfterSwitch shows the sessions and re-selects the active terminal,
// falling back to the first one by name.
func (t *Terminal) AfterSwitch(context.Context, *workspace.SwitchContext) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.visible = true
	if _, ok := t.sessions[t.activeID]; ok {
		return nil
	}
	t.activeID = ""
	if list := sortedSessions(t.sessions); len(list) > 0 {
		t.activeID = list[0].ID
	}
	return nil
}

// Open starts tracking a new terminal named "Terminal N" in the project root.
func (t *Terminal) Open() (state.TerminalState, error) {
	projectID, err := t.active()
	if err != nil {
		return state.TerminalState{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	name := fmt.Sprintf("Terminal %d", len(t.sessions)+1)
	for t.nameTaken(name) {
		name += "'"
	}
	ts := &state.TerminalState{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      name,
		WorkDir:   t.workDir,
		Running:   true,
	}
	t.sessions[ts.ID] = ts
	if t.activeID == "" {
		t.activeID = ts.ID
	}

	t.logger.Debug("terminal opened", zap.String("terminal_id", ts.ID), zap.String("project_id", projectID))
	return *ts, nil
}

// Close stops tracking a terminal.
func (t *Terminal) Close(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.sessions[id]; !ok {
		return ErrTerminalNotFound
	}
	delete(t.sessions, id)
	if t.activeID == id {
		t.activeID = ""
		if list := sortedSessions(t.sessions); len(list) > 0 {
			t.activeID = list[0].ID
		}
	}
	return nil
}

// Select makes id the active terminal.
func (t *Terminal) Select(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.sessions[id]; !ok {
		return ErrTerminalNotFound
	}
	t.activeID = id
	return nil
}

// Snapshot returns the sessions ordered by name.
func (t *Terminal) Snapshot() TerminalSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := TerminalSnapshot{ActiveID: t.activeID, Visible: t.visible}
	for _, s := range sortedSessions(t.sessions) {
		snap.Sessions = append(snap.Sessions, *s)
	}
	return snap
}

func (t *Terminal) nameTaken(name string) bool {
	for _, s := range t.sessions {
		if s.Name == name {
			return true
		}
	}
	return false
}

func cloneSessions(in map[string]*state.TerminalState) map[string]*state.TerminalState {
	out := make(map[string]*state.TerminalState, len(in))
	for id, s := range in {
		c := *s
		out[id] = &c
	}
	return out
}

func sortedSessions(in map[string]*state.TerminalState) []*state.TerminalState {
	list := make([]*state.TerminalState, 0, len(in))
	for _, s := range in {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
	return list
}
