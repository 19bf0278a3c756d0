package panels

import (
	"context"
	"sync"

	"github.com/fyrsmithlabs/projecthub/internal/state"
	"github.com/fyrsmithlabs/projecthub/internal/workspace"
)

// Notes holds the active project's markdown notes. Only edited notes are
// written back.
type Notes struct {
	bound
	store Store

	mu    sync.RWMutex
	text  string
	dirty bool
}

// NewNotes creates the notes panel.
func NewNotes(store Store) *Notes {
	return &Notes{store: store}
}

// Save writes the notes if they were edited.
func (n *Notes) Save(ctx context.Context, _ *workspace.SwitchContext) error {
	return skipUnbound(n.Persist(ctx))
}

// Load restores the incoming project's notes.
func (n *Notes) Load(_ context.Context, sc *workspace.SwitchContext) error {
	ps, err := requireState(sc)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.text = ps.Notes
	n.dirty = false
	n.mu.Unlock()

	n.bind(sc.NewProjectID)
	return nil
}

// Text returns the current notes.
func (n *Notes) Text() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.text
}

// Dirty reports whether the notes have unsaved edits.
func (n *Notes) Dirty() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.dirty
}

// Set replaces the notes.
func (n *Notes) Set(text string) error {
	if _, err := n.active(); err != nil {
		return err
	}

	n.mu.Lock()
	if n.text != text {
		n.text = text
		n.dirty = true
	}
	n.mu.Unlock()
	return nil
}

// Persist writes unsaved edits to the bound project.
func (n *Notes) Persist(ctx context.Context) error {
	projectID, err := n.active()
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.dirty {
		return nil
	}
	text := n.text
	err = n.store.UpdateProjectState(ctx, projectID, func(ps *state.ProjectState) error {
		ps.Notes = text
		return nil
	})
	if err != nil {
		return err
	}
	n.dirty = false
	return nil
}
