package panels

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/projecthub/internal/state"
	"github.com/fyrsmithlabs/projecthub/internal/workspace"
)

// Todo errors.
var (
	ErrEmptyTodo    = errors.New("todo text cannot be empty")
	ErrTodoNotFound = errors.New("todo not found")
)

// Todos holds the active project's todo list.
type Todos struct {
	bound
	store Store

	mu    sync.RWMutex
	items []state.TodoItem
}

// NewTodos creates the todos panel.
func NewTodos(store Store) *Todos {
	return &Todos{store: store}
}

// Save persists the list to the project it was loaded for.
func (t *Todos) Save(ctx context.Context, _ *workspace.SwitchContext) error {
	return skipUnbound(t.Persist(ctx))
}

// Persist writes the list to the bound project.
func (t *Todos) Persist(ctx context.Context) error {
	id, err := t.active()
	if err != nil {
		return err
	}
	items := t.List()
	return t.store.UpdateProjectState(ctx, id, func(ps *state.ProjectState) error {
		ps.Todos = items
		return nil
	})
}

// Load restores the incoming project's list.
func (t *Todos) Load(_ context.Context, sc *workspace.SwitchContext) error {
	ps, err := requireState(sc)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.items = append([]state.TodoItem(nil), ps.Todos...)
	t.mu.Unlock()

	t.bind(sc.NewProjectID)
	return nil
}

// List returns a copy of the todos in insertion order.
func (t *Todos) List() []state.TodoItem {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]state.TodoItem{}, t.items...)
}

// Add appends a todo.
func (t *Todos) Add(text string) (state.TodoItem, error) {
	if _, err := t.active(); err != nil {
		return state.TodoItem{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return state.TodoItem{}, ErrEmptyTodo
	}

	item := state.TodoItem{
		ID:        uuid.NewString(),
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	t.mu.Lock()
	t.items = append(t.items, item)
	t.mu.Unlock()
	return item, nil
}

// Toggle flips a todo's completed flag.
func (t *Todos) Toggle(id string) (state.TodoItem, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.items {
		if t.items[i].ID == id {
			t.items[i].Completed = !t.items[i].Completed
			return t.items[i], nil
		}
	}
	return state.TodoItem{}, ErrTodoNotFound
}

// Remove deletes a todo.
func (t *Todos) Remove(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.items {
		if t.items[i].ID == id {
			t.items = append(t.items[:i], t.items[i+1:]...)
			return nil
		}
	}
	return ErrTodoNotFound
}
