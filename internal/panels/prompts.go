package panels

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/projecthub/internal/state"
	"github.com/fyrsmithlabs/projecthub/internal/workspace"
)

// Prompt errors.
var (
	ErrEmptyPrompt    = errors.New("prompt title and content are required")
	ErrPromptNotFound = errors.New("prompt not found")
)

// GlobalStore holds the prompts shared by every project.
type GlobalStore interface {
	GlobalPrompts() []state.Prompt
	UpdateGlobalPrompts(ctx context.Context, fn func([]state.Prompt) ([]state.Prompt, error)) error
}

// Prompts holds the active project's prompt library. Global prompts are
// written through immediately; project prompts follow the switch cycle.
type Prompts struct {
	bound
	store  Store
	global GlobalStore
	now    func() time.Time

	mu    sync.RWMutex
	items []state.Prompt
}

// NewPrompts creates the prompts panel.
func NewPrompts(store Store, global GlobalStore) *Prompts {
	return &Prompts{store: store, global: global, now: time.Now}
}

// Save persists the project prompts.
func (p *Prompts) Save(ctx context.Context, _ *workspace.SwitchContext) error {
	return skipUnbound(p.Persist(ctx))
}

// Persist writes the project prompts to the bound project.
func (p *Prompts) Persist(ctx context.Context) error {
	id, err := p.active()
	if err != nil {
		return err
	}
	p.mu.RLock()
	items := append([]state.Prompt{}, p.items...)
	p.mu.RUnlock()

	return p.store.UpdateProjectState(ctx, id, func(ps *state.ProjectState) error {
		ps.Prompts = items
		return nil
	})
}

// Load restores the incoming project's prompts.
func (p *Prompts) Load(_ context.Context, sc *workspace.SwitchContext) error {
	ps, err := requireState(sc)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.items = append([]state.Prompt{}, ps.Prompts...)
	p.mu.Unlock()

	p.bind(sc.NewProjectID)
	return nil
}

// List returns project and global prompts: pinned first, then most used,
// then by title.
func (p *Prompts) List() []state.Prompt {
	p.mu.RLock()
	out := append([]state.Prompt{}, p.items...)
	p.mu.RUnlock()
	out = append(out, p.global.GlobalPrompts()...)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		if a.UsageCount != b.UsageCount {
			return a.UsageCount > b.UsageCount
		}
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	})
	return out
}

// Add creates a prompt. in.IsGlobal selects the shared library.
func (p *Prompts) Add(ctx context.Context, in state.Prompt) (state.Prompt, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || strings.TrimSpace(in.Content) == "" {
		return state.Prompt{}, ErrEmptyPrompt
	}
	now := p.now().UTC()
	in.ID = uuid.NewString()
	in.UsageCount = 0
	in.CreatedAt = now
	in.UpdatedAt = now

	if in.IsGlobal {
		err := p.global.UpdateGlobalPrompts(ctx, func(ps []state.Prompt) ([]state.Prompt, error) {
			return append(ps, in), nil
		})
		if err != nil {
			return state.Prompt{}, err
		}
		return in, nil
	}

	if _, err := p.active(); err != nil {
		return state.Prompt{}, err
	}
	p.mu.Lock()
	p.items = append(p.items, in)
	p.mu.Unlock()
	return in, nil
}

// Use records a use of a prompt and returns it.
func (p *Prompts) Use(ctx context.Context, id string) (state.Prompt, error) {
	return p.modify(ctx, id, func(pr *state.Prompt) {
		pr.UsageCount++
	})
}

// TogglePin flips a prompt's pinned flag.
func (p *Prompts) TogglePin(ctx context.Context, id string) (state.Prompt, error) {
	return p.modify(ctx, id, func(pr *state.Prompt) {
		pr.Pinned = !pr.Pinned
		pr.UpdatedAt = p.now().UTC()
	})
}

// Remove deletes a project or global prompt.
func (p *Prompts) Remove(ctx context.Context, id string) error {
	p.mu.Lock()
	for i := range p.items {
		if p.items[i].ID == id {
			p.items = append(p.items[:i], p.items[i+1:]...)
			p.mu.Unlock()
			return nil
		}
	}
	p.mu.Unlock()

	return p.global.UpdateGlobalPrompts(ctx, func(ps []state.Prompt) ([]state.Prompt, error) {
		for i := range ps {
			if ps[i].ID == id {
				return append(ps[:i], ps[i+1:]...), nil
			}
		}
		return nil, ErrPromptNotFound
	})
}

func (p *Prompts) modify(ctx context.Context, id string, fn func(*state.Prompt)) (state.Prompt, error) {
	p.mu.Lock()
	for i := range p.items {
		if p.items[i].ID == id {
			fn(&p.items[i])
			out := p.items[i]
			p.mu.Unlock()
			return out, nil
		}
	}
	p.mu.Unlock()

	var out state.Prompt
	err := p.global.UpdateGlobalPrompts(ctx, func(ps []state.Prompt) ([]state.Prompt, error) {
		for i := range ps {
			if ps[i].ID == id {
				fn(&ps[i])
				out = ps[i]
				return ps, nil
			}
		}
		return nil, ErrPromptNotFound
	})
	return out, err
}
