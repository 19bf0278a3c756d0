package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/projecthub/internal/project"
	"github.com/fyrsmithlabs/projecthub/internal/state"
)

// hookCall is one recorded hook invocation.
type hookCall struct {
	Handler  string
	Phase    Phase
	Active   string // coordinator's active id at invocation time
	HasState bool
	Notes    string
}

// recorder collects hook invocations across handlers.
type recorder struct {
	mu    sync.Mutex
	calls []hookCall
	coord *Coordinator
}

func (r *recorder) record(name string, phase Phase, sc *SwitchContext) {
	c := hookCall{Handler: name, Phase: phase, HasState: sc.HasState()}
	if r.coord != nil {
		if a := r.coord.Active(); a != nil {
			c.Active = a.ID
		}
	}
	if sc.ProjectState != nil {
		c.Notes = sc.ProjectState.Notes
	}
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *recorder) handler(name string) Hooks {
	hook := func(phase Phase) HookFunc {
		return func(_ context.Context, sc *SwitchContext) error {
			r.record(name, phase, sc)
			return nil
		}
	}
	return Hooks{
		OnBeforeSwitch: hook(PhaseBeforeSwitch),
		OnSave:         hook(PhaseSave),
		OnLoad:         hook(PhaseLoad),
		OnAfterSwitch:  hook(PhaseAfterSwitch),
	}
}

func (r *recorder) all() []hookCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]hookCall(nil), r.calls...)
}

func (r *recorder) phase(p Phase) []hookCall {
	var out []hookCall
	for _, c := range r.all() {
		if c.Phase == p {
			out = append(out, c)
		}
	}
	return out
}

func (r *recorder) handlers(p Phase) []string {
	var out []string
	for _, c := range r.phase(p) {
		out = append(out, c.Handler)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

// fakeBackend serves canned project states.
type fakeBackend struct {
	mu        sync.Mutex
	states    map[string]*state.ProjectState
	fetchErr  error
	notifyErr error
	fetched   []string
	notified  []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{states: make(map[string]*state.ProjectState)}
}

func (b *fakeBackend) FetchProjectState(ctx context.Context, id string) (*state.ProjectState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetched = append(b.fetched, id)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.fetchErr != nil {
		return nil, b.fetchErr
	}
	st, ok := b.states[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", project.ErrProjectNotFound, id)
	}
	return st.Clone(), nil
}

func (b *fakeBackend) NotifyActiveProject(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notified = append(b.notified, id)
	return b.notifyErr
}

func (b *fakeBackend) setFetchErr(err error) {
	b.mu.Lock()
	b.fetchErr = err
	b.mu.Unlock()
}

var errHook = errors.New("hook failed")

// fakeCatalog is a fixed set of projects.
type fakeCatalog map[string]*project.Project

func (c fakeCatalog) Get(_ context.Context, id string) (*project.Project, error) {
	if id == "" {
		return nil, project.ErrInvalidProjectID
	}
	p, ok := c[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", project.ErrProjectNotFound, id)
	}
	return p.Clone(), nil
}

func (c fakeCatalog) List(context.Context) ([]*project.Project, error) {
	out := make([]*project.Project, 0, len(c))
	for _, p := range c {
		out = append(out, p.Clone())
	}
	project.SortProjects(out)
	return out, nil
}

func mustProject(t *testing.T, name, path string, n int) *project.Project {
	t.Helper()
	p, err := project.NewProject(name, path, n)
	require.NoError(t, err)
	return p
}

// fixture wires a coordinator over a fixed catalog with two projects.
type fixture struct {
	registry *Registry
	catalog  fakeCatalog
	backend  *fakeBackend
	coord    *Coordinator
	rec      *recorder
	alpha    *project.Project
	beta     *project.Project
}

func newFixture(t *testing.T, opts ...CoordinatorOption) *fixture {
	t.Helper()

	alpha := mustProject(t, "alpha", "/src/alpha", 0)
	beta := mustProject(t, "beta", "/src/beta", 1)
	catalog := fakeCatalog{alpha.ID: alpha, beta.ID: beta}

	backend := newFakeBackend()
	for _, p := range []*project.Project{alpha, beta} {
		st := state.NewProjectState(p)
		st.Notes = "notes for " + p.Name
		backend.states[p.ID] = st
	}

	registry := NewRegistry(nil)
	coord := NewCoordinator(registry, catalog, backend, opts...)

	return &fixture{
		registry: registry,
		catalog:  catalog,
		backend:  backend,
		coord:    coord,
		rec:      &recorder{coord: coord},
		alpha:    alpha,
		beta:     beta,
	}
}
