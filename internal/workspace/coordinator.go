package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projecthub/internal/project"
	"github.com/fyrsmithlabs/projecthub/internal/state"
)

// Errors returned by the Coordinator.
var (
	ErrSwitchInProgress = errors.New("project switch already in progress")
	ErrUnknownProject   = errors.New("unknown project")
	ErrStateFetch       = errors.New("failed to fetch project state")
	ErrNoActiveProject  = errors.New("no active project")
)

// Backend loads project state and records the active project.
type Backend interface {
	// FetchProjectState returns the persisted state of a project. No retry.
	FetchProjectState(ctx context.Context, projectID string) (*state.ProjectState, error)

	// NotifyActiveProject records projectID as active. Failures are logged only.
	NotifyActiveProject(ctx context.Context, projectID string) error
}

// Result describes a completed switch or reload.
type Result struct {
	SwitchID string
	From     string
	To       string

	// Noop is set when the target was already active. No hook ran.
	Noop bool

	// Reload is set for results of Coordinator.Reload.
	Reload bool

	// StateMissing is set when the state fetch failed after commit.
	// Load and AfterSwitch did not run.
	StateMissing bool

	Faults   []Fault
	Duration time.Duration

	// Err is the error returned alongside this result, if any.
	Err error
}

// Observer receives every completed Result.
type Observer interface {
	ObserveSwitch(ctx context.Context, res *Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, res *Result)

// ObserveSwitch implements Observer.
func (f ObserverFunc) ObserveSwitch(ctx context.Context, res *Result) { f(ctx, res) }

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(l *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracer sets the tracer used for switch, phase and hook spans.
func WithTracer(t trace.Tracer) CoordinatorOption {
	return func(c *Coordinator) {
		if t != nil {
			c.tracer = t
		}
	}
}

// Coordinator owns the active project and runs switches.
type Coordinator struct {
	registry *Registry
	catalog  project.Catalog
	backend  Backend
	exec     *Executor

	logger *zap.Logger
	tracer trace.Tracer

	switching atomic.Bool

	mu     sync.RWMutex
	active *project.Project

	obsMu     sync.RWMutex
	observers []Observer
}

// NewCoordinator creates a coordinator with no active project.
func NewCoordinator(registry *Registry, catalog project.Catalog, backend Backend, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		registry: registry,
		catalog:  catalog,
		backend:  backend,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(InstrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.exec = NewExecutor(registry, c.logger, c.tracer)
	return c
}

// Active returns a copy of the active project, or nil before the first switch.
func (c *Coordinator) Active() *project.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active.Clone()
}

// Observe attaches an observer to every later Result.
func (c *Coordinator) Observe(obs Observer) {
	if obs == nil {
		return
	}
	c.obsMu.Lock()
	c.observers = append(c.observers, obs)
	c.obsMu.Unlock()
}

// Switching reports whether a switch or reload is running.
func (c *Coordinator) Switching() bool {
	return c.switching.Load()
}

// Switch makes targetID the active project.
//
// A concurrent call fails with ErrSwitchInProgress and an unknown target with
// ErrUnknownProject; neither runs a hook. Once the new project is committed
// the switch is not undone: if its state cannot be fetched, the result has
// StateMissing set, Load and AfterSwitch are skipped and ErrStateFetch is
// returned alongside the result. Use Reload to recover.
//
// A started switch runs to completion: cancelling ctx does not abort it,
// while its values (trace span, logger) still flow to hooks and the backend.
func (c *Coordinator) Switch(ctx context.Context, targetID string) (*Result, error) {
	if !c.switching.CompareAndSwap(false, true) {
		return nil, ErrSwitchInProgress
	}
	defer c.switching.Store(false)

	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	prev := c.Active()

	if prev != nil && prev.ID == targetID {
		res := &Result{SwitchID: uuid.NewString(), From: prev.ID, To: targetID, Noop: true, Duration: time.Since(start)}
		c.publish(ctx, res)
		return res, nil
	}

	next, err := c.resolve(ctx, targetID)
	if err != nil {
		return nil, err
	}

	sc := newSwitchContext(uuid.NewString(), prev, next)
	res := &Result{SwitchID: sc.SwitchID, From: sc.PreviousProjectID, To: sc.NewProjectID}

	ctx, span := c.tracer.Start(ctx, "workspace.switch",
		trace.WithAttributes(
			attribute.String("workspace.switch_id", sc.SwitchID),
			attribute.String("workspace.from", sc.PreviousProjectID),
			attribute.String("workspace.to", sc.NewProjectID),
		),
	)
	defer span.End()

	logger := c.logger.With(
		zap.String("switch_id", sc.SwitchID),
		zap.String("from", sc.PreviousProjectID),
		zap.String("to", sc.NewProjectID),
	)
	logger.Debug("switching project")

	res.Faults = append(res.Faults, c.exec.RunPhase(ctx, PhaseBeforeSwitch, sc)...)
	if !sc.IsFirstSwitch() {
		res.Faults = append(res.Faults, c.exec.RunPhase(ctx, PhaseSave, sc)...)
	}

	c.commit(next)

	if err := c.fetch(ctx, sc); err != nil {
		res.StateMissing = true
		res.Err = err
		res.Duration = time.Since(start)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("project state unavailable after switch", zap.Error(err))
		c.publish(ctx, res)
		return res, err
	}

	res.Faults = append(res.Faults, c.exec.RunPhase(ctx, PhaseLoad, sc)...)
	res.Faults = append(res.Faults, c.exec.RunPhase(ctx, PhaseAfterSwitch, sc)...)

	c.notify(ctx, logger, sc.NewProjectID)

	res.Duration = time.Since(start)
	span.SetAttributes(attribute.Int("workspace.faults", len(res.Faults)))
	logger.Info("project switched",
		zap.Int("faults", len(res.Faults)),
		zap.Duration("duration", res.Duration),
	)
	c.publish(ctx, res)
	return res, nil
}

// Reload re-fetches the active project's state and runs Load and
// AfterSwitch again. It is the recovery path after a StateMissing switch,
// since switching to the active project is a no-op. Like Switch, it is not
// aborted by cancelling ctx.
func (c *Coordinator) Reload(ctx context.Context) (*Result, error) {
	if !c.switching.CompareAndSwap(false, true) {
		return nil, ErrSwitchInProgress
	}
	defer c.switching.Store(false)

	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	active := c.Active()
	if active == nil {
		return nil, ErrNoActiveProject
	}

	sc := newSwitchContext(uuid.NewString(), active, active)
	res := &Result{SwitchID: sc.SwitchID, From: active.ID, To: active.ID, Reload: true}

	ctx, span := c.tracer.Start(ctx, "workspace.reload",
		trace.WithAttributes(
			attribute.String("workspace.switch_id", sc.SwitchID),
			attribute.String("workspace.to", active.ID),
		),
	)
	defer span.End()

	logger := c.logger.With(zap.String("switch_id", sc.SwitchID), zap.String("project_id", active.ID))

	if err := c.fetch(ctx, sc); err != nil {
		res.StateMissing = true
		res.Err = err
		res.Duration = time.Since(start)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("project state unavailable on reload", zap.Error(err))
		c.publish(ctx, res)
		return res, err
	}

	res.Faults = append(res.Faults, c.exec.RunPhase(ctx, PhaseLoad, sc)...)
	res.Faults = append(res.Faults, c.exec.RunPhase(ctx, PhaseAfterSwitch, sc)...)

	res.Duration = time.Since(start)
	logger.Info("project reloaded", zap.Int("faults", len(res.Faults)), zap.Duration("duration", res.Duration))
	c.publish(ctx, res)
	return res, nil
}

func (c *Coordinator) resolve(ctx context.Context, id string) (*project.Project, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty project id", ErrUnknownProject)
	}
	p, err := c.catalog.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnknownProject, id, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProject, id)
	}
	return p, nil
}

func (c *Coordinator) commit(p *project.Project) {
	c.mu.Lock()
	c.active = p.Clone()
	c.mu.Unlock()
}

func (c *Coordinator) fetch(ctx context.Context, sc *SwitchContext) error {
	st, err := c.backend.FetchProjectState(ctx, sc.NewProjectID)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStateFetch, sc.NewProjectID, err)
	}
	if st == nil {
		return fmt.Errorf("%w: %s: backend returned no state", ErrStateFetch, sc.NewProjectID)
	}
	sc.withState(st)
	return nil
}

func (c *Coordinator) notify(ctx context.Context, logger *zap.Logger, id string) {
	if err := c.backend.NotifyActiveProject(ctx, id); err != nil {
		logger.Warn("failed to notify active project", zap.Error(err))
	}
}

func (c *Coordinator) publish(ctx context.Context, res *Result) {
	c.obsMu.RLock()
	observers := append([]Observer(nil), c.observers...)
	c.obsMu.RUnlock()

	for _, obs := range observers {
		obs.ObserveSwitch(ctx, res)
	}
}
