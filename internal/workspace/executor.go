package workspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// InstrumentationName is the name used for OTEL instrumentation.
const InstrumentationName = "github.com/fyrsmithlabs/projecthub/internal/workspace"

// ErrHookPanic wraps a value recovered from a panicking hook.
var ErrHookPanic = errors.New("hook panicked")

// Fault is a hook failure absorbed during a switch.
type Fault struct {
	Handler  string
	Phase    Phase
	Err      error
	Panicked bool
	Duration time.Duration
}

func (f Fault) Error() string {
	return fmt.Sprintf("handler %q %s: %v", f.Handler, f.Phase, f.Err)
}

func (f Fault) Unwrap() error { return f.Err }

// Executor runs one phase over a registry snapshot.
type Executor struct {
	registry *Registry
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewExecutor creates an executor. A nil tracer uses the global provider.
func NewExecutor(registry *Registry, logger *zap.Logger, tracer trace.Tracer) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = otel.Tracer(InstrumentationName)
	}
	return &Executor{registry: registry, logger: logger, tracer: tracer}
}

// RunPhase invokes phase on every capable handler, in registry order, one
// at a time. A failing hook is recorded as a Fault and the next hook runs.
func (e *Executor) RunPhase(ctx context.Context, phase Phase, sc *SwitchContext) []Fault {
	ctx, span := e.tracer.Start(ctx, "workspace.phase",
		trace.WithAttributes(
			attribute.String("workspace.phase", phase.String()),
			attribute.String("workspace.switch_id", sc.SwitchID),
		),
	)
	defer span.End()

	var (
		faults  []Fault
		invoked int
	)
	for _, d := range e.registry.List() {
		hook := hookFor(d.Handler, phase)
		if hook == nil {
			continue
		}
		invoked++
		if f, failed := e.runHook(ctx, d, phase, hook, sc); failed {
			faults = append(faults, f)
		}
	}

	span.SetAttributes(
		attribute.Int("workspace.hooks", invoked),
		attribute.Int("workspace.faults", len(faults)),
	)
	if len(faults) > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d hook(s) failed", len(faults)))
	}
	return faults
}

func (e *Executor) runHook(ctx context.Context, d Descriptor, phase Phase, hook HookFunc, sc *SwitchContext) (Fault, bool) {
	ctx, span := e.tracer.Start(ctx, "workspace.hook",
		trace.WithAttributes(
			attribute.String("workspace.handler", d.Name),
			attribute.Int("workspace.priority", d.Priority),
			attribute.String("workspace.phase", phase.String()),
		),
	)
	defer span.End()

	start := time.Now()
	panicked, err := safeCall(ctx, hook, sc)
	elapsed := time.Since(start)

	if err == nil {
		e.logger.Debug("workspace hook completed",
			zap.String("handler", d.Name),
			zap.String("phase", phase.String()),
			zap.Duration("duration", elapsed),
		)
		return Fault{}, false
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.Bool("workspace.panicked", panicked))

	e.logger.Error("workspace hook failed",
		zap.String("handler", d.Name),
		zap.String("phase", phase.String()),
		zap.String("switch_id", sc.SwitchID),
		zap.String("project_id", sc.NewProjectID),
		zap.Bool("panicked", panicked),
		zap.Duration("duration", elapsed),
		zap.Error(err),
	)

	return Fault{
		Handler:  d.Name,
		Phase:    phase,
		Err:      err,
		Panicked: panicked,
		Duration: elapsed,
	}, true
}

func safeCall(ctx context.Context, hook HookFunc, sc *SwitchContext) (panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			err = fmt.Errorf("%w: %v", ErrHookPanic, r)
		}
	}()
	return false, hook(ctx, sc)
}
