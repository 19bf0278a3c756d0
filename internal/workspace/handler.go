package workspace

import (
	"context"
)

// Phase is one step of a switch.
type Phase string

const (
	// PhaseBeforeSwitch runs first, while the previous project is still active.
	PhaseBeforeSwitch Phase = "before_switch"

	// PhaseSave persists the outgoing project. Skipped on the first switch.
	PhaseSave Phase = "save"

	// PhaseLoad restores the incoming project from the fetched state.
	PhaseLoad Phase = "load"

	// PhaseAfterSwitch runs last, after every Load has completed.
	PhaseAfterSwitch Phase = "after_switch"
)

// Phases lists every phase in execution order.
var Phases = []Phase{PhaseBeforeSwitch, PhaseSave, PhaseLoad, PhaseAfterSwitch}

func (p Phase) String() string { return string(p) }

// Handler is any value implementing at least zero of the capability
// interfaces below. A handler without capabilities is legal and never invoked.
type Handler interface{}

// BeforeSwitcher is invoked before anything changes.
type BeforeSwitcher interface {
	BeforeSwitch(ctx context.Context, sc *SwitchContext) error
}

// Saver persists the outgoing project. It is the only chance to do so.
type Saver interface {
	Save(ctx context.Context, sc *SwitchContext) error
}

// Loader restores the incoming project. It must read only sc.ProjectState.
type Loader interface {
	Load(ctx context.Context, sc *SwitchContext) error
}

// AfterSwitcher is invoked once every Load has completed.
type AfterSwitcher interface {
	AfterSwitch(ctx context.Context, sc *SwitchContext) error
}

// HookFunc is the signature shared by every lifecycle hook.
type HookFunc func(ctx context.Context, sc *SwitchContext) error

// Hooks adapts plain functions to all four capabilities. Nil funcs are no-ops.
type Hooks struct {
	OnBeforeSwitch HookFunc
	OnSave         HookFunc
	OnLoad         HookFunc
	OnAfterSwitch  HookFunc
}

// BeforeSwitch implements BeforeSwitcher.
func (h Hooks) BeforeSwitch(ctx context.Context, sc *SwitchContext) error {
	return call(h.OnBeforeSwitch, ctx, sc)
}

// Save implements Saver.
func (h Hooks) Save(ctx context.Context, sc *SwitchContext) error {
	return call(h.OnSave, ctx, sc)
}

// Load implements Loader.
func (h Hooks) Load(ctx context.Context, sc *SwitchContext) error {
	return call(h.OnLoad, ctx, sc)
}

// AfterSwitch implements AfterSwitcher.
func (h Hooks) AfterSwitch(ctx context.Context, sc *SwitchContext) error {
	return call(h.OnAfterSwitch, ctx, sc)
}

func call(fn HookFunc, ctx context.Context, sc *SwitchContext) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, sc)
}

// hookFor returns the handler's hook for phase, or nil if it lacks the capability.
func hookFor(h Handler, phase Phase) HookFunc {
	switch phase {
	case PhaseBeforeSwitch:
		if v, ok := h.(BeforeSwitcher); ok {
			return v.BeforeSwitch
		}
	case PhaseSave:
		if v, ok := h.(Saver); ok {
			return v.Save
		}
	case PhaseLoad:
		if v, ok := h.(Loader); ok {
			return v.Load
		}
	case PhaseAfterSwitch:
		if v, ok := h.(AfterSwitcher); ok {
			return v.AfterSwitch
		}
	}
	return nil
}
