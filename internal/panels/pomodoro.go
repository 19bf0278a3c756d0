package panels

import (
	"context"
	"sync"
	"time"

	"github.com/fyrsmithlabs/projecthub/internal/state"
	"github.com/fyrsmithlabs/projecthub/internal/workspace"
)

// Pomodoro phases.
const (
	PhaseWork  = "work"
	PhaseBreak = "break"
)

// PomodoroSnapshot is a read-only view of the timer.
type PomodoroSnapshot struct {
	Phase     string        `json:"phase"`
	Remaining time.Duration `json:"remaining"`
	Completed int           `json:"completed"`
	Running   bool          `json:"running"`
}

// Pomodoro is a per-project focus timer. It never runs across a switch:
// BeforeSwitch pauses it and the incoming project's timer starts paused.
type Pomodoro struct {
	bound
	store    Store
	settings state.PomodoroSettings
	now      func() time.Time

	mu        sync.Mutex
	phase     string
	remaining time.Duration
	completed int
	running   bool
	startedAt time.Time
}

// NewPomodoro creates the pomodoro panel.
func NewPomodoro(store Store, settings state.PomodoroSettings) *Pomodoro {
	if settings.SessionMinutes <= 0 {
		settings.SessionMinutes = 25
	}
	if settings.BreakMinutes <= 0 {
		settings.BreakMinutes = 5
	}
	p := &Pomodoro{store: store, settings: settings, now: time.Now}
	p.reset()
	return p
}

// BeforeSwitch pauses the timer.
func (p *Pomodoro) BeforeSwitch(context.Context, *workspace.SwitchContext) error {
	p.Pause()
	return nil
}

// Save persists the remaining time.
func (p *Pomodoro) Save(ctx context.Context, _ *workspace.SwitchContext) error {
	return skipUnbound(p.Persist(ctx))
}

// Load restores the incoming project's timer, or a fresh work session.
func (p *Pomodoro) Load(_ context.Context, sc *workspace.SwitchContext) error {
	ps, err := requireState(sc)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if s := ps.Pomodoro; s != nil && s.Remaining > 0 && (s.Phase == PhaseWork || s.Phase == PhaseBreak) {
		p.phase = s.Phase
		p.remaining = s.Remaining
		p.completed = s.Completed
	} else {
		p.reset()
	}
	p.running = false
	p.mu.Unlock()

	p.bind(sc.NewProjectID)
	return nil
}

// AfterSwitch leaves the timer paused.
func (p *Pomodoro) AfterSwitch(context.Context, *workspace.SwitchContext) error {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// Start resumes the timer.
func (p *Pomodoro) Start() error {
	if _, err := p.active(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		p.running = true
		p.startedAt = p.now()
	}
	return nil
}

// Pause stops the timer, keeping the remaining time.
func (p *Pomodoro) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	p.running = false
}

// Snapshot returns the timer, advancing phases that have elapsed.
func (p *Pomodoro) Snapshot() PomodoroSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	return PomodoroSnapshot{
		Phase:     p.phase,
		Remaining: p.remaining,
		Completed: p.completed,
		Running:   p.running,
	}
}

// Persist writes the timer to the bound project.
func (p *Pomodoro) Persist(ctx context.Context) error {
	projectID, err := p.active()
	if err != nil {
		return err
	}
	snap := p.Snapshot()
	return p.store.UpdateProjectState(ctx, projectID, func(ps *state.ProjectState) error {
		ps.Pomodoro = &state.PomodoroSession{
			Phase:     snap.Phase,
			Remaining: snap.Remaining,
			Completed: snap.Completed,
		}
		return nil
	})
}

// advance charges elapsed running time against the phase, flipping between
// work and break as phases run out. Caller holds mu.
func (p *Pomodoro) advance() {
	if !p.running {
		return
	}
	now := p.now()
	elapsed := now.Sub(p.startedAt)
	p.startedAt = now

	for elapsed > 0 {
		if elapsed < p.remaining {
			p.remaining -= elapsed
			return
		}
		elapsed -= p.remaining
		if p.phase == PhaseWork {
			p.completed++
			p.phase = PhaseBreak
			p.remaining = time.Duration(p.settings.BreakMinutes) * time.Minute
		} else {
			p.phase = PhaseWork
			p.remaining = time.Duration(p.settings.SessionMinutes) * time.Minute
		}
	}
}

func (p *Pomodoro) reset() {
	p.phase = PhaseWork
	p.remaining = time.Duration(p.settings.SessionMinutes) * time.Minute
	p.completed = 0
	p.running = false
}
