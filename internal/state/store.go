package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projecthub/internal/project"
)

// Errors for store operations.
var (
	ErrStateCorrupted = errors.New("state file corrupted")
	ErrNotDirectory   = errors.New("project path is not a directory")
	ErrStoreClosed    = errors.New("state store closed")
)

// DefaultDebounce is the default delay between a change and its write.
const DefaultDebounce = 500 * time.Millisecond

// ActivePublisher announces the active project to other processes.
type ActivePublisher interface {
	PublishActive(ctx context.Context, projectID string) error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDebounce sets the save debounce. Zero writes on every change.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) { s.debounce = d }
}

// WithPublisher chains a publisher onto NotifyActiveProject.
func WithPublisher(p ActivePublisher) Option {
	return func(s *Store) { s.publisher = p }
}

// Store is the JSON-file backed application state.
type Store struct {
	mu   sync.RWMutex
	data *AppState
	path string

	logger    *zap.Logger
	debounce  time.Duration
	publisher ActivePublisher

	// writeMu serializes file writes; timerMu guards timer and closed.
	writeMu sync.Mutex
	timerMu sync.Mutex
	timer   *time.Timer
	closed  bool
}

// Open loads the state file at path, creating an empty state if it does not exist.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("state path cannot be empty")
	}

	s := &Store{
		data:     NewAppState(),
		path:     path,
		logger:   zap.NewNop(),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	s.logger.Debug("state loaded",
		zap.String("path", path),
		zap.Int("projects", len(s.data.Projects)),
		zap.String("active_project", s.data.ActiveProject),
	)

	return s, nil
}

// SetPublisher chains p onto NotifyActiveProject. It exists for publishers
// that need the store as their catalog; call it before the first switch.
func (s *Store) SetPublisher(p ActivePublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = p
}

// Path returns the state file location.
func (s *Store) Path() string { return s.path }

// Get implements project.Catalog.
func (s *Store) Get(ctx context.Context, id string) (*project.Project, error) {
	if id == "" {
		return nil, project.ErrInvalidProjectID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ps, ok := s.data.Projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", project.ErrProjectNotFound, id)
	}
	return ps.Project(), nil
}

// List implements project.Catalog.
func (s *Store) List(ctx context.Context) ([]*project.Project, error) {
	s.mu.RLock()
	out := make([]*project.Project, 0, len(s.data.Projects))
	for _, ps := range s.data.Projects {
		out = append(out, ps.Project())
	}
	s.mu.RUnlock()

	project.SortProjects(out)
	return out, nil
}

// CreateProject adds a project rooted at path. The path must be an existing
// directory not already used by another project.
func (s *Store) CreateProject(ctx context.Context, name, path string) (*project.Project, error) {
	if name == "" {
		return nil, project.ErrEmptyProjectName
	}
	if path == "" {
		return nil, project.ErrEmptyProjectPath
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", project.ErrInvalidProjectPath, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", project.ErrInvalidProjectPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}

	s.mu.Lock()
	for _, ps := range s.data.Projects {
		if ps.Path == abs {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: project %s already exists at path %s", project.ErrProjectExists, ps.ID, abs)
		}
	}

	p, err := project.NewProject(name, abs, len(s.data.Projects))
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	s.data.Projects[p.ID] = NewProjectState(p)
	s.mu.Unlock()

	s.logger.Info("project created",
		zap.String("project_id", p.ID),
		zap.String("name", p.Name),
		zap.String("path", p.Path),
	)

	s.Save()
	return p, nil
}

// DeleteProject removes a project and clears the active id if it matches.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.data.Projects[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", project.ErrProjectNotFound, id)
	}
	delete(s.data.Projects, id)
	if s.data.ActiveProject == id {
		s.data.ActiveProject = ""
	}
	s.mu.Unlock()

	s.logger.Info("project deleted", zap.String("project_id", id))
	s.Save()
	return nil
}

// FetchProjectState returns a snapshot of a project's state.
func (s *Store) FetchProjectState(ctx context.Context, projectID string) (*ProjectState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ps, ok := s.data.Projects[projectID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", project.ErrProjectNotFound, projectID)
	}
	return ps.Clone(), nil
}

// UpdateProjectState applies fn to the live state of a project and schedules
// a save. fn runs under the store lock and must not call back into the store.
func (s *Store) UpdateProjectState(ctx context.Context, projectID string, fn func(*ProjectState) error) error {
	s.mu.Lock()
	ps, ok := s.data.Projects[projectID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", project.ErrProjectNotFound, projectID)
	}
	if err := fn(ps); err != nil {
		s.mu.Unlock()
		return err
	}
	ps.repair()
	s.mu.Unlock()

	s.Save()
	return nil
}

// NotifyActiveProject records projectID as active, stamps its last-opened
// time and schedules a save. A chained publisher is then called; its error
// is returned but the recorded state stands.
func (s *Store) NotifyActiveProject(ctx context.Context, projectID string) error {
	s.mu.Lock()
	ps, ok := s.data.Projects[projectID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", project.ErrProjectNotFound, projectID)
	}
	s.data.ActiveProject = projectID
	ps.LastOpened = time.Now().UTC()
	publisher := s.publisher
	s.mu.Unlock()

	s.Save()

	if publisher == nil {
		return nil
	}
	if err := publisher.PublishActive(ctx, projectID); err != nil {
		return fmt.Errorf("failed to publish active project: %w", err)
	}
	return nil
}

// GlobalPrompts returns a copy of the prompts shared by every project.
func (s *Store) GlobalPrompts() []Prompt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Prompt{}, s.data.GlobalPrompts...)
}

// UpdateGlobalPrompts applies fn to the shared prompts and schedules a save.
func (s *Store) UpdateGlobalPrompts(ctx context.Context, fn func([]Prompt) ([]Prompt, error)) error {
	s.mu.Lock()
	prompts, err := fn(append([]Prompt{}, s.data.GlobalPrompts...))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if prompts == nil {
		prompts = []Prompt{}
	}
	s.data.GlobalPrompts = prompts
	s.mu.Unlock()

	s.Save()
	return nil
}

// ActiveProjectID returns the persisted active project id, or "" if none.
func (s *Store) ActiveProjectID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ActiveProject
}

// Settings returns the global settings.
func (s *Store) Settings() (theme string, pomodoro PomodoroSettings) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.TerminalTheme, s.data.Pomodoro
}

// ClearAllTerminals drops every persisted terminal. Terminal sessions do not
// survive a daemon restart, so this runs once at start-up.
func (s *Store) ClearAllTerminals() {
	s.mu.Lock()
	for _, ps := range s.data.Projects {
		ps.Terminals = make(map[string]*TerminalState)
		ps.ActiveTerminalID = ""
	}
	s.mu.Unlock()

	s.Save()
}

// Save schedules a debounced write. Calls within the debounce window
// collapse into one write.
func (s *Store) Save() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.closed {
		return
	}
	if s.debounce <= 0 {
		go s.flushLogged()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.flushLogged)
}

// SaveSync cancels any pending write and writes immediately.
func (s *Store) SaveSync() error {
	s.timerMu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerMu.Unlock()

	return s.flush()
}

// Close flushes pending changes. Later saves are ignored.
func (s *Store) Close() error {
	s.timerMu.Lock()
	if s.closed {
		s.timerMu.Unlock()
		return nil
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerMu.Unlock()

	return s.flush()
}

func (s *Store) flushLogged() {
	if err := s.flush(); err != nil {
		s.logger.Error("failed to save state", zap.String("path", s.path), zap.Error(err))
	}
}

// flush writes the state to disk atomically. The snapshot is taken under
// writeMu so concurrent flushes land on disk in the order they marshalled.
func (s *Store) flush() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	data, err := json.MarshalIndent(s.data, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename state: %w", err)
	}
	return nil
}

// load reads the state file from disk.
func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var st AppState
	if err := json.Unmarshal(raw, &st); err != nil {
		return fmt.Errorf("%w: %v", ErrStateCorrupted, err)
	}

	// Initialize maps if nil (for version upgrades)
	if st.Projects == nil {
		st.Projects = make(map[string]*ProjectState)
	}
	for id, ps := range st.Projects {
		if ps == nil {
			delete(st.Projects, id)
			continue
		}
		ps.repair()
	}
	if _, ok := st.Projects[st.ActiveProject]; !ok {
		st.ActiveProject = ""
	}
	if st.GlobalPrompts == nil {
		st.GlobalPrompts = []Prompt{}
	}
	if st.Pomodoro.SessionMinutes <= 0 {
		st.Pomodoro.SessionMinutes = 25
	}
	if st.Pomodoro.BreakMinutes <= 0 {
		st.Pomodoro.BreakMinutes = 5
	}
	st.Version = CurrentVersion

	s.data = &st
	return nil
}
