package project

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors.
var (
	ErrProjectNotFound    = errors.New("project not found")
	ErrProjectExists      = errors.New("project already exists")
	ErrInvalidProjectID   = errors.New("invalid project ID")
	ErrInvalidProjectName = errors.New("invalid project name")
	ErrInvalidProjectPath = errors.New("invalid project path")
	ErrEmptyProjectID     = errors.New("project ID cannot be empty")
	ErrEmptyProjectName   = errors.New("project name cannot be empty")
	ErrEmptyProjectPath   = errors.New("project path cannot be empty")
)

// DefaultColors is the palette new projects rotate through.
var DefaultColors = []string{
	"#6366f1", "#8b5cf6", "#ec4899", "#ef4444",
	"#f97316", "#eab308", "#22c55e", "#14b8a6",
	"#06b6d4", "#3b82f6",
}

// DefaultIcons is the icon set new projects rotate through.
var DefaultIcons = []string{
	"📁", "🚀", "⚡", "🔧", "💻",
	"🌐", "📱", "🎮", "🔬", "📊",
}

// Project is the identity of a workspace.
type Project struct {
	// ID is the unique project identifier (UUID).
	ID string `json:"id"`

	// Name is the human-readable project name.
	Name string `json:"name"`

	// Path is the filesystem location of the project.
	Path string `json:"path"`

	// Color is the accent color shown next to the project.
	Color string `json:"color"`

	// Icon is a short glyph shown next to the project.
	Icon string `json:"icon"`

	// CreatedAt is when the project was created.
	CreatedAt time.Time `json:"created_at"`
}

// NewProject creates a new project with a generated UUID.
// The n-th project created gets the n-th color and icon of the defaults.
func NewProject(name, path string, n int) (*Project, error) {
	if name == "" {
		return nil, ErrEmptyProjectName
	}
	if path == "" {
		return nil, ErrEmptyProjectPath
	}
	if n < 0 {
		n = 0
	}

	return &Project{
		ID:        uuid.New().String(),
		Name:      name,
		Path:      path,
		Color:     DefaultColors[n%len(DefaultColors)],
		Icon:      DefaultIcons[n%len(DefaultIcons)],
		CreatedAt: time.Now(),
	}, nil
}

// Validate checks if the project has valid fields.
func (p *Project) Validate() error {
	if p.ID == "" {
		return ErrEmptyProjectID
	}
	if _, err := uuid.Parse(p.ID); err != nil {
		return ErrInvalidProjectID
	}
	if p.Name == "" {
		return ErrEmptyProjectName
	}
	if p.Path == "" {
		return ErrEmptyProjectPath
	}
	return nil
}

// Clone returns a copy that callers may keep without aliasing the owner's value.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
