package http

import (
	"time"

	"github.com/fyrsmithlabs/projecthub/internal/project"
	"github.com/fyrsmithlabs/projecthub/internal/workspace"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	ActiveProject string `json:"active_project,omitempty"`
	Switching     bool   `json:"switching"`
}

// ProjectsResponse is the response body for GET /api/v1/projects.
type ProjectsResponse struct {
	Projects      []*project.Project `json:"projects"`
	ActiveProject string             `json:"active_project,omitempty"`
}

// CreateProjectRequest is the request body for POST /api/v1/projects.
type CreateProjectRequest struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// ActiveResponse is the response body for GET /api/v1/active.
type ActiveResponse struct {
	Project   *project.Project `json:"project"`
	Switching bool             `json:"switching"`
}

// SwitchRequest is the request body for PUT /api/v1/active.
type SwitchRequest struct {
	ProjectID string `json:"project_id"`
}

// SwitchResponse describes a completed switch or reload.
type SwitchResponse struct {
	SwitchID     string          `json:"switch_id,omitempty"`
	From         string          `json:"from,omitempty"`
	To           string          `json:"to"`
	Noop         bool            `json:"noop"`
	Reload       bool            `json:"reload"`
	StateMissing bool            `json:"state_missing"`
	Duration     time.Duration   `json:"duration_ns"`
	Faults       []FaultResponse `json:"faults"`
}

// FaultResponse is a hook failure absorbed during a switch.
type FaultResponse struct {
	Handler  string        `json:"handler"`
	Phase    string        `json:"phase"`
	Error    string        `json:"error"`
	Panicked bool          `json:"panicked"`
	Duration time.Duration `json:"duration_ns"`
}

// NewSwitchResponse converts a workspace result.
func NewSwitchResponse(res *workspace.Result) SwitchResponse {
	resp := SwitchResponse{
		SwitchID:     res.SwitchID,
		From:         res.From,
		To:           res.To,
		Noop:         res.Noop,
		Reload:       res.Reload,
		StateMissing: res.StateMissing,
		Duration:     res.Duration,
		Faults:       make([]FaultResponse, 0, len(res.Faults)),
	}
	for _, f := range res.Faults {
		resp.Faults = append(resp.Faults, FaultResponse{
			Handler:  f.Handler,
			Phase:    f.Phase.String(),
			Error:    f.Err.Error(),
			Panicked: f.Panicked,
			Duration: f.Duration,
		})
	}
	return resp
}

// TodoRequest is the request body for POST /api/v1/active/todos.
type TodoRequest struct {
	Text string `json:"text"`
}

// NotesRequest is the request body for PUT /api/v1/active/notes.
type NotesRequest struct {
	Text string `json:"text"`
}

// LayoutRequest is the request body for PUT /api/v1/active/layout. The
// split is only changed when SplitRatio is set.
type LayoutRequest struct {
	ActiveTab  string   `json:"active_tab,omitempty"`
	SplitView  bool     `json:"split_view"`
	SplitRatio *float64 `json:"split_ratio,omitempty"`
}

// PathRequest names a project-relative path for the files panel.
type PathRequest struct {
	Path string `json:"path"`
}

// ToolRequest is the request body for PUT /api/v1/active/tools/:name. An
// empty command removes the override.
type ToolRequest struct {
	Command string `json:"command"`
}

// TabRequest is the request body for POST /api/v1/active/browser/tabs.
type TabRequest struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// BookmarkRequest is the request body for POST /api/v1/active/browser/bookmarks.
type BookmarkRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// PromptRequest is the request body for POST /api/v1/active/prompts.
type PromptRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category,omitempty"`
	Global   bool   `json:"global"`
}
