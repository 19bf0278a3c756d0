package workspace

import (
	"github.com/fyrsmithlabs/projecthub/internal/project"
	"github.com/fyrsmithlabs/projecthub/internal/state"
)

// SwitchContext is handed to every hook of one switch.
type SwitchContext struct {
	// SwitchID correlates logs and spans of one switch.
	SwitchID string

	// PreviousProjectID is empty on the first switch.
	PreviousProjectID string
	NewProjectID      string

	PreviousProject *project.Project
	NewProject      *project.Project

	// ProjectState is nil during BeforeSwitch and Save.
	ProjectState *state.ProjectState

	stateSet bool
}

func newSwitchContext(switchID string, prev, next *project.Project) *SwitchContext {
	sc := &SwitchContext{
		SwitchID:   switchID,
		NewProject: next,
	}
	if next != nil {
		sc.NewProjectID = next.ID
	}
	if prev != nil {
		sc.PreviousProject = prev
		sc.PreviousProjectID = prev.ID
	}
	return sc
}

// withState attaches the fetched state. It may be called once per context.
func (sc *SwitchContext) withState(st *state.ProjectState) {
	if sc.stateSet {
		panic("workspace: project state attached twice")
	}
	sc.stateSet = true
	sc.ProjectState = st
}

// HasState reports whether the fetched state is available.
func (sc *SwitchContext) HasState() bool {
	return sc.ProjectState != nil
}

// IsFirstSwitch reports whether no project was active before this switch.
func (sc *SwitchContext) IsFirstSwitch() bool {
	return sc.PreviousProjectID == ""
}
