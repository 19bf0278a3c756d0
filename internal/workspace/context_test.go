package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/projecthub/internal/project"
	"github.com/fyrsmithlabs/projecthub/internal/state"
)

func TestSwitchContext_Identity(t *testing.T) {
	next := &project.Project{ID: "n"}
	sc := newSwitchContext("s1", nil, next)

	assert.True(t, sc.IsFirstSwitch())
	assert.Empty(t, sc.PreviousProjectID)
	assert.Nil(t, sc.PreviousProject)
	assert.Equal(t, "n", sc.NewProjectID)
	assert.False(t, sc.HasState())

	sc = newSwitchContext("s2", &project.Project{ID: "p"}, next)
	assert.False(t, sc.IsFirstSwitch())
	assert.Equal(t, "p", sc.PreviousProjectID)
}

func TestSwitchContext_WithStateOnce(t *testing.T) {
	sc := newSwitchContext("s1", nil, &project.Project{ID: "n"})
	sc.withState(&state.ProjectState{ID: "n"})
	assert.True(t, sc.HasState())

	assert.Panics(t, func() { sc.withState(&state.ProjectState{ID: "n"}) })
}
