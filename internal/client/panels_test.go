package client

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpapi "github.com/fyrsmithlabs/projecthub/internal/http"
	"github.com/fyrsmithlabs/projecthub/internal/state"
)

func TestClient_PanelMutations(t *testing.T) {
	c, store := newTestClient(t)
	ctx := context.Background()

	_, err := c.AddTodo(ctx, "too early")
	assert.True(t, IsStatus(err, http.StatusConflict))

	p, err := c.CreateProject(ctx, "api", t.TempDir())
	require.NoError(t, err)
	_, err = c.Switch(ctx, p.ID)
	require.NoError(t, err)

	todo, err := c.AddTodo(ctx, "ship it")
	require.NoError(t, err)
	todo, err = c.ToggleTodo(ctx, todo.ID)
	require.NoError(t, err)
	assert.True(t, todo.Completed)

	require.NoError(t, c.SetNotes(ctx, "remember"))

	term, err := c.OpenTerminal(ctx)
	require.NoError(t, err)
	require.NoError(t, c.CloseTerminal(ctx, term.ID))
	assert.True(t, IsStatus(c.CloseTerminal(ctx, term.ID), http.StatusNotFound))

	ratio := 40.0
	layout, err := c.SetLayout(ctx, httpapi.LayoutRequest{ActiveTab: "notes", SplitView: true, SplitRatio: &ratio})
	require.NoError(t, err)
	assert.Equal(t, "notes", layout.ActiveTab)

	_, err = c.StartPomodoro(ctx)
	require.NoError(t, err)
	pomo, err := c.PausePomodoro(ctx)
	require.NoError(t, err)
	assert.False(t, pomo.Running)

	_, err = c.SelectFile(ctx, "../outside")
	assert.True(t, IsStatus(err, http.StatusBadRequest))

	cmds, err := c.SetTool(ctx, "test", "make check")
	require.NoError(t, err)
	assert.Equal(t, "make check", cmds["test"])

	tab, err := c.OpenTab(ctx, "http://localhost:8080", "app")
	require.NoError(t, err)
	b, err := c.SelectTab(ctx, tab.ID)
	require.NoError(t, err)
	assert.Equal(t, tab.ID, b.ActiveTabID)
	bm, err := c.AddBookmark(ctx, "app", "http://localhost:8080")
	require.NoError(t, err)
	require.NoError(t, c.RemoveBookmark(ctx, bm.ID))

	prompt, err := c.AddPrompt(ctx, httpapi.PromptRequest{Title: "fix", Content: "fix the bug"})
	require.NoError(t, err)
	prompt, err = c.UsePrompt(ctx, prompt.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, prompt.UsageCount)
	list, err := c.Prompts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = c.GitHistory(ctx, 5)
	assert.True(t, IsStatus(err, http.StatusConflict))

	_, err = c.RecordTestRun(ctx, state.TestRun{Runner: "go", Status: "passed", Passed: 3, Total: 3})
	require.NoError(t, err)

	st, err := store.FetchProjectState(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, st.Todos, 1)
	assert.True(t, st.Todos[0].Completed)
	assert.Equal(t, "remember", st.Notes)
	assert.Empty(t, st.Terminals)
	assert.Equal(t, "notes", st.ActiveTab)
	assert.Equal(t, "make check", st.Tools["test"])
	assert.Len(t, st.Browser.Tabs, 1)
	assert.Empty(t, st.Browser.Bookmarks)
	require.Len(t, st.Prompts, 1)
	assert.Equal(t, 1, st.Prompts[0].UsageCount)
	assert.Len(t, st.TestHistory, 1)
}
