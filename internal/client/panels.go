package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	httpapi "github.com/fyrsmithlabs/projecthub/internal/http"
	"github.com/fyrsmithlabs/projecthub/internal/panels"
	"github.com/fyrsmithlabs/projecthub/internal/state"
)

const activePath = "/api/v1/active"

// AddTodo adds a todo to the active project.
func (c *Client) AddTodo(ctx context.Context, text string) (state.TodoItem, error) {
	var item state.TodoItem
	err := c.do(ctx, http.MethodPost, activePath+"/todos", httpapi.TodoRequest{Text: text}, &item)
	return item, err
}

// ToggleTodo flips a todo's completed flag.
func (c *Client) ToggleTodo(ctx context.Context, id string) (state.TodoItem, error) {
	var item state.TodoItem
	err := c.do(ctx, http.MethodPost, activePath+"/todos/"+url.PathEscape(id)+"/toggle", nil, &item)
	return item, err
}

// RemoveTodo deletes a todo.
func (c *Client) RemoveTodo(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, activePath+"/todos/"+url.PathEscape(id), nil, nil)
}

// SetNotes replaces the active project's notes.
func (c *Client) SetNotes(ctx context.Context, text string) error {
	return c.do(ctx, http.MethodPut, activePath+"/notes", httpapi.NotesRequest{Text: text}, nil)
}

// OpenTerminal opens a terminal in the active project.
func (c *Client) OpenTerminal(ctx context.Context) (state.TerminalState, error) {
	var term state.TerminalState
	err := c.do(ctx, http.MethodPost, activePath+"/terminals", nil, &term)
	return term, err
}

// SelectTerminal makes a terminal the active one.
func (c *Client) SelectTerminal(ctx context.Context, id string) (panels.TerminalSnapshot, error) {
	var snap panels.TerminalSnapshot
	err := c.do(ctx, http.MethodPut, activePath+"/terminals/"+url.PathEscape(id)+"/select", nil, &snap)
	return snap, err
}

// CloseTerminal closes a terminal.
func (c *Client) CloseTerminal(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, activePath+"/terminals/"+url.PathEscape(id), nil, nil)
}

// SetLayout changes the active tab and, when req.SplitRatio is set, the split.
func (c *Client) SetLayout(ctx context.Context, req httpapi.LayoutRequest) (panels.LayoutSnapshot, error) {
	var snap panels.LayoutSnapshot
	err := c.do(ctx, http.MethodPut, activePath+"/layout", req, &snap)
	return snap, err
}

// StartPomodoro resumes the timer.
func (c *Client) StartPomodoro(ctx context.Context) (panels.PomodoroSnapshot, error) {
	var snap panels.PomodoroSnapshot
	err := c.do(ctx, http.MethodPost, activePath+"/pomodoro/start", nil, &snap)
	return snap, err
}

// PausePomodoro pauses the timer.
func (c *Client) PausePomodoro(ctx context.Context) (panels.PomodoroSnapshot, error) {
	var snap panels.PomodoroSnapshot
	err := c.do(ctx, http.MethodPost, activePath+"/pomodoro/pause", nil, &snap)
	return snap, err
}

// ExpandDir expands a directory in the file browser.
func (c *Client) ExpandDir(ctx context.Context, path string) (panels.FilesSnapshot, error) {
	return c.files(ctx, http.MethodPost, "/files/expand", path)
}

// CollapseDir collapses a directory in the file browser.
func (c *Client) CollapseDir(ctx context.Context, path string) (panels.FilesSnapshot, error) {
	return c.files(ctx, http.MethodPost, "/files/collapse", path)
}

// SelectFile selects a file in the file browser.
func (c *Client) SelectFile(ctx context.Context, path string) (panels.FilesSnapshot, error) {
	return c.files(ctx, http.MethodPut, "/files/selection", path)
}

func (c *Client) files(ctx context.Context, method, suffix, path string) (panels.FilesSnapshot, error) {
	var snap panels.FilesSnapshot
	err := c.do(ctx, method, activePath+suffix, httpapi.PathRequest{Path: path}, &snap)
	return snap, err
}

// RecordTestRun appends a run to the test history.
func (c *Client) RecordTestRun(ctx context.Context, run state.TestRun) (panels.TestsSnapshot, error) {
	var snap panels.TestsSnapshot
	err := c.do(ctx, http.MethodPost, activePath+"/tests/runs", run, &snap)
	return snap, err
}

// DiscoverTests scans the active project for tests.
func (c *Client) DiscoverTests(ctx context.Context) (panels.Discovery, error) {
	var d panels.Discovery
	err := c.do(ctx, http.MethodGet, activePath+"/tests/discovery", nil, &d)
	return d, err
}

// SetTool overrides a tool command. An empty command removes the override.
func (c *Client) SetTool(ctx context.Context, name, command string) (map[string]string, error) {
	var cmds map[string]string
	err := c.do(ctx, http.MethodPut, activePath+"/tools/"+url.PathEscape(name), httpapi.ToolRequest{Command: command}, &cmds)
	return cmds, err
}

// GitHistory returns up to limit commits. limit <= 0 uses the server default.
func (c *Client) GitHistory(ctx context.Context, limit int) ([]panels.Commit, error) {
	path := activePath + "/git/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var commits []panels.Commit
	err := c.do(ctx, http.MethodGet, path, nil, &commits)
	return commits, err
}

// GitDiff returns the working-tree diff of one file.
func (c *Client) GitDiff(ctx context.Context, path string) (panels.FileDiff, error) {
	var d panels.FileDiff
	err := c.do(ctx, http.MethodGet, activePath+"/git/diff?path="+url.QueryEscape(path), nil, &d)
	return d, err
}

// OpenTab opens a browser tab.
func (c *Client) OpenTab(ctx context.Context, rawURL, title string) (state.BrowserTab, error) {
	var tab state.BrowserTab
	err := c.do(ctx, http.MethodPost, activePath+"/browser/tabs", httpapi.TabRequest{URL: rawURL, Title: title}, &tab)
	return tab, err
}

// SelectTab makes a browser tab the active one.
func (c *Client) SelectTab(ctx context.Context, id string) (state.BrowserState, error) {
	var b state.BrowserState
	err := c.do(ctx, http.MethodPut, activePath+"/browser/tabs/"+url.PathEscape(id)+"/select", nil, &b)
	return b, err
}

// CloseTab closes a browser tab.
func (c *Client) CloseTab(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, activePath+"/browser/tabs/"+url.PathEscape(id), nil, nil)
}

// AddBookmark bookmarks a URL.
func (c *Client) AddBookmark(ctx context.Context, name, rawURL string) (state.Bookmark, error) {
	var bm state.Bookmark
	err := c.do(ctx, http.MethodPost, activePath+"/browser/bookmarks", httpapi.BookmarkRequest{Name: name, URL: rawURL}, &bm)
	return bm, err
}

// RemoveBookmark deletes a bookmark.
func (c *Client) RemoveBookmark(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, activePath+"/browser/bookmarks/"+url.PathEscape(id), nil, nil)
}

// Prompts lists the active project's prompts and the global library.
func (c *Client) Prompts(ctx context.Context) ([]state.Prompt, error) {
	var ps []state.Prompt
	err := c.do(ctx, http.MethodGet, activePath+"/prompts", nil, &ps)
	return ps, err
}

// AddPrompt creates a project prompt, or a global one when req.Global is set.
func (c *Client) AddPrompt(ctx context.Context, req httpapi.PromptRequest) (state.Prompt, error) {
	var p state.Prompt
	err := c.do(ctx, http.MethodPost, activePath+"/prompts", req, &p)
	return p, err
}

// UsePrompt records a use of a prompt.
func (c *Client) UsePrompt(ctx context.Context, id string) (state.Prompt, error) {
	var p state.Prompt
	err := c.do(ctx, http.MethodPost, activePath+"/prompts/"+url.PathEscape(id)+"/use", nil, &p)
	return p, err
}

// TogglePromptPin flips a prompt's pinned flag.
func (c *Client) TogglePromptPin(ctx context.Context, id string) (state.Prompt, error) {
	var p state.Prompt
	err := c.do(ctx, http.MethodPost, activePath+"/prompts/"+url.PathEscape(id)+"/pin", nil, &p)
	return p, err
}

// RemovePrompt deletes a prompt.
func (c *Client) RemovePrompt(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, activePath+"/prompts/"+url.PathEscape(id), nil, nil)
}
