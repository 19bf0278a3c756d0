package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projecthub/internal/panels"
	"github.com/fyrsmithlabs/projecthub/internal/state"
	"github.com/fyrsmithlabs/projecthub/internal/workspace"
)

// ErrPanelsStale is returned when the panels are still bound to a project
// other than the active one, e.g. after a switch whose state was missing.
var ErrPanelsStale = errors.New("panels are not loaded for the active project")

// persister writes a panel's in-memory state to its bound project.
type persister interface {
	Persist(ctx context.Context) error
}

// panelHandler serves a request against panels bound to the active project.
type panelHandler func(c echo.Context, set *panels.Set) error

func (s *Server) registerPanelRoutes(g *echo.Group) {
	g.GET("/panels", s.handlePanels)

	g.POST("/todos", s.withPanels(s.handleAddTodo))
	g.POST("/todos/:id/toggle", s.withPanels(s.handleToggleTodo))
	g.DELETE("/todos/:id", s.withPanels(s.handleRemoveTodo))

	g.PUT("/notes", s.withPanels(s.handleSetNotes))

	g.POST("/terminals", s.withPanels(s.handleOpenTerminal))
	g.PUT("/terminals/:id/select", s.withPanels(s.handleSelectTerminal))
	g.DELETE("/terminals/:id", s.withPanels(s.handleCloseTerminal))

	g.PUT("/layout", s.withPanels(s.handleSetLayout))

	g.POST("/pomodoro/start", s.withPanels(s.handlePomodoroStart))
	g.POST("/pomodoro/pause", s.withPanels(s.handlePomodoroPause))

	g.POST("/files/expand", s.withPanels(s.handleExpandDir))
	g.POST("/files/collapse", s.withPanels(s.handleCollapseDir))
	g.PUT("/files/selection", s.withPanels(s.handleSelectFile))

	g.POST("/tests/runs", s.withPanels(s.handleRecordRun))
	g.GET("/tests/discovery", s.withPanels(s.handleDiscoverTests))

	g.PUT("/tools/:name", s.withPanels(s.handleSetTool))

	g.GET("/git/history", s.withPanels(s.handleGitHistory))
	g.GET("/git/diff", s.withPanels(s.handleGitDiff))

	g.POST("/browser/tabs", s.withPanels(s.handleOpenTab))
	g.PUT("/browser/tabs/:id/select", s.withPanels(s.handleSelectTab))
	g.DELETE("/browser/tabs/:id", s.withPanels(s.handleCloseTab))
	g.POST("/browser/bookmarks", s.withPanels(s.handleAddBookmark))
	g.DELETE("/browser/bookmarks/:id", s.withPanels(s.handleRemoveBookmark))

	g.GET("/prompts", s.withPanels(s.handleListPrompts))
	g.POST("/prompts", s.withPanels(s.handleAddPrompt))
	g.POST("/prompts/:id/use", s.withPanels(s.handleUsePrompt))
	g.POST("/prompts/:id/pin", s.withPanels(s.handlePinPrompt))
	g.DELETE("/prompts/:id", s.withPanels(s.handleRemovePrompt))
}

// withPanels rejects requests while a switch runs, while no project is
// active, and while the panels are bound to a different project.
func (s *Server) withPanels(h panelHandler) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.deps.Switcher.Switching() {
			return toHTTPError(workspace.ErrSwitchInProgress)
		}
		active := s.deps.Switcher.Active()
		if active == nil {
			return toHTTPError(workspace.ErrNoActiveProject)
		}
		if bound := s.deps.Panels.ProjectID(); bound != active.ID {
			s.logger.Warn("panels bound to another project",
				zap.String("active", active.ID),
				zap.String("bound", bound),
			)
			return toHTTPError(ErrPanelsStale)
		}
		return h(c, s.deps.Panels)
	}
}

// persist writes p and maps failures.
func (s *Server) persist(c echo.Context, p persister) error {
	if err := p.Persist(c.Request().Context()); err != nil {
		s.logger.Error("failed to persist panel", zap.Error(err))
		return toHTTPError(err)
	}
	return nil
}

func (s *Server) handlePanels(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Panels.Snapshot())
}

func (s *Server) handleAddTodo(c echo.Context, set *panels.Set) error {
	var req TodoRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	item, err := set.Todos.Add(req.Text)
	if err != nil {
		return toHTTPError(err)
	}
	if err := s.persist(c, set.Todos); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, item)
}

func (s *Server) handleToggleTodo(c echo.Context, set *panels.Set) error {
	item, err := set.Todos.Toggle(c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	if err := s.persist(c, set.Todos); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (s *Server) handleRemoveTodo(c echo.Context, set *panels.Set) error {
	if err := set.Todos.Remove(c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	if err := s.persist(c, set.Todos); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSetNotes(c echo.Context, set *panels.Set) error {
	var req NotesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := set.Notes.Set(req.Text); err != nil {
		return toHTTPError(err)
	}
	if err := s.persist(c, set.Notes); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleOpenTerminal(c echo.Context, set *panels.Set) error {
	term, err := set.Terminal.Open()
	if err != nil {
		return toHTTPError(err)
	}
	if err := s.persist(c, set.Terminal); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, term)
}

func (s *Server) handleSelectTerminal(c echo.Context, set *panels.Set) error {
	if err := set.Terminal.Select(c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	if err := s.persist(c, set.Terminal); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, set.Terminal.Snapshot())
}

func (s *Server) handleCloseTerminal(c echo.Context, set *panels.Set) error {
	if err := set.Terminal.Close(c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	if err := s.persist(c, set.Terminal); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSetLayout(c echo.Context, set *panels.Set) error {
	var req LayoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ActiveTab != "" {
		if err := set.Layout.SetTab(req.ActiveTab); err != nil {
			return toHTTPError(err)
		}
	}
	if req.SplitRatio != nil {
		if err := set.Layout.SetSplit(req.SplitView, *req.SplitRatio); err != nil {
			return toHTTPError(err)
		}
	}
	if err := s.persist(c, set.Layout); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, set.Layout.Snapshot())
}

func (s *Server) handlePomodoroStart(c echo.Context, set *panels.Set) error {
	if err := set.Pomodoro.Start(); err != nil {
		return toHTTPError(err)
	}
	if err := s.persist(c, set.Pomodoro); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, set.Pomodoro.Snapshot())
}

func (s *Server) handlePomodoroPause(c echo.Context, set *panels.Set) error {
	set.Pomodoro.Pause()
	if err := s.persist(c, set.Pomodoro); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, set.Pomodoro.Snapshot())
}

func (s *Server) handleExpandDir(c echo.Context, set *panels.Set) error {
	return s.updateFiles(c, set, set.Files.Expand)
}

func (s *Server) handleCollapseDir(c echo.Context, set *panels.Set) error {
	return s.updateFiles(c, set, set.Files.Collapse)
}

func (s *Server) handleSelectFile(c echo.Context, set *panels.Set) error {
	return s.updateFiles(c, set, set.Files.Select)
}

func (s *Server) updateFiles(c echo.Context, set *panels.Set, fn func(string) error) error {
	var req PathRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := fn(req.Path); err != nil {
		return toHTTPError(err)
	}
	if err := s.persist(c, set.Files); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, set.Files.Snapshot())
}

func (s *Server) handleRecordRun(c echo.Context, set *panels.Set) error {
	var run state.TestRun
	if err := c.Bind(&run); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := set.Tests.RecordRun(run); err != nil {
		return toHTTPError(err)
	}
	if err := s.persist(c, set.Tests); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, set.Tests.Snapshot())
}

func (s *Server) handleDiscoverTests(c echo.Context, set *panels.Set) error {
	d, err := set.Tests.Discover(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (s *Server) handleSetTool(c echo.Context, set *panels.Set) error {
	var req ToolRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := set.Tools.SetOverride(c.Request().Context(), c.Param("name"), req.Command); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, set.Tools.Commands())
}

func (s *Server) handleGitHistory(c echo.Context, set *panels.Set) error {
	limit := panels.DefaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	commits, err := set.Git.History(c.Request().Context(), limit)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, commits)
}

func (s *Server) handleGitDiff(c echo.Context, set *panels.Set) error {
	path := c.QueryParam("path")
	if path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path query parameter is required")
	}
	d, err := set.Git.Diff(path)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (s *Server) handleOpenTab(c echo.Context, set *panels.Set) error {
	var req TabRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	tab, err := set.Browser.OpenTab(req.URL, req.Title)
	if err != nil {
		return toHTTPError(err)
	}
	if err := s.persist(c, set.Browser); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tab)
}

func (s *Server) handleSelectTab(c echo.Context, set *panels.Set) error {
	if err := set.Browser.SelectTab(c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	if err := s.persist(c, set.Browser); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, set.Browser.Snapshot())
}

func (s *Server) handleCloseTab(c echo.Context, set *panels.Set) error {
	if err := set.Browser.CloseTab(c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	if err := s.persist(c, set.Browser); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleAddBookmark(c echo.Context, set *panels.Set) error {
	var req BookmarkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	bm, err := set.Browser.AddBookmark(req.Name, req.URL)
	if err != nil {
		return toHTTPError(err)
	}
	if err := s.persist(c, set.Browser); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, bm)
}

func (s *Server) handleRemoveBookmark(c echo.Context, set *panels.Set) error {
	if err := set.Browser.RemoveBookmark(c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	if err := s.persist(c, set.Browser); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListPrompts(c echo.Context, set *panels.Set) error {
	return c.JSON(http.StatusOK, set.Prompts.List())
}

func (s *Server) handleAddPrompt(c echo.Context, set *panels.Set) error {
	var req PromptRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := set.Prompts.Add(c.Request().Context(), state.Prompt{
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
		IsGlobal: req.Global,
	})
	if err != nil {
		return toHTTPError(err)
	}
	if err := s.persist(c, set.Prompts); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) handleUsePrompt(c echo.Context, set *panels.Set) error {
	return s.updatePrompt(c, set, set.Prompts.Use)
}

func (s *Server) handlePinPrompt(c echo.Context, set *panels.Set) error {
	return s.updatePrompt(c, set, set.Prompts.TogglePin)
}

func (s *Server) updatePrompt(c echo.Context, set *panels.Set, fn func(context.Context, string) (state.Prompt, error)) error {
	p, err := fn(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	if err := s.persist(c, set.Prompts); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleRemovePrompt(c echo.Context, set *panels.Set) error {
	if err := set.Prompts.Remove(c.Request().Context(), c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	if err := s.persist(c, set.Prompts); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
