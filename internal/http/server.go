// Package http provides the projecthub daemon HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projecthub/internal/panels"
	"github.com/fyrsmithlabs/projecthub/internal/project"
	"github.com/fyrsmithlabs/projecthub/internal/state"
	"github.com/fyrsmithlabs/projecthub/internal/workspace"
)

// Projects is the project catalog and state store the API serves.
type Projects interface {
	project.Catalog
	CreateProject(ctx context.Context, name, path string) (*project.Project, error)
	FetchProjectState(ctx context.Context, projectID string) (*state.ProjectState, error)
}

// Switcher runs project switches.
type Switcher interface {
	Switch(ctx context.Context, targetID string) (*workspace.Result, error)
	Reload(ctx context.Context) (*workspace.Result, error)
	Active() *project.Project
	Switching() bool
}

// Deps are the collaborators behind the API.
type Deps struct {
	Projects Projects
	Switcher Switcher

	// Panels is optional; without it the /api/v1/active panel routes are
	// not served.
	Panels *panels.Set

	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Metrics is optional OTEL request instrumentation.
	Metrics *HTTPMetrics
}

// Server provides HTTP endpoints for projecthub.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, logger *zap.Logger, cfg *Config) (*Server, error) {
	if deps.Projects == nil {
		return nil, fmt.Errorf("projects cannot be nil")
	}
	if deps.Switcher == nil {
		return nil, fmt.Errorf("switcher cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 9191,
		}
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if deps.Metrics != nil {
		e.Use(deps.Metrics.MetricsMiddleware())
	}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		deps:   deps,
		logger: logger,
		config: cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/projects", s.handleListProjects)
	v1.POST("/projects", s.handleCreateProject)
	v1.GET("/projects/:id/state", s.handleProjectState)
	v1.GET("/active", s.handleGetActive)
	v1.PUT("/active", s.handleSwitch)
	v1.POST("/active/reload", s.handleReload)
	if s.deps.Panels != nil {
		s.registerPanelRoutes(v1.Group("/active"))
	}
}

// Handler returns the HTTP handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Switching: s.deps.Switcher.Switching()}
	if p := s.deps.Switcher.Active(); p != nil {
		resp.ActiveProject = p.ID
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListProjects(c echo.Context) error {
	projects, err := s.deps.Projects.List(c.Request().Context())
	if err != nil {
		s.logger.Error("failed to list projects", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list projects")
	}

	activeID := ""
	if p := s.deps.Switcher.Active(); p != nil {
		activeID = p.ID
	}
	return c.JSON(http.StatusOK, ProjectsResponse{Projects: projects, ActiveProject: activeID})
}

func (s *Server) handleCreateProject(c echo.Context) error {
	var req CreateProjectRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid create project request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name field is required")
	}
	if req.Path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path field is required")
	}

	p, err := s.deps.Projects.CreateProject(c.Request().Context(), req.Name, req.Path)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) handleProjectState(c echo.Context) error {
	st, err := s.deps.Projects.FetchProjectState(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) handleGetActive(c echo.Context) error {
	return c.JSON(http.StatusOK, ActiveResponse{
		Project:   s.deps.Switcher.Active(),
		Switching: s.deps.Switcher.Switching(),
	})
}

func (s *Server) handleSwitch(c echo.Context) error {
	var req SwitchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid switch request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ProjectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project_id field is required")
	}

	res, err := s.deps.Switcher.Switch(c.Request().Context(), req.ProjectID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, NewSwitchResponse(res))
}

func (s *Server) handleReload(c echo.Context) error {
	res, err := s.deps.Switcher.Reload(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, NewSwitchResponse(res))
}

// toHTTPError maps domain errors to HTTP statuses.
func toHTTPError(err error) *echo.HTTPError {
	var status int
	switch {
	case errors.Is(err, workspace.ErrSwitchInProgress),
		errors.Is(err, workspace.ErrNoActiveProject),
		errors.Is(err, project.ErrProjectExists),
		errors.Is(err, panels.ErrNoActiveProject),
		errors.Is(err, panels.ErrNotRepository),
		errors.Is(err, ErrPanelsStale):
		status = http.StatusConflict
	case errors.Is(err, workspace.ErrUnknownProject),
		errors.Is(err, project.ErrProjectNotFound),
		errors.Is(err, panels.ErrTodoNotFound),
		errors.Is(err, panels.ErrTerminalNotFound),
		errors.Is(err, panels.ErrTabNotFound),
		errors.Is(err, panels.ErrBookmarkMissing),
		errors.Is(err, panels.ErrPromptNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workspace.ErrStateFetch):
		status = http.StatusBadGateway
	case errors.Is(err, project.ErrEmptyProjectName),
		errors.Is(err, project.ErrInvalidProjectName),
		errors.Is(err, project.ErrEmptyProjectPath),
		errors.Is(err, project.ErrInvalidProjectPath),
		errors.Is(err, project.ErrInvalidProjectID),
		errors.Is(err, state.ErrNotDirectory),
		errors.Is(err, panels.ErrEmptyTodo),
		errors.Is(err, panels.ErrEmptyPrompt),
		errors.Is(err, panels.ErrEmptyToolName),
		errors.Is(err, panels.ErrInvalidURL),
		errors.Is(err, panels.ErrInvalidLayout),
		errors.Is(err, panels.ErrInvalidPath):
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}
	return echo.NewHTTPError(status, err.Error()).SetInternal(err)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
