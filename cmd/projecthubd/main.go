// Package main implements projecthubd, the daemon that owns the active project.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projecthub/internal/config"
	httpapi "github.com/fyrsmithlabs/projecthub/internal/http"
	"github.com/fyrsmithlabs/projecthub/internal/logging"
	"github.com/fyrsmithlabs/projecthub/internal/notify"
	"github.com/fyrsmithlabs/projecthub/internal/panels"
	"github.com/fyrsmithlabs/projecthub/internal/state"
	"github.com/fyrsmithlabs/projecthub/internal/telemetry"
	"github.com/fyrsmithlabs/projecthub/internal/workspace"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default ~/.config/projecthub/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  projecthubd           Start the projecthub daemon\n")
			fmt.Fprintf(os.Stderr, "  projecthubd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadWithFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func printVersion() {
	fmt.Printf("projecthubd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the daemon and serves until ctx is done.
func run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tel, err := initTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := initLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()
	zl := logger.Underlying()

	logger.Info(ctx, "starting projecthubd",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("state_path", cfg.State.Path),
		zap.Bool("telemetry", tel.IsEnabled()))

	deps, err := initDependencies(cfg, zl)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	_, pomodoro := deps.store.Settings()
	set := panels.New(deps.store, panels.Config{
		GitPollInterval:    cfg.Panels.GitPollInterval.Duration(),
		CoverageFiles:      cfg.Panels.CoverageFiles,
		CoverageReloadRate: cfg.Panels.CoverageReloadRate.Duration(),
		Pomodoro:           pomodoro,
	}, zl.Named("panels"))

	registry := workspace.NewRegistry(zl.Named("workspace"))
	if err := set.Register(registry); err != nil {
		return fmt.Errorf("failed to register panels: %w", err)
	}

	coord := workspace.NewCoordinator(registry, deps.store, deps.store,
		workspace.WithLogger(zl.Named("workspace")),
		workspace.WithTracer(tel.Tracer(workspace.InstrumentationName)),
	)
	coord.Observe(workspace.NewMetrics(promReg))

	logger.Info(ctx, "workspace initialized",
		zap.Strings("handlers", registry.Names()),
		zap.Bool("nats_connected", deps.natsConn != nil))

	if id := deps.store.ActiveProjectID(); id != "" {
		if _, err := coord.Switch(ctx, id); err != nil {
			logger.Warn(ctx, "failed to restore active project",
				zap.String("project_id", id), zap.Error(err))
		}
	}

	server, err := httpapi.NewServer(httpapi.Deps{
		Projects: deps.store,
		Switcher: coord,
		Panels:   set,
		Gatherer: promReg,
		Metrics:  httpapi.NewHTTPMetrics(tel.Meter("github.com/fyrsmithlabs/projecthub/internal/http"), zl),
	}, zl.Named("http"), &httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			serveErr = fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	// ctx is already done; shutdown gets a fresh deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	return errors.Join(serveErr, shutdown(shutdownCtx, logger, server, set, deps.store, tel))
}

// shutdown stops intake first, then persists: the HTTP server, unsaved
// panel edits, the state file and finally telemetry.
func shutdown(ctx context.Context, logger *logging.Logger, server *httpapi.Server, set *panels.Set, store *state.Store, tel *telemetry.Telemetry) error {
	var errs []error

	if err := server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := set.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("panel flush: %w", err))
	}
	if err := set.Close(); err != nil {
		errs = append(errs, fmt.Errorf("panel close: %w", err))
	}
	if err := store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("state close: %w", err))
	}
	if err := tel.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		logger.Error(ctx, "shutdown incomplete", zap.Error(err))
	} else {
		logger.Info(ctx, "shutdown complete")
	}
	return err
}

type dependencies struct {
	store    *state.Store
	natsConn *nats.Conn
}

func (d *dependencies) Close() {
	if d.natsConn != nil {
		_ = d.natsConn.Drain()
	}
}

func initTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Telemetry, error) {
	telCfg := telemetry.NewDefaultConfig()
	telCfg.ServiceVersion = version
	if err := cfg.Section("telemetry", telCfg); err != nil {
		return nil, err
	}
	return telemetry.New(ctx, telCfg)
}

func initLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	logCfg := logging.NewDefaultConfig()
	if err := cfg.Section("logging", logCfg); err != nil {
		return nil, err
	}
	return logging.NewLogger(logCfg, tel.LoggerProvider(), logging.WithOutput(os.Stderr))
}

// initDependencies opens the state store and, when enabled, the NATS
// announcer. PTY sessions never survive a restart, so stored terminals
// are cleared before the first switch.
func initDependencies(cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	store, err := state.Open(cfg.State.Path,
		state.WithLogger(logger.Named("state")),
		state.WithDebounce(cfg.State.SaveDebounce.Duration()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	store.ClearAllTerminals()

	deps := &dependencies{store: store}
	if !cfg.Notify.Enabled {
		return deps, nil
	}

	nc, err := notify.Connect(cfg.Notify, logger.Named("notify"))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	pub, err := notify.NewPublisher(nc, cfg.Notify.Subject,
		notify.WithCatalog(store),
		notify.WithLogger(logger.Named("notify")),
	)
	if err != nil {
		nc.Close()
		_ = store.Close()
		return nil, err
	}
	store.SetPublisher(pub)
	deps.natsConn = nc

	logger.Info("connected to NATS",
		zap.String("url", cfg.Notify.NATSURL),
		zap.String("subject", pub.Subject()))

	return deps, nil
}
