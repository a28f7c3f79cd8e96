package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/artpar/launchpad/internal/core/deployment"
	coreproxy "github.com/artpar/launchpad/internal/core/proxy"
	"github.com/artpar/launchpad/internal/shell/api"
	"github.com/artpar/launchpad/internal/shell/build"
	"github.com/artpar/launchpad/internal/shell/command"
	"github.com/artpar/launchpad/internal/shell/deployer"
	"github.com/artpar/launchpad/internal/shell/docker"
	"github.com/artpar/launchpad/internal/shell/metrics"
	"github.com/artpar/launchpad/internal/shell/notify"
	"github.com/artpar/launchpad/internal/shell/proxy"
	"github.com/artpar/launchpad/internal/shell/store"
	"github.com/artpar/launchpad/internal/shell/workspace"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitDockerError     = 3
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server represents the launchpad application server.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      *store.SQLiteStore
	docker     *docker.DockerClient
	deployer   *deployer.Service
	hub        *notify.Hub
	logger     *slog.Logger
}

// NewServer wires every component and reconciles deployments left over from
// a previous process.
func NewServer(ctx context.Context, cfg *Config, logger *slog.Logger) (*Server, error) {
	profiles, err := loadProfiles(cfg.Build.ProfilesFile)
	if err != nil {
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitConfigError}
	}

	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitDatabaseError}
	}

	d, err := docker.NewDockerClient(ctx, cfg.Docker.Host)
	if err != nil {
		s.Close()
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitDockerError}
	}

	if err := d.Ping(ctx); err != nil {
		s.Close()
		d.Close()
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitDockerError}
	}

	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.New(prometheus.NewRegistry())
	}

	runner := command.NewExecRunner(logger)

	buildCfg := build.Config{
		Profiles: profiles,
		Env:      cfg.Build.Env,
	}
	if rec != nil {
		buildCfg.Observer = rec
	}

	lifecycle := docker.NewLifecycle(d, docker.LifecycleConfig{
		BuildTimeout:     cfg.Runtime.BuildTimeout,
		OperationTimeout: cfg.Runtime.OperationTimeout,
		StopTimeout:      cfg.Runtime.StopTimeout,
	}, logger)

	router := proxy.NewConfigurator(proxy.Config{
		AvailableDir: cfg.Proxy.AvailableDir,
		EnabledDir:   cfg.Proxy.EnabledDir,
		ValidateCmd:  cfg.Proxy.ValidateCmd,
		ReloadCmd:    cfg.Proxy.ReloadCmd,
		Timeout:      cfg.Proxy.Timeout,
	}, runner, logger)

	hub := notify.NewHub(logger)

	deps := deployer.Dependencies{
		Store:     s,
		Workspace: workspace.NewMaterializer(cfg.Workspace.Root, logger),
		Builder:   build.NewOrchestrator(runner, buildCfg, logger),
		Runtime:   lifecycle,
		Router:    router,
		Publisher: hub,
	}
	if rec != nil {
		deps.Metrics = rec
	}

	svc, err := deployer.NewService(deps, deployer.Config{
		Ports: coreproxy.PortRange{Start: cfg.Ports.Start, End: cfg.Ports.End},
		Images: deployment.Images{
			Node:   cfg.Runtime.NodeImage,
			Static: cfg.Runtime.StaticImage,
		},
		RestartPolicy: cfg.Runtime.RestartPolicy,
	}, logger)
	if err != nil {
		s.Close()
		d.Close()
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitConfigError}
	}

	reconciled, err := svc.Reconcile(ctx)
	if err != nil {
		s.Close()
		d.Close()
		return nil, &ServerError{Op: "Reconcile", Err: err, ExitCode: ExitDatabaseError}
	}
	if reconciled > 0 {
		logger.Warn("failed deployments interrupted by restart", "count", reconciled)
	}

	apiCfg := api.Config{
		Store:         s,
		Deployer:      svc,
		Subscriptions: hub,
		Checks: map[string]api.Pinger{
			"database": s,
			"docker":   lifecycle,
		},
		SharedSecret: cfg.Auth.SharedSecret,
		Logger:       logger,
	}
	if rec != nil {
		apiCfg.Metrics = rec.Handler()
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      api.NewHandler(apiCfg).Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		store:      s,
		docker:     d,
		deployer:   svc,
		hub:        hub,
		logger:     logger,
	}, nil
}

// loadProfiles returns the built-in build profiles with the operator's
// overrides applied.
func loadProfiles(path string) (deployment.Profiles, error) {
	profiles := deployment.DefaultProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}
	overrides, err := deployment.ParseProfileOverrides(data)
	if err != nil {
		return nil, err
	}
	return profiles.Apply(overrides)
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		s.Shutdown(context.Background())
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown stops accepting requests, waits for in-flight deploys and closes
// the runtime and database connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := s.deployer.Close(shutdownCtx); err != nil {
		s.logger.Error("deploys still running at shutdown", "error", err)
	}

	s.hub.Close()

	if err := s.docker.Close(); err != nil {
		s.logger.Error("Docker client close error", "error", err)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

// exitCode logs err and maps it to a process exit code.
func exitCode(logger *slog.Logger, msg string, err error) int {
	var sErr *ServerError
	if errors.As(err, &sErr) {
		logger.Error(msg, "error", sErr.Err, "operation", sErr.Op)
		return sErr.ExitCode
	}
	logger.Error(msg, "error", err)
	return ExitConfigError
}
