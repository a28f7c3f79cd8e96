package main

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/launchpad/internal/core/deployment"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "./data/launchpad.db", cfg.Database.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "./data/projects", cfg.Workspace.Root)
	assert.Equal(t, []string{"CI=true"}, cfg.Build.Env)
	assert.Equal(t, "unless-stopped", cfg.Runtime.RestartPolicy)
	assert.Equal(t, 20*time.Minute, cfg.Runtime.BuildTimeout)
	assert.Equal(t, []string{"nginx", "-t"}, cfg.Proxy.ValidateCmd)
	assert.Equal(t, []string{"nginx", "-s", "reload"}, cfg.Proxy.ReloadCmd)
	assert.Equal(t, 30000, cfg.Ports.Start)
	assert.Equal(t, 39999, cfg.Ports.End)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)

	configContent := `
server:
  host: "127.0.0.1"
  port: 9000
  shutdown_timeout: 15s

database:
  dsn: "/tmp/test.db"

workspace:
  root: "/srv/projects"

runtime:
  restart_policy: "always"
  node_image: "node:22-alpine"

proxy:
  available_dir: "/tmp/available"
  reload_cmd: ["systemctl", "reload", "nginx"]

ports:
  start: 40000
  end: 40999

log:
  level: "debug"
  format: "text"
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "/tmp/test.db", cfg.Database.DSN)
	assert.Equal(t, "/srv/projects", cfg.Workspace.Root)
	assert.Equal(t, "always", cfg.Runtime.RestartPolicy)
	assert.Equal(t, "node:22-alpine", cfg.Runtime.NodeImage)
	assert.Equal(t, "nginx:1.27-alpine", cfg.Runtime.StaticImage)
	assert.Equal(t, "/tmp/available", cfg.Proxy.AvailableDir)
	assert.Equal(t, []string{"systemctl", "reload", "nginx"}, cfg.Proxy.ReloadCmd)
	assert.Equal(t, 40000, cfg.Ports.Start)
	assert.Equal(t, 40999, cfg.Ports.End)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	clearEnv(t)

	t.Setenv("LAUNCHPAD_SERVER_HOST", "192.168.1.1")
	t.Setenv("LAUNCHPAD_SERVER_PORT", "3000")
	t.Setenv("LAUNCHPAD_DATABASE_DSN", "/custom/path.db")
	t.Setenv("LAUNCHPAD_WORKSPACE_ROOT", "/var/lib/launchpad/projects")
	t.Setenv("LAUNCHPAD_AUTH_SHARED_SECRET", "s3cret")
	t.Setenv("LAUNCHPAD_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.1", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/custom/path.db", cfg.Database.DSN)
	assert.Equal(t, "/var/lib/launchpad/projects", cfg.Workspace.Root)
	assert.Equal(t, "s3cret", cfg.Auth.SharedSecret)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfig_FileNotFound_UsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	clearEnv(t)

	tmpFile := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("invalid: yaml: content: [[["), 0644))

	_, err := LoadConfig(tmpFile)
	assert.Error(t, err)
}

// =============================================================================
// Config Validation Tests
// =============================================================================

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Workspace: WorkspaceConfig{Root: "/srv"},
			Runtime:   RuntimeConfig{RestartPolicy: "unless-stopped"},
			Ports:     PortsConfig{Start: 30000, End: 39999},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"single port range", func(c *Config) { c.Ports.End = c.Ports.Start }, false},
		{"empty restart policy", func(c *Config) { c.Runtime.RestartPolicy = "" }, false},
		{"inverted range", func(c *Config) { c.Ports.Start, c.Ports.End = 40000, 30000 }, true},
		{"zero start", func(c *Config) { c.Ports.Start = 0 }, true},
		{"end above max port", func(c *Config) { c.Ports.End = 70000 }, true},
		{"missing workspace", func(c *Config) { c.Workspace.Root = "" }, true},
		{"unknown restart policy", func(c *Config) { c.Runtime.RestartPolicy = "sometimes" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_InvalidPortRangeFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("LAUNCHPAD_PORTS_START", "50000")
	t.Setenv("LAUNCHPAD_PORTS_END", "40000")

	_, err := LoadConfig("")
	assert.ErrorContains(t, err, "invalid port range")
}

func TestConfig_Address(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
	}

	assert.Equal(t, "localhost:8080", cfg.Server.Address())
}

// =============================================================================
// Logger Setup Tests
// =============================================================================

func TestSetupLogger_Levels(t *testing.T) {
	tests := []struct {
		level   string
		format  string
		enabled slog.Level
		below   slog.Level
	}{
		{"debug", "json", slog.LevelDebug, slog.LevelDebug - 4},
		{"info", "text", slog.LevelInfo, slog.LevelDebug},
		{"warning", "json", slog.LevelWarn, slog.LevelInfo},
		{"error", "json", slog.LevelError, slog.LevelWarn},
		{"invalid", "json", slog.LevelInfo, slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := SetupLogger(&Config{Log: LogConfig{Level: tt.level, Format: tt.format}})
			require.NotNil(t, logger)
			assert.True(t, logger.Enabled(t.Context(), tt.enabled))
			assert.False(t, logger.Enabled(t.Context(), tt.below))
		})
	}
}

// =============================================================================
// Wiring Helper Tests
// =============================================================================

func TestLoadProfiles_DefaultsWithoutFile(t *testing.T) {
	profiles, err := loadProfiles("")
	require.NoError(t, err)
	assert.Equal(t, deployment.DefaultProfiles(), profiles)
}

func TestLoadProfiles_AppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bundled:\n  install: pnpm install --frozen-lockfile\n  build_timeout: 5m\n"), 0644))

	profiles, err := loadProfiles(path)
	require.NoError(t, err)

	bundled := profiles[deployment.ProfileBundled]
	assert.Equal(t, []string{"pnpm", "install", "--frozen-lockfile"}, bundled.Install)
	assert.Equal(t, 5*time.Minute, bundled.BuildTimeout)
	assert.Equal(t, deployment.DefaultProfiles()[deployment.ProfileServer], profiles[deployment.ProfileServer])
}

func TestLoadProfiles_Errors(t *testing.T) {
	_, err := loadProfiles(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read profiles file")

	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("turbo:\n  install: yarn\n"), 0644))
	_, err = loadProfiles(path)
	assert.ErrorIs(t, err, deployment.ErrUnknownProfileKind)
}

func TestExitCode(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	err := &ServerError{Op: "NewServer", Err: errors.New("no daemon"), ExitCode: ExitDockerError}
	assert.Equal(t, ExitDockerError, exitCode(logger, "failed", err))
	assert.Equal(t, ExitConfigError, exitCode(logger, "failed", errors.New("plain")))
	assert.Equal(t, "NewServer: no daemon", err.Error())
}

// =============================================================================
// Test Helpers
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"LAUNCHPAD_SERVER_HOST",
		"LAUNCHPAD_SERVER_PORT",
		"LAUNCHPAD_DATABASE_DSN",
		"LAUNCHPAD_WORKSPACE_ROOT",
		"LAUNCHPAD_AUTH_SHARED_SECRET",
		"LAUNCHPAD_PORTS_START",
		"LAUNCHPAD_PORTS_END",
		"LAUNCHPAD_LOG_LEVEL",
		"LAUNCHPAD_LOG_FORMAT",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}
