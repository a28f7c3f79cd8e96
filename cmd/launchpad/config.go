package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Docker    DockerConfig    `mapstructure:"docker"`
	Log       LogConfig       `mapstructure:"log"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Build     BuildConfig     `mapstructure:"build"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	Ports     PortsConfig     `mapstructure:"ports"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// DockerConfig holds Docker client configuration.
type DockerConfig struct {
	Host string `mapstructure:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// WorkspaceConfig holds where project files are materialized.
type WorkspaceConfig struct {
	Root string `mapstructure:"root"`
}

// BuildConfig holds build step configuration.
type BuildConfig struct {
	// ProfilesFile is an optional YAML document overriding install and
	// build commands per profile kind.
	ProfilesFile string `mapstructure:"profiles_file"`

	// Env is added to every install and build step, e.g. "CI=true".
	Env []string `mapstructure:"env"`
}

// RuntimeConfig holds container runtime configuration.
type RuntimeConfig struct {
	RestartPolicy    string        `mapstructure:"restart_policy"`
	NodeImage        string        `mapstructure:"node_image"`
	StaticImage      string        `mapstructure:"static_image"`
	BuildTimeout     time.Duration `mapstructure:"build_timeout"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	StopTimeout      time.Duration `mapstructure:"stop_timeout"`
}

// ProxyConfig holds the nginx layout and control commands.
type ProxyConfig struct {
	AvailableDir string        `mapstructure:"available_dir"`
	EnabledDir   string        `mapstructure:"enabled_dir"`
	ValidateCmd  []string      `mapstructure:"validate_cmd"`
	ReloadCmd    []string      `mapstructure:"reload_cmd"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// PortsConfig holds the host port range handed out to projects.
type PortsConfig struct {
	Start int `mapstructure:"start"`
	End   int `mapstructure:"end"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// SharedSecret is checked against X-Gateway-Secret when set.
	SharedSecret string `mapstructure:"shared_secret"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("database.dsn", "./data/launchpad.db")
	v.SetDefault("docker.host", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("workspace.root", "./data/projects")
	v.SetDefault("build.profiles_file", "")
	v.SetDefault("build.env", []string{"CI=true"})

	v.SetDefault("runtime.restart_policy", "unless-stopped")
	v.SetDefault("runtime.node_image", "node:20-alpine")
	v.SetDefault("runtime.static_image", "nginx:1.27-alpine")
	v.SetDefault("runtime.build_timeout", "20m")
	v.SetDefault("runtime.operation_timeout", "1m")
	v.SetDefault("runtime.stop_timeout", "10s")

	v.SetDefault("proxy.available_dir", "/etc/nginx/sites-available")
	v.SetDefault("proxy.enabled_dir", "/etc/nginx/sites-enabled")
	v.SetDefault("proxy.validate_cmd", []string{"nginx", "-t"})
	v.SetDefault("proxy.reload_cmd", []string{"nginx", "-s", "reload"})
	v.SetDefault("proxy.timeout", "30s")

	v.SetDefault("ports.start", 30000)
	v.SetDefault("ports.end", 39999)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("auth.shared_secret", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// A missing file falls back to defaults; a broken one does not.
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("LAUNCHPAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	if c.Ports.Start <= 0 || c.Ports.End > 65535 || c.Ports.End < c.Ports.Start {
		return fmt.Errorf("invalid port range %d-%d", c.Ports.Start, c.Ports.End)
	}
	if c.Workspace.Root == "" {
		return errors.New("workspace.root is required")
	}
	switch c.Runtime.RestartPolicy {
	case "", "no", "always", "unless-stopped", "on-failure":
	default:
		return fmt.Errorf("unknown restart policy %q", c.Runtime.RestartPolicy)
	}
	return nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
