// Package proxy activates routing rules in the host's nginx: rules are
// written to sites-available, linked into sites-enabled, validated and then
// reloaded.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/artpar/launchpad/internal/core/deployment"
	"github.com/artpar/launchpad/internal/core/proxy"
	"github.com/artpar/launchpad/internal/shell/command"
)

// Config holds the nginx layout and control commands.
type Config struct {
	AvailableDir string        // where rule documents are written
	EnabledDir   string        // where activation links live
	ValidateCmd  []string      // e.g. ["nginx", "-t"]
	ReloadCmd    []string      // e.g. ["nginx", "-s", "reload"]
	Timeout      time.Duration // per command
}

// DefaultConfig returns the Debian-style nginx layout.
func DefaultConfig() Config {
	return Config{
		AvailableDir: "/etc/nginx/sites-available",
		EnabledDir:   "/etc/nginx/sites-enabled",
		ValidateCmd:  []string{"nginx", "-t"},
		ReloadCmd:    []string{"nginx", "-s", "reload"},
		Timeout:      30 * time.Second,
	}
}

// Configurator renders and activates per-project routing rules.
type Configurator struct {
	config Config
	runner command.Runner
	logger *slog.Logger
}

// NewConfigurator creates a configurator.
func NewConfigurator(cfg Config, runner command.Runner, logger *slog.Logger) *Configurator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Configurator{
		config: cfg,
		runner: runner,
		logger: logger.With("component", "proxy"),
	}
}

// Configure routes hostname traffic for the project to hostPort. The custom
// domain is optional. The rule is activated only when the proxy accepts the
// full configuration. A rejected rule is rolled back to whatever was on disk
// before, so a previously working route stays in place, and no reload is
// attempted.
func (c *Configurator) Configure(ctx context.Context, projectID int64, hostPort int, customDomain string) (proxy.Site, error) {
	site, err := proxy.NewSite(projectID, hostPort, customDomain)
	if err != nil {
		return proxy.Site{}, proxyError("render rule", err)
	}

	available := filepath.Join(c.config.AvailableDir, site.FileName())
	enabled := filepath.Join(c.config.EnabledDir, site.FileName())

	prev, err := takeSnapshot(available, enabled)
	if err != nil {
		return proxy.Site{}, proxyError("read previous rule", err)
	}

	if err := writeAtomic(available, []byte(site.Render())); err != nil {
		return proxy.Site{}, proxyError("write rule", err)
	}

	if err := os.Remove(enabled); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.restore(site, prev)
		return proxy.Site{}, proxyError("deactivate previous rule", err)
	}
	if err := os.Symlink(available, enabled); err != nil {
		c.restore(site, prev)
		return proxy.Site{}, proxyError("activate rule", err)
	}

	if res, err := c.run(ctx, c.config.ValidateCmd); err != nil {
		c.restore(site, prev)
		c.logger.Warn("proxy rejected rule", "site", site.Name, "output", string(res.Output))
		return proxy.Site{}, proxyError("validate config", fmt.Errorf("%w: %s", err, trimOutput(res.Output)))
	}

	if res, err := c.run(ctx, c.config.ReloadCmd); err != nil {
		return proxy.Site{}, proxyError("reload", fmt.Errorf("%w: %s", err, trimOutput(res.Output)))
	}

	c.logger.Info("route configured",
		"site", site.Name,
		"hostname", site.Hostname,
		"upstream", site.Target.LocalAddress(),
	)
	return site, nil
}

// snapshot is the on-disk state of one site before it is rewritten.
type snapshot struct {
	available  string
	enabled    string
	rule       []byte // nil when no rule existed
	linkTarget string // empty when the rule was not enabled
}

func takeSnapshot(available, enabled string) (snapshot, error) {
	snap := snapshot{available: available, enabled: enabled}

	rule, err := os.ReadFile(available)
	switch {
	case err == nil:
		snap.rule = rule
	case !errors.Is(err, os.ErrNotExist):
		return snapshot{}, err
	}

	target, err := os.Readlink(enabled)
	switch {
	case err == nil:
		snap.linkTarget = target
	case !errors.Is(err, os.ErrNotExist):
		return snapshot{}, err
	}
	return snap, nil
}

// restore puts the rule document and its activation link back the way
// takeSnapshot found them. Failures are logged.
func (c *Configurator) restore(site proxy.Site, snap snapshot) {
	if snap.rule != nil {
		if err := writeAtomic(snap.available, snap.rule); err != nil {
			c.logger.Error("failed to restore previous rule", "site", site.Name, "error", err)
		}
	} else if err := os.Remove(snap.available); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Error("failed to remove rejected rule", "site", site.Name, "error", err)
	}

	if err := os.Remove(snap.enabled); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Error("failed to deactivate rejected rule", "site", site.Name, "error", err)
		return
	}
	if snap.linkTarget != "" {
		if err := os.Symlink(snap.linkTarget, snap.enabled); err != nil {
			c.logger.Error("failed to reactivate previous rule", "site", site.Name, "error", err)
		}
	}
}

func (c *Configurator) run(ctx context.Context, argv []string) (command.Result, error) {
	if len(argv) == 0 {
		return command.Result{}, command.ErrEmptyCommand
	}
	return c.runner.Run(ctx, command.Command{
		Name:    argv[0],
		Args:    argv[1:],
		Timeout: c.config.Timeout,
	})
}

// writeAtomic writes data to a temp file in the target directory and
// renames it into place, so nginx never reads a partial rule.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func trimOutput(out []byte) string {
	lines := command.SplitLines(out)
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return fmt.Sprint(lines)
}

func proxyError(op string, err error) error {
	return deployment.NewPipelineError(deployment.KindProxy, op, "", err)
}
