// Package build runs a project's install and build steps inside its
// materialized workspace.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/artpar/launchpad/internal/core/deployment"
	"github.com/artpar/launchpad/internal/core/domain"
	"github.com/artpar/launchpad/internal/shell/command"
)

// manifestFile marks a workspace as an npm package.
const manifestFile = "package.json"

// Log receives the build's progress lines.
type Log interface {
	Info(ctx context.Context, message string)
	Error(ctx context.Context, message string)
}

// Observer is notified of step durations. Optional.
type Observer interface {
	ObserveStage(stage string, took time.Duration)
}

// Orchestrator resolves and runs build plans.
type Orchestrator struct {
	runner   command.Runner
	profiles deployment.Profiles
	env      []string
	observer Observer
	logger   *slog.Logger
}

// Config configures an Orchestrator.
type Config struct {
	Profiles deployment.Profiles
	// Env is added to every step's environment, e.g. "CI=true"
	Env      []string
	Observer Observer
}

// NewOrchestrator creates a build orchestrator. Zero-value profiles fall back
// to deployment.DefaultProfiles().
func NewOrchestrator(runner command.Runner, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Profiles) == 0 {
		cfg.Profiles = deployment.DefaultProfiles()
	}
	return &Orchestrator{
		runner:   runner,
		profiles: cfg.Profiles,
		env:      cfg.Env,
		observer: cfg.Observer,
		logger:   logger.With("component", "build"),
	}
}

// Plan resolves the build plan for a project materialized in dir.
func (o *Orchestrator) Plan(dir string, project domain.Project) (deployment.BuildPlan, error) {
	plan, err := deployment.ProfileFor(project, o.profiles, hasManifest(dir))
	if err != nil {
		return deployment.BuildPlan{}, deployment.NewPipelineError(deployment.KindBuild, "resolve profile", "", err)
	}
	return plan, nil
}

// Run resolves the plan and executes its steps in order. Every captured
// output line is forwarded to log as info. The first failing step is logged
// as an error and returned as a build pipeline error. The resolved plan is
// returned so callers can render a matching image recipe.
func (o *Orchestrator) Run(ctx context.Context, dir string, project domain.Project, log Log) (deployment.BuildPlan, error) {
	plan, err := o.Plan(dir, project)
	if err != nil {
		log.Error(ctx, err.Error())
		return deployment.BuildPlan{}, err
	}

	if plan.Empty() {
		log.Info(ctx, "No build steps for this project, skipping build")
		return plan, nil
	}

	for _, step := range plan.Steps() {
		if err := o.runStep(ctx, dir, step, log); err != nil {
			return plan, err
		}
	}
	return plan, nil
}

func (o *Orchestrator) runStep(ctx context.Context, dir string, step deployment.Step, log Log) error {
	// Steps run project code and must not see the server's environment.
	cmd := command.Command{
		Name:     step.Args[0],
		Args:     step.Args[1:],
		Dir:      dir,
		Env:      o.env,
		Timeout:  step.Timeout,
		Isolated: true,
	}
	log.Info(ctx, fmt.Sprintf("Running %s: %s", step.Name, cmd.String()))

	res, err := o.runner.Run(ctx, cmd)
	for _, line := range res.Lines() {
		log.Info(ctx, line)
	}
	if o.observer != nil {
		o.observer.ObserveStage(step.Name, res.Duration)
	}

	if err != nil {
		message := fmt.Sprintf("%s failed: %v", step.Name, err)
		var cmdErr *command.CommandError
		if errors.As(err, &cmdErr) && cmdErr.TimedOut {
			message = fmt.Sprintf("%s timed out after %s", step.Name, step.Timeout)
		}
		o.logger.Warn("build step failed", "step", step.Name, "dir", dir, "error", err)
		log.Error(ctx, message)
		return deployment.NewPipelineError(deployment.KindBuild, step.Name, message, err)
	}

	log.Info(ctx, fmt.Sprintf("%s completed in %s", step.Name, res.Duration.Round(time.Millisecond)))
	return nil
}

func hasManifest(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, manifestFile))
	return err == nil && !info.IsDir()
}
