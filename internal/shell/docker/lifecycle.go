package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/artpar/launchpad/internal/core/deployment"
)

// =============================================================================
// Lifecycle - Images and Instances of Projects
// =============================================================================

// Instance identifies a started project container.
type Instance struct {
	ID       string
	Name     string
	HostPort int
}

// LifecycleConfig bounds every Docker operation the lifecycle performs.
type LifecycleConfig struct {
	BuildTimeout     time.Duration // image builds, the longest budget
	OperationTimeout time.Duration // create, start, list, remove
	StopTimeout      time.Duration // grace period given to a stopping container
}

// DefaultLifecycleConfig returns the default timeouts.
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		BuildTimeout:     20 * time.Minute,
		OperationTimeout: time.Minute,
		StopTimeout:      10 * time.Second,
	}
}

// Lifecycle builds project images and manages project containers.
type Lifecycle struct {
	docker Client
	config LifecycleConfig
	logger *slog.Logger
}

// NewLifecycle creates a lifecycle manager. Zero timeouts take defaults.
func NewLifecycle(docker Client, cfg LifecycleConfig, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultLifecycleConfig()
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = def.BuildTimeout
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = def.OperationTimeout
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = def.StopTimeout
	}
	return &Lifecycle{
		docker: docker,
		config: cfg,
		logger: logger.With("component", "lifecycle"),
	}
}

// =============================================================================
// Images
// =============================================================================

// WriteRecipe writes the rendered recipe, and the static server rule when the
// recipe has one, into the workspace.
func (l *Lifecycle) WriteRecipe(dir string, recipe deployment.Recipe) error {
	if err := os.WriteFile(filepath.Join(dir, deployment.RecipeFileName), []byte(recipe.Dockerfile), 0o644); err != nil {
		return containerError("write recipe", err)
	}
	if recipe.StaticRule != "" {
		if err := os.WriteFile(filepath.Join(dir, deployment.StaticRuleFileName), []byte(recipe.StaticRule), 0o644); err != nil {
			return containerError("write static rule", err)
		}
	}
	return nil
}

// BuildImage builds the workspace into the project's image and returns the
// tag. Images are never removed on later failures.
func (l *Lifecycle) BuildImage(ctx context.Context, dir string, projectID int64, out BuildOutput) (string, error) {
	tag := deployment.ImageTag(projectID)

	ctx, cancel := context.WithTimeout(ctx, l.config.BuildTimeout)
	defer cancel()

	start := time.Now()
	err := l.docker.BuildImage(ctx, BuildSpec{
		ContextDir: dir,
		Dockerfile: deployment.RecipeFileName,
		Tag:        tag,
		Labels: map[string]string{
			LabelManaged: "true",
			LabelProject: strconv.FormatInt(projectID, 10),
		},
	}, out)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", containerError("build image", fmt.Errorf("timed out after %s: %w", l.config.BuildTimeout, err))
		}
		return "", containerError("build image", err)
	}

	l.logger.Info("image built", "tag", tag, "duration", time.Since(start))
	return tag, nil
}

// =============================================================================
// Instances
// =============================================================================

// RetireInstances stops and removes the named instances together with any
// other container labelled with the project. Failures are collected as
// cleanup errors and never stop the sweep.
func (l *Lifecycle) RetireInstances(ctx context.Context, projectID int64, names []string) []*deployment.CleanupError {
	targets := make([]string, 0, len(names))
	seen := make(map[string]bool)
	for _, name := range names {
		if name != "" && !seen[name] {
			seen[name] = true
			targets = append(targets, name)
		}
	}

	var cleanupErrs []*deployment.CleanupError

	listCtx, cancel := context.WithTimeout(ctx, l.config.OperationTimeout)
	labelled, err := l.docker.ListContainers(listCtx, ListOptions{
		All:     true,
		Filters: map[string]string{"label": fmt.Sprintf("%s=%d", LabelProject, projectID)},
	})
	cancel()
	if err != nil {
		cleanupErrs = append(cleanupErrs, &deployment.CleanupError{Target: deployment.ProjectKey(projectID), Err: err})
	}
	for _, c := range labelled {
		if !seen[c.Name] {
			seen[c.Name] = true
			targets = append(targets, c.Name)
		}
	}

	for _, name := range targets {
		if err := l.StopAndRemove(ctx, name); err != nil {
			l.logger.Warn("failed to retire instance", "project_id", projectID, "container", name, "error", err)
			cleanupErrs = append(cleanupErrs, &deployment.CleanupError{Target: name, Err: err})
			continue
		}
		l.logger.Info("retired instance", "project_id", projectID, "container", name)
	}
	return cleanupErrs
}

// Run creates and starts the planned container. A container that was
// created but failed to start is removed again so the name and port are
// released.
func (l *Lifecycle) Run(ctx context.Context, plan deployment.InstancePlan) (Instance, error) {
	spec := ContainerSpec{
		Name:   plan.Name,
		Image:  plan.Image,
		Env:    plan.Env,
		Labels: plan.Labels,
		Ports: []PortBinding{{
			ContainerPort: plan.Port.ContainerPort,
			HostPort:      plan.Port.HostPort,
			Protocol:      plan.Port.Protocol,
			HostIP:        plan.Port.HostIP,
		}},
		RestartPolicy: RestartPolicy{
			Name:              plan.RestartPolicy.Name,
			MaximumRetryCount: plan.RestartPolicy.MaximumRetryCount,
		},
	}

	opCtx, cancel := context.WithTimeout(ctx, l.config.OperationTimeout)
	defer cancel()

	id, err := l.docker.CreateContainer(opCtx, spec)
	if err != nil {
		return Instance{}, containerError("create container", err)
	}

	if err := l.docker.StartContainer(opCtx, id); err != nil {
		rmCtx, rmCancel := context.WithTimeout(context.WithoutCancel(ctx), l.config.OperationTimeout)
		defer rmCancel()
		if rmErr := l.docker.RemoveContainer(rmCtx, id, RemoveOptions{Force: true}); rmErr != nil {
			l.logger.Warn("failed to remove unstarted container", "container", plan.Name, "error", rmErr)
		}
		return Instance{}, containerError("start container", err)
	}

	l.logger.Info("instance started",
		"container", plan.Name,
		"container_id", id,
		"host_port", plan.Port.HostPort,
	)
	return Instance{ID: id, Name: plan.Name, HostPort: plan.Port.HostPort}, nil
}

// StopAndRemove stops a container and removes it. A container that is
// already stopped or gone counts as success.
func (l *Lifecycle) StopAndRemove(ctx context.Context, nameOrID string) error {
	stopCtx, cancel := context.WithTimeout(ctx, l.config.StopTimeout+l.config.OperationTimeout)
	defer cancel()

	timeout := l.config.StopTimeout
	if err := l.docker.StopContainer(stopCtx, nameOrID, &timeout); err != nil && !isGone(err) {
		return err
	}
	if err := l.docker.RemoveContainer(stopCtx, nameOrID, RemoveOptions{Force: true}); err != nil && !errors.Is(err, ErrContainerNotFound) {
		return err
	}
	return nil
}

// RemoveByDeployment removes every container labelled with the deployment.
func (l *Lifecycle) RemoveByDeployment(ctx context.Context, deploymentID string) []*deployment.CleanupError {
	listCtx, cancel := context.WithTimeout(ctx, l.config.OperationTimeout)
	containers, err := l.docker.ListContainers(listCtx, ListOptions{
		All:     true,
		Filters: map[string]string{"label": fmt.Sprintf("%s=%s", LabelDeployment, deploymentID)},
	})
	cancel()
	if err != nil {
		return []*deployment.CleanupError{{Target: "deployment " + deploymentID, Err: err}}
	}

	var cleanupErrs []*deployment.CleanupError
	for _, c := range containers {
		if err := l.StopAndRemove(ctx, c.ID); err != nil {
			cleanupErrs = append(cleanupErrs, &deployment.CleanupError{Target: c.Name, Err: err})
		}
	}
	return cleanupErrs
}

// Ping checks the runtime is reachable.
func (l *Lifecycle) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.config.OperationTimeout)
	defer cancel()
	return l.docker.Ping(ctx)
}

func containerError(op string, err error) error {
	return deployment.NewPipelineError(deployment.KindContainer, op, "", err)
}
