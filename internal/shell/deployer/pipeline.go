package deployer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/launchpad/internal/core/deployment"
	"github.com/artpar/launchpad/internal/core/domain"
	"github.com/artpar/launchpad/internal/core/proxy"
	"github.com/artpar/launchpad/internal/shell/logsink"
	"github.com/artpar/launchpad/internal/shell/notify"
	"github.com/artpar/launchpad/internal/shell/store"
)

// =============================================================================
// Events
// =============================================================================

// Started is published on the project topic when a deploy is accepted.
type Started struct {
	DeploymentID string `json:"deployment_id"`
	ProjectID    int64  `json:"project_id"`
	Queued       int    `json:"queued"`
}

// Result is the terminal outcome of a deploy, published on the project topic.
type Result struct {
	Success      bool                 `json:"success"`
	DeploymentID string               `json:"deployment_id"`
	ProjectID    int64                `json:"project_id"`
	URL          string               `json:"url,omitempty"`
	DurationMS   int64                `json:"duration_ms"`
	Error        string               `json:"error,omitempty"`
	Kind         deployment.ErrorKind `json:"kind,omitempty"`
}

// outcome is what a successful pipeline produced.
type outcome struct {
	containerID   string
	containerName string
	hostPort      int
	url           string
}

// =============================================================================
// Pipeline
// =============================================================================

func (s *Service) runPipeline(ctx context.Context, project domain.Project, dep *domain.Deployment) {
	start := s.now()
	s.metrics.DeployStarted()
	log := s.sink.For(dep.ID)
	logger := s.logger.With("project_id", project.ID, "deployment_id", dep.ID)

	log.Info(ctx, fmt.Sprintf("Starting deployment of %s (%s)", project.Name, project.Framework))

	out, err := s.execute(ctx, project, dep, log)
	if err == nil {
		err = s.markRunning(ctx, dep, out, s.now().Sub(start))
	}
	took := s.now().Sub(start)

	result := Result{
		DeploymentID: dep.ID,
		ProjectID:    project.ID,
		DurationMS:   took.Milliseconds(),
	}
	if err != nil {
		s.markFailed(ctx, dep, log, err, took)
		result.Error = err.Error()
		result.Kind = deployment.KindOf(err)
		logger.Warn("deploy failed", "kind", result.Kind, "error", err, "duration", took)
	} else {
		log.Info(ctx, fmt.Sprintf("Deployment is live at %s (took %s)", out.url, took.Round(time.Millisecond)))
		result.Success = true
		result.URL = out.url
		logger.Info("deploy succeeded", "url", out.url, "container", out.containerName, "duration", took)
	}

	s.metrics.DeployFinished(result.Success)
	s.publisher.Publish(deployment.ProjectTopic(project.ID), notify.Event{
		Type: notify.EventDeployResult,
		Data: result,
	})
}

// stage runs fn and records its duration.
func (s *Service) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.ObserveStage(name, time.Since(start))
	return err
}

// execute runs every stage up to and including routing. Nothing is rolled
// back on failure.
func (s *Service) execute(ctx context.Context, project domain.Project, dep *domain.Deployment, log *logsink.DeploymentLog) (outcome, error) {
	files, err := s.store.ListProjectFiles(ctx, project.ID)
	if err != nil {
		return outcome{}, deployment.NewPipelineError(deployment.KindIO, "load files", "", err)
	}
	if len(files) == 0 {
		return outcome{}, deployment.EmptyProject(project.ID)
	}

	var dir string
	var env map[string]string
	err = s.stage("materialize", func() error {
		var err error
		if dir, err = s.workspace.Materialize(project.ID, files); err != nil {
			return err
		}
		env, err = s.workspace.LoadEnv(dir)
		return err
	})
	if err != nil {
		return outcome{}, err
	}
	log.Info(ctx, fmt.Sprintf("Wrote %d files to workspace", len(files)))

	// Install and build steps report their own durations.
	plan, err := s.builder.Run(ctx, dir, project, log)
	if err != nil {
		return outcome{}, err
	}

	var recipe deployment.Recipe
	err = s.stage("image", func() error {
		var err error
		recipe, err = deployment.RenderRecipe(project, plan, s.config.Images)
		if err != nil {
			return deployment.NewPipelineError(deployment.KindContainer, "render recipe", "", err)
		}
		if err := s.runtime.WriteRecipe(dir, recipe); err != nil {
			return err
		}
		log.Info(ctx, fmt.Sprintf("Building image %s", deployment.ImageTag(project.ID)))
		_, err = s.runtime.BuildImage(ctx, dir, project.ID, func(line string) {
			log.Info(ctx, line)
		})
		return err
	})
	if err != nil {
		return outcome{}, err
	}

	hostPort, err := s.config.Ports.Allocate(project.ID)
	if err != nil {
		return outcome{}, deployment.NewPipelineError(deployment.KindContainer, "allocate port", "", err)
	}

	var out outcome
	err = s.stage("instance", func() error {
		s.retireSuperseded(ctx, project.ID, log)

		plan := deployment.BuildInstancePlan(deployment.BuildInstancePlanParams{
			ProjectID:     project.ID,
			DeploymentID:  dep.ID,
			Recipe:        recipe,
			HostPort:      hostPort,
			Env:           env,
			RestartPolicy: s.config.RestartPolicy,
			StartedAt:     s.now(),
		})
		inst, err := s.runtime.Run(ctx, plan)
		if err != nil {
			return err
		}
		out = outcome{containerID: inst.ID, containerName: inst.Name, hostPort: inst.HostPort}
		log.Info(ctx, fmt.Sprintf("Started container %s on port %d", inst.Name, inst.HostPort))
		return nil
	})
	if err != nil {
		return outcome{}, err
	}

	err = s.stage("proxy", func() error {
		customDomain, err := s.customDomain(ctx, project.ID)
		if err != nil {
			return err
		}
		site, err := s.router.Configure(ctx, project.ID, out.hostPort, customDomain)
		if err != nil {
			return err
		}
		out.url = proxy.PublicURL(site.Hostname)
		log.Info(ctx, fmt.Sprintf("Routing %s to port %d", site.Hostname, out.hostPort))
		return nil
	})
	if err != nil {
		return outcome{}, err
	}

	return out, nil
}

// retireSuperseded stops every instance of the project's running deployments.
// Failures are logged as warnings and never abort the deploy.
func (s *Service) retireSuperseded(ctx context.Context, projectID int64, log *logsink.DeploymentLog) {
	running, err := s.store.ListProjectDeploymentsByStatus(ctx, projectID, domain.StatusRunning)
	if err != nil {
		log.Warn(ctx, fmt.Sprintf("Could not list running deployments: %v", err))
		running = nil
	}

	names := make([]string, 0, len(running))
	for _, d := range running {
		if d.HasInstance() {
			names = append(names, d.ContainerName)
		}
	}

	for _, cerr := range s.runtime.RetireInstances(ctx, projectID, names) {
		s.logger.Warn("cleanup failed", "project_id", projectID, "target", cerr.Target, "error", cerr.Err)
		log.Warn(ctx, fmt.Sprintf("Could not stop previous instance %s: %v", cerr.Target, cerr.Err))
	}
}

// customDomain returns the hostname bound to the project, or "" when none is.
func (s *Service) customDomain(ctx context.Context, projectID int64) (string, error) {
	d, err := s.store.GetProjectDomain(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", deployment.NewPipelineError(deployment.KindProxy, "load domain", "", err)
	}
	return d.Hostname, nil
}

// =============================================================================
// Terminal Transitions
// =============================================================================

// markRunning records the instance on the deployment and stops every other
// running deployment of the project in the same transaction.
func (s *Service) markRunning(ctx context.Context, dep *domain.Deployment, out outcome, took time.Duration) error {
	next := *dep
	if err := next.MarkRunning(out.containerID, out.containerName, out.url, out.hostPort, took); err != nil {
		return deployment.NewPipelineError(deployment.KindUnknown, "mark running", "", err)
	}

	err := s.store.WithTx(ctx, func(tx store.Store) error {
		running, err := tx.ListProjectDeploymentsByStatus(ctx, dep.ProjectID, domain.StatusRunning)
		if err != nil {
			return err
		}
		for i := range running {
			prev := running[i]
			if prev.ID == dep.ID {
				continue
			}
			if err := prev.Transition(domain.StatusStopped); err != nil {
				return err
			}
			if err := tx.UpdateDeployment(ctx, &prev); err != nil {
				return err
			}
		}
		return tx.UpdateDeployment(ctx, &next)
	})
	if err != nil {
		return deployment.NewPipelineError(deployment.KindIO, "mark running", "", err)
	}

	*dep = next
	return nil
}

// markFailed writes the final error line and records the failure. Store
// errors are logged; the deployment cannot be failed any harder.
func (s *Service) markFailed(ctx context.Context, dep *domain.Deployment, log *logsink.DeploymentLog, cause error, took time.Duration) {
	message := cause.Error()
	log.Error(ctx, "Deployment failed: "+message)

	if err := dep.MarkFailed(message, took); err != nil {
		s.logger.Error("cannot fail deployment", "deployment_id", dep.ID, "status", dep.Status, "error", err)
		return
	}
	if err := s.store.UpdateDeployment(ctx, dep); err != nil {
		s.logger.Error("failed to record deployment failure", "deployment_id", dep.ID, "error", err)
	}
}
