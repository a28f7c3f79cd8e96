package deployer

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/launchpad/internal/core/deployment"
	"github.com/artpar/launchpad/internal/core/domain"
	"github.com/artpar/launchpad/internal/shell/store"
)

// interruptedMessage is recorded on deployments a previous process left in
// building.
const interruptedMessage = "interrupted by restart"

// StopDeployment stops and removes the deployment's instance. A deployment
// that never started an instance is a successful no-op. Runtime failures are
// logged and reported as false, never as an error; the error return is for
// unknown deployments and store failures.
func (s *Service) StopDeployment(ctx context.Context, deploymentID string) (bool, error) {
	dep, err := s.store.GetDeployment(ctx, deploymentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, deployment.NotFound("deployment", deploymentID)
		}
		return false, deployment.NewPipelineError(deployment.KindIO, "load deployment", "", err)
	}

	if !dep.HasInstance() {
		return true, nil
	}

	log := s.sink.For(dep.ID)
	if err := s.runtime.StopAndRemove(ctx, dep.ContainerName); err != nil {
		s.logger.Warn("failed to stop deployment",
			"deployment_id", dep.ID,
			"container", dep.ContainerName,
			"error", err,
		)
		log.Warn(ctx, fmt.Sprintf("Could not stop container %s: %v", dep.ContainerName, err))
		return false, nil
	}

	if dep.Status == domain.StatusRunning {
		if err := dep.Transition(domain.StatusStopped); err != nil {
			return false, deployment.NewPipelineError(deployment.KindUnknown, "stop deployment", "", err)
		}
		if err := s.store.UpdateDeployment(ctx, dep); err != nil {
			return false, deployment.NewPipelineError(deployment.KindIO, "stop deployment", "", err)
		}
	}

	log.Info(ctx, fmt.Sprintf("Stopped container %s", dep.ContainerName))
	s.logger.Info("deployment stopped", "deployment_id", dep.ID, "container", dep.ContainerName)
	return true, nil
}

// Reconcile fails every deployment left in building by a previous process
// and removes containers labelled with it. It must run before the first
// Deploy. It returns the number of deployments reconciled.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	stale, err := s.store.ListDeploymentsByStatus(ctx, domain.StatusBuilding)
	if err != nil {
		return 0, fmt.Errorf("failed to list building deployments: %w", err)
	}

	for i := range stale {
		dep := &stale[i]
		log := s.sink.For(dep.ID)

		for _, cerr := range s.runtime.RemoveByDeployment(ctx, dep.ID) {
			s.logger.Warn("cleanup failed", "deployment_id", dep.ID, "target", cerr.Target, "error", cerr.Err)
		}

		log.Error(ctx, "Deployment "+interruptedMessage)
		if err := dep.MarkFailed(interruptedMessage, dep.UpdatedAt.Sub(dep.CreatedAt)); err != nil {
			return i, err
		}
		if err := s.store.UpdateDeployment(ctx, dep); err != nil {
			return i, fmt.Errorf("failed to update deployment %s: %w", dep.ID, err)
		}
	}

	if len(stale) > 0 {
		s.logger.Info("reconciled interrupted deployments", "count", len(stale))
	}
	return len(stale), nil
}
