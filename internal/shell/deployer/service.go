// Package deployer runs the deploy pipeline: materialize, build, image,
// instance, routing. Deploys are accepted immediately and executed on a
// per-project serial queue; progress and the terminal result are published
// on the notification channel.
package deployer

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/artpar/launchpad/internal/core/deployment"
	"github.com/artpar/launchpad/internal/core/domain"
	"github.com/artpar/launchpad/internal/core/proxy"
	"github.com/artpar/launchpad/internal/shell/build"
	"github.com/artpar/launchpad/internal/shell/docker"
	"github.com/artpar/launchpad/internal/shell/logsink"
	"github.com/artpar/launchpad/internal/shell/notify"
	"github.com/artpar/launchpad/internal/shell/store"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrClosed is returned by Deploy after Close was called.
	ErrClosed = errors.New("deployer is shutting down")

	// ErrMissingDependency is returned when a required collaborator is nil.
	ErrMissingDependency = errors.New("missing dependency")
)

// =============================================================================
// Collaborators
// =============================================================================

// Workspace materializes project files on disk.
type Workspace interface {
	Materialize(projectID int64, files []domain.ProjectFile) (string, error)
	LoadEnv(dir string) (map[string]string, error)
}

// Builder runs the install and build steps.
type Builder interface {
	Run(ctx context.Context, dir string, project domain.Project, log build.Log) (deployment.BuildPlan, error)
}

// Runtime builds images and manages instances.
type Runtime interface {
	WriteRecipe(dir string, recipe deployment.Recipe) error
	BuildImage(ctx context.Context, dir string, projectID int64, out docker.BuildOutput) (string, error)
	RetireInstances(ctx context.Context, projectID int64, names []string) []*deployment.CleanupError
	Run(ctx context.Context, plan deployment.InstancePlan) (docker.Instance, error)
	StopAndRemove(ctx context.Context, nameOrID string) error
	RemoveByDeployment(ctx context.Context, deploymentID string) []*deployment.CleanupError
}

// Router publishes a project on its hostname.
type Router interface {
	Configure(ctx context.Context, projectID int64, hostPort int, customDomain string) (proxy.Site, error)
}

// Metrics observes pipelines. Optional.
type Metrics interface {
	DeployStarted()
	DeployFinished(success bool)
	ObserveStage(stage string, took time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) DeployStarted()                     {}
func (noopMetrics) DeployFinished(bool)                {}
func (noopMetrics) ObserveStage(string, time.Duration) {}

// Dependencies are the collaborators of a Service.
type Dependencies struct {
	Store     store.Store
	Workspace Workspace
	Builder   Builder
	Runtime   Runtime
	Router    Router
	Publisher notify.Publisher
	Metrics   Metrics
}

// Config configures a Service.
type Config struct {
	Ports         proxy.PortRange
	Images        deployment.Images
	RestartPolicy string
}

// =============================================================================
// Service
// =============================================================================

// Accepted acknowledges a queued deploy.
type Accepted struct {
	DeploymentID string `json:"deployment_id"`
	ProjectID    int64  `json:"project_id"`
	Status       string `json:"status"`
}

// Service is the deploy orchestrator.
type Service struct {
	store     store.Store
	workspace Workspace
	builder   Builder
	runtime   Runtime
	router    Router
	publisher notify.Publisher
	metrics   Metrics
	sink      *logsink.Sink
	config    Config
	logger    *slog.Logger

	queue  *projectQueue
	now    func() time.Time
	mu     sync.RWMutex
	closed bool
}

// NewService creates a deploy orchestrator. Zero-value config fields take
// defaults.
func NewService(deps Dependencies, cfg Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch {
	case deps.Store == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("store"))
	case deps.Workspace == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("workspace"))
	case deps.Builder == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("builder"))
	case deps.Runtime == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("runtime"))
	case deps.Router == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("router"))
	case deps.Publisher == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("publisher"))
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if cfg.Ports == (proxy.PortRange{}) {
		cfg.Ports = proxy.DefaultPortRange()
	}
	if cfg.Images == (deployment.Images{}) {
		cfg.Images = deployment.DefaultImages()
	}

	return &Service{
		store:     deps.Store,
		workspace: deps.Workspace,
		builder:   deps.Builder,
		runtime:   deps.Runtime,
		router:    deps.Router,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		sink:      logsink.NewSink(deps.Store, deps.Publisher, logger),
		config:    cfg,
		logger:    logger.With("component", "deployer"),
		queue:     newProjectQueue(),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Deploy validates the request, records a building deployment and queues
// the pipeline. It returns as soon as the deployment is queued.
func (s *Service) Deploy(ctx context.Context, projectID, requesterID int64, commitMessage string) (Accepted, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Accepted{}, ErrClosed
	}

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Accepted{}, deployment.NotFound("project", strconv.FormatInt(projectID, 10))
		}
		return Accepted{}, deployment.NewPipelineError(deployment.KindIO, "load project", "", err)
	}
	if !project.OwnedBy(requesterID) {
		return Accepted{}, deployment.NotFound("project", strconv.FormatInt(projectID, 10))
	}

	dep, err := domain.NewDeployment(project.ID, commitMessage)
	if err != nil {
		return Accepted{}, deployment.NewPipelineError(deployment.KindUnknown, "create deployment", "", err)
	}
	if err := s.store.CreateDeployment(ctx, dep); err != nil {
		return Accepted{}, deployment.NewPipelineError(deployment.KindIO, "create deployment", "", err)
	}

	queued := s.queue.pending(project.ID)
	s.logger.Info("deploy accepted",
		"project_id", project.ID,
		"deployment_id", dep.ID,
		"queued_behind", queued,
	)
	s.publisher.Publish(deployment.ProjectTopic(project.ID), notify.Event{
		Type: notify.EventDeployStarted,
		Data: Started{DeploymentID: dep.ID, ProjectID: project.ID, Queued: queued},
	})

	pipelineCtx := context.WithoutCancel(ctx)
	s.queue.enqueue(project.ID, func() {
		s.runPipeline(pipelineCtx, *project, dep)
	})

	return Accepted{DeploymentID: dep.ID, ProjectID: project.ID, Status: string(dep.Status)}, nil
}

// Close stops accepting deploys and waits for queued pipelines to finish or
// ctx to end.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.queue.wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
