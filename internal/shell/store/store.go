package store

import (
	"context"

	"github.com/artpar/launchpad/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for the deploy engine.
type Store interface {
	// Project operations. Projects and their files are owned by the
	// surrounding application; the engine only reads them.
	CreateProject(ctx context.Context, project *domain.Project) error
	GetProject(ctx context.Context, id int64) (*domain.Project, error)
	ReplaceProjectFiles(ctx context.Context, projectID int64, files []domain.ProjectFile) error
	ListProjectFiles(ctx context.Context, projectID int64) ([]domain.ProjectFile, error)

	// Domain operations
	CreateDomain(ctx context.Context, d *domain.Domain) error
	GetProjectDomain(ctx context.Context, projectID int64) (*domain.Domain, error)

	// Deployment operations
	CreateDeployment(ctx context.Context, deployment *domain.Deployment) error
	GetDeployment(ctx context.Context, id string) (*domain.Deployment, error)
	UpdateDeployment(ctx context.Context, deployment *domain.Deployment) error
	ListDeploymentsByProject(ctx context.Context, projectID int64, opts ListOptions) ([]domain.Deployment, error)
	ListDeploymentsByStatus(ctx context.Context, status domain.DeploymentStatus) ([]domain.Deployment, error)
	ListProjectDeploymentsByStatus(ctx context.Context, projectID int64, status domain.DeploymentStatus) ([]domain.Deployment, error)

	// Build log operations
	AppendBuildLog(ctx context.Context, entry *domain.BuildLogEntry) error
	ListBuildLogs(ctx context.Context, deploymentID string, opts ListOptions) ([]domain.BuildLogEntry, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination and filtering options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
