package auth

import "github.com/artpar/launchpad/internal/core/domain"

// =============================================================================
// Project Authorization
// =============================================================================

// CanViewProject checks if the requester can view a project and its
// deployments. Only the owner can.
func CanViewProject(ctx Context, project domain.Project) bool {
	return ctx.Authenticated && project.OwnedBy(ctx.UserID)
}

// CanDeployProject checks if the requester can start a deployment.
func CanDeployProject(ctx Context, project domain.Project) bool {
	return ctx.Authenticated && project.OwnedBy(ctx.UserID)
}

// =============================================================================
// Deployment Authorization
// =============================================================================

// CanManageDeployment checks if the requester can stop a deployment. The
// deployment is owned through its project.
func CanManageDeployment(ctx Context, project domain.Project, deployment domain.Deployment) bool {
	return deployment.ProjectID == project.ID && CanDeployProject(ctx, project)
}
