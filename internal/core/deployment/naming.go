package deployment

import (
	"fmt"
	"time"
)

// =============================================================================
// Resource Naming Functions
// =============================================================================

// ProjectKey is the per-project name shared by the workspace, image tag and
// routing rule.
// Pattern: project-{projectID}
//
// Example:
//
//	ProjectKey(7) // returns "project-7"
func ProjectKey(projectID int64) string {
	return fmt.Sprintf("project-%d", projectID)
}

// ImageTag generates the image tag for a project. One tag per project; every
// deploy rebuilds it.
func ImageTag(projectID int64) string {
	return ProjectKey(projectID)
}

// WorkspaceName generates the working directory name for a project.
func WorkspaceName(projectID int64) string {
	return ProjectKey(projectID)
}

// ContainerName generates a container name unique per start.
// Pattern: project-{projectID}-{unixSeconds}
//
// Example:
//
//	ContainerName(7, time.Unix(1700000000, 0)) // returns "project-7-1700000000"
func ContainerName(projectID int64, at time.Time) string {
	return fmt.Sprintf("%s-%d", ProjectKey(projectID), at.Unix())
}

// =============================================================================
// Notification Topics
// =============================================================================

// ProjectTopic is the channel carrying deploy lifecycle events for a project.
func ProjectTopic(projectID int64) string {
	return ProjectKey(projectID)
}

// DeploymentTopic is the channel carrying live log lines for a deployment.
func DeploymentTopic(deploymentID string) string {
	return "deployment-" + deploymentID
}
