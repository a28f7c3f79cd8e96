package deployment

import "time"

// =============================================================================
// Instance Plan Types
// =============================================================================

// InstancePlan represents a planned container for a built project image.
// This is the pure output of planning, ready for the shell to execute.
type InstancePlan struct {
	Name          string
	Image         string
	Env           map[string]string
	Labels        map[string]string
	Port          PortPlan
	RestartPolicy RestartPolicyPlan
}

// PortPlan represents a planned port binding.
type PortPlan struct {
	ContainerPort int
	HostPort      int
	Protocol      string
	HostIP        string
}

// RestartPolicyPlan represents a restart policy.
type RestartPolicyPlan struct {
	Name              string
	MaximumRetryCount int
}

// =============================================================================
// Builder Parameter Types
// =============================================================================

// BuildInstancePlanParams contains all inputs for building an instance plan.
type BuildInstancePlanParams struct {
	ProjectID     int64
	DeploymentID  string
	Recipe        Recipe
	HostPort      int
	Env           map[string]string
	RestartPolicy string
	StartedAt     time.Time
}

// =============================================================================
// Container Labels
// =============================================================================

// Label keys used to find the engine's containers.
const (
	LabelManaged    = "com.launchpad.managed"
	LabelProject    = "com.launchpad.project"
	LabelDeployment = "com.launchpad.deployment"
)
