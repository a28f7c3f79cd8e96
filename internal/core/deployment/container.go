package deployment

import "strconv"

// =============================================================================
// Instance Plan Building Functions
// =============================================================================

// BuildInstancePlan builds an InstancePlan for a freshly built project image.
//
// The function:
//   - Names the container with ContainerName() so aborted runs never collide
//   - Uses the per-project image tag
//   - Binds the host port to the recipe's container port
//   - Injects PORT for node runtimes, then the project's own environment
//   - Labels the container with its project and deployment
//   - Maps the restart policy to Docker format
//
// Example:
//
//	plan := BuildInstancePlan(BuildInstancePlanParams{
//	    ProjectID:    7,
//	    DeploymentID: "3f1c...",
//	    Recipe:       recipe,
//	    HostPort:     8007,
//	    StartedAt:    time.Now(),
//	})
func BuildInstancePlan(params BuildInstancePlanParams) InstancePlan {
	plan := InstancePlan{
		Name:  ContainerName(params.ProjectID, params.StartedAt),
		Image: ImageTag(params.ProjectID),
		Env:   make(map[string]string),
		Labels: map[string]string{
			LabelManaged:    "true",
			LabelProject:    strconv.FormatInt(params.ProjectID, 10),
			LabelDeployment: params.DeploymentID,
		},
		Port: PortPlan{
			ContainerPort: params.Recipe.ContainerPort,
			HostPort:      params.HostPort,
			Protocol:      "tcp",
		},
		RestartPolicy: mapRestartPolicy(params.RestartPolicy),
	}

	if params.Recipe.StaticRule == "" {
		plan.Env["PORT"] = strconv.Itoa(params.Recipe.ContainerPort)
	}
	for k, v := range params.Env {
		if k == "PORT" && params.Recipe.StaticRule == "" {
			continue
		}
		plan.Env[k] = v
	}

	return plan
}

// mapRestartPolicy maps a configured policy name to a Docker restart policy.
// Instances must survive host reboots, so anything unrecognised becomes
// unless-stopped.
func mapRestartPolicy(policy string) RestartPolicyPlan {
	switch policy {
	case "always":
		return RestartPolicyPlan{Name: "always"}
	default:
		return RestartPolicyPlan{Name: "unless-stopped"}
	}
}
