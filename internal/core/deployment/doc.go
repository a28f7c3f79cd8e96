// Package deployment provides pure functions for deployment planning.
//
// This package holds the functional core of the deploy pipeline. Nothing here
// touches the filesystem, the container runtime or the network; the imperative
// shell (internal/shell/...) calls these functions to decide what to do, then
// performs it.
//
// # Functions
//
//   - Naming: stable per-project names (ImageTag, WorkspaceName, ContainerName, topics)
//   - Profiles: framework → install/build commands (ProfileFor, ParseProfileOverrides)
//   - Recipes: framework → image recipe and static server rule (RenderRecipe)
//   - Instances: container plan for a built image (BuildInstancePlan)
//   - Errors: the pipeline error taxonomy (PipelineError, KindOf)
//
// # Usage
//
//	plan, err := deployment.ProfileFor(project, deployment.DefaultProfiles())
//	recipe, err := deployment.RenderRecipe(project)
//	instance := deployment.BuildInstancePlan(params)
package deployment
