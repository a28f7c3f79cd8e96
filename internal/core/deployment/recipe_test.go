package deployment

import (
	"strings"
	"testing"

	"github.com/artpar/launchpad/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPlan(t *testing.T, project domain.Project, hasManifest bool) BuildPlan {
	t.Helper()
	plan, err := ProfileFor(project, DefaultProfiles(), hasManifest)
	require.NoError(t, err)
	return plan
}

// =============================================================================
// Static Recipes
// =============================================================================

func TestRenderRecipe_SPA(t *testing.T) {
	project := domain.Project{ID: 7, Framework: domain.FrameworkSPA}

	recipe, err := RenderRecipe(project, mustPlan(t, project, true), DefaultImages())
	require.NoError(t, err)

	assert.Equal(t, StaticContainerPort, recipe.ContainerPort)
	assert.Contains(t, recipe.Dockerfile, "FROM node:20-alpine AS build\n")
	assert.Contains(t, recipe.Dockerfile, `RUN ["npm","install"]`)
	assert.Contains(t, recipe.Dockerfile, `RUN ["npm","run","build"]`)
	assert.Contains(t, recipe.Dockerfile, "FROM nginx:1.27-alpine\n")
	assert.Contains(t, recipe.Dockerfile, "COPY --from=build /app/dist /usr/share/nginx/html\n")
	assert.Contains(t, recipe.Dockerfile, "COPY launchpad-static.conf /etc/nginx/conf.d/default.conf\n")
	assert.NotEmpty(t, recipe.StaticRule)
	assert.Nil(t, recipe.StartCommand)
}

func TestRenderRecipe_SPA_CustomOutputDir(t *testing.T) {
	project := domain.Project{Framework: domain.FrameworkSPA, OutputDir: "./build/"}

	recipe, err := RenderRecipe(project, mustPlan(t, project, true), DefaultImages())
	require.NoError(t, err)

	assert.Contains(t, recipe.Dockerfile, "COPY --from=build /app/build /usr/share/nginx/html\n")
	assert.NotContains(t, recipe.Dockerfile, `RUN ["rm"`)
}

func TestRenderRecipe_InstallBeforeSourceCopy(t *testing.T) {
	project := domain.Project{Framework: domain.FrameworkSPA}

	recipe, err := RenderRecipe(project, mustPlan(t, project, true), DefaultImages())
	require.NoError(t, err)

	install := strings.Index(recipe.Dockerfile, `RUN ["npm","install"]`)
	copySource := strings.Index(recipe.Dockerfile, "COPY . .")
	build := strings.Index(recipe.Dockerfile, `RUN ["npm","run","build"]`)
	assert.Less(t, install, copySource)
	assert.Less(t, copySource, build)
}

func TestRenderRecipe_StaticHTMLWithoutBuild(t *testing.T) {
	project := domain.Project{Framework: domain.FrameworkStaticHTML}

	recipe, err := RenderRecipe(project, mustPlan(t, project, false), DefaultImages())
	require.NoError(t, err)

	assert.NotContains(t, recipe.Dockerfile, "node:")
	assert.Contains(t, recipe.Dockerfile, "COPY . /usr/share/nginx/html\n")
	assert.Contains(t, recipe.Dockerfile,
		`RUN ["rm","-f","/usr/share/nginx/html/Dockerfile.launchpad","/usr/share/nginx/html/launchpad-static.conf"]`)
	prune := strings.Index(recipe.Dockerfile, `RUN ["rm"`)
	assert.Greater(t, prune, strings.Index(recipe.Dockerfile, "COPY . /usr/share/nginx/html"))
	assert.Equal(t, StaticContainerPort, recipe.ContainerPort)
}

func TestRenderRecipe_RejectsEscapingOutputDir(t *testing.T) {
	tests := []string{"../etc", "/var/www", "dist/../../x", "dist;rm"}

	for _, dir := range tests {
		t.Run(dir, func(t *testing.T) {
			project := domain.Project{Framework: domain.FrameworkSPA, OutputDir: dir}
			_, err := RenderRecipe(project, mustPlan(t, project, true), DefaultImages())
			assert.ErrorIs(t, err, ErrInvalidOutputDir)
		})
	}
}

// =============================================================================
// Node Recipes
// =============================================================================

func TestRenderRecipe_SSR(t *testing.T) {
	project := domain.Project{Framework: domain.FrameworkSSRNode, StartCommand: "npm run start", Port: 4000}

	recipe, err := RenderRecipe(project, mustPlan(t, project, true), DefaultImages())
	require.NoError(t, err)

	assert.Equal(t, 4000, recipe.ContainerPort)
	assert.Empty(t, recipe.StaticRule)
	assert.Contains(t, recipe.Dockerfile, `RUN ["npm","install","--include=dev"]`)
	assert.Contains(t, recipe.Dockerfile, `RUN ["npm","run","build"]`)
	assert.Contains(t, recipe.Dockerfile, "ENV PORT=4000\n")
	assert.Contains(t, recipe.Dockerfile, "EXPOSE 4000\n")
	assert.Contains(t, recipe.Dockerfile, `CMD ["npm","run","start"]`)
	assert.Equal(t, []string{"npm", "run", "start"}, recipe.StartCommand)
}

func TestRenderRecipe_NodeServiceDefaults(t *testing.T) {
	project := domain.Project{Framework: domain.FrameworkNodeService}

	recipe, err := RenderRecipe(project, mustPlan(t, project, true), DefaultImages())
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultListenPort, recipe.ContainerPort)
	assert.NotContains(t, recipe.Dockerfile, "run\",\"build")
	assert.Contains(t, recipe.Dockerfile, `CMD ["npm","start"]`)
}

func TestRenderRecipe_StartCommandIsNotShellInterpreted(t *testing.T) {
	project := domain.Project{Framework: domain.FrameworkNodeService, StartCommand: `node "a;b.js" --flag='x y'`}

	recipe, err := RenderRecipe(project, mustPlan(t, project, true), DefaultImages())
	require.NoError(t, err)

	assert.Contains(t, recipe.Dockerfile, `CMD ["node","a;b.js","--flag=x y"]`)
}

func TestRenderRecipe_UnknownFramework(t *testing.T) {
	_, err := RenderRecipe(domain.Project{Framework: "php"}, BuildPlan{}, DefaultImages())
	assert.ErrorIs(t, err, domain.ErrUnknownFramework)
}

// =============================================================================
// Static Rule
// =============================================================================

func TestRenderStaticRule(t *testing.T) {
	rule := RenderStaticRule(80)

	assert.Contains(t, rule, "listen 80;")
	assert.Contains(t, rule, "root /usr/share/nginx/html;")
	assert.Contains(t, rule, "try_files $uri $uri/ /index.html;")
}
