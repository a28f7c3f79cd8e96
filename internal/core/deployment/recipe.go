package deployment

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/artpar/launchpad/internal/core/domain"
)

// File names the recipe is written under inside the workspace. They are
// distinct from anything a project is likely to ship itself.
const (
	RecipeFileName     = "Dockerfile.launchpad"
	StaticRuleFileName = "launchpad-static.conf"
)

// StaticContainerPort is the port the static file server listens on.
const StaticContainerPort = 80

const staticDocumentRoot = "/usr/share/nginx/html"

var ErrInvalidOutputDir = errors.New("output directory must be a relative path inside the project")

var outputDirPattern = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)

// Images names the base images recipes are built from.
type Images struct {
	Node   string
	Static string
}

// DefaultImages returns the base images used when none are configured.
func DefaultImages() Images {
	return Images{
		Node:   "node:20-alpine",
		Static: "nginx:1.27-alpine",
	}
}

// Recipe is everything needed to build a project's image.
type Recipe struct {
	Dockerfile    string
	StaticRule    string // empty unless the image serves static files
	ContainerPort int
	StartCommand  []string // nil for static images
}

// =============================================================================
// Recipe Rendering
// =============================================================================

// RenderRecipe renders the image recipe for a project. The build plan decides
// which install and build commands run inside the image, so the image is built
// the same way the workspace was.
func RenderRecipe(project domain.Project, plan BuildPlan, images Images) (Recipe, error) {
	switch project.Framework {
	case domain.FrameworkSPA, domain.FrameworkStaticHTML:
		return renderStatic(project, plan, images)
	case domain.FrameworkSSRNode, domain.FrameworkNodeService:
		return renderNode(project, plan, images)
	default:
		return Recipe{}, fmt.Errorf("%w: %q", domain.ErrUnknownFramework, project.Framework)
	}
}

func renderStatic(project domain.Project, plan BuildPlan, images Images) (Recipe, error) {
	outputDir, err := resolveOutputDir(project.OutputDir, plan.Build != nil)
	if err != nil {
		return Recipe{}, err
	}

	var b strings.Builder
	if plan.Empty() {
		fmt.Fprintf(&b, "FROM %s\n", images.Static)
		fmt.Fprintf(&b, "COPY %s /etc/nginx/conf.d/default.conf\n", StaticRuleFileName)
		fmt.Fprintf(&b, "COPY %s /usr/share/nginx/html\n", outputDir)
		writeRecipePrune(&b, outputDir)
		fmt.Fprintf(&b, "EXPOSE %d\n", StaticContainerPort)
	} else {
		fmt.Fprintf(&b, "FROM %s AS build\n", images.Node)
		b.WriteString("WORKDIR /app\n")
		b.WriteString("COPY package*.json ./\n")
		writeRunSteps(&b, plan)
		b.WriteString("\n")
		fmt.Fprintf(&b, "FROM %s\n", images.Static)
		fmt.Fprintf(&b, "COPY %s /etc/nginx/conf.d/default.conf\n", StaticRuleFileName)
		fmt.Fprintf(&b, "COPY --from=build /app/%s /usr/share/nginx/html\n", outputDir)
		writeRecipePrune(&b, outputDir)
		fmt.Fprintf(&b, "EXPOSE %d\n", StaticContainerPort)
	}

	return Recipe{
		Dockerfile:    b.String(),
		StaticRule:    RenderStaticRule(StaticContainerPort),
		ContainerPort: StaticContainerPort,
	}, nil
}

func renderNode(project domain.Project, plan BuildPlan, images Images) (Recipe, error) {
	start := []string{"npm", "start"}
	if strings.TrimSpace(project.StartCommand) != "" {
		args, err := ParseCommand(project.StartCommand)
		if err != nil {
			return Recipe{}, fmt.Errorf("start command: %w", err)
		}
		start = args
	}
	port := project.ListenPort()

	var b strings.Builder
	fmt.Fprintf(&b, "FROM %s\n", images.Node)
	b.WriteString("WORKDIR /app\n")
	b.WriteString("COPY package*.json ./\n")
	writeRunSteps(&b, plan)
	b.WriteString("ENV NODE_ENV=production\n")
	fmt.Fprintf(&b, "ENV PORT=%d\n", port)
	fmt.Fprintf(&b, "EXPOSE %d\n", port)
	fmt.Fprintf(&b, "CMD %s\n", execForm(start))

	return Recipe{
		Dockerfile:    b.String(),
		ContainerPort: port,
		StartCommand:  start,
	}, nil
}

// writeRunSteps emits install, source copy and build in that order so the
// dependency layer is cached across source edits.
func writeRunSteps(b *strings.Builder, plan BuildPlan) {
	if plan.Install != nil {
		fmt.Fprintf(b, "RUN %s\n", execForm(plan.Install.Args))
	}
	b.WriteString("COPY . .\n")
	if plan.Build != nil {
		fmt.Fprintf(b, "RUN %s\n", execForm(plan.Build.Args))
	}
}

// writeRecipePrune removes the recipe files from the document root when the
// whole workspace is published.
func writeRecipePrune(b *strings.Builder, outputDir string) {
	if outputDir != "." {
		return
	}
	fmt.Fprintf(b, "RUN %s\n", execForm([]string{
		"rm", "-f",
		path.Join(staticDocumentRoot, RecipeFileName),
		path.Join(staticDocumentRoot, StaticRuleFileName),
	}))
}

// execForm renders args as a JSON array so no shell ever interprets them.
func execForm(args []string) string {
	data, _ := json.Marshal(args)
	return string(data)
}

func resolveOutputDir(dir string, built bool) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		if built {
			return "dist", nil
		}
		return ".", nil
	}
	if !outputDirPattern.MatchString(dir) || strings.HasPrefix(dir, "/") {
		return "", ErrInvalidOutputDir
	}
	cleaned := path.Clean(dir)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidOutputDir
	}
	return cleaned, nil
}

// =============================================================================
// Static Server Rule
// =============================================================================

// RenderStaticRule renders the static file server configuration: the output
// directory is the document root and every unmatched path falls back to
// /index.html.
func RenderStaticRule(port int) string {
	var b strings.Builder
	b.WriteString("server {\n")
	fmt.Fprintf(&b, "    listen %d;\n", port)
	b.WriteString("    server_name _;\n")
	b.WriteString("    root /usr/share/nginx/html;\n")
	b.WriteString("    index index.html;\n")
	b.WriteString("\n")
	b.WriteString("    location / {\n")
	b.WriteString("        try_files $uri $uri/ /index.html;\n")
	b.WriteString("    }\n")
	b.WriteString("}\n")
	return b.String()
}
