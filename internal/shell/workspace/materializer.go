// Package workspace writes project files into isolated per-project working
// directories on the host.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/launchpad/internal/core/deployment"
	"github.com/artpar/launchpad/internal/core/domain"
	"github.com/joho/godotenv"
)

// EnvFile holds environment variables passed to the running instance.
const EnvFile = ".env"

var ErrUnsafePath = errors.New("file path escapes the workspace")

// Materializer owns the workspace root directory.
type Materializer struct {
	root   string
	logger *slog.Logger
}

// NewMaterializer creates a materializer rooted at root. The root is created
// on first use.
func NewMaterializer(root string, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{
		root:   root,
		logger: logger.With("component", "workspace"),
	}
}

// Dir returns the working directory of a project.
func (m *Materializer) Dir(projectID int64) string {
	return filepath.Join(m.root, deployment.WorkspaceName(projectID))
}

// Materialize writes every file to the project's working directory and
// returns that directory. Existing files are overwritten; files not in the
// set are left alone. Any filesystem failure is an IO pipeline error.
func (m *Materializer) Materialize(projectID int64, files []domain.ProjectFile) (string, error) {
	dir := m.Dir(projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", ioError(fmt.Sprintf("create workspace %s", dir), err)
	}

	for _, f := range files {
		target, err := resolve(dir, f.Path)
		if err != nil {
			return "", ioError(fmt.Sprintf("write %q", f.Path), err)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return "", ioError(fmt.Sprintf("create directory for %q", f.Path), err)
		}
		if err := os.WriteFile(target, []byte(f.Content), 0o644); err != nil {
			return "", ioError(fmt.Sprintf("write %q", f.Path), err)
		}
	}

	m.logger.Debug("workspace materialized", "project_id", projectID, "dir", dir, "files", len(files))
	return dir, nil
}

// LoadEnv parses the workspace .env file. A missing file yields an empty map.
func (m *Materializer) LoadEnv(dir string) (map[string]string, error) {
	f, err := os.Open(filepath.Join(dir, EnvFile))
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, ioError("open env file", err)
	}
	defer f.Close()

	env, err := godotenv.Parse(f)
	if err != nil {
		return nil, ioError("parse env file", err)
	}
	return env, nil
}

// resolve joins a project-relative path onto dir, rejecting absolute paths
// and paths that leave dir after cleaning.
func resolve(dir, rel string) (string, error) {
	if strings.TrimSpace(rel) == "" || filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, rel)
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, rel)
	}
	return filepath.Join(dir, cleaned), nil
}

func ioError(message string, err error) error {
	return deployment.NewPipelineError(deployment.KindIO, "materialize", fmt.Sprintf("%s: %v", message, err), err)
}
