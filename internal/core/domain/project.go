// Package domain holds the entities the deploy engine works with.
package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownFramework = errors.New("unknown framework")
	ErrInvalidPort      = errors.New("port must be between 1 and 65535")
)

// =============================================================================
// Framework
// =============================================================================

// Framework is the closed set of project kinds the engine knows how to build.
type Framework string

const (
	FrameworkSPA         Framework = "spa"
	FrameworkStaticHTML  Framework = "static-html"
	FrameworkSSRNode     Framework = "ssr-node-framework"
	FrameworkNodeService Framework = "node-service"
)

// Frameworks lists every supported framework.
func Frameworks() []Framework {
	return []Framework{FrameworkSPA, FrameworkStaticHTML, FrameworkSSRNode, FrameworkNodeService}
}

// ParseFramework converts a stored value into a Framework.
func ParseFramework(s string) (Framework, error) {
	for _, f := range Frameworks() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFramework, s)
}

// IsStatic reports whether the framework is served as files by a static server.
func (f Framework) IsStatic() bool {
	return f == FrameworkSPA || f == FrameworkStaticHTML
}

// =============================================================================
// Project
// =============================================================================

// DefaultListenPort is used when a node project does not declare its port.
const DefaultListenPort = 3000

// Project is a user's web project. It is owned by the surrounding system and
// read-only for the deploy engine.
type Project struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Name         string    `json:"name"`
	Framework    Framework `json:"framework"`
	BuildCommand string    `json:"build_command,omitempty"`
	StartCommand string    `json:"start_command,omitempty"`
	OutputDir    string    `json:"output_dir,omitempty"`
	Port         int       `json:"port,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListenPort returns the port the project's process listens on inside its container.
func (p Project) ListenPort() int {
	if p.Port == 0 {
		return DefaultListenPort
	}
	return p.Port
}

// Validate checks the fields the pipeline depends on.
func (p Project) Validate() error {
	if _, err := ParseFramework(string(p.Framework)); err != nil {
		return err
	}
	if p.Port < 0 || p.Port > 65535 {
		return ErrInvalidPort
	}
	return nil
}

// OwnedBy reports whether the project belongs to the given user.
func (p Project) OwnedBy(userID int64) bool {
	return p.UserID == userID
}

// ProjectFile is one source file of a project.
type ProjectFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// =============================================================================
// Domain
// =============================================================================

// Domain is a custom hostname attached to a project, optionally pinned to a deployment.
type Domain struct {
	ID           int64     `json:"id"`
	ProjectID    int64     `json:"project_id"`
	DeploymentID string    `json:"deployment_id,omitempty"`
	Hostname     string    `json:"hostname"`
	CreatedAt    time.Time `json:"created_at"`
}
