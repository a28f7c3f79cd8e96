package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Deployment Errors
// =============================================================================

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrProjectRequired   = errors.New("project id is required")
)

// =============================================================================
// Deployment Status
// =============================================================================

type DeploymentStatus string

const (
	StatusBuilding DeploymentStatus = "building"
	StatusRunning  DeploymentStatus = "running"
	StatusFailed   DeploymentStatus = "failed"
	StatusStopped  DeploymentStatus = "stopped"
)

// IsTerminal reports whether no further transition is possible from the status.
func (s DeploymentStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// =============================================================================
// Deployment
// =============================================================================

// Deployment is one run of the deploy pipeline for a project.
type Deployment struct {
	ID            string           `json:"id"`
	ProjectID     int64            `json:"project_id"`
	Status        DeploymentStatus `json:"status"`
	ContainerID   string           `json:"container_id,omitempty"`
	ContainerName string           `json:"container_name,omitempty"`
	HostPort      int              `json:"host_port,omitempty"`
	URL           string           `json:"url,omitempty"`
	CommitMessage string           `json:"commit_message,omitempty"`
	BuildDuration time.Duration    `json:"build_duration"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// NewDeployment creates a deployment in the building state.
func NewDeployment(projectID int64, commitMessage string) (*Deployment, error) {
	if projectID <= 0 {
		return nil, ErrProjectRequired
	}

	now := time.Now().UTC()
	return &Deployment{
		ID:            uuid.New().String(),
		ProjectID:     projectID,
		Status:        StatusBuilding,
		CommitMessage: commitMessage,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Transition attempts to transition the deployment to a new status.
func (d *Deployment) Transition(to DeploymentStatus) error {
	if err := ValidateTransition(d.Status, to); err != nil {
		return err
	}

	d.Status = to
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkRunning records the produced instance and moves the deployment to running.
func (d *Deployment) MarkRunning(containerID, containerName, url string, hostPort int, took time.Duration) error {
	if err := d.Transition(StatusRunning); err != nil {
		return err
	}
	d.ContainerID = containerID
	d.ContainerName = containerName
	d.HostPort = hostPort
	d.URL = url
	d.BuildDuration = took
	return nil
}

// MarkFailed moves a building deployment to failed with an error message.
func (d *Deployment) MarkFailed(errorMessage string, took time.Duration) error {
	if err := d.Transition(StatusFailed); err != nil {
		return err
	}
	d.ErrorMessage = errorMessage
	d.BuildDuration = took
	return nil
}

// HasInstance reports whether a runtime instance was ever started for the deployment.
func (d *Deployment) HasInstance() bool {
	return d.ContainerName != ""
}

// =============================================================================
// State Machine
// =============================================================================

// validTransitions defines the allowed state transitions.
var validTransitions = map[DeploymentStatus][]DeploymentStatus{
	StatusBuilding: {StatusRunning, StatusFailed},
	StatusRunning:  {StatusStopped},
	StatusFailed:   {}, // Terminal
	StatusStopped:  {}, // Terminal
}

// ValidateTransition checks if a status transition is valid.
func ValidateTransition(from, to DeploymentStatus) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return ErrInvalidTransition
	}

	for _, s := range allowed {
		if s == to {
			return nil
		}
	}

	return ErrInvalidTransition
}
