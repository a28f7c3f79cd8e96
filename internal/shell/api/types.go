package api

import (
	"time"

	"github.com/artpar/launchpad/internal/core/domain"
)

// =============================================================================
// Request Types
// =============================================================================

// DeployRequest is the optional request body for triggering a deploy.
type DeployRequest struct {
	CommitMessage string `json:"commit_message,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// DeploymentResponse is the response for deployment operations.
type DeploymentResponse struct {
	ID              string    `json:"id"`
	ProjectID       int64     `json:"project_id"`
	Status          string    `json:"status"`
	ContainerID     string    `json:"container_id,omitempty"`
	ContainerName   string    `json:"container_name,omitempty"`
	HostPort        int       `json:"host_port,omitempty"`
	URL             string    `json:"url,omitempty"`
	CommitMessage   string    `json:"commit_message,omitempty"`
	BuildDurationMS int64     `json:"build_duration_ms"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func deploymentToResponse(d *domain.Deployment) DeploymentResponse {
	return DeploymentResponse{
		ID:              d.ID,
		ProjectID:       d.ProjectID,
		Status:          string(d.Status),
		ContainerID:     d.ContainerID,
		ContainerName:   d.ContainerName,
		HostPort:        d.HostPort,
		URL:             d.URL,
		CommitMessage:   d.CommitMessage,
		BuildDurationMS: d.BuildDuration.Milliseconds(),
		ErrorMessage:    d.ErrorMessage,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// ListDeploymentsResponse is the response for listing deployments.
type ListDeploymentsResponse struct {
	Deployments []DeploymentResponse `json:"deployments"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// LogEntryResponse is one build log line.
type LogEntryResponse struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ListLogsResponse is the response for listing a deployment's log.
type ListLogsResponse struct {
	DeploymentID string             `json:"deployment_id"`
	Entries      []LogEntryResponse `json:"entries"`
	Limit        int                `json:"limit"`
	Offset       int                `json:"offset"`
}

// StopResponse reports whether a stop took effect.
type StopResponse struct {
	DeploymentID string `json:"deployment_id"`
	Stopped      bool   `json:"stopped"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
