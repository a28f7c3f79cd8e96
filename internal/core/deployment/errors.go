package deployment

import (
	"errors"
	"fmt"
)

// =============================================================================
// Pipeline Error Taxonomy
// =============================================================================

// ErrorKind classifies why a deploy pipeline stopped.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindEmptyProject ErrorKind = "empty_project"
	KindIO           ErrorKind = "io_error"
	KindBuild        ErrorKind = "build_error"
	KindContainer    ErrorKind = "container_error"
	KindProxy        ErrorKind = "proxy_error"
	KindUnknown      ErrorKind = "unknown"
)

// PipelineError is a stage failure that aborts a deploy.
type PipelineError struct {
	Kind    ErrorKind
	Op      string // Stage or operation that failed (e.g., "materialize")
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a new PipelineError. When message is empty the
// wrapped error's text is used.
func NewPipelineError(kind ErrorKind, op, message string, err error) *PipelineError {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &PipelineError{
		Kind:    kind,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NotFound reports a missing or foreign project or deployment.
func NotFound(entity, id string) *PipelineError {
	return NewPipelineError(KindNotFound, "lookup", fmt.Sprintf("%s %s not found", entity, id), nil)
}

// EmptyProject reports a project with no files to deploy.
func EmptyProject(projectID int64) *PipelineError {
	return NewPipelineError(KindEmptyProject, "load files", fmt.Sprintf("project %d has no files to deploy", projectID), nil)
}

// KindOf returns the kind of the first PipelineError in err's chain.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// =============================================================================
// Cleanup Errors
// =============================================================================

// CleanupError is a non-fatal failure of a best-effort step such as retiring
// a superseded instance. It is logged and never aborts the pipeline.
type CleanupError struct {
	Target string // Instance or resource the cleanup acted on
	Err    error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup %s: %v", e.Target, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}
