package deployment

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipelineError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *PipelineError
		wantMsg string
	}{
		{
			name:    "with op",
			err:     NewPipelineError(KindBuild, "build", "npm exited with status 1", nil),
			wantMsg: "build: npm exited with status 1",
		},
		{
			name:    "message from wrapped error",
			err:     NewPipelineError(KindIO, "materialize", "", errors.New("permission denied")),
			wantMsg: "materialize: permission denied",
		},
		{
			name:    "not found",
			err:     NotFound("project", "7"),
			wantMsg: "lookup: project 7 not found",
		},
		{
			name:    "empty project",
			err:     EmptyProject(7),
			wantMsg: "load files: project 7 has no files to deploy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestKindOf(t *testing.T) {
	cause := errors.New("boom")
	wrapped := fmt.Errorf("deploy: %w", NewPipelineError(KindProxy, "reload", "", cause))

	assert.Equal(t, KindProxy, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindProxy))
	assert.False(t, IsKind(wrapped, KindBuild))
	assert.ErrorIs(t, wrapped, cause)

	assert.Equal(t, KindUnknown, KindOf(cause))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindOf_Constructors(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("deployment", "x")))
	assert.Equal(t, KindEmptyProject, KindOf(EmptyProject(1)))
}

func TestCleanupError(t *testing.T) {
	cause := errors.New("no such container")
	err := &CleanupError{Target: "project-7-1", Err: cause}

	assert.Equal(t, "cleanup project-7-1: no such container", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindUnknown, KindOf(err))
}
