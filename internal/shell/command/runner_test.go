package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

// =============================================================================
// ExecRunner Tests
// =============================================================================

func TestExecRunner_CapturesOutput(t *testing.T) {
	requireBinary(t, "sh")
	r := NewExecRunner(setupTestLogger())

	res, err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo one; echo two 1>&2"},
		Dir:  t.TempDir(),
	})

	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.ElementsMatch(t, []string{"one", "two"}, res.Lines())
}

func TestExecRunner_ArgumentsAreNotShellInterpreted(t *testing.T) {
	requireBinary(t, "echo")
	r := NewExecRunner(setupTestLogger())

	res, err := r.Run(context.Background(), Command{
		Name: "echo",
		Args: []string{"a; rm -rf /", "$HOME"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a; rm -rf / $HOME"}, res.Lines())
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	requireBinary(t, "sh")
	r := NewExecRunner(setupTestLogger())

	res, err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo failing; exit 3"},
	})

	require.Error(t, err)
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.False(t, cmdErr.TimedOut)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, []string{"failing"}, res.Lines())
	assert.Contains(t, err.Error(), "exit status 3")
}

func TestExecRunner_Timeout(t *testing.T) {
	requireBinary(t, "sleep")
	r := NewExecRunner(setupTestLogger())

	start := time.Now()
	_, err := r.Run(context.Background(), Command{
		Name:    "sleep",
		Args:    []string{"5"},
		Timeout: 100 * time.Millisecond,
	})

	require.Error(t, err)
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.True(t, cmdErr.TimedOut)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := NewExecRunner(setupTestLogger())

	_, err := r.Run(context.Background(), Command{Name: "launchpad-no-such-binary"})

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 0, cmdErr.ExitCode)
}

func TestExecRunner_EmptyCommand(t *testing.T) {
	r := NewExecRunner(nil)

	_, err := r.Run(context.Background(), Command{})

	assert.ErrorIs(t, err, ErrEmptyCommand)
}

// =============================================================================
// SplitLines Tests
// =============================================================================

func TestExecRunner_Environment(t *testing.T) {
	requireBinary(t, "sh")
	t.Setenv("LAUNCHPAD_AUTH_SHARED_SECRET", "gateway-secret")
	r := NewExecRunner(setupTestLogger())

	tests := []struct {
		name     string
		isolated bool
		want     []string
	}{
		{"inherited", false, []string{"secret=gateway-secret", "extra=yes", "path=set"}},
		{"isolated", true, []string{"secret=", "extra=yes", "path=set"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Run(context.Background(), Command{
				Name:     "sh",
				Args:     []string{"-c", `echo "secret=$LAUNCHPAD_AUTH_SHARED_SECRET"; echo "extra=$EXTRA"; [ -n "$PATH" ] && echo path=set`},
				Env:      []string{"EXTRA=yes"},
				Isolated: tt.isolated,
			})

			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Lines())
		})
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []string
	}{
		{"empty", "", nil},
		{"single", "hello\n", []string{"hello"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"blank lines dropped", "a\n\n   \nb", []string{"a", "b"}},
		{"leading indent kept", "  indented\n", []string{"  indented"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitLines([]byte(tt.output)))
		})
	}
}
