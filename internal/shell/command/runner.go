// Package command runs external processes from structured argv with a hard
// timeout and captured output. No shell is involved.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds commands that carry no timeout of their own.
const DefaultTimeout = 2 * time.Minute

var ErrEmptyCommand = errors.New("command has no executable")

// Command describes one process invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string // appended to the base environment
	Timeout time.Duration

	// Isolated starts the process from HostEnvAllowlist instead of the
	// full environment of the current process.
	Isolated bool
}

// HostEnvAllowlist names the variables an isolated command inherits.
var HostEnvAllowlist = []string{"PATH", "HOME", "TMPDIR", "LANG"}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is what a finished process left behind.
type Result struct {
	Output   []byte
	ExitCode int
	Duration time.Duration
}

// Lines splits captured output into non-empty lines.
func (r Result) Lines() []string {
	return SplitLines(r.Output)
}

// CommandError reports a process that could not start, exited non-zero or
// ran out of time.
type CommandError struct {
	Command  string
	ExitCode int
	TimedOut bool
	Output   []byte
	Err      error
}

func (e *CommandError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("%s: timed out", e.Command)
	case e.ExitCode > 0:
		return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	default:
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner executes commands. Implementations must honour Command.Timeout.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger *slog.Logger
}

// NewExecRunner creates a runner. A nil logger uses slog.Default().
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{logger: logger.With("component", "command")}
}

// Run executes cmd and returns its combined output. A *CommandError is
// returned for every failure; Result.Output is populated either way.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if cmd.Name == "" {
		return Result{}, ErrEmptyCommand
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(baseEnv(cmd.Isolated), cmd.Env...)
	c.WaitDelay = 5 * time.Second

	var buf bytes.Buffer
	c.Stdout = &buf
	c.Stderr = &buf

	start := time.Now()
	err := c.Run()
	res := Result{Output: buf.Bytes(), Duration: time.Since(start)}

	r.logger.Debug("command finished",
		"command", cmd.String(),
		"dir", cmd.Dir,
		"duration", res.Duration,
		"error", err,
	)

	if err == nil {
		return res, nil
	}

	cmdErr := &CommandError{Command: cmd.String(), Output: res.Output, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		cmdErr.ExitCode = res.ExitCode
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		cmdErr.TimedOut = true
	}
	return res, cmdErr
}

func baseEnv(isolated bool) []string {
	if !isolated {
		return os.Environ()
	}
	env := make([]string, 0, len(HostEnvAllowlist))
	for _, key := range HostEnvAllowlist {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	return env
}

// SplitLines splits process output into trimmed, non-empty lines.
func SplitLines(output []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimRight(line, "\r ")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
