// Package runner abstracts external process execution so that the container
// engine and git invocations can be faked in tests.
package runner

import (
	"context"
	"os"
	"os/exec"

	"stackharness/internal/logger"
)

// CommandRunner executes an external command and returns its combined output.
// dir is the working directory; an empty dir runs in the current directory.
type CommandRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec, inheriting the process environment.
type ExecRunner struct{}

// NewExecRunner creates the production command runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command and returns combined stdout/stderr.
func (r *ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) (string, error) {
	logger.CommandExecution(name, args)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()

	output, err := cmd.CombinedOutput()
	return string(output), err
}

// StreamingRunner runs commands with stdout/stderr attached to the harness's
// own streams. Used for the test-runner execution, whose output is the
// primary diagnostic surface and can run for many minutes.
type StreamingRunner struct{}

// NewStreamingRunner creates a runner that passes output through.
func NewStreamingRunner() *StreamingRunner {
	return &StreamingRunner{}
}

// Run executes the command with inherited streams. The returned output is
// always empty; callers watch the process output directly.
func (r *StreamingRunner) Run(ctx context.Context, dir string, name string, args ...string) (string, error) {
	logger.CommandExecution(name, args)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return "", cmd.Run()
}
