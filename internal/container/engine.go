// Package container manages the stack container's lifecycle: image build,
// start with provider-specific configuration, bounded health polling, and
// guaranteed teardown.
package container

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"stackharness/internal/failure"
	"stackharness/internal/logger"
	"stackharness/internal/runner"
)

// Status tracks a container handle through its lifecycle.
type Status string

const (
	StatusStarting Status = "starting"
	StatusHealthy  Status = "healthy"
	StatusFailed   Status = "failed"
	StatusStopped  Status = "stopped"
)

// Handle identifies a started container.
type Handle struct {
	Name     string
	ImageRef string
	Status   Status
}

// RunSpec describes how the stack container is started.
type RunSpec struct {
	Name        string
	ImageRef    string
	HostPort    int
	Port        int
	NetworkMode string
	Env         map[string]string
	// SecretMount maps a host credentials file to an in-container path.
	// Empty SecretHostPath means no mount.
	SecretHostPath      string
	SecretContainerPath string
}

// Engine drives the container CLI (docker or podman). All invocations go
// through a CommandRunner so tests never touch a real engine.
type Engine struct {
	bin    string
	runner runner.CommandRunner
	log    interface {
		Info(msg interface{}, keyvals ...interface{})
		Warn(msg interface{}, keyvals ...interface{})
	}
}

// NewEngine creates an Engine for the given CLI binary name.
func NewEngine(bin string, r runner.CommandRunner) *Engine {
	return &Engine{
		bin:    bin,
		runner: r,
		log:    logger.NewStyledLogger("container"),
	}
}

// BuildImage builds the image from a Containerfile. Any non-zero exit is
// fatal for the run; there is no retry.
func (e *Engine) BuildImage(ctx context.Context, imageRef, containerfile, contextDir string) error {
	e.log.Info("Building image", "image", imageRef, "containerfile", containerfile)

	output, err := e.runner.Run(ctx, "", e.bin, "build", "-f", containerfile, "-t", imageRef, contextDir)
	if err != nil {
		logger.Error("Image build failed", "image", imageRef, "output", output)
		return failure.Wrap(failure.CommandFailed, "container.build",
			fmt.Errorf("building %s: %w", imageRef, err))
	}
	return nil
}

// Start removes any pre-existing container of the same name, then starts a
// new one from the spec. Returns a handle in the starting state.
func (e *Engine) Start(ctx context.Context, spec RunSpec) (*Handle, error) {
	// Same-name removal makes restarts idempotent; each run owns its name.
	if err := e.Remove(ctx, spec.Name); err != nil {
		return nil, err
	}

	args := []string{"run", "-d", "--name", spec.Name}
	if spec.NetworkMode != "" {
		args = append(args, "--network", spec.NetworkMode)
	}
	if spec.HostPort > 0 && spec.Port > 0 {
		args = append(args, "-p", fmt.Sprintf("%d:%d", spec.HostPort, spec.Port))
	}
	for _, key := range sortedKeys(spec.Env) {
		args = append(args, "-e", key+"="+spec.Env[key])
	}
	if spec.SecretHostPath != "" {
		args = append(args, "-v", spec.SecretHostPath+":"+spec.SecretContainerPath+":ro")
		args = append(args, "-e", "GOOGLE_APPLICATION_CREDENTIALS="+spec.SecretContainerPath)
	}
	args = append(args, spec.ImageRef)

	e.log.Info("Starting container", "container", spec.Name, "image", spec.ImageRef)

	output, err := e.runner.Run(ctx, "", e.bin, args...)
	if err != nil {
		logger.Error("Container start failed", "container", spec.Name, "output", output)
		return nil, failure.Wrap(failure.CommandFailed, "container.start",
			fmt.Errorf("starting %s: %w", spec.Name, err))
	}

	return &Handle{Name: spec.Name, ImageRef: spec.ImageRef, Status: StatusStarting}, nil
}

// Remove force-removes the named container. Removal is idempotent: a
// missing container is not an error.
func (e *Engine) Remove(ctx context.Context, name string) error {
	output, err := e.runner.Run(ctx, "", e.bin, "rm", "-f", name)
	if err != nil {
		if isNotFound(output) {
			return nil
		}
		return failure.Wrap(failure.CommandFailed, "container.remove",
			fmt.Errorf("removing %s: %w", name, err))
	}
	return nil
}

// Logs returns the container's log output for diagnostics.
func (e *Engine) Logs(ctx context.Context, name string) (string, error) {
	output, err := e.runner.Run(ctx, "", e.bin, "logs", name)
	if err != nil {
		return output, failure.Wrap(failure.CommandFailed, "container.logs",
			fmt.Errorf("fetching logs for %s: %w", name, err))
	}
	return output, nil
}

// Teardown removes the container and marks the handle stopped. It never
// fails the caller; problems are logged and the run's own error wins.
func (e *Engine) Teardown(ctx context.Context, handle *Handle) {
	if handle == nil {
		return
	}
	if err := e.Remove(ctx, handle.Name); err != nil {
		e.log.Warn("Teardown could not remove container", "container", handle.Name, "error", err)
		return
	}
	handle.Status = StatusStopped
}

// DumpLogs writes the container logs to the harness log for post-mortem
// inspection, typically after a readiness timeout.
func (e *Engine) DumpLogs(ctx context.Context, handle *Handle) {
	logs, err := e.Logs(ctx, handle.Name)
	if err != nil {
		e.log.Warn("Could not fetch container logs", "container", handle.Name, "error", err)
		return
	}
	logger.Error("Container logs follow", "container", handle.Name)
	fmt.Println(logs)
}

func isNotFound(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "no such container") ||
		strings.Contains(lower, "container not known")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
