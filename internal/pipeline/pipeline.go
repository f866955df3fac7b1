// Package pipeline sequences a full harness run: resolve the provider,
// build and start the stack, wait for readiness, smoke-check, execute the
// external suite, collect recordings, and notify. Teardown and
// notification happen on every exit path.
package pipeline

import (
	"context"

	"stackharness/internal/config"
	"stackharness/internal/logger"
	"stackharness/internal/notify"
)

// Stack is the container side of the run.
type Stack interface {
	Build(ctx context.Context) error
	Start(ctx context.Context) error
	WaitHealthy(ctx context.Context) error
	Teardown(ctx context.Context)
}

// Suite obtains and executes the external integration tests.
type Suite interface {
	Prepare(ctx context.Context) error
	Execute(ctx context.Context) error
}

// Recordings manages the artifact lifecycle around the suite run.
type Recordings interface {
	CheckReplayable() error
	PrepareStaging() error
	CollectAndPublish() error
}

// Smoke verifies the stack minimally before the suite runs.
type Smoke interface {
	Verify(ctx context.Context) error
}

// Notifications reports the run outcome.
type Notifications interface {
	Notify(ctx context.Context, outcome notify.Outcome) error
}

// Pipeline wires the run's components. Construct with New for production
// or assemble directly in tests.
type Pipeline struct {
	Mode          config.RunMode
	Stack         Stack
	Suite         Suite
	Recordings    Recordings
	Smoke         Smoke
	Notifications Notifications
}

// Run executes the full sequence and always attempts a notification with
// the final outcome. The run's own error wins over a notification error.
func (p *Pipeline) Run(ctx context.Context) error {
	runErr := p.run(ctx)

	outcome := notify.Success
	if runErr != nil {
		outcome = notify.Failure
	}
	if err := p.Notifications.Notify(ctx, outcome); err != nil {
		if runErr == nil {
			return err
		}
		logger.Error("Notification failed after run error", "error", err)
	}
	return runErr
}

func (p *Pipeline) run(ctx context.Context) error {
	// Replaying against an empty recording set would waste a container
	// start; refuse before anything expensive happens.
	if p.Mode == config.ModeReplay {
		if err := p.Recordings.CheckReplayable(); err != nil {
			return err
		}
	}

	if err := p.Stack.Build(ctx); err != nil {
		return err
	}

	if err := p.Stack.Start(ctx); err != nil {
		return err
	}
	defer p.Stack.Teardown(ctx)

	if err := p.Stack.WaitHealthy(ctx); err != nil {
		return err
	}

	if err := p.Smoke.Verify(ctx); err != nil {
		return err
	}

	if err := p.Suite.Prepare(ctx); err != nil {
		return err
	}

	recording := p.Mode.RecordingCapable()
	if recording {
		if err := p.Recordings.PrepareStaging(); err != nil {
			return err
		}
	}

	suiteErr := p.Suite.Execute(ctx)

	if recording {
		// A failed suite may still have produced recordings worth keeping;
		// collect first, then surface the suite failure.
		if collectErr := p.Recordings.CollectAndPublish(); collectErr != nil {
			if suiteErr != nil {
				logger.Warn("Recording collection failed after suite failure", "error", collectErr)
				return suiteErr
			}
			return collectErr
		}
	}

	return suiteErr
}
