package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackharness/internal/config"
	"stackharness/internal/failure"
	"stackharness/internal/notify"
)

type fakeStack struct {
	steps      *[]string
	buildErr   error
	startErr   error
	healthyErr error
	tornDown   bool
}

func (f *fakeStack) Build(context.Context) error {
	*f.steps = append(*f.steps, "build")
	return f.buildErr
}

func (f *fakeStack) Start(context.Context) error {
	*f.steps = append(*f.steps, "start")
	return f.startErr
}

func (f *fakeStack) WaitHealthy(context.Context) error {
	*f.steps = append(*f.steps, "healthy")
	return f.healthyErr
}

func (f *fakeStack) Teardown(context.Context) {
	f.tornDown = true
	*f.steps = append(*f.steps, "teardown")
}

type fakeSuite struct {
	steps      *[]string
	prepareErr error
	executeErr error
}

func (f *fakeSuite) Prepare(context.Context) error {
	*f.steps = append(*f.steps, "suite.prepare")
	return f.prepareErr
}

func (f *fakeSuite) Execute(context.Context) error {
	*f.steps = append(*f.steps, "suite.execute")
	return f.executeErr
}

type fakeRecordings struct {
	steps      *[]string
	replayErr  error
	stagingErr error
	collectErr error
}

func (f *fakeRecordings) CheckReplayable() error {
	*f.steps = append(*f.steps, "recordings.precheck")
	return f.replayErr
}

func (f *fakeRecordings) PrepareStaging() error {
	*f.steps = append(*f.steps, "recordings.stage")
	return f.stagingErr
}

func (f *fakeRecordings) CollectAndPublish() error {
	*f.steps = append(*f.steps, "recordings.collect")
	return f.collectErr
}

type fakeSmoke struct {
	steps *[]string
	err   error
}

func (f *fakeSmoke) Verify(context.Context) error {
	*f.steps = append(*f.steps, "smoke")
	return f.err
}

type fakeNotifications struct {
	steps    *[]string
	outcomes []notify.Outcome
	err      error
}

func (f *fakeNotifications) Notify(_ context.Context, outcome notify.Outcome) error {
	*f.steps = append(*f.steps, "notify."+string(outcome))
	f.outcomes = append(f.outcomes, outcome)
	return f.err
}

type fixture struct {
	pipeline   *Pipeline
	steps      []string
	stack      *fakeStack
	suite      *fakeSuite
	recordings *fakeRecordings
	smoke      *fakeSmoke
	notes      *fakeNotifications
}

func newFixture(mode config.RunMode) *fixture {
	f := &fixture{}
	f.stack = &fakeStack{steps: &f.steps}
	f.suite = &fakeSuite{steps: &f.steps}
	f.recordings = &fakeRecordings{steps: &f.steps}
	f.smoke = &fakeSmoke{steps: &f.steps}
	f.notes = &fakeNotifications{steps: &f.steps}
	f.pipeline = &Pipeline{
		Mode:          mode,
		Stack:         f.stack,
		Suite:         f.suite,
		Recordings:    f.recordings,
		Smoke:         f.smoke,
		Notifications: f.notes,
	}
	return f
}

func TestRun_RecordMode_FullSequence(t *testing.T) {
	f := newFixture(config.ModeRecord)

	require.NoError(t, f.pipeline.Run(context.Background()))

	assert.Equal(t, []string{
		"build", "start", "healthy", "smoke", "suite.prepare",
		"recordings.stage", "suite.execute", "recordings.collect",
		"teardown", "notify.success",
	}, f.steps)
}

func TestRun_LiveMode_SkipsRecordingSteps(t *testing.T) {
	f := newFixture(config.ModeLive)

	require.NoError(t, f.pipeline.Run(context.Background()))

	assert.NotContains(t, f.steps, "recordings.stage")
	assert.NotContains(t, f.steps, "recordings.collect")
	assert.NotContains(t, f.steps, "recordings.precheck")
}

func TestRun_ReplayMode_FailsFastBeforeContainer(t *testing.T) {
	f := newFixture(config.ModeReplay)
	f.recordings.replayErr = failure.New(failure.EmptyResult, "recording.replay", "no recordings")

	err := f.pipeline.Run(context.Background())

	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.EmptyResult))
	assert.NotContains(t, f.steps, "build", "no container work before the precheck passes")
	assert.Equal(t, []notify.Outcome{notify.Failure}, f.notes.outcomes)
}

func TestRun_BuildFailure_NoStartNoTeardown(t *testing.T) {
	f := newFixture(config.ModeLive)
	f.stack.buildErr = failure.New(failure.CommandFailed, "container.build", "exit status 1")

	err := f.pipeline.Run(context.Background())

	require.Error(t, err)
	assert.NotContains(t, f.steps, "start")
	assert.False(t, f.stack.tornDown, "nothing started, nothing to tear down")
	assert.Equal(t, []notify.Outcome{notify.Failure}, f.notes.outcomes)
}

func TestRun_HealthFailure_TearsDown(t *testing.T) {
	f := newFixture(config.ModeLive)
	f.stack.healthyErr = failure.New(failure.ReadinessTimeout, "container.health", "60 attempts")

	err := f.pipeline.Run(context.Background())

	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.ReadinessTimeout))
	assert.True(t, f.stack.tornDown)
	assert.NotContains(t, f.steps, "smoke")
}

func TestRun_SuiteFailure_StillCollectsRecordings(t *testing.T) {
	f := newFixture(config.ModeRecord)
	f.suite.executeErr = failure.New(failure.CommandFailed, "suite.run", "2 tests failed")

	err := f.pipeline.Run(context.Background())

	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.CommandFailed))
	assert.Contains(t, f.steps, "recordings.collect", "partial recordings are kept")
	assert.True(t, f.stack.tornDown)
}

func TestRun_SuiteFailureWinsOverCollectionFailure(t *testing.T) {
	f := newFixture(config.ModeRecord)
	f.suite.executeErr = failure.New(failure.CommandFailed, "suite.run", "tests failed")
	f.recordings.collectErr = failure.New(failure.EmptyResult, "recording.collect", "nothing produced")

	err := f.pipeline.Run(context.Background())

	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.CommandFailed), "the suite error is the surfaced one")
}

func TestRun_EmptyCollectionFailsSuccessfulRun(t *testing.T) {
	f := newFixture(config.ModeRecord)
	f.recordings.collectErr = failure.New(failure.EmptyResult, "recording.collect", "nothing produced")

	err := f.pipeline.Run(context.Background())

	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.EmptyResult))
	assert.Equal(t, []notify.Outcome{notify.Failure}, f.notes.outcomes)
}

func TestRun_NotificationFailureFailsSuccessfulRun(t *testing.T) {
	f := newFixture(config.ModeLive)
	f.notes.err = failure.New(failure.DeliveryFailed, "notify.send", "403")

	err := f.pipeline.Run(context.Background())

	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.DeliveryFailed))
}

func TestRun_RunErrorWinsOverNotificationError(t *testing.T) {
	f := newFixture(config.ModeLive)
	f.suite.executeErr = errors.New("suite exploded")
	f.notes.err = failure.New(failure.DeliveryFailed, "notify.send", "403")

	err := f.pipeline.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "suite exploded")
}
