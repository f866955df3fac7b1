package pipeline

import (
	"context"
	"path/filepath"

	"stackharness/internal/buildspec"
	"stackharness/internal/config"
	"stackharness/internal/container"
	"stackharness/internal/logger"
	"stackharness/internal/notify"
	"stackharness/internal/provider"
	"stackharness/internal/recording"
	"stackharness/internal/runner"
	"stackharness/internal/smoke"
	"stackharness/internal/suite"
)

// credentialMountPath is where the remote-cloud credentials file appears
// inside the container.
const credentialMountPath = "/run/secrets/cloud-credentials.json"

// stackPort is the port the distribution listens on inside the container.
const stackPort = 8321

// New assembles a production pipeline for the resolved provider profile.
func New(cfg *config.Config, profile provider.Profile) *Pipeline {
	execRunner := runner.NewExecRunner()

	return &Pipeline{
		Mode:  cfg.Mode,
		Stack: NewStack(cfg, profile),
		Suite: &suiteRuntime{
			cfg:      cfg,
			profile:  profile,
			checkout: suite.NewCheckout(cfg.SuiteRepoURL, cfg.SuiteDir, execRunner),
		},
		Recordings:    recording.NewCollector(cfg.WorkDir, cfg.RecordingsDir),
		Smoke:         &smokeRuntime{cfg: cfg, profile: profile},
		Notifications: &notifyRuntime{cfg: cfg},
	}
}

// NewStack builds the production Stack for cfg and profile. It is also
// used standalone by the CLI's local development commands.
func NewStack(cfg *config.Config, profile provider.Profile) Stack {
	return &stackRuntime{
		cfg:     cfg,
		profile: profile,
		engine:  container.NewEngine(cfg.EngineBin, runner.NewExecRunner()),
	}
}

// stackRuntime adapts the container engine to the Stack interface.
type stackRuntime struct {
	cfg     *config.Config
	profile provider.Profile
	engine  *container.Engine
	handle  *container.Handle
}

func (s *stackRuntime) Build(ctx context.Context) error {
	containerfile := filepath.Join(filepath.Dir(s.cfg.DescriptorPath), "Containerfile")
	return s.engine.BuildImage(ctx, s.cfg.ImageRef, containerfile, ".")
}

func (s *stackRuntime) Start(ctx context.Context) error {
	spec := container.RunSpec{
		Name:     s.cfg.ContainerName,
		ImageRef: s.cfg.ImageRef,
		HostPort: s.cfg.HostPort,
		Port:     stackPort,
		Env:      s.profile.ContainerEnv(),
	}
	spec.Env["INFERENCE_MODE"] = string(s.cfg.Mode)

	if s.profile.Kind == provider.RemoteCloud && s.profile.Auth.CredentialsPath != "" {
		spec.SecretHostPath = s.profile.Auth.CredentialsPath
		spec.SecretContainerPath = credentialMountPath
	}

	handle, err := s.engine.Start(ctx, spec)
	if err != nil {
		return err
	}
	s.handle = handle
	return nil
}

func (s *stackRuntime) WaitHealthy(ctx context.Context) error {
	probe := container.NewHTTPProbe(s.cfg.HealthURL())
	return s.engine.EnsureHealthy(ctx, s.handle, probe, container.PollConfig{
		Attempts: s.cfg.HealthAttempts,
		Interval: s.cfg.HealthInterval,
	})
}

func (s *stackRuntime) Teardown(ctx context.Context) {
	s.engine.Teardown(ctx, s.handle)
}

// suiteRuntime adapts checkout + invocation to the Suite interface.
type suiteRuntime struct {
	cfg      *config.Config
	profile  provider.Profile
	checkout *suite.Checkout
}

func (s *suiteRuntime) Prepare(ctx context.Context) error {
	descriptor, err := buildspec.Load(s.cfg.DescriptorPath)
	if err != nil {
		return err
	}
	rev, err := descriptor.Revision()
	if err != nil {
		return err
	}
	return s.checkout.Sync(ctx, rev)
}

func (s *suiteRuntime) Execute(ctx context.Context) error {
	iv := &suite.Invocation{
		Dir:            s.cfg.SuiteDir,
		RunConfigPath:  s.cfg.RunConfigPath,
		InferenceModel: s.profile.QualifiedInferenceModel(),
		EmbeddingModel: s.profile.QualifiedEmbeddingModel(),
		Runner:         runner.NewStreamingRunner(),
	}
	return iv.Execute(ctx)
}

// smokeRuntime adapts the smoke checker.
type smokeRuntime struct {
	cfg     *config.Config
	profile provider.Profile
}

func (s *smokeRuntime) Verify(ctx context.Context) error {
	checker := smoke.NewChecker(s.cfg.BaseURL())
	return checker.Verify(ctx, s.profile.QualifiedInferenceModel())
}

// notifyRuntime adapts the notifier. Missing endpoints disable
// notifications without failing the run.
type notifyRuntime struct {
	cfg *config.Config
}

func (n *notifyRuntime) Notify(ctx context.Context, outcome notify.Outcome) error {
	endpoints, err := notify.ResolveEndpoints(n.cfg.WebhookSpec())
	if err != nil {
		return err
	}
	if len(endpoints) == 0 {
		logger.Debug("Notifications disabled")
		return nil
	}

	message := notify.Message{
		Outcome:     outcome,
		CommitSHA:   n.cfg.CommitSHA,
		WorkflowURL: n.cfg.WorkflowURL,
		ImageRef:    n.cfg.ImageRef,
	}
	return notify.NewNotifier().Send(ctx, message, endpoints)
}
