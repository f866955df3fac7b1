package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"stackharness/internal/buildspec"
	"stackharness/internal/container"
	"stackharness/internal/logger"
	"stackharness/internal/normalize"
	"stackharness/internal/notify"
	"stackharness/internal/pipeline"
	"stackharness/internal/provider"
	"stackharness/internal/recording"
	"stackharness/internal/runner"
	"stackharness/internal/smoke"
)

// addRunCommand adds the full end-to-end pipeline command.
func (app *App) addRunCommand(rootCmd *cobra.Command) {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full build, deploy, test and notify pipeline",
		Long: `Run executes the complete harness sequence: build the distribution image,
start the container wired to the resolved inference provider, wait for the
health endpoint, smoke-check the API, check out and execute the external
integration suite, collect recordings (in recording modes), tear the
container down, and post the outcome to the configured webhooks.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			profile := provider.Resolve(os.Getenv)
			logger.Info("Starting harness run",
				"mode", string(cfg.Mode),
				"provider", profile.ProviderID(),
				"inference_model", profile.QualifiedInferenceModel())

			return pipeline.New(cfg, profile).Run(cmd.Context())
		},
	}
	rootCmd.AddCommand(runCmd)
}

// addBuildCommand adds the image-build command: resolve the pip dependency
// set from the descriptor, render the Containerfile, and build the image.
func (app *App) addBuildCommand(rootCmd *cobra.Command) {
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Generate the Containerfile and build the distribution image",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			descriptor, err := buildspec.Load(cfg.DescriptorPath)
			if err != nil {
				return err
			}

			execRunner := runner.NewExecRunner()
			if err := descriptor.VerifyTool(cmd.Context(), execRunner, app.DistroBin); err != nil {
				return err
			}

			commands, err := buildspec.ResolveDependencies(cmd.Context(),
				execRunner, app.DistroBin, cfg.DescriptorPath)
			if err != nil {
				return err
			}
			if len(descriptor.ExtraDeps) > 0 {
				commands = append(commands, buildspec.InstallCommand(descriptor.ExtraDeps))
			}
			logger.Info("Resolved image dependencies", "install_commands", len(commands))

			dir := filepath.Dir(cfg.DescriptorPath)
			containerfile := filepath.Join(dir, "Containerfile")
			if err := buildspec.GenerateContainerfile(
				filepath.Join(dir, "Containerfile.in"), containerfile, commands); err != nil {
				return err
			}
			logger.Info("Generated Containerfile", "path", containerfile)

			engine := container.NewEngine(cfg.EngineBin, runner.NewStreamingRunner())
			return engine.BuildImage(cmd.Context(), cfg.ImageRef, containerfile, ".")
		},
	}
	rootCmd.AddCommand(buildCmd)
}

// addStackCommands adds the local development commands that manage the
// container without running the test suite.
func (app *App) addStackCommands(rootCmd *cobra.Command) {
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Start the stack container, wait for readiness and smoke-check it",
		Long: `Up starts the distribution container against the resolved provider, polls
the health endpoint until ready, verifies the inference model is served and
answers a chat round trip, then leaves the container running for local use.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			profile := provider.Resolve(os.Getenv)
			stack := pipeline.NewStack(cfg, profile)

			if err := stack.Start(cmd.Context()); err != nil {
				return err
			}
			if err := stack.WaitHealthy(cmd.Context()); err != nil {
				return err
			}

			checker := smoke.NewChecker(cfg.BaseURL())
			if err := checker.Verify(cmd.Context(), profile.QualifiedInferenceModel()); err != nil {
				stack.Teardown(cmd.Context())
				return err
			}

			logger.Info("Stack is up", "container", cfg.ContainerName, "url", cfg.BaseURL())
			return nil
		},
	}
	rootCmd.AddCommand(upCmd)

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Stop and remove the stack container",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			engine := container.NewEngine(cfg.EngineBin, runner.NewExecRunner())
			if err := engine.Remove(cmd.Context(), cfg.ContainerName); err != nil {
				return err
			}
			logger.Info("Stack container removed", "container", cfg.ContainerName)
			return nil
		},
	}
	rootCmd.AddCommand(downCmd)
}

// addNotifyCommand adds the standalone webhook notification command used by
// CI steps that report an outcome without running the pipeline.
func (app *App) addNotifyCommand(rootCmd *cobra.Command) {
	var preview bool

	notifyCmd := &cobra.Command{
		Use:   "notify <success|failure>",
		Short: "Post a build-status notification to the configured webhooks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var outcome notify.Outcome
			switch args[0] {
			case "success":
				outcome = notify.Success
			case "failure":
				outcome = notify.Failure
			default:
				return fmt.Errorf("unknown outcome %q (want success or failure)", args[0])
			}

			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			message := notify.Message{
				Outcome:     outcome,
				CommitSHA:   cfg.CommitSHA,
				WorkflowURL: cfg.WorkflowURL,
				ImageRef:    cfg.ImageRef,
			}

			if preview {
				if err := message.Validate(); err != nil {
					return err
				}
				cmd.Print(notify.Preview(message))
				return nil
			}

			endpoints, err := notify.ResolveEndpoints(cfg.WebhookSpec())
			if err != nil {
				return err
			}
			return notify.NewNotifier().Send(cmd.Context(), message, endpoints)
		},
	}
	notifyCmd.Flags().BoolVar(&preview, "preview", false, "Render the message without sending it")
	rootCmd.AddCommand(notifyCmd)
}

// addRecordingCommands adds maintenance commands for the recording corpus.
func (app *App) addRecordingCommands(rootCmd *cobra.Command) {
	normalizeCmd := &cobra.Command{
		Use:   "normalize [dir]",
		Short: "Rewrite volatile values in recordings to stable placeholders",
		Long: `Normalize walks a recording tree and replaces run-specific values such as
timestamps, UUIDs, completion IDs and latencies with stable placeholders so
that recordings from different runs diff cleanly. Defaults to the configured
recordings directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			dir := cfg.RecordingsDir
			if len(args) == 1 {
				dir = args[0]
			}

			files, replacements, err := normalize.NewEngine().NormalizeTree(dir)
			if err != nil {
				return err
			}
			logger.Info("Normalized recordings", "dir", dir, "files", files, "replacements", replacements)
			return nil
		},
	}
	rootCmd.AddCommand(normalizeCmd)

	diffCmd := &cobra.Command{
		Use:   "diff",
		Short: "Diff freshly collected recordings against the published set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			report, err := recording.Diff(cfg.WorkDir, cfg.RecordingsDir)
			if err != nil {
				return err
			}
			cmd.Print(report)
			return nil
		},
	}
	rootCmd.AddCommand(diffCmd)
}
