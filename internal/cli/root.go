// Package cli provides the command-line interface for the stack harness.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stackharness/internal/config"
	"stackharness/internal/logger"
)

// App holds the flag state shared by all subcommands. Logging and mode go
// through viper so both the flag and the STACKHARNESS_* environment
// variable reach them; the remaining fields are plain flag overrides.
type App struct {
	// Overrides layered on top of the environment-derived configuration.
	EngineBin     string
	ImageRef      string
	ContainerName string
	RecordingsDir string
	WorkDir       string
	SuiteRepoURL  string
	SuiteDir      string
	RunConfigPath string
	BuildConfig   string
	DistroBin     string
}

// NewApp creates the CLI application.
func NewApp() *App {
	return &App{}
}

// CreateRootCommand creates and configures the root command.
func (app *App) CreateRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stackharness",
		Short: "Deployment and test harness for the inference-serving distribution",
		Long: `stackharness builds the distribution container image, starts it against a
local model-serving sidecar or a remote cloud inference API, runs the external
integration-test suite, collects response recordings, and posts the build
outcome to the configured webhooks.`,
	}

	rootCmd.PersistentFlags().String("log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to file instead of stderr")
	rootCmd.PersistentFlags().String("mode", "", "Inference mode (live|record|record-if-missing|replay)")
	rootCmd.PersistentFlags().StringVar(&app.EngineBin, "engine", "", "Container engine binary (docker|podman)")
	rootCmd.PersistentFlags().StringVar(&app.ImageRef, "image", "", "Image reference to build and run")
	rootCmd.PersistentFlags().StringVar(&app.ContainerName, "container-name", "", "Name of the stack container")
	rootCmd.PersistentFlags().StringVar(&app.RecordingsDir, "recordings-dir", "", "Persistent recordings destination")
	rootCmd.PersistentFlags().StringVar(&app.WorkDir, "work-dir", "", "Working recordings directory used during a run")
	rootCmd.PersistentFlags().StringVar(&app.SuiteRepoURL, "suite-repo", "", "Integration test suite repository URL")
	rootCmd.PersistentFlags().StringVar(&app.SuiteDir, "suite-dir", "", "Local checkout path for the test suite")
	rootCmd.PersistentFlags().StringVar(&app.RunConfigPath, "run-config", "", "Stack run configuration passed to the suite")
	rootCmd.PersistentFlags().StringVar(&app.BuildConfig, "build-config", "", "Build descriptor path")
	rootCmd.PersistentFlags().StringVar(&app.DistroBin, "distro-bin", "llama", "Distribution CLI used to resolve image dependencies")

	// Flags bound here are read back through viper, so STACKHARNESS_MODE
	// and friends work alongside the flags.
	viper.SetEnvPrefix("STACKHARNESS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-level flag: %v\n", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-file flag: %v\n", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("mode", rootCmd.PersistentFlags().Lookup("mode")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding mode flag: %v\n", err)
		os.Exit(1)
	}

	app.addRunCommand(rootCmd)
	app.addBuildCommand(rootCmd)
	app.addStackCommands(rootCmd)
	app.addNotifyCommand(rootCmd)
	app.addRecordingCommands(rootCmd)
	app.addVersionCommand(rootCmd)

	cobra.OnInitialize(func() {
		if err := logger.Configure(viper.GetString("log-level"), viper.GetString("log-file")); err != nil {
			fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
			os.Exit(1)
		}
	})

	return rootCmd
}

// loadConfig builds the immutable run configuration: .env, process
// environment, then CLI flag overrides.
func (app *App) loadConfig() (*config.Config, error) {
	config.LoadDotEnv()

	cfg, err := config.Load(os.Getenv)
	if err != nil {
		return nil, err
	}

	if raw := viper.GetString("mode"); raw != "" {
		mode, err := config.ParseRunMode(raw)
		if err != nil {
			return nil, err
		}
		cfg.Mode = mode
	}
	if app.EngineBin != "" {
		cfg.EngineBin = app.EngineBin
	}
	if app.ImageRef != "" {
		cfg.ImageRef = app.ImageRef
	}
	if app.ContainerName != "" {
		cfg.ContainerName = app.ContainerName
	}
	if app.RecordingsDir != "" {
		cfg.RecordingsDir = app.RecordingsDir
	}
	if app.WorkDir != "" {
		cfg.WorkDir = app.WorkDir
	}
	if app.SuiteRepoURL != "" {
		cfg.SuiteRepoURL = app.SuiteRepoURL
	}
	if app.SuiteDir != "" {
		cfg.SuiteDir = app.SuiteDir
	}
	if app.RunConfigPath != "" {
		cfg.RunConfigPath = app.RunConfigPath
	}
	if app.BuildConfig != "" {
		cfg.DescriptorPath = app.BuildConfig
	}

	return cfg, nil
}
