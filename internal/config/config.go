// Package config builds the immutable harness configuration once at startup.
// Every stage receives the same Config value; nothing reads the process
// environment after Load returns.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"stackharness/internal/failure"
)

// RunMode selects how the harness treats inference recordings.
type RunMode string

const (
	// ModeLive runs against the real provider without touching recordings.
	ModeLive RunMode = "live"
	// ModeRecord captures fresh recordings and replaces the persisted set.
	ModeRecord RunMode = "record"
	// ModeRecordIfMissing records only requests without a persisted recording.
	ModeRecordIfMissing RunMode = "record-if-missing"
	// ModeReplay serves every inference call from the persisted recordings.
	ModeReplay RunMode = "replay"
)

// ParseRunMode validates a mode string. Unknown values are a configuration
// error, caught at startup rather than mid-pipeline.
func ParseRunMode(s string) (RunMode, error) {
	switch RunMode(s) {
	case ModeLive, ModeRecord, ModeRecordIfMissing, ModeReplay:
		return RunMode(s), nil
	case "":
		return ModeLive, nil
	default:
		return "", failure.New(failure.ConfigMissing, "config.mode",
			"unknown inference mode %q (want live|record|record-if-missing|replay)", s)
	}
}

// RecordingCapable reports whether the mode produces recordings to collect.
func (m RunMode) RecordingCapable() bool {
	return m == ModeRecord || m == ModeRecordIfMissing
}

// Default configuration values.
const (
	DefaultEngineBin      = "docker"
	DefaultImageRef       = "stack-distribution:latest"
	DefaultContainerName  = "stack-distribution-test"
	DefaultHostPort       = 8321
	DefaultHealthAttempts = 60
	DefaultHealthInterval = time.Second
	DefaultRecordingsDir  = "tests/integration/recordings"
	DefaultWorkDir        = ".stackharness/recordings-work"
	DefaultSuiteRepoURL   = "https://github.com/llamastack/llama-stack.git"
	DefaultSuiteDir       = ".stackharness/llama-stack"
	DefaultRunConfigPath  = "distribution/run.yaml"
	DefaultDescriptorPath = "distribution/build.yaml"
)

// Config is the immutable harness configuration. It is constructed once by
// Load and optionally overridden by CLI flags before the pipeline starts.
type Config struct {
	// Container engine
	EngineBin      string
	ImageRef       string
	ContainerName  string
	HostPort       int
	HealthAttempts int
	HealthInterval time.Duration

	// Recordings
	Mode          RunMode
	RecordingsDir string
	WorkDir       string

	// External test suite
	SuiteRepoURL  string
	SuiteDir      string
	RunConfigPath string

	// Build descriptor
	DescriptorPath string

	// Notification inputs
	WebhookURLs      string // comma-separated list, preferred
	LegacyWebhookURL string
	CommitSHA        string
	WorkflowURL      string
}

// LoadDotEnv loads a .env file into the process environment when present.
// A missing file is not an error; local runs keep secrets out of the shell.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Load builds the configuration from an environment lookup function.
// Tests pass a map-backed lookup; production passes os.Getenv.
func Load(getenv func(string) string) (*Config, error) {
	mode, err := ParseRunMode(getenv("INFERENCE_MODE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		EngineBin:        orDefault(getenv("CONTAINER_ENGINE"), DefaultEngineBin),
		ImageRef:         orDefault(getenv("IMAGE_REF"), DefaultImageRef),
		ContainerName:    orDefault(getenv("CONTAINER_NAME"), DefaultContainerName),
		HostPort:         DefaultHostPort,
		HealthAttempts:   DefaultHealthAttempts,
		HealthInterval:   DefaultHealthInterval,
		Mode:             mode,
		RecordingsDir:    orDefault(getenv("RECORDINGS_DIR"), DefaultRecordingsDir),
		WorkDir:          orDefault(getenv("STACKHARNESS_WORK_DIR"), DefaultWorkDir),
		SuiteRepoURL:     orDefault(getenv("SUITE_REPO_URL"), DefaultSuiteRepoURL),
		SuiteDir:         orDefault(getenv("SUITE_DIR"), DefaultSuiteDir),
		RunConfigPath:    orDefault(getenv("RUN_CONFIG_PATH"), DefaultRunConfigPath),
		DescriptorPath:   orDefault(getenv("BUILD_CONFIG_PATH"), DefaultDescriptorPath),
		WebhookURLs:      getenv("WEBHOOK_URLS"),
		LegacyWebhookURL: getenv("WEBHOOK_URL"),
		CommitSHA:        orDefault(getenv("COMMIT_SHA"), getenv("GITHUB_SHA")),
		WorkflowURL:      orDefault(getenv("WORKFLOW_URL"), githubRunURL(getenv)),
	}

	if port := getenv("HOST_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 {
			return nil, failure.New(failure.ConfigMissing, "config.port", "invalid HOST_PORT %q", port)
		}
		cfg.HostPort = p
	}

	return cfg, nil
}

// BaseURL returns the stack's API base URL on the host side.
func (c *Config) BaseURL() string {
	return fmt.Sprintf("http://localhost:%d/v1", c.HostPort)
}

// HealthURL returns the health endpoint probed during startup.
func (c *Config) HealthURL() string {
	return c.BaseURL() + "/health"
}

// WebhookSpec returns the raw endpoint list for notifications, preferring
// the WEBHOOK_URLS list over the single legacy WEBHOOK_URL.
func (c *Config) WebhookSpec() string {
	if c.WebhookURLs != "" {
		return c.WebhookURLs
	}
	return c.LegacyWebhookURL
}

// githubRunURL reconstructs the workflow run URL from the variables GitHub
// Actions injects, so CI jobs need no extra configuration.
func githubRunURL(getenv func(string) string) string {
	server := getenv("GITHUB_SERVER_URL")
	repo := getenv("GITHUB_REPOSITORY")
	runID := getenv("GITHUB_RUN_ID")
	if server == "" || repo == "" || runID == "" {
		return ""
	}
	return strings.TrimSuffix(server, "/") + "/" + repo + "/actions/runs/" + runID
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
