package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackharness/internal/failure"
)

func envLookup(env map[string]string) func(string) string {
	return func(key string) string { return env[key] }
}

func TestParseRunMode(t *testing.T) {
	tests := []struct {
		input    string
		expected RunMode
		wantErr  bool
	}{
		{"live", ModeLive, false},
		{"record", ModeRecord, false},
		{"record-if-missing", ModeRecordIfMissing, false},
		{"replay", ModeReplay, false},
		{"", ModeLive, false},
		{"RECORD", "", true},
		{"cached", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mode, err := ParseRunMode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, failure.IsKind(err, failure.ConfigMissing))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, mode)
		})
	}
}

func TestRunMode_RecordingCapable(t *testing.T) {
	assert.True(t, ModeRecord.RecordingCapable())
	assert.True(t, ModeRecordIfMissing.RecordingCapable())
	assert.False(t, ModeLive.RecordingCapable())
	assert.False(t, ModeReplay.RecordingCapable())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(envLookup(nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultEngineBin, cfg.EngineBin)
	assert.Equal(t, DefaultImageRef, cfg.ImageRef)
	assert.Equal(t, DefaultContainerName, cfg.ContainerName)
	assert.Equal(t, DefaultHostPort, cfg.HostPort)
	assert.Equal(t, DefaultHealthAttempts, cfg.HealthAttempts)
	assert.Equal(t, time.Second, cfg.HealthInterval)
	assert.Equal(t, ModeLive, cfg.Mode)
	assert.Equal(t, DefaultRecordingsDir, cfg.RecordingsDir)
	assert.Equal(t, DefaultSuiteRepoURL, cfg.SuiteRepoURL)
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(envLookup(map[string]string{
		"CONTAINER_ENGINE": "podman",
		"INFERENCE_MODE":   "record",
		"HOST_PORT":        "9000",
		"RECORDINGS_DIR":   "/srv/recordings",
		"WEBHOOK_URLS":     "https://a.example/hook,https://b.example/hook",
	}))
	require.NoError(t, err)

	assert.Equal(t, "podman", cfg.EngineBin)
	assert.Equal(t, ModeRecord, cfg.Mode)
	assert.Equal(t, 9000, cfg.HostPort)
	assert.Equal(t, "/srv/recordings", cfg.RecordingsDir)
	assert.Equal(t, "https://a.example/hook,https://b.example/hook", cfg.WebhookURLs)
	assert.Equal(t, "http://localhost:9000/v1/health", cfg.HealthURL())
}

func TestConfig_WebhookSpec(t *testing.T) {
	cfg, err := Load(envLookup(map[string]string{
		"WEBHOOK_URLS": "https://new.example/hook",
		"WEBHOOK_URL":  "https://legacy.example/hook",
	}))
	require.NoError(t, err)
	assert.Equal(t, "https://new.example/hook", cfg.WebhookSpec(), "list wins over legacy")

	cfg, err = Load(envLookup(map[string]string{
		"WEBHOOK_URL": "https://legacy.example/hook",
	}))
	require.NoError(t, err)
	assert.Equal(t, "https://legacy.example/hook", cfg.WebhookSpec())

	cfg, err = Load(envLookup(nil))
	require.NoError(t, err)
	assert.Empty(t, cfg.WebhookSpec())
}

func TestLoad_InvalidMode(t *testing.T) {
	_, err := Load(envLookup(map[string]string{"INFERENCE_MODE": "sometimes"}))
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.ConfigMissing))
}

func TestLoad_InvalidPort(t *testing.T) {
	_, err := Load(envLookup(map[string]string{"HOST_PORT": "not-a-port"}))
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.ConfigMissing))
}

func TestLoad_GitHubRunURL(t *testing.T) {
	cfg, err := Load(envLookup(map[string]string{
		"GITHUB_SERVER_URL": "https://github.com",
		"GITHUB_REPOSITORY": "acme/stack-ops",
		"GITHUB_RUN_ID":     "12345",
		"GITHUB_SHA":        "deadbeef",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/acme/stack-ops/actions/runs/12345", cfg.WorkflowURL)
	assert.Equal(t, "deadbeef", cfg.CommitSHA)
}

func TestLoad_ExplicitWorkflowURLWins(t *testing.T) {
	cfg, err := Load(envLookup(map[string]string{
		"WORKFLOW_URL":      "https://ci.example/run/7",
		"GITHUB_SERVER_URL": "https://github.com",
		"GITHUB_REPOSITORY": "acme/stack-ops",
		"GITHUB_RUN_ID":     "12345",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://ci.example/run/7", cfg.WorkflowURL)
}
