package suite

import (
	"context"
	"fmt"

	"stackharness/internal/failure"
	"stackharness/internal/logger"
	"stackharness/internal/runner"
)

// DeselectedTest is a known-flaky or unsupported suite test excluded from
// every run. Each entry must say why it is excluded; deselection is a set
// filter, never a retry mechanism.
type DeselectedTest struct {
	ID     string
	Reason string
}

// Deselected is the explicit, growing denylist applied to every invocation.
var Deselected = []DeselectedTest{
	{
		ID:     "tests/integration/inference/test_text_inference.py::test_text_completion_log_probs",
		Reason: "log-probs are provider-specific and not exposed by the sidecar",
	},
	{
		ID:     "tests/integration/inference/test_vision_inference.py",
		Reason: "no vision-capable model in the default profiles",
	},
	{
		ID:     "tests/integration/safety/test_safety.py::test_unsafe_input_blocked",
		Reason: "flaky upstream; moderation model answers drift between releases",
	},
	{
		ID:     "tests/integration/agents/test_agents.py::test_multi_turn_tool_use",
		Reason: "depends on a tool-calling fix not yet in the pinned release",
	},
}

// Invocation builds and executes the test-runner command against the
// running stack.
type Invocation struct {
	Dir            string
	RunConfigPath  string
	InferenceModel string // fully qualified, {provider}/{model}
	EmbeddingModel string
	Runner         runner.CommandRunner
}

// Args constructs the full pytest argument list, including the fully
// qualified model identifiers and one --deselect per denylist entry.
func (iv *Invocation) Args() []string {
	args := []string{
		"tests/integration",
		"--stack-config", iv.RunConfigPath,
		"--inference-model", iv.InferenceModel,
		"--embedding-model", iv.EmbeddingModel,
		"-v",
	}
	for _, d := range Deselected {
		args = append(args, "--deselect", d.ID)
	}
	return args
}

// Execute runs the suite, streaming its output. A non-zero exit propagates
// as the run's failure; the caller decides whether to collect partial
// recordings before surfacing it.
func (iv *Invocation) Execute(ctx context.Context) error {
	logger.Info("Running integration suite",
		"inference_model", iv.InferenceModel,
		"embedding_model", iv.EmbeddingModel,
		"deselected", len(Deselected))

	if _, err := iv.Runner.Run(ctx, iv.Dir, "pytest", iv.Args()...); err != nil {
		return failure.Wrap(failure.CommandFailed, "suite.run",
			fmt.Errorf("integration suite failed: %w", err))
	}
	return nil
}
