// Package smoke runs minimal post-startup checks against the stack's
// OpenAI-compatible surface before the full suite is unleashed: the
// resolved model must be served, and one chat completion must answer.
package smoke

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"stackharness/internal/failure"
	"stackharness/internal/logger"
)

// Checker issues smoke requests against a running stack.
type Checker struct {
	client openai.Client
}

// NewChecker creates a checker for the stack at baseURL (".../v1"). The
// stack does not authenticate, but the client requires a key to be set.
func NewChecker(baseURL string) *Checker {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey("unused"),
	)
	return &Checker{client: client}
}

// ModelServed verifies the qualified model id appears in the stack's model
// list.
func (c *Checker) ModelServed(ctx context.Context, modelID string) error {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return failure.Wrap(failure.CommandFailed, "smoke.models",
			fmt.Errorf("listing models: %w", err))
	}

	var served []string
	for _, model := range page.Data {
		if model.ID == modelID {
			logger.Info("Smoke check passed", "check", "models", "model", modelID)
			return nil
		}
		served = append(served, model.ID)
	}

	return failure.New(failure.CommandFailed, "smoke.models",
		"model %q not served (available: %s)", modelID, strings.Join(served, ", "))
}

// ChatRoundTrip sends one user message and asserts the answer contains the
// expected substring, case-insensitively.
func (c *Checker) ChatRoundTrip(ctx context.Context, modelID, prompt, expect string) error {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(modelID),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return failure.Wrap(failure.CommandFailed, "smoke.chat",
			fmt.Errorf("chat completion: %w", err))
	}
	if len(completion.Choices) == 0 {
		return failure.New(failure.CommandFailed, "smoke.chat", "completion returned no choices")
	}

	answer := completion.Choices[0].Message.Content
	if !strings.Contains(strings.ToLower(answer), strings.ToLower(expect)) {
		return failure.New(failure.CommandFailed, "smoke.chat",
			"answer %q does not contain %q", answer, expect)
	}

	logger.Info("Smoke check passed", "check", "chat", "model", modelID)
	return nil
}

// Verify runs both checks with the default prompt.
func (c *Checker) Verify(ctx context.Context, modelID string) error {
	if err := c.ModelServed(ctx, modelID); err != nil {
		return err
	}
	return c.ChatRoundTrip(ctx, modelID, "What is the capital of France? Answer with one word.", "paris")
}
