package container

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stackharness/internal/failure"
)

// HealthyBody is the exact response body that marks the stack as ready.
const HealthyBody = `{"status":"OK"}`

// Probe checks readiness once and returns the response body.
type Probe interface {
	Check(ctx context.Context) (string, error)
}

// HTTPProbe probes an HTTP health endpoint.
type HTTPProbe struct {
	URL    string
	Client *http.Client
}

// NewHTTPProbe creates a probe for the given health URL.
func NewHTTPProbe(url string) *HTTPProbe {
	return &HTTPProbe{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Check performs one GET against the health endpoint.
func (p *HTTPProbe) Check(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return string(body), fmt.Errorf("health endpoint returned %s", resp.Status)
	}
	return strings.TrimSpace(string(body)), nil
}

// PollConfig bounds the readiness wait. This is the system's only timeout
// mechanism; exhausting the budget is fatal for the run.
type PollConfig struct {
	Attempts int
	Interval time.Duration
}

// Sleeper is injected so tests advance the poll loop without real waits.
type Sleeper func(time.Duration)

// WaitHealthy polls the probe until it returns the exact healthy body, the
// attempt budget is exhausted, or the context is canceled. It makes at most
// cfg.Attempts probes and returns immediately on the first healthy response.
func WaitHealthy(ctx context.Context, probe Probe, cfg PollConfig, sleep Sleeper) error {
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastBody string
	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return failure.Wrap(failure.ReadinessTimeout, "container.health", err)
		}

		body, err := probe.Check(ctx)
		if err == nil && body == HealthyBody {
			return nil
		}
		lastBody, lastErr = body, err

		if attempt < cfg.Attempts {
			sleep(cfg.Interval)
		}
	}

	return failure.New(failure.ReadinessTimeout, "container.health",
		"not healthy after %d attempts (last body %q, last error %v)",
		cfg.Attempts, lastBody, lastErr)
}

// EnsureHealthy waits for readiness and, on timeout, dumps the container
// logs and removes the container before returning the error.
func (e *Engine) EnsureHealthy(ctx context.Context, handle *Handle, probe Probe, cfg PollConfig) error {
	e.log.Info("Waiting for stack to become healthy", "container", handle.Name, "attempts", cfg.Attempts)

	if err := WaitHealthy(ctx, probe, cfg, nil); err != nil {
		handle.Status = StatusFailed
		e.DumpLogs(ctx, handle)
		e.Teardown(ctx, handle)
		return err
	}

	handle.Status = StatusHealthy
	e.log.Info("Stack is healthy", "container", handle.Name)
	return nil
}
