// Package notify formats the build-status message and delivers it to the
// configured webhook endpoints. One message per invocation; delivery to
// each endpoint is independent and at-least-once, with the first failure
// aborting the invocation.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"stackharness/internal/failure"
	"stackharness/internal/logger"
)

// Outcome is the reported build result.
type Outcome string

const (
	Success Outcome = "success"
	Failure Outcome = "failure"
)

// Webhook attachment colors matching the usual chat conventions.
const (
	colorSuccess = "#2eb886"
	colorFailure = "#a30200"
)

// Message is the status notification built once per invocation.
type Message struct {
	Outcome     Outcome
	CommitSHA   string
	WorkflowURL string
	ImageRef    string // required for success
	Timestamp   time.Time
}

// Validate checks the required inputs. The image reference is only needed
// when announcing a successful build.
func (m Message) Validate() error {
	if m.CommitSHA == "" {
		return failure.New(failure.ConfigMissing, "notify.message", "commit SHA is required")
	}
	if m.WorkflowURL == "" {
		return failure.New(failure.ConfigMissing, "notify.message", "workflow URL is required")
	}
	if m.Outcome == Success && m.ImageRef == "" {
		return failure.New(failure.ConfigMissing, "notify.message", "image reference is required for success")
	}
	return nil
}

// Text renders the Markdown section body for the message.
func (m Message) Text() string {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	var sb strings.Builder
	if m.Outcome == Success {
		sb.WriteString(":white_check_mark: *Distribution build succeeded*\n")
	} else {
		sb.WriteString(":x: *Distribution build failed*\n")
	}
	sb.WriteString(fmt.Sprintf("*Commit:* `%s`\n", shortSHA(m.CommitSHA)))
	if m.Outcome == Success {
		sb.WriteString(fmt.Sprintf("*Image:* `%s`\n", m.ImageRef))
	}
	sb.WriteString(fmt.Sprintf("*Time:* %s\n", ts.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("<%s|View workflow run>", m.WorkflowURL))
	return sb.String()
}

// Payload renders the webhook JSON body: an attachments array with one
// colored block of Markdown section text.
func (m Message) Payload() ([]byte, error) {
	color := colorFailure
	if m.Outcome == Success {
		color = colorSuccess
	}

	payload := map[string]interface{}{
		"attachments": []map[string]interface{}{
			{
				"color": color,
				"blocks": []map[string]interface{}{
					{
						"type": "section",
						"text": map[string]string{
							"type": "mrkdwn",
							"text": m.Text(),
						},
					},
				},
			},
		},
	}
	return json.Marshal(payload)
}

// ResolveEndpoints parses a comma-separated endpoint list, normalizing each
// token. An empty spec means notifications are disabled, which is not an
// error.
func ResolveEndpoints(spec string) ([]string, error) {
	if spec == "" {
		return nil, nil
	}

	var endpoints []string
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		endpoint, err := NormalizeEndpoint(token)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, endpoint)
	}
	return endpoints, nil
}

// NormalizeEndpoint turns shorthand tokens into full URLs. Bare webhook
// hosts get an https scheme; channel-style tokens are rejected because the
// harness cannot resolve them to a delivery URL.
func NormalizeEndpoint(token string) (string, error) {
	if strings.HasPrefix(token, "#") {
		return "", failure.New(failure.ConfigMissing, "notify.endpoint",
			"channel token %q is not a webhook URL", token)
	}
	if strings.HasPrefix(token, "http://") || strings.HasPrefix(token, "https://") {
		return token, nil
	}
	if strings.Contains(token, "/") {
		return "https://" + token, nil
	}
	return "", failure.New(failure.ConfigMissing, "notify.endpoint",
		"cannot interpret endpoint %q", token)
}

// Notifier posts messages to webhook endpoints.
type Notifier struct {
	Client *http.Client
}

// NewNotifier creates a Notifier with a sane delivery timeout.
func NewNotifier() *Notifier {
	return &Notifier{Client: &http.Client{Timeout: 10 * time.Second}}
}

// Send delivers the message to every endpoint in order. The first failed
// delivery aborts the invocation; earlier deliveries have already landed
// and stay visible.
func (n *Notifier) Send(ctx context.Context, m Message, endpoints []string) error {
	// Zero endpoints means notifications are disabled; succeed before
	// validating so a local run without CI metadata still exits clean.
	if len(endpoints) == 0 {
		logger.Info("No webhook endpoints configured; notifications disabled")
		return nil
	}
	if err := m.Validate(); err != nil {
		return err
	}

	body, err := m.Payload()
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	for _, endpoint := range endpoints {
		if err := n.post(ctx, endpoint, body); err != nil {
			return failure.Wrap(failure.DeliveryFailed, "notify.send",
				fmt.Errorf("delivering to %s: %w", endpoint, err))
		}
		logger.Info("Notification delivered", "endpoint", endpoint, "outcome", string(m.Outcome))
	}
	return nil
}

// post performs a single delivery attempt. There is no retry.
func (n *Notifier) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %s", resp.Status)
	}
	return nil
}

// Preview renders the message for local validation without sending.
func Preview(m Message) string {
	return fmt.Sprintf("--- %s notification preview ---\n%s\n", m.Outcome, m.Text())
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
