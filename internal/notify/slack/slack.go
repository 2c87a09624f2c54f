// Package slack sends pipeline run notifications to Slack via incoming
// webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/demoscrub/internal/cleanse"
)

const (
	maxErrorLen = 1000
	httpTimeout = 10 * time.Second
)

// Notifier sends completed run summaries to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Send posts a run summary to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, run *cleanse.Run) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(run)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(run *cleanse.Run) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(run),
			{"type": "divider"},
			fieldsBlock(run),
			{"type": "divider"},
			detailBlock(run),
			{"type": "divider"},
			contextBlock(run),
		},
	}
}

func headerBlock(run *cleanse.Run) map[string]any {
	title := "Cleanse Run Complete"
	if run.Status == cleanse.RunFailed {
		title = "Cleanse Run Failed"
	}
	text := fmt.Sprintf("%s %s", statusEmoji(run), title)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(run *cleanse.Run) map[string]any {
	total, auto, review := 0, 0, 0
	high, medium, low := 0, 0, 0
	if s := run.Summary; s != nil {
		total, auto, review = s.TotalRecords, s.AutoAccepted, s.NeedsReview
		high, medium, low = s.High, s.Medium, s.Low
	}

	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Status:* %s", run.Status),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Duration:* %.1fs", run.Duration),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Records:* %d", total),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Auto-accepted:* %d", auto),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Needs review:* %d", review),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Confidence:* %d high / %d medium / %d low", high, medium, low),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func detailBlock(run *cleanse.Run) map[string]any {
	var text string
	switch {
	case run.Error != "":
		text = fmt.Sprintf("*Error*\n\n%s", truncate(run.Error, maxErrorLen))
	case run.Summary != nil:
		s := run.Summary
		text = fmt.Sprintf("*Field breakdown*\n\nsex: %d pass-through / %d AI-assisted\nrace: %d pass-through / %d AI-assisted\nage: %d pass-through / %d AI-assisted",
			s.Sex.Passthrough, s.Sex.AIAssisted,
			s.Race.Passthrough, s.Race.AIAssisted,
			s.Age.Passthrough, s.Age.AIAssisted,
		)
	default:
		text = "_No summary available._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": text,
		},
	}
}

func contextBlock(run *cleanse.Run) map[string]any {
	ts := run.CreatedAt
	if run.CompletedAt != nil {
		ts = *run.CompletedAt
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("demoscrub • run %s • %s", run.ID, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func statusEmoji(run *cleanse.Run) string {
	if run.Status == cleanse.RunFailed {
		return "\U0001f534" // red circle
	}
	if s := run.Summary; s != nil && s.NeedsReview > 0 {
		return "\U0001f7e1" // yellow circle
	}
	return "\U0001f7e2" // green circle
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
