// Package claude implements the llm.Provider interface on top of the
// Anthropic Messages API.
package claude

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/linnemanlabs/demoscrub/internal/llm/claude")

// ResponseTokens caps the completion size. Cleansing answers are a single
// label or a small integer, so this stays tiny to keep cost down.
const ResponseTokens = 64

const classifySystemPrompt = `You are a data cleansing assistant. You map a raw free-text value onto exactly one label from a fixed list. Respond with the label only: no punctuation, no explanation.`

const extractSystemPrompt = `You are a data cleansing assistant. You extract a normalized value from raw free-text input. Respond with the value only: no punctuation, no explanation.`

// Client implements llm.Provider for the Claude API. Each Client is bound
// to one model so that different fields can run on different model tiers.
type Client struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
}

// New creates a Claude-backed provider for the given model. timeout bounds
// each request; zero means the SDK default.
func New(apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		timeout: timeout,
	}
}

// Model returns the model this client sends requests to.
func (c *Client) Model() string { return c.model }

// Classify asks the model to pick one of labels for value. Responses
// outside the candidate set are coerced to fallback, never returned as-is.
func (c *Client) Classify(ctx context.Context, value string, labels []string, fallback string) (string, error) {
	prompt := fmt.Sprintf("Candidate labels:\n%s\n\nRaw value: %q\n\nAnswer with exactly one candidate label.",
		strings.Join(labels, "\n"), value)

	out, err := c.complete(ctx, "classify", classifySystemPrompt, prompt)
	if err != nil {
		return "", err
	}

	return coerceLabel(out, labels, fallback), nil
}

// coerceLabel maps a model response onto the candidate set, case
// insensitively. Out-of-set responses become fallback, never leak through.
func coerceLabel(out string, labels []string, fallback string) string {
	for _, l := range labels {
		if strings.EqualFold(out, l) {
			return l
		}
	}
	return fallback
}

// ExtractNumber runs the open-ended extraction instruction against value
// and returns the model's raw answer, trimmed. Callers parse and validate.
func (c *Client) ExtractNumber(ctx context.Context, value, instruction string) (string, error) {
	prompt := fmt.Sprintf("%s\n\nRaw value: %q", instruction, value)

	return c.complete(ctx, "extract_number", extractSystemPrompt, prompt)
}

func (c *Client) complete(ctx context.Context, op, system, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "claude."+op, trace.WithAttributes(
		attribute.String("gen_ai.request.model", c.model),
		attribute.String("gen_ai.operation.name", op),
	))
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   ResponseTokens,
		Temperature: anthropic.Float(0),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("claude %s: %w", op, err)
	}

	span.SetAttributes(
		attribute.Int64("gen_ai.usage.input_tokens", msg.Usage.InputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", msg.Usage.OutputTokens),
	)

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
