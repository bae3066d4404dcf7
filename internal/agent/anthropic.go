package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultMaxTokens  = 2048
	defaultMaxElapsed = 90 * time.Second
)

// DefaultModel is used when ClientConfig.Model is empty.
var DefaultModel = anthropic.ModelClaudeSonnet4_5_20250929

// messageCreator is the slice of the SDK the verifier uses.
type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// ClientConfig contains configuration for creating a new Client.
type ClientConfig struct {
	// Model is the Claude model to use. Empty selects DefaultModel.
	Model anthropic.Model
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// UseAWSBedrock routes requests through AWS Bedrock instead of the API.
	UseAWSBedrock bool
	AWSRegion     string
	AWSProfile    string
	MaxTokens     int64
	// MaxElapsed bounds the total retry time for one verification.
	MaxElapsed time.Duration
}

// Client verifies acceptance criteria with the Anthropic Messages API.
type Client struct {
	messages   messageCreator
	model      anthropic.Model
	maxTokens  int64
	newBackOff func() backoff.BackOff
	tokens     *TokenTracker
	debugLog   func(format string, args ...interface{})
}

// NewClient creates a criteria verifier. A missing API key returns an error
// wrapping ErrUnavailable.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY is not set", ErrUnavailable)
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	inner := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	if cfg.UseAWSBedrock {
		model = translateModelForBedrock(model)
	}

	c := newClient(&inner.Messages, model)
	if cfg.MaxTokens > 0 {
		c.maxTokens = cfg.MaxTokens
	}
	if cfg.MaxElapsed > 0 {
		maxElapsed := cfg.MaxElapsed
		c.newBackOff = func() backoff.BackOff { return exponential(maxElapsed) }
	}
	return c, nil
}

func newClient(messages messageCreator, model anthropic.Model) *Client {
	return &Client{
		messages:   messages,
		model:      model,
		maxTokens:  defaultMaxTokens,
		newBackOff: func() backoff.BackOff { return exponential(defaultMaxElapsed) },
		tokens:     NewTokenTracker(model),
		debugLog:   func(format string, args ...interface{}) {},
	}
}

func exponential(maxElapsed time.Duration) backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed
	return bo
}

// SetDebugLog sets the debug logging function.
func (c *Client) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		c.debugLog = fn
	}
}

// Model returns the configured model name.
func (c *Client) Model() anthropic.Model {
	return c.model
}

// Usage returns the tokens consumed by this client so far.
func (c *Client) Usage() TokenUsage {
	return c.tokens.Usage()
}

// Cost returns the estimated cost in USD of this client's requests.
func (c *Client) Cost() float64 {
	return c.tokens.Cost()
}

// translateModelForBedrock converts Anthropic model names to Bedrock
// cross-region inference profiles.
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaudeOpus4_5_20251101:   "us.anthropic.claude-opus-4-5-20251101-v1:0",
	}
	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}
	return model
}

// VerifyCriteria asks the model to assess each acceptance criterion.
// Transient API failures are retried with exponential backoff.
func (c *Client) VerifyCriteria(ctx context.Context, req Request) (*Response, error) {
	if len(req.Criteria) == 0 {
		return nil, fmt.Errorf("feature %s has no acceptance criteria", req.FeatureID)
	}

	prompt, err := RenderPrompt(req)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("github.com/ShayCichocki/gauntlet/agent").Start(ctx, "anthropic.messages.new")
	defer span.End()
	span.SetAttributes(
		attribute.String("gauntlet.ai.model", string(c.model)),
		attribute.String("gauntlet.feature", req.FeatureID),
		attribute.Int("gauntlet.criteria", len(req.Criteria)),
	)

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	attempts := 0
	var message *anthropic.Message
	err = backoff.Retry(func() error {
		attempts++
		m, callErr := c.messages.New(ctx, params)
		if callErr == nil {
			message = m
			return nil
		}
		if !isRetryable(callErr) {
			return backoff.Permanent(callErr)
		}
		c.debugLog("[agent] attempt %d for %s failed, retrying: %v", attempts, req.FeatureID, callErr)
		return callErr
	}, backoff.WithContext(c.newBackOff(), ctx))
	span.SetAttributes(attribute.Int("gauntlet.ai.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verification request failed")
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, errorText(err))
	}

	c.tokens.Add(message.Usage.InputTokens, message.Usage.OutputTokens)
	span.SetAttributes(
		attribute.Int64("gauntlet.ai.input_tokens", message.Usage.InputTokens),
		attribute.Int64("gauntlet.ai.output_tokens", message.Usage.OutputTokens),
	)

	text := extractText(message)
	resp, err := ParseResponse(text, req.Criteria)
	if err != nil {
		c.debugLog("[agent] unparseable response for %s: %q", req.FeatureID, text)
		return nil, fmt.Errorf("verify %s: %w", req.FeatureID, err)
	}
	return resp, nil
}

func extractText(msg *anthropic.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

// errorText formats SDK errors without touching request fields that may be
// unset.
func errorText(err error) string {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("anthropic API status %d", apiErr.StatusCode)
	}
	return err.Error()
}

// Verify Client implements CriteriaVerifier at compile time.
var _ CriteriaVerifier = (*Client)(nil)
