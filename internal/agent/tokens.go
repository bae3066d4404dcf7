package agent

import (
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
)

// ModelPricing contains pricing per 1M tokens for a model.
type ModelPricing struct {
	InputPerMillion  float64 // Cost per 1M input tokens
	OutputPerMillion float64 // Cost per 1M output tokens
}

// DefaultModelPricing contains pricing for known Claude models. Bedrock
// inference profiles are priced like the model they wrap.
var DefaultModelPricing = map[anthropic.Model]ModelPricing{
	anthropic.ModelClaudeOpus4_5_20251101:   {InputPerMillion: 5.00, OutputPerMillion: 25.00},
	anthropic.ModelClaudeOpus4_1_20250805:   {InputPerMillion: 15.00, OutputPerMillion: 75.00},
	anthropic.ModelClaudeSonnet4_5_20250929: {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	anthropic.ModelClaudeSonnet4_20250514:   {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	anthropic.ModelClaudeHaiku4_5_20251001:  {InputPerMillion: 1.00, OutputPerMillion: 5.00},
}

// TokenUsage is the token count of one or more verification requests.
type TokenUsage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
	Requests     int   `json:"requests"`
}

// TotalTokens returns InputTokens + OutputTokens.
func (u TokenUsage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// TokenTracker accumulates usage across requests made by one Client.
// It is safe for concurrent use.
type TokenTracker struct {
	mu      sync.RWMutex
	model   anthropic.Model
	pricing *ModelPricing
	usage   TokenUsage
}

// NewTokenTracker creates a tracker that prices usage for model.
func NewTokenTracker(model anthropic.Model) *TokenTracker {
	return &TokenTracker{model: model}
}

// Add records the usage of one request.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.usage.InputTokens += input
	t.usage.OutputTokens += output
	t.usage.Requests++
}

// Usage returns the accumulated usage.
func (t *TokenTracker) Usage() TokenUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.usage
}

// SetPricing overrides the default pricing for the tracker's model.
func (t *TokenTracker) SetPricing(pricing ModelPricing) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pricing = &pricing
}

// Cost returns the estimated cost in USD, or 0 for unknown models.
func (t *TokenTracker) Cost() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	pricing := t.pricing
	if pricing == nil {
		p, ok := DefaultModelPricing[untranslateBedrockModel(t.model)]
		if !ok {
			return 0
		}
		pricing = &p
	}

	inputCost := float64(t.usage.InputTokens) / 1_000_000 * pricing.InputPerMillion
	outputCost := float64(t.usage.OutputTokens) / 1_000_000 * pricing.OutputPerMillion
	return inputCost + outputCost
}

// untranslateBedrockModel maps a Bedrock inference profile back to the
// Anthropic model name.
func untranslateBedrockModel(model anthropic.Model) anthropic.Model {
	for m := range DefaultModelPricing {
		if translateModelForBedrock(m) == model {
			return m
		}
	}
	return model
}
