package agent

import (
	"math"
	"sync"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestTokenTrackerAdd(t *testing.T) {
	tracker := NewTokenTracker(anthropic.ModelClaudeSonnet4_5_20250929)

	tracker.Add(100, 50)
	tracker.Add(200, 100)

	usage := tracker.Usage()
	if usage.InputTokens != 300 {
		t.Errorf("InputTokens = %d, want 300", usage.InputTokens)
	}
	if usage.OutputTokens != 150 {
		t.Errorf("OutputTokens = %d, want 150", usage.OutputTokens)
	}
	if usage.TotalTokens() != 450 {
		t.Errorf("TotalTokens = %d, want 450", usage.TotalTokens())
	}
	if usage.Requests != 2 {
		t.Errorf("Requests = %d, want 2", usage.Requests)
	}
}

func TestTokenTrackerCost(t *testing.T) {
	tracker := NewTokenTracker(anthropic.ModelClaudeSonnet4_5_20250929)
	tracker.Add(1_000_000, 100_000)

	// 1M input * $3 + 0.1M output * $15
	want := 3.0 + 1.5
	if got := tracker.Cost(); math.Abs(got-want) > 1e-9 {
		t.Errorf("Cost = %f, want %f", got, want)
	}
}

func TestTokenTrackerCost_Bedrock(t *testing.T) {
	tracker := NewTokenTracker(translateModelForBedrock(anthropic.ModelClaudeSonnet4_5_20250929))
	tracker.Add(1_000_000, 0)

	if got := tracker.Cost(); math.Abs(got-3.0) > 1e-9 {
		t.Errorf("Cost = %f, want 3.0", got)
	}
}

func TestTokenTrackerCost_UnknownModel(t *testing.T) {
	tracker := NewTokenTracker("some-future-model")
	tracker.Add(1000, 1000)

	if got := tracker.Cost(); got != 0 {
		t.Errorf("Cost = %f, want 0 for unknown model", got)
	}

	tracker.SetPricing(ModelPricing{InputPerMillion: 1, OutputPerMillion: 2})
	if got := tracker.Cost(); math.Abs(got-0.003) > 1e-9 {
		t.Errorf("Cost with custom pricing = %f, want 0.003", got)
	}
}

func TestTokenTrackerConcurrent(t *testing.T) {
	tracker := NewTokenTracker(anthropic.ModelClaudeHaiku4_5_20251001)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Add(10, 5)
		}()
	}
	wg.Wait()

	usage := tracker.Usage()
	if usage.InputTokens != 500 || usage.OutputTokens != 250 || usage.Requests != 50 {
		t.Errorf("unexpected usage after concurrent adds: %+v", usage)
	}
}
