package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/gauntlet/pkg/models"
)

type fakeMessages struct {
	replies []string
	errs    []error
	calls   int
	prompts []string
}

func (f *fakeMessages) New(_ context.Context, body anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	i := f.calls
	f.calls++
	if len(body.Messages) > 0 && len(body.Messages[0].Content) > 0 && body.Messages[0].Content[0].OfText != nil {
		f.prompts = append(f.prompts, body.Messages[0].Content[0].OfText.Text)
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	reply := ""
	if i < len(f.replies) {
		reply = f.replies[i]
	}
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{{Type: "text", Text: reply}},
		Usage:   anthropic.Usage{InputTokens: 1200, OutputTokens: 300},
	}, nil
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func testClient(f *fakeMessages) *Client {
	c := newClient(f, "test-model")
	c.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
	}
	return c
}

var loginCriteria = []string{"User can log in with email", "Invalid password shows an error"}

func TestVerifyCriteria_Pass(t *testing.T) {
	f := &fakeMessages{replies: []string{`Here you go:
{"verdict":"pass","reasoning":"both covered","criteria":[
 {"index":0,"satisfied":true,"confidence":0.9,"evidence":"src/auth/login.ts"},
 {"index":1,"satisfied":true,"confidence":0.8,"evidence":"src/auth/errors.ts"}]}`}}

	resp, err := testClient(f).VerifyCriteria(context.Background(), Request{
		FeatureID:    "auth.login",
		Criteria:     loginCriteria,
		ChangedFiles: []string{"src/auth/login.ts"},
		Diff:         "+login()",
	})

	require.NoError(t, err)
	assert.Equal(t, models.VerdictPass, resp.Verdict)
	require.Len(t, resp.CriteriaResults, 2)
	assert.Equal(t, "Invalid password shows an error", resp.CriteriaResults[1].Criterion)
	assert.Equal(t, 1, f.calls)
	require.Len(t, f.prompts, 1)
	assert.Contains(t, f.prompts[0], "0. User can log in with email")
	assert.Contains(t, f.prompts[0], "- src/auth/login.ts")
}

func TestVerifyCriteria_TracksUsage(t *testing.T) {
	f := &fakeMessages{replies: []string{
		`{"verdict":"pass","criteria":[{"index":0,"satisfied":true,"confidence":0.9}]}`,
		`{"verdict":"pass","criteria":[{"index":0,"satisfied":true,"confidence":0.9}]}`,
	}}
	c := testClient(f)

	for i := 0; i < 2; i++ {
		_, err := c.VerifyCriteria(context.Background(), Request{FeatureID: "a", Criteria: []string{"x"}})
		require.NoError(t, err)
	}

	usage := c.Usage()
	assert.Equal(t, int64(2400), usage.InputTokens)
	assert.Equal(t, int64(600), usage.OutputTokens)
	assert.Equal(t, 2, usage.Requests)
	assert.Zero(t, c.Cost(), "test-model has no pricing")
}

func TestVerifyCriteria_RetriesTransientErrors(t *testing.T) {
	f := &fakeMessages{
		errs:    []error{timeoutErr{}, timeoutErr{}},
		replies: []string{"", "", `{"verdict":"fail","criteria":[{"index":0,"satisfied":false,"confidence":0.9}]}`},
	}

	resp, err := testClient(f).VerifyCriteria(context.Background(), Request{FeatureID: "a", Criteria: []string{"x"}})

	require.NoError(t, err)
	assert.Equal(t, models.VerdictFail, resp.Verdict)
	assert.Equal(t, 3, f.calls)
}

func TestVerifyCriteria_PermanentErrorIsUnavailable(t *testing.T) {
	f := &fakeMessages{errs: []error{errors.New("bad request")}}

	_, err := testClient(f).VerifyCriteria(context.Background(), Request{FeatureID: "a", Criteria: []string{"x"}})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, f.calls)
}

func TestVerifyCriteria_NoCriteria(t *testing.T) {
	f := &fakeMessages{}
	_, err := testClient(f).VerifyCriteria(context.Background(), Request{FeatureID: "a"})
	require.Error(t, err)
	assert.Equal(t, 0, f.calls)
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewClient(context.Background(), ClientConfig{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.Verdict
	}{
		{"pass downgraded when criterion missing", `{"verdict":"pass","criteria":[{"index":0,"satisfied":true,"confidence":1}]}`, models.VerdictNeedsReview},
		{"unknown verdict derived as fail", `{"verdict":"maybe","criteria":[{"index":0,"satisfied":true,"confidence":1},{"index":1,"satisfied":false,"confidence":0.95}]}`, models.VerdictFail},
		{"unknown verdict derived as pass", `{"criteria":[{"index":0,"satisfied":true,"confidence":0.7},{"index":1,"satisfied":true,"confidence":0.6}]}`, models.VerdictPass},
		{"needs review kept", `{"verdict":"NEEDS_REVIEW","criteria":[]}`, models.VerdictNeedsReview},
		{"out of range index ignored", `{"verdict":"fail","criteria":[{"index":7,"satisfied":false,"confidence":1}]}`, models.VerdictFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseResponse(tt.text, loginCriteria)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Verdict)
			assert.Len(t, resp.CriteriaResults, len(loginCriteria))
		})
	}
}

func TestParseResponse_Errors(t *testing.T) {
	_, err := ParseResponse("I think it passes.", loginCriteria)
	assert.Error(t, err)

	_, err = ParseResponse("{not json}", loginCriteria)
	assert.Error(t, err)
}

func TestParseResponse_MissingCriterionMarked(t *testing.T) {
	resp, err := ParseResponse(`{"verdict":"fail","criteria":[{"index":1,"satisfied":false,"confidence":2}]}`, loginCriteria)
	require.NoError(t, err)
	assert.Equal(t, "not assessed", resp.CriteriaResults[0].Reasoning)
	assert.Equal(t, 1.0, resp.CriteriaResults[1].Confidence)
}

func TestDeriveVerdict(t *testing.T) {
	assert.Equal(t, models.VerdictNeedsReview, DeriveVerdict(nil))
	assert.Equal(t, models.VerdictNeedsReview, DeriveVerdict([]models.CriterionResult{{Satisfied: true, Confidence: 0.2}}))
	assert.Equal(t, models.VerdictNeedsReview, DeriveVerdict([]models.CriterionResult{{Satisfied: false, Confidence: 0.5}}))
	assert.Equal(t, models.VerdictFail, DeriveVerdict([]models.CriterionResult{{Satisfied: true, Confidence: 1}, {Satisfied: false, Confidence: 0.8}}))
	assert.Equal(t, models.VerdictPass, DeriveVerdict([]models.CriterionResult{{Satisfied: true, Confidence: 0.5}}))
}

func TestRenderPrompt_TruncatesDiff(t *testing.T) {
	prompt, err := RenderPrompt(Request{FeatureID: "a", Criteria: []string{"x"}, Diff: strings.Repeat("x", maxDiffBytes+10)})
	require.NoError(t, err)
	assert.Contains(t, prompt, "(diff truncated)")
	assert.Contains(t, prompt, "(none reported)")
}

func TestTranslateModelForBedrock(t *testing.T) {
	assert.Equal(t, anthropic.Model("us.anthropic.claude-sonnet-4-5-20250929-v1:0"), translateModelForBedrock(anthropic.ModelClaudeSonnet4_5_20250929))
	assert.Equal(t, anthropic.Model("custom"), translateModelForBedrock("custom"))
}
