package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/ShayCichocki/gauntlet/pkg/models"
)

// maxDiffBytes bounds the diff embedded in the prompt.
const maxDiffBytes = 50000

const criteriaPromptTemplate = `You are verifying whether a code change satisfies a feature's acceptance criteria.

## Feature
{{.FeatureID}}{{if .Description}}: {{.Description}}{{end}}

## Acceptance Criteria
{{range $i, $c := .Criteria}}{{$i}}. {{$c}}
{{end}}
## Changed Files
{{range .ChangedFiles}}- {{.}}
{{else}}(none reported)
{{end}}{{if .CheckSummary}}
## Automated Checks
{{.CheckSummary}}
{{end}}
## Diff
{{if .Diff}}{{.Diff}}{{else}}(no diff available){{end}}

## Response Format

Respond with a single JSON object and nothing else:

{"verdict": "pass" | "fail" | "needs_review",
 "reasoning": "<one paragraph>",
 "criteria": [{"index": <criterion number>, "satisfied": true | false,
               "confidence": <0.0-1.0>, "evidence": "<file or line>",
               "reasoning": "<short>"}]}

Assess every criterion by its number. Use needs_review when the diff does not
show enough to decide. Do not mark a criterion satisfied without evidence.`

var criteriaPrompt = template.Must(template.New("criteria").Parse(criteriaPromptTemplate))

// RenderPrompt builds the verification prompt for req.
func RenderPrompt(req Request) (string, error) {
	if len(req.Diff) > maxDiffBytes {
		req.Diff = req.Diff[:maxDiffBytes] + "\n... (diff truncated)"
	}
	var buf bytes.Buffer
	if err := criteriaPrompt.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

type criterionPayload struct {
	Index      int     `json:"index"`
	Satisfied  bool    `json:"satisfied"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
	Reasoning  string  `json:"reasoning"`
}

type responsePayload struct {
	Verdict   string             `json:"verdict"`
	Reasoning string             `json:"reasoning"`
	Criteria  []criterionPayload `json:"criteria"`
}

// ParseResponse extracts the JSON object from the model's reply and maps it
// onto criteria. Criteria the model skipped are reported unsatisfied with
// zero confidence. A pass verdict is downgraded to needs_review when any
// criterion is unsatisfied; an unknown verdict is derived from the criteria.
func ParseResponse(text string, criteria []string) (*Response, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var payload responsePayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	assessed := make(map[int]criterionPayload, len(payload.Criteria))
	for _, c := range payload.Criteria {
		if c.Index < 0 || c.Index >= len(criteria) {
			continue
		}
		if _, dup := assessed[c.Index]; !dup {
			assessed[c.Index] = c
		}
	}

	results := make([]models.CriterionResult, len(criteria))
	allSatisfied := true
	for i, criterion := range criteria {
		r := models.CriterionResult{CriterionIndex: i, Criterion: criterion}
		if c, ok := assessed[i]; ok {
			r.Satisfied = c.Satisfied
			r.Confidence = clamp(c.Confidence)
			r.Evidence = c.Evidence
			r.Reasoning = c.Reasoning
		} else {
			r.Reasoning = "not assessed"
		}
		if !r.Satisfied {
			allSatisfied = false
		}
		results[i] = r
	}

	verdict := models.Verdict(strings.ToLower(strings.TrimSpace(payload.Verdict)))
	switch {
	case !verdict.Valid():
		verdict = DeriveVerdict(results)
	case verdict == models.VerdictPass && !allSatisfied:
		verdict = models.VerdictNeedsReview
	}

	return &Response{
		Verdict:         verdict,
		CriteriaResults: results,
		Reasoning:       payload.Reasoning,
	}, nil
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
