// Package feedback generates the end-of-interview feedback report.
//
// The report is a single LLM review of the full transcript: an overall score,
// a short summary, concrete pros and cons, and detailed advice. It is
// serialized to JSON and persisted on the session as feedback_markdown so the
// result can be served without re-running the model.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxhire/voxhire/internal/llmjson"
	"github.com/voxhire/voxhire/pkg/provider/llm"
	"github.com/voxhire/voxhire/pkg/types"
)

const reviewPrompt = `You are an expert interviewer. Review this transcript and provide feedback.

Transcript:
%s
%s
CRITICAL INSTRUCTION:
- If candidate did not speak or responses are meaningless, return score 0.
- Be strict with scoring. No high scores without evidence of skill.

Return JSON format (no markdown):
{
    "score": 0,
    "summary": "Overall assessment",
    "pros": ["Good point 1", "Good point 2"],
    "cons": ["Improvement area 1", "Improvement area 2"],
    "feedback": "Detailed feedback and advice"
}`

// Report is the structured feedback for one completed interview.
type Report struct {
	// Score is the overall interview score, 0 to 100.
	Score int `json:"score"`

	Summary string   `json:"summary"`
	Pros    []string `json:"pros"`
	Cons    []string `json:"cons"`

	// Feedback is the detailed advice paragraph.
	Feedback string `json:"feedback"`
}

// JSON serializes the report for storage. Nil slices become empty arrays so
// consumers can iterate without nil checks.
func (r Report) JSON() string {
	if r.Pros == nil {
		r.Pros = []string{}
	}
	if r.Cons == nil {
		r.Cons = []string{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Generator produces feedback reports from interview transcripts.
type Generator struct {
	provider llm.Provider
}

// NewGenerator creates a feedback generator backed by the given model.
func NewGenerator(provider llm.Provider) *Generator {
	return &Generator{provider: provider}
}

// Generate reviews the transcript and returns a feedback report. An empty
// transcript yields a fixed zero-score report without calling the model;
// model failures yield a degraded report, never an error.
func (g *Generator) Generate(ctx context.Context, transcript []types.Turn, resumeText, jobDescription string) Report {
	if len(transcript) == 0 {
		return Report{
			Score:    0,
			Summary:  "Interview session ended without any conversation recorded.",
			Pros:     []string{},
			Cons:     []string{"No responses were recorded during the interview."},
			Feedback: "The interview session was terminated before any meaningful conversation took place. Please try again and ensure your microphone is working properly.",
		}
	}

	var sb strings.Builder
	for _, t := range transcript {
		role := "Candidate"
		if t.Role == "assistant" {
			role = "Interviewer"
		}
		fmt.Fprintf(&sb, "%s: %s\n", role, t.Content)
	}

	var grounding string
	if resumeText != "" || jobDescription != "" {
		grounding = fmt.Sprintf("\nCandidate Resume:\n%s\n\nJob Description:\n%s\n", resumeText, jobDescription)
	}

	req := llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: fmt.Sprintf(reviewPrompt, sb.String(), grounding)}},
		JSONOnly: true,
	}
	resp, err := g.provider.Complete(ctx, req)
	if err != nil || resp == nil {
		slog.Error("feedback generation failed", "error", err)
		return fallbackReport()
	}

	var report Report
	if err := llmjson.Unmarshal(resp.Content, &report); err != nil {
		slog.Error("feedback generation returned malformed output", "error", err)
		return fallbackReport()
	}
	return report
}

func fallbackReport() Report {
	return Report{
		Score:    0,
		Summary:  "Could not generate feedback.",
		Pros:     []string{},
		Cons:     []string{},
		Feedback: "Error analyzing transcript.",
	}
}
