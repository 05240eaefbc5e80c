// Package shadow runs a background model over the live transcript and
// produces optional runtime directives for the interviewer.
//
// The monitor is invoked after each user turn, concurrently with reply
// generation, and never blocks the turn loop. A directive only affects
// subsequent turns: the orchestrator appends it to the live system
// instruction under a bracketed runtime-update header.
package shadow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxhire/voxhire/internal/llmjson"
	"github.com/voxhire/voxhire/pkg/provider/llm"
	"github.com/voxhire/voxhire/pkg/types"
)

// recentTurns bounds how much transcript the monitor sees.
const recentTurns = 6

const analysisPrompt = `You are a silent interview supervisor watching a live %s interview for the %s position.

RECENT TRANSCRIPT:
%s

Assess the conversation flow. Possible statuses:
- "flowing": the interview is progressing well, no action needed
- "stuck": the candidate is blocked or repeatedly failing to answer
- "rambling": answers are long and unfocused
- "off_topic": the conversation drifted away from the interview
- "uncomfortable": the candidate shows distress or the tone turned hostile

If the status is anything other than "flowing", write a short directive for
the interviewer (one or two sentences, imperative voice) that corrects the
course without breaking character.

Return JSON:
{
    "status": "flowing|stuck|rambling|off_topic|uncomfortable",
    "intervention": "directive text or null"
}`

// analysis is the model payload.
type analysis struct {
	Status       string  `json:"status"`
	Intervention *string `json:"intervention"`
}

// Monitor analyzes recent turns with a fast model.
//
// Monitor is safe for concurrent use.
type Monitor struct {
	provider llm.Provider
}

// NewMonitor creates a Monitor backed by the given (shadow) model provider.
func NewMonitor(provider llm.Provider) *Monitor {
	return &Monitor{provider: provider}
}

// Analyze inspects the transcript and returns an intervention directive, or
// an empty string when the interview is flowing. Transcripts under two turns
// skip analysis. Any model or parse failure returns an empty string so the
// turn loop is never disturbed.
func (m *Monitor) Analyze(ctx context.Context, transcript []types.Turn, jobRole, stageType string) string {
	if len(transcript) < 2 {
		return ""
	}

	recent := transcript
	if len(recent) > recentTurns {
		recent = recent[len(recent)-recentTurns:]
	}
	lines := make([]string, 0, len(recent))
	for _, turn := range recent {
		lines = append(lines, turn.Role+": "+turn.Content)
	}

	prompt := fmt.Sprintf(analysisPrompt, stageType, jobRole, strings.Join(lines, "\n"))

	resp, err := m.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: prompt}},
		JSONOnly: true,
	})
	if err != nil || resp == nil {
		slog.Error("shadow analysis failed", "error", err)
		return ""
	}

	data := analysis{Status: "flowing"}
	if err := llmjson.Unmarshal(resp.Content, &data); err != nil {
		slog.Error("shadow analysis failed", "error", err)
		return ""
	}

	if data.Status != "flowing" && data.Intervention != nil && *data.Intervention != "" {
		slog.Info("shadow intervention", "status", data.Status, "turns", len(transcript))
		return *data.Intervention
	}
	return ""
}
