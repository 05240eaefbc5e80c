// Package geval scores a completed interview with an LLM-as-judge pass and
// computes basic transcript statistics.
//
// The judge rates the candidate on confidence, clarity, relevance, and depth
// (each 0.0 to 1.0) with per-metric reasons and an overall summary. Results
// feed the observability layer as an evaluation submission.
package geval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxhire/voxhire/internal/llmjson"
	"github.com/voxhire/voxhire/internal/observe"
	"github.com/voxhire/voxhire/pkg/provider/llm"
	"github.com/voxhire/voxhire/pkg/types"
)

const evaluationPrompt = `You are an expert interview evaluator. Analyze this interview transcript and provide scores.

Interview Context:
- Stage: %s
- Target Role: %s

Transcript:
%s

Evaluate the CANDIDATE's performance on these criteria (score 0.0 to 1.0):

1. **Confidence** (0-1): How confident did the candidate appear?
   - 0.0 = Very hesitant, lots of filler words, uncertain
   - 0.5 = Moderate confidence, some hesitation
   - 1.0 = Very confident, clear, decisive responses

2. **Clarity** (0-1): How clearly did the candidate communicate?
   - 0.0 = Rambling, unclear, hard to follow
   - 0.5 = Reasonably clear with some confusion
   - 1.0 = Crystal clear, well-structured responses

3. **Relevance** (0-1): How relevant were the answers to the questions?
   - 0.0 = Off-topic, didn't answer questions
   - 0.5 = Partially relevant, some tangents
   - 1.0 = Directly addressed each question

4. **Depth** (0-1): How substantive were the responses?
   - 0.0 = Superficial, one-word answers
   - 0.5 = Adequate detail
   - 1.0 = Rich, detailed responses with examples

Return JSON only (no markdown):
{
    "confidence": 0.75,
    "confidence_reason": "Brief explanation",
    "clarity": 0.80,
    "clarity_reason": "Brief explanation",
    "relevance": 0.85,
    "relevance_reason": "Brief explanation",
    "depth": 0.70,
    "depth_reason": "Brief explanation",
    "overall_summary": "2-3 sentence overall assessment",
    "overall_score": 0.77
}`

// judgment is the model payload.
type judgment struct {
	Confidence      float64 `json:"confidence"`
	ConfidenceReas  string  `json:"confidence_reason"`
	Clarity         float64 `json:"clarity"`
	ClarityReason   string  `json:"clarity_reason"`
	Relevance       float64 `json:"relevance"`
	RelevanceReason string  `json:"relevance_reason"`
	Depth           float64 `json:"depth"`
	DepthReason     string  `json:"depth_reason"`
	OverallSummary  string  `json:"overall_summary"`
	OverallScore    float64 `json:"overall_score"`
}

// Evaluator runs the post-session judge.
//
// Evaluator is safe for concurrent use.
type Evaluator struct {
	provider llm.Provider
}

// NewEvaluator creates an Evaluator backed by the given model provider.
func NewEvaluator(provider llm.Provider) *Evaluator {
	return &Evaluator{provider: provider}
}

// EvaluateSession judges a complete transcript. Transcripts under two turns
// and any model or parse failure produce no evaluation (nil result).
func (e *Evaluator) EvaluateSession(ctx context.Context, sessionID, traceID string, transcript []types.Turn, stageType, jobRole string) *observe.EvaluationResult {
	if len(transcript) < 2 {
		slog.Warn("insufficient transcript for evaluation", "turns", len(transcript))
		return nil
	}
	if stageType == "" {
		stageType = "general"
	}
	if jobRole == "" {
		jobRole = "General"
	}

	prompt := fmt.Sprintf(evaluationPrompt, stageType, jobRole, formatTranscript(transcript))

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: prompt}},
		JSONOnly: true,
	})
	if err != nil || resp == nil {
		slog.Error("session evaluation failed", "session_id", sessionID, "error", err)
		return nil
	}

	var data judgment
	if err := llmjson.Unmarshal(resp.Content, &data); err != nil {
		slog.Error("failed to parse evaluation response", "session_id", sessionID, "error", err)
		return nil
	}

	result := &observe.EvaluationResult{
		SessionID: sessionID,
		TraceID:   traceID,
		Evaluator: "geval",
		Scores: []observe.EvaluationScore{
			{MetricName: "confidence", Score: data.Confidence, Reason: data.ConfidenceReas},
			{MetricName: "clarity", Score: data.Clarity, Reason: data.ClarityReason},
			{MetricName: "relevance", Score: data.Relevance, Reason: data.RelevanceReason},
			{MetricName: "depth", Score: data.Depth, Reason: data.DepthReason},
		},
		OverallScore: data.OverallScore,
		Summary:      data.OverallSummary,
		Metadata: map[string]any{
			"stage_type":       stageType,
			"job_role":         jobRole,
			"transcript_turns": len(transcript),
		},
	}

	slog.Info("session evaluation completed", "session_id", sessionID, "overall", result.OverallScore)
	return result
}

// BasicMetrics computes transcript statistics without a model call. Empty
// transcripts return an empty map.
func BasicMetrics(transcript []types.Turn) map[string]float64 {
	if len(transcript) == 0 {
		return map[string]float64{}
	}

	var userTurns, assistantTurns, userWords, assistantWords int
	for _, turn := range transcript {
		words := len(strings.Fields(turn.Content))
		switch turn.Role {
		case "user":
			userTurns++
			userWords += words
		case "assistant":
			assistantTurns++
			assistantWords += words
		}
	}

	metrics := map[string]float64{
		"total_turns":           float64(len(transcript)),
		"user_turns":            float64(userTurns),
		"assistant_turns":       float64(assistantTurns),
		"user_total_words":      float64(userWords),
		"assistant_total_words": float64(assistantWords),
	}
	if userTurns > 0 {
		metrics["avg_user_words_per_turn"] = float64(userWords) / float64(userTurns)
	} else {
		metrics["avg_user_words_per_turn"] = 0
	}
	if assistantTurns > 0 {
		metrics["avg_assistant_words_per_turn"] = float64(assistantWords) / float64(assistantTurns)
	} else {
		metrics["avg_assistant_words_per_turn"] = 0
	}
	if assistantWords > 0 {
		metrics["conversation_ratio"] = float64(userWords) / float64(assistantWords)
	} else {
		metrics["conversation_ratio"] = 0
	}
	return metrics
}

func formatTranscript(transcript []types.Turn) string {
	lines := make([]string, 0, len(transcript))
	for _, turn := range transcript {
		speaker := "Candidate"
		if turn.Role == "assistant" {
			speaker = "Interviewer"
		}
		lines = append(lines, speaker+": "+turn.Content)
	}
	return strings.Join(lines, "\n")
}
