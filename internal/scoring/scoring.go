// Package scoring evaluates candidate answers in real time.
//
// Each user turn of sufficient length is scored by a fast "shadow" model
// across four dimensions plus a primary competency mapping. Scoring never
// fails the turn loop: trivial answers get a fixed low score without a model
// call, and any transport or parse error degrades to a neutral score with
// zero confidence.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/voxhire/voxhire/internal/llmjson"
	"github.com/voxhire/voxhire/pkg/provider/llm"
	"github.com/voxhire/voxhire/pkg/types"
)

const (
	// minAnswerChars is the trimmed length below which an answer is scored
	// as too brief without consulting the model.
	minAnswerChars = 10

	// maxAnswerChars caps how much of the answer is sent to the model.
	maxAnswerChars = 2000

	// maxProfileChars caps the profile context embedded in the prompt.
	maxProfileChars = 500
)

// AnswerScore is the detailed scoring result for one candidate answer.
// Dimension scores are 0-100; Confidence is the model's own 0-1 estimate.
type AnswerScore struct {
	Overall           float64 `json:"overall"`
	Relevance         float64 `json:"relevance"`
	Depth             float64 `json:"depth"`
	TechnicalAccuracy float64 `json:"technical_accuracy"`
	Communication     float64 `json:"communication"`

	// Dimension is the primary competency the answer tested, one of
	// technical_depth, communication, problem_solving, leadership,
	// adaptability.
	Dimension string `json:"dimension"`

	Feedback          string  `json:"feedback"`
	FollowUpNeeded    bool    `json:"follow_up_needed"`
	SuggestedFollowUp string  `json:"suggested_follow_up,omitempty"`
	Confidence        float64 `json:"confidence"`
}

// Context is optional extra information for the scoring prompt.
type Context struct {
	// ProfileJSON is the serialized candidate profile, truncated before
	// embedding.
	ProfileJSON string

	// PreviousScores are overall scores from earlier turns.
	PreviousScores []float64
}

const scoringTemplate = `You are an expert interview evaluator. Score this answer objectively.

**Interview Context:**
- Stage: %s
- Target Role: %s

**Question Asked:**
%s

**Candidate's Answer:**
%s

**Additional Context:**
%s

Evaluate on these dimensions (0-100 scale):
1. **Relevance**: Did they directly answer the question asked?
2. **Depth**: How substantive and detailed was the response?
3. **Technical Accuracy**: Are claims and statements technically correct? (N/A if non-technical)
4. **Communication**: Was the answer clear, structured, and concise?

Determine the PRIMARY competency dimension being tested:
- technical_depth (algorithms, system_design, code_quality, architecture)
- communication (clarity, structure, articulation)
- problem_solving (analysis, methodology, edge_cases)
- leadership (influence, decision_making, conflict_resolution)
- adaptability (learning, flexibility, growth_mindset)

Return JSON:
{
    "overall": 75,
    "relevance": 80,
    "depth": 70,
    "technical_accuracy": 75,
    "communication": 80,
    "dimension": "technical_depth",
    "feedback": "Good high-level answer but lacked specific implementation details",
    "follow_up_needed": true,
    "suggested_follow_up": "Ask how they would handle failure scenarios",
    "confidence": 0.85
}

Be objective. A score of 50 is average. Below 40 is weak. Above 80 is strong.`

// Engine scores answers with a fast model.
//
// Engine is safe for concurrent use.
type Engine struct {
	provider llm.Provider
}

// NewEngine creates an Engine backed by the given (shadow) model provider.
func NewEngine(provider llm.Provider) *Engine {
	return &Engine{provider: provider}
}

// ScoreAnswer scores one question/answer exchange. It never returns an
// error: failures degrade to a neutral all-50s score with zero confidence.
func (e *Engine) ScoreAnswer(ctx context.Context, question, answer, stageType, jobRole string, sc *Context) AnswerScore {
	if len(strings.TrimSpace(answer)) < minAnswerChars {
		return AnswerScore{
			Overall:           20,
			Relevance:         10,
			Depth:             10,
			TechnicalAccuracy: 50,
			Communication:     30,
			Dimension:         "communication",
			Feedback:          "Answer was too brief or empty",
			FollowUpNeeded:    true,
			SuggestedFollowUp: "Could you elaborate on that?",
			Confidence:        0.9,
		}
	}

	if len(answer) > maxAnswerChars {
		answer = answer[:maxAnswerChars]
	}

	prompt := fmt.Sprintf(scoringTemplate, stageType, jobRole, question, answer, contextBlock(sc))

	start := time.Now()
	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: prompt}},
		JSONOnly: true,
	})
	if err != nil || resp == nil {
		slog.Error("answer scoring failed", "error", err)
		return neutralScore()
	}
	slog.Debug("answer scored", "latency", time.Since(start))

	// Pre-filled defaults survive fields the model omits.
	score := AnswerScore{
		Overall:           50,
		Relevance:         50,
		Depth:             50,
		TechnicalAccuracy: 50,
		Communication:     50,
		Dimension:         "general",
		Confidence:        0.7,
	}
	if err := llmjson.Unmarshal(resp.Content, &score); err != nil {
		slog.Error("answer scoring produced unparseable output", "error", err)
		return neutralScore()
	}
	return score
}

func contextBlock(sc *Context) string {
	if sc == nil {
		return "None"
	}
	var b strings.Builder
	if sc.ProfileJSON != "" {
		profile := sc.ProfileJSON
		if len(profile) > maxProfileChars {
			profile = profile[:maxProfileChars]
		}
		fmt.Fprintf(&b, "Candidate Profile: %s\n", profile)
	}
	if len(sc.PreviousScores) > 0 {
		fmt.Fprintf(&b, "Average score so far: %.1f/100\n", mean(sc.PreviousScores))
	}
	if b.Len() == 0 {
		return "None"
	}
	return b.String()
}

func neutralScore() AnswerScore {
	return AnswerScore{
		Overall:           50,
		Relevance:         50,
		Depth:             50,
		TechnicalAccuracy: 50,
		Communication:     50,
		Dimension:         "general",
		Feedback:          "Unable to score (system error)",
	}
}

// Aggregate summarizes a session's answer scores.
type Aggregate struct {
	OverallAvg       float64            `json:"overall_avg"`
	DimensionScores  map[string]float64 `json:"dimension_scores"`
	CommunicationAvg float64            `json:"communication_avg"`

	// Trend is improving, declining, stable, or insufficient_data (fewer
	// than 3 samples).
	Trend string `json:"trend"`

	SampleSize int `json:"sample_size"`
	HighScores int `json:"high_scores"`
	LowScores  int `json:"low_scores"`
}

// ComputeAggregate derives per-dimension averages and a trend tag. The trend
// compares first-half and second-half means with a ±5 threshold.
func ComputeAggregate(scores []AnswerScore) Aggregate {
	if len(scores) == 0 {
		return Aggregate{DimensionScores: map[string]float64{}, Trend: "insufficient_data"}
	}

	var overallSum, commSum float64
	byDimension := make(map[string][]float64)
	agg := Aggregate{DimensionScores: make(map[string]float64), SampleSize: len(scores)}
	for _, s := range scores {
		overallSum += s.Overall
		commSum += s.Communication
		byDimension[s.Dimension] = append(byDimension[s.Dimension], s.Overall)
		if s.Overall >= 80 {
			agg.HighScores++
		}
		if s.Overall < 50 {
			agg.LowScores++
		}
	}
	agg.OverallAvg = round1(overallSum / float64(len(scores)))
	agg.CommunicationAvg = round1(commSum / float64(len(scores)))
	for dim, vals := range byDimension {
		agg.DimensionScores[dim] = round1(mean(vals))
	}

	agg.Trend = "insufficient_data"
	if len(scores) >= 3 {
		half := len(scores) / 2
		var firstSum, secondSum float64
		for _, s := range scores[:half] {
			firstSum += s.Overall
		}
		for _, s := range scores[half:] {
			secondSum += s.Overall
		}
		first := firstSum / float64(half)
		second := secondSum / float64(len(scores)-half)
		switch {
		case second > first+5:
			agg.Trend = "improving"
		case second < first-5:
			agg.Trend = "declining"
		default:
			agg.Trend = "stable"
		}
	}
	return agg
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
