// Package insights carries candidate findings across interview stages.
//
// At the end of each stage a fast model distills the transcript, profile,
// and scores into durable [StageInsights], stored on the parent application
// keyed by stage type. Later stages read the insights of preceding stages
// and inject a "do not repeat" context block, so the technical interviewer
// builds on the HR screen instead of rerunning it.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/voxhire/voxhire/internal/competency"
	"github.com/voxhire/voxhire/internal/llmjson"
	"github.com/voxhire/voxhire/internal/profile"
	"github.com/voxhire/voxhire/pkg/provider/llm"
	"github.com/voxhire/voxhire/pkg/types"
)

// stageOrder is the fixed pipeline order used to decide which stages count
// as "previous".
var stageOrder = []string{"hr", "technical", "behavioral"}

const (
	maxProfileChars    = 1500
	maxTranscriptTurns = 20
	maxTurnChars       = 200
	maxTranscriptChars = 2000
)

// StageInsights are the durable findings from one completed stage.
type StageInsights struct {
	StageType          string   `json:"stage_type"`
	Summary            string   `json:"summary"`
	CommunicationStyle string   `json:"communication_style"`
	VerifiedSkills     []string `json:"verified_skills"`
	RedFlags           []string `json:"red_flags"`
	Strengths          []string `json:"strengths"`
	Concerns           []string `json:"concerns"`
	KeyTopicsCovered   []string `json:"key_topics_covered"`
	OverallScore       float64  `json:"overall_score"`
	Confidence         float64  `json:"confidence"`
	Notes              string   `json:"notes"`
}

// ApplicationStore is the slice of application persistence the memory needs:
// the cross-stage insights map, keyed by stage type.
type ApplicationStore interface {
	CrossStageInsights(ctx context.Context, applicationID string) (map[string]StageInsights, error)
	SaveCrossStageInsights(ctx context.Context, applicationID string, insights map[string]StageInsights) error
}

const extractionPrompt = `Analyze this interview stage and extract key insights for the next interviewer.

STAGE: %s
JOB ROLE: %s

CANDIDATE PROFILE:
%s

TRANSCRIPT SUMMARY (last messages):
%s

SCORES:
%s

Extract insights that would be valuable for the NEXT interviewer to know:
1. What was verified about the candidate?
2. What concerns were raised?
3. What topics were already covered (don't repeat)?
4. What communication style did the candidate exhibit?
5. What should the next stage focus on?

Return JSON:
{
    "summary": "Brief 2-3 sentence summary of the stage outcome",
    "communication_style": "e.g., 'concise and technical' or 'verbose but thoughtful'",
    "verified_skills": ["skill1", "skill2"],
    "red_flags": ["concern1"],
    "strengths": ["strength1"],
    "concerns": ["areas needing further exploration"],
    "key_topics_covered": ["topic1", "topic2"],
    "notes": "Any other important observations"
}`

// extraction is the model payload for insight extraction.
type extraction struct {
	Summary            string   `json:"summary"`
	CommunicationStyle string   `json:"communication_style"`
	VerifiedSkills     []string `json:"verified_skills"`
	RedFlags           []string `json:"red_flags"`
	Strengths          []string `json:"strengths"`
	Concerns           []string `json:"concerns"`
	KeyTopicsCovered   []string `json:"key_topics_covered"`
	Notes              string   `json:"notes"`
}

// Memory extracts and stores cross-stage insights.
//
// Memory is safe for concurrent use.
type Memory struct {
	provider llm.Provider
	apps     ApplicationStore
}

// NewMemory creates a Memory over the given (shadow) model provider and
// application store.
func NewMemory(provider llm.Provider, apps ApplicationStore) *Memory {
	return &Memory{provider: provider, apps: apps}
}

// SaveStageInsights extracts insights for a completed stage and persists
// them on the application with read-modify-write semantics. It never returns
// an error: any failure yields minimal insights carrying the last known
// score so the next stage still sees that this one happened.
func (m *Memory) SaveStageInsights(ctx context.Context, applicationID, stageType string,
	prof *profile.Profile, transcript []types.Turn, scores []competency.TurnScore, jobRole string) StageInsights {

	ins, err := m.extract(ctx, stageType, prof, transcript, scores, jobRole)
	if err == nil {
		err = m.persist(ctx, applicationID, stageType, ins)
	}
	if err != nil {
		slog.Error("failed to save stage insights", "stage", stageType, "application_id", applicationID, "error", err)
		return minimalInsights(stageType, prof)
	}

	slog.Info("saved stage insights", "stage", stageType, "application_id", applicationID)
	return ins
}

func (m *Memory) extract(ctx context.Context, stageType string, prof *profile.Profile,
	transcript []types.Turn, scores []competency.TurnScore, jobRole string) (StageInsights, error) {

	profileJSON, err := json.MarshalIndent(prof, "", "  ")
	if err != nil {
		return StageInsights{}, fmt.Errorf("insights: serialize profile: %w", err)
	}
	profileText := string(profileJSON)
	if len(profileText) > maxProfileChars {
		profileText = profileText[:maxProfileChars]
	}

	prompt := fmt.Sprintf(extractionPrompt, stageType, jobRole,
		profileText, transcriptSummary(transcript), scoresSummary(scores))

	resp, err := m.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: prompt}},
		JSONOnly: true,
	})
	if err != nil {
		return StageInsights{}, err
	}
	if resp == nil {
		return StageInsights{}, fmt.Errorf("insights: empty completion response")
	}

	var data extraction
	if err := llmjson.Unmarshal(resp.Content, &data); err != nil {
		return StageInsights{}, err
	}

	return StageInsights{
		StageType:          stageType,
		Summary:            data.Summary,
		CommunicationStyle: data.CommunicationStyle,
		VerifiedSkills:     data.VerifiedSkills,
		RedFlags:           data.RedFlags,
		Strengths:          data.Strengths,
		Concerns:           data.Concerns,
		KeyTopicsCovered:   data.KeyTopicsCovered,
		OverallScore:       overallScore(prof),
		Confidence:         0.8,
		Notes:              data.Notes,
	}, nil
}

func (m *Memory) persist(ctx context.Context, applicationID, stageType string, ins StageInsights) error {
	current, err := m.apps.CrossStageInsights(ctx, applicationID)
	if err != nil {
		return err
	}
	if current == nil {
		current = make(map[string]StageInsights)
	}
	current[stageType] = ins
	return m.apps.SaveCrossStageInsights(ctx, applicationID, current)
}

// PreviousInsights returns the stored insights for stages that precede
// currentStage in the pipeline order. Unknown stages see everything. Store
// failures return an empty map.
func (m *Memory) PreviousInsights(ctx context.Context, applicationID, currentStage string) map[string]StageInsights {
	previous := stageOrder
	for i, stage := range stageOrder {
		if stage == currentStage {
			previous = stageOrder[:i]
			break
		}
	}

	all, err := m.apps.CrossStageInsights(ctx, applicationID)
	if err != nil {
		slog.Error("failed to retrieve insights", "application_id", applicationID, "error", err)
		return map[string]StageInsights{}
	}

	filtered := make(map[string]StageInsights)
	for _, stage := range previous {
		if ins, ok := all[stage]; ok {
			filtered[stage] = ins
		}
	}
	return filtered
}

// BuildContextPrompt renders previous-stage insights as a prompt block. The
// block opens with an explicit do-not-repeat instruction and lists per-stage
// findings with tight caps so it stays small.
func BuildContextPrompt(insightsByStage map[string]StageInsights) string {
	if len(insightsByStage) == 0 {
		return ""
	}

	sections := []string{
		"PREVIOUS STAGE INSIGHTS:",
		"DO NOT repeat topics already covered. Build on these findings.\n",
	}

	for _, stage := range orderedStages(insightsByStage) {
		data := insightsByStage[stage]
		section := fmt.Sprintf(`
[%s STAGE - Score: %.0f/100]
Summary: %s
Communication Style: %s
Verified Skills: %s
Concerns to Follow Up: %s
Topics Already Covered (DO NOT REPEAT): %s
`,
			strings.ToUpper(stage), data.OverallScore, data.Summary, data.CommunicationStyle,
			listOr(data.VerifiedSkills, 5, "None verified"),
			listOr(data.Concerns, 3, "None"),
			strings.Join(capList(data.KeyTopicsCovered, 8), ", "))

		if len(data.RedFlags) > 0 {
			section += "RED FLAGS: " + strings.Join(capList(data.RedFlags, 3), ", ") + "\n"
		}
		sections = append(sections, section)
	}

	return strings.Join(sections, "\n")
}

// HandoffSummary renders a one-line pass/concern summary of previous stages.
func HandoffSummary(insightsByStage map[string]StageInsights) string {
	if len(insightsByStage) == 0 {
		return "No previous stage data available."
	}

	var parts []string
	for _, stage := range orderedStages(insightsByStage) {
		data := insightsByStage[stage]
		status := "CONCERNS"
		if data.OverallScore >= 60 {
			status = "PASSED"
		}
		parts = append(parts, fmt.Sprintf("%s: %s (%.0f%%)", strings.ToUpper(stage), status, data.OverallScore))
	}
	return strings.Join(parts, " | ")
}

func minimalInsights(stageType string, prof *profile.Profile) StageInsights {
	score := 50.0
	if n := len(prof.PerformanceTrajectory); n > 0 {
		score = prof.PerformanceTrajectory[n-1]
	}
	return StageInsights{
		StageType:          stageType,
		Summary:            "Stage completed (insights extraction failed)",
		CommunicationStyle: "unknown",
		VerifiedSkills:     []string{},
		RedFlags:           []string{},
		Strengths:          []string{},
		Concerns:           []string{},
		KeyTopicsCovered:   []string{},
		OverallScore:       score,
	}
}

func overallScore(prof *profile.Profile) float64 {
	if len(prof.PerformanceTrajectory) == 0 {
		return 50
	}
	var sum float64
	for _, s := range prof.PerformanceTrajectory {
		sum += s
	}
	return sum / float64(len(prof.PerformanceTrajectory))
}

func transcriptSummary(transcript []types.Turn) string {
	recent := transcript
	if len(recent) > maxTranscriptTurns {
		recent = recent[len(recent)-maxTranscriptTurns:]
	}
	lines := make([]string, 0, len(recent))
	for _, turn := range recent {
		content := turn.Content
		if len(content) > maxTurnChars {
			content = content[:maxTurnChars]
		}
		lines = append(lines, fmt.Sprintf("%s: %s...", turn.Role, content))
	}
	summary := strings.Join(lines, "\n")
	if len(summary) > maxTranscriptChars {
		summary = summary[:maxTranscriptChars]
	}
	return summary
}

func scoresSummary(scores []competency.TurnScore) string {
	if len(scores) == 0 {
		return "No detailed scores available"
	}
	var sum float64
	for _, s := range scores {
		sum += s.Score
	}
	return fmt.Sprintf("Average: %.1f/100 across %d questions", sum/float64(len(scores)), len(scores))
}

// orderedStages returns the map's keys in pipeline order, with any unknown
// stages appended last for stable rendering.
func orderedStages(m map[string]StageInsights) []string {
	var out []string
	for _, stage := range stageOrder {
		if _, ok := m[stage]; ok {
			out = append(out, stage)
		}
	}
	var extra []string
	for stage := range m {
		if !slices.Contains(stageOrder, stage) {
			extra = append(extra, stage)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

func capList(xs []string, n int) []string {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}

func listOr(xs []string, n int, empty string) string {
	if len(xs) == 0 {
		return empty
	}
	return strings.Join(capList(xs, n), ", ")
}
