package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/voxhire/voxhire/internal/llmjson"
	"github.com/voxhire/voxhire/pkg/provider/llm"
	"github.com/voxhire/voxhire/pkg/types"
)

const (
	// minResumeChars gates initial extraction; shorter resumes yield an
	// empty profile without a model call.
	minResumeChars = 50

	// minAnswerChars gates per-turn extraction; shorter answers only
	// advance the turn counters.
	minAnswerChars = 20

	maxResumeChars   = 3000
	maxJDChars       = 2000
	maxAnswerChars   = 1500
	maxQuestionChars = 200
)

const initialProfilePrompt = `Analyze this resume and job description to create an initial candidate profile.

RESUME:
%s

JOB DESCRIPTION:
%s

Extract and return JSON:
{
    "claimed_skills": ["skill1", "skill2"],
    "experience_years": 5,
    "education_level": "Bachelor's/Master's/PhD",
    "potential_gaps": ["skill from JD not in resume"],
    "potential_strengths": ["strong points from resume"],
    "initial_topics": ["topics to explore"]
}

Focus on factual extraction. Do not infer or assume.`

const updateProfilePrompt = `Analyze this interview exchange and update the candidate profile.

QUESTION ASKED:
%s

CANDIDATE'S ANSWER:
%s

ANSWER SCORE: %.0f/100

CURRENT PROFILE:
%s

Based on this exchange, extract:
1. Any skills that were VERIFIED (candidate demonstrated knowledge)
2. Any skills that showed WEAKNESS (candidate struggled)
3. Any RED FLAGS (inconsistencies, concerning statements)
4. Any NEW STRENGTHS identified
5. KEY FACTS learned about the candidate

Return JSON:
{
    "verified_skills": {"skill_name": {"depth": 1-5, "evidence": "brief quote"}},
    "weakness_signals": ["areas where candidate struggled"],
    "red_flags": [{"type": "inconsistency|evasion|concern", "detail": "..."}],
    "new_strengths": ["newly identified strengths"],
    "key_facts": ["important facts learned"],
    "topic_covered": "main topic of this exchange"
}`

// initialExtraction is the model payload for CreateInitial.
type initialExtraction struct {
	ClaimedSkills      []string `json:"claimed_skills"`
	ExperienceYears    *float64 `json:"experience_years"`
	EducationLevel     string   `json:"education_level"`
	PotentialGaps      []string `json:"potential_gaps"`
	PotentialStrengths []string `json:"potential_strengths"`
	InitialTopics      []string `json:"initial_topics"`
}

// turnExtraction is the model payload for UpdateAfterTurn.
type turnExtraction struct {
	VerifiedSkills map[string]struct {
		Depth    *int   `json:"depth"`
		Evidence string `json:"evidence"`
	} `json:"verified_skills"`
	WeaknessSignals []string  `json:"weakness_signals"`
	RedFlags        []RedFlag `json:"red_flags"`
	NewStrengths    []string  `json:"new_strengths"`
	KeyFacts        []string  `json:"key_facts"`
	TopicCovered    string    `json:"topic_covered"`
}

// Manager extracts profile updates with a fast model and applies the merge
// rules. Extraction failures never lose state: the profile is returned as it
// was.
//
// Manager is safe for concurrent use; the profiles it operates on are not.
type Manager struct {
	provider llm.Provider
}

// NewManager creates a Manager backed by the given (shadow) model provider.
func NewManager(provider llm.Provider) *Manager {
	return &Manager{provider: provider}
}

// CreateInitial builds the starting profile from the resume and job
// description. Resumes under 50 trimmed characters yield an empty profile.
func (m *Manager) CreateInitial(ctx context.Context, resumeText, jobDescription string) *Profile {
	p := New()

	if len(strings.TrimSpace(resumeText)) < minResumeChars {
		slog.Info("no resume provided, starting with blank profile")
		return p
	}

	if len(resumeText) > maxResumeChars {
		resumeText = resumeText[:maxResumeChars]
	}
	jd := jobDescription
	if jd == "" {
		jd = "Not provided"
	} else if len(jd) > maxJDChars {
		jd = jd[:maxJDChars]
	}

	var data initialExtraction
	if err := m.extract(ctx, fmt.Sprintf(initialProfilePrompt, resumeText, jd), &data); err != nil {
		slog.Error("failed to create initial profile", "error", err)
		return p
	}

	for _, s := range data.ClaimedSkills {
		p.VerifiedSkills[s] = SkillAssessment{
			Depth:      0,
			Evidence:   "From resume (unverified)",
			Confidence: 0.3,
		}
	}
	p.IdentifiedGaps = data.PotentialGaps
	p.Strengths = data.PotentialStrengths

	experience := "Unknown"
	if data.ExperienceYears != nil {
		experience = fmt.Sprintf("%.0f", *data.ExperienceYears)
	}
	education := data.EducationLevel
	if education == "" {
		education = "Unknown"
	}
	p.KeyFacts = append(p.KeyFacts, "Experience: ~"+experience+" years", "Education: "+education)

	for _, topic := range data.InitialTopics {
		p.AddTopic("pending:" + topic)
	}

	slog.Info("initial profile created", "claimed_skills", len(p.VerifiedSkills))
	return p
}

// UpdateAfterTurn folds one question/answer exchange into the profile.
//
// Turn counters always advance: the turn number, trajectory, and question
// record are written before any model call, so a failed or skipped
// extraction still keeps CurrentTurn == len(PerformanceTrajectory). Answers
// under 20 trimmed characters skip extraction entirely.
func (m *Manager) UpdateAfterTurn(ctx context.Context, p *Profile, question, answer string, score float64) {
	p.CurrentTurn++
	p.PerformanceTrajectory = append(p.PerformanceTrajectory, score)
	q := question
	if len(q) > maxQuestionChars {
		q = q[:maxQuestionChars]
	}
	p.QuestionsAsked = append(p.QuestionsAsked, QuestionRecord{
		Turn:     p.CurrentTurn,
		Question: q,
		Score:    score,
	})

	if len(strings.TrimSpace(answer)) < minAnswerChars {
		slog.Debug("answer too short, skipping profile update")
		return
	}

	if len(answer) > maxAnswerChars {
		answer = answer[:maxAnswerChars]
	}
	current, err := json.MarshalIndent(map[string]any{
		"verified_skills": p.VerifiedSkills,
		"strengths":       p.Strengths,
		"gaps":            p.IdentifiedGaps,
	}, "", "  ")
	if err != nil {
		slog.Error("failed to serialize profile for extraction", "error", err)
		return
	}

	var data turnExtraction
	if err := m.extract(ctx, fmt.Sprintf(updateProfilePrompt, question, answer, score, current), &data); err != nil {
		slog.Error("failed to update profile", "error", err)
		return
	}

	m.merge(p, data, score)
	slog.Debug("profile updated", "turn", p.CurrentTurn)
}

// merge applies the deterministic merge rules for one extraction payload.
func (m *Manager) merge(p *Profile, data turnExtraction, score float64) {
	for name, assessment := range data.VerifiedSkills {
		depth := 3
		if assessment.Depth != nil {
			depth = *assessment.Depth
		}
		// Depth only ever upgrades.
		if depth > p.VerifiedSkills[name].Depth {
			confidence := 0.5
			if score >= 70 {
				confidence = 0.8
			}
			p.VerifiedSkills[name] = SkillAssessment{
				Depth:          depth,
				Evidence:       assessment.Evidence,
				VerifiedAtTurn: p.CurrentTurn,
				Confidence:     confidence,
			}
		}
	}

	for _, weakness := range data.WeaknessSignals {
		if !slices.Contains(p.IdentifiedGaps, weakness) {
			p.IdentifiedGaps = append(p.IdentifiedGaps, weakness)
		}
	}
	for _, flag := range data.RedFlags {
		if !slices.Contains(p.RedFlags, flag) {
			p.RedFlags = append(p.RedFlags, flag)
		}
	}
	for _, strength := range data.NewStrengths {
		if !slices.Contains(p.Strengths, strength) {
			p.Strengths = append(p.Strengths, strength)
		}
	}
	for _, fact := range data.KeyFacts {
		if !slices.Contains(p.KeyFacts, fact) {
			p.KeyFacts = append(p.KeyFacts, fact)
		}
	}
	p.AddTopic(data.TopicCovered)
}

func (m *Manager) extract(ctx context.Context, prompt string, out any) error {
	resp, err := m.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: prompt}},
		JSONOnly: true,
	})
	if err != nil {
		return err
	}
	if resp == nil {
		return fmt.Errorf("profile: empty completion response")
	}
	return llmjson.Unmarshal(resp.Content, out)
}
