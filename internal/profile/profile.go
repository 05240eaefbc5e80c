// Package profile builds and maintains a real-time candidate profile during
// an interview.
//
// The profile starts from the resume and job description, then grows turn by
// turn: a fast model extracts verified skills, weaknesses, red flags, and key
// facts from each exchange, and deterministic merge rules fold them in. The
// merged profile feeds back into the system prompt so the interviewer stops
// re-asking covered topics and digs where the evidence is thin.
package profile

import (
	"fmt"
	"slices"
	"strings"
)

// SkillAssessment is the current evidence for one skill.
type SkillAssessment struct {
	// Depth is 0-5. Zero means claimed on the resume but never verified.
	Depth int `json:"depth"`

	// Evidence is a brief quote or summary supporting the depth rating.
	Evidence string `json:"evidence"`

	// VerifiedAtTurn is the turn where the depth was last upgraded, 0 for
	// resume-only claims.
	VerifiedAtTurn int `json:"verified_at_turn"`

	// Confidence is 0-1.
	Confidence float64 `json:"confidence"`
}

// RedFlag is an inconsistency or concerning pattern.
type RedFlag struct {
	// Type is one of inconsistency, evasion, concern.
	Type string `json:"type"`

	Detail string `json:"detail"`
}

// QuestionRecord tracks one asked question with its score.
type QuestionRecord struct {
	Turn     int     `json:"turn"`
	Question string  `json:"question"`
	Score    float64 `json:"score"`
}

// Profile is the mutable per-session candidate profile. It round-trips
// through JSON for persistence on the session record.
//
// Invariants: CurrentTurn equals len(PerformanceTrajectory), and a skill's
// depth never decreases within a session.
type Profile struct {
	VerifiedSkills        map[string]SkillAssessment `json:"verified_skills"`
	IdentifiedGaps        []string                   `json:"identified_gaps"`
	RedFlags              []RedFlag                  `json:"red_flags"`
	Strengths             []string                   `json:"strengths"`
	TopicsCovered         []string                   `json:"topics_covered"`
	QuestionsAsked        []QuestionRecord           `json:"questions_asked"`
	PerformanceTrajectory []float64                  `json:"performance_trajectory"`
	KeyFacts              []string                   `json:"key_facts"`
	CurrentTurn           int                        `json:"current_turn"`
}

// New returns an empty profile ready for use.
func New() *Profile {
	return &Profile{VerifiedSkills: make(map[string]SkillAssessment)}
}

// Clone returns a deep copy. The per-turn update pipeline merges into a
// clone and publishes the result, so concurrent readers of the previous
// profile are never invalidated.
func (p *Profile) Clone() *Profile {
	c := *p
	c.VerifiedSkills = make(map[string]SkillAssessment, len(p.VerifiedSkills))
	for name, a := range p.VerifiedSkills {
		c.VerifiedSkills[name] = a
	}
	c.IdentifiedGaps = slices.Clone(p.IdentifiedGaps)
	c.RedFlags = slices.Clone(p.RedFlags)
	c.Strengths = slices.Clone(p.Strengths)
	c.TopicsCovered = slices.Clone(p.TopicsCovered)
	c.QuestionsAsked = slices.Clone(p.QuestionsAsked)
	c.PerformanceTrajectory = slices.Clone(p.PerformanceTrajectory)
	c.KeyFacts = slices.Clone(p.KeyFacts)
	return &c
}

// AddTopic records a covered topic with set semantics.
func (p *Profile) AddTopic(topic string) {
	if topic == "" || slices.Contains(p.TopicsCovered, topic) {
		return
	}
	p.TopicsCovered = append(p.TopicsCovered, topic)
}

// ContextString renders the profile as a prompt-injectable block. Only
// non-empty sections appear; an effectively empty profile renders to "".
func ContextString(p *Profile) string {
	if p == nil || (len(p.VerifiedSkills) == 0 && len(p.IdentifiedGaps) == 0 && len(p.Strengths) == 0) {
		return ""
	}

	var sections []string

	var verified []string
	for _, name := range sortedSkillNames(p) {
		if a := p.VerifiedSkills[name]; a.Depth >= 3 {
			verified = append(verified, fmt.Sprintf("%s (depth: %d/5)", name, a.Depth))
		}
	}
	if len(verified) > 0 {
		sections = append(sections, "VERIFIED SKILLS: "+strings.Join(verified, ", "))
	}

	if len(p.IdentifiedGaps) > 0 {
		sections = append(sections, "GAPS TO PROBE: "+strings.Join(head(p.IdentifiedGaps, 5), ", "))
	}

	if len(p.RedFlags) > 0 {
		details := make([]string, 0, 3)
		for _, f := range p.RedFlags[:min(3, len(p.RedFlags))] {
			details = append(details, f.Detail)
		}
		sections = append(sections, "CONCERNS: "+strings.Join(details, "; "))
	}

	if len(p.Strengths) > 0 {
		sections = append(sections, "STRENGTHS: "+strings.Join(head(p.Strengths, 3), ", "))
	}

	if len(p.TopicsCovered) > 0 {
		sections = append(sections, "TOPICS COVERED (DO NOT REPEAT): "+strings.Join(head(p.TopicsCovered, 10), ", "))
	}

	if len(p.PerformanceTrajectory) >= 3 {
		recent := p.PerformanceTrajectory[len(p.PerformanceTrajectory)-3:]
		avg := (recent[0] + recent[1] + recent[2]) / 3
		trend := "stable"
		switch {
		case recent[2] > recent[0]:
			trend = "improving"
		case recent[2] < recent[0]:
			trend = "declining"
		}
		sections = append(sections, fmt.Sprintf("PERFORMANCE: %s (avg: %.0f/100)", trend, avg))
	}

	return strings.Join(sections, "\n")
}

// SuggestedFocus returns interviewer guidance derived from the profile:
// unverified claims to test, gaps to probe, and weak turns to revisit.
func SuggestedFocus(p *Profile) []string {
	var suggestions []string

	var unverified []string
	for _, name := range sortedSkillNames(p) {
		if p.VerifiedSkills[name].Depth < 2 {
			unverified = append(unverified, name)
		}
	}
	if len(unverified) > 0 {
		suggestions = append(suggestions, "Verify claimed skills: "+strings.Join(head(unverified, 3), ", "))
	}

	if len(p.IdentifiedGaps) > 0 {
		suggestions = append(suggestions, "Probe gaps: "+strings.Join(head(p.IdentifiedGaps, 2), ", "))
	}

	var lowTurns []string
	for i, score := range p.PerformanceTrajectory {
		if score < 50 {
			lowTurns = append(lowTurns, fmt.Sprint(i+1))
		}
	}
	if len(lowTurns) > 0 {
		if len(lowTurns) > 3 {
			lowTurns = lowTurns[len(lowTurns)-3:]
		}
		suggestions = append(suggestions, "Follow up on weak answers from turns: "+strings.Join(lowTurns, ", "))
	}

	return suggestions
}

func sortedSkillNames(p *Profile) []string {
	names := make([]string, 0, len(p.VerifiedSkills))
	for name := range p.VerifiedSkills {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func head(xs []string, n int) []string {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}
