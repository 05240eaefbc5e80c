package skill

import (
	"fmt"
	"strings"
)

// maxResumeExcerpt caps how much resume text a probe embeds in the prompt.
const maxResumeExcerpt = 2500

// hrStrategies probe career trajectory, culture fit, and stability.
var hrStrategies = []string{
	`STRATEGY: THE CHRONOLOGIST
- Focus on their career trajectory. Ask why they moved from one role to another.
- Ask how their responsibilities changed over time.
- If you see a gap > 6 months, ask about it gently.
- DO NOT ask technical implementation questions.`,
	`STRATEGY: THE CULTURE FIT
- Look at their volunteer work or "Interests" section if it exists.
- Ask how they handle team conflicts based on their past roles.
- Ask what they learned from their longest-held position.
- Focus on communication style and team dynamics.`,
	`STRATEGY: THE RED FLAG HUNTER
- Look for job hopping patterns (multiple jobs < 1 year).
- Ask about unexplained gaps in employment.
- Probe reasons for leaving previous positions.
- Assess commitment and stability.`,
}

// technicalStrategies verify claimed depth and implementation experience.
var technicalStrategies = []string{
	`STRATEGY: THE SKEPTIC
- Pick 2 specific technical claims and ask: "How exactly did you implement that?"
- Verify the depth of their most listed technical skill with edge-case questions.
- Ask about internal workings, not just usage (e.g., "How does X handle memory?").
- DO NOT ask about career journey or culture fit.`,
	`STRATEGY: THE PROJECT DIVER
- Focus deeply on their MOST RECENT technical project.
- Ask: "What was your specific technical contribution vs the team's?"
- Ask them to explain a technical trade-off they made and WHY.
- Probe for real experience vs tutorial knowledge.`,
	`STRATEGY: THE ARCHITECTURE ANALYST
- Look for system design or architecture experience in their resume.
- Ask how they would scale a system they mentioned.
- Probe database choices, caching strategies, or API design decisions.
- Focus on technical decision-making rationale.`,
	`STRATEGY: THE DEBUGGER
- Ask about the most difficult bug they've solved.
- Probe their debugging methodology and tools.
- Ask about production incidents and how they handled them.
- Focus on problem-solving approach under pressure.`,
}

// behavioralStrategies target leadership, conflict, and growth.
var behavioralStrategies = []string{
	`STRATEGY: THE FAILURE ANALYST
- Look for leadership or team-lead roles in their history.
- Ask about a project that did NOT go well and what they learned.
- Probe for self-awareness and growth from mistakes.
- DO NOT ask technical implementation details.`,
	`STRATEGY: THE INFLUENCE MAPPER
- Focus on roles where they worked cross-functionally.
- Ask how they influenced decisions without formal authority.
- Explore conflict resolution patterns in their past roles.
- Assess leadership potential and collaboration skills.`,
	`STRATEGY: THE GROWTH TRACKER
- Compare their early career roles to recent ones.
- Ask what skills they developed over time.
- Probe for self-improvement initiatives and learning mindset.
- Focus on career growth and ambition.`,
}

// practiceStrategies mix everything for low-stakes practice rounds.
var practiceStrategies = []string{
	`STRATEGY: THE WELL-ROUNDED PROBE
- Ask about their strongest technical skill and verify depth.
- Ask about a challenging team situation they navigated.
- Cover both technical competence and soft skills.
- Keep energy high and provide constructive feedback.`,
}

// ResumeProbe turns the candidate's resume into a stage-specific line of
// inquiry. Each stage has its own strategy pool so an HR screen never drifts
// into implementation questions and vice versa. Requires a resume of at least
// 50 characters; shorter input disables the skill.
type ResumeProbe struct{}

func (ResumeProbe) ID() string { return "resume_probe" }

func (ResumeProbe) Execute(ctx Context) string {
	if len(ctx.Resume) < 50 {
		return ""
	}

	var pool []string
	switch ctx.StageType {
	case "hr":
		pool = hrStrategies
	case "technical":
		pool = technicalStrategies
	case "behavioral":
		pool = behavioralStrategies
	default:
		pool = practiceStrategies
	}
	strategy := pool[ctx.pick(len(pool))]

	excerpt := ctx.Resume
	if len(excerpt) > maxResumeExcerpt {
		excerpt = excerpt[:maxResumeExcerpt]
	}

	return fmt.Sprintf(`[SKILL: RESUME DEEP DIVE ACTIVE]
Mode: ANALYSIS
Stage: %s

You have reviewed the candidate's resume.
To make the interview feel natural and unique, follow this specific line of inquiry:

%s

IMPORTANT: Stay within your stage's focus area. Do not cross into other stages' territory.

Context from Resume:
%s...`, strings.ToUpper(ctx.StageType), strategy, excerpt)
}

var _ Skill = (*ResumeProbe)(nil)
