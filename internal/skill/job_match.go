package skill

import "fmt"

// maxJobDescriptionExcerpt caps how much of the job description the
// evaluator embeds in the prompt.
const maxJobDescriptionExcerpt = 2000

// jobMatchStrategies are the randomized ways of comparing resume against job
// description.
var jobMatchStrategies = []string{
	`STRATEGY: THE GAP HUNTER (Missing Requirements)
- Compare the Job Description (JD) requirements against the Resume.
- Identify 1 critical technical skill from the JD that is MISSING or weak in the Resume.
- Ask: "I see this role requires [Missing Skill], but I don't see much of it in your background. Can you explain your experience with it?"`,
	`STRATEGY: THE STRENGTH AMPLIFIER (Core Competencies)
- Identify the STRONGEST match between the Resume and JD.
- Ask a high-level "System Design" or "Best Practice" question related to that shared strength.
- Example: "You have great experience in X (which we need). What is your opinion on the future of X?"`,
	`STRATEGY: THE REALIST (Day-to-Day)
- Look at the "Responsibilities" section of the JD.
- Ask: "One of the key responsibilities here is [Responsibility]. Give me an example of a time you handled something similar."`,
	`STRATEGY: THE ADAPTABILITY CHECK
- If the JD mentions a specific industry (e.g., Fintech, Health), check if the candidate has it.
- If they DON'T, ask: "This role is in the [Industry] domain. How would you adapt your skills to this specific field?"`,
}

// JobMatchEvaluator compares the resume against the job description to
// generate targeted fit questions. It needs both documents: a non-empty
// resume and a job description of at least 20 characters.
type JobMatchEvaluator struct{}

func (JobMatchEvaluator) ID() string { return "job_match" }

func (JobMatchEvaluator) Execute(ctx Context) string {
	if ctx.Resume == "" || len(ctx.JobDescription) < 20 {
		return ""
	}

	strategy := jobMatchStrategies[ctx.pick(len(jobMatchStrategies))]

	excerpt := ctx.JobDescription
	if len(excerpt) > maxJobDescriptionExcerpt {
		excerpt = excerpt[:maxJobDescriptionExcerpt]
	}

	return fmt.Sprintf(`[SKILL: JOB MATCH EVALUATOR ACTIVE]
Mode: BALANCED

You have the Job Description (JD).
Your goal is to assess the FIT between the Candidate and the Role.
To keep the assessment dynamic, use this specific comparison strategy:

%s

Context - Job Description:
%s...`, strategy, excerpt)
}

var _ Skill = (*JobMatchEvaluator)(nil)
