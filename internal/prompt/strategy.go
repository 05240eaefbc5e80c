package prompt

// Strategy is a strategic lens that colors every question in a technical
// round. Picking one per session keeps repeat interviews from feeling
// identical.
type Strategy struct {
	Name        string
	Description string
}

// strategies is the pool of lenses for technical rounds.
var strategies = []Strategy{
	{
		Name:        "The Purist",
		Description: "Focus strictly on Clean Code, SOLID principles, and design patterns. Reject 'hacky' solutions that work but are messy.",
	},
	{
		Name:        "The Pragmatist",
		Description: "Focus on shipping speed, MVP trade-offs, and business value. Challenge over-engineering and ask 'What is the fastest way to get this live?'.",
	},
	{
		Name:        "The Scaler",
		Description: "Obsess over high-load scenarios. Ask about caching (Redis), database indexing, load balancing, and O(n) complexity.",
	},
	{
		Name:        "The Security Auditor",
		Description: "Paranoid about vulnerabilities. Explicitly ask about XSS, SQL Injection, AuthZ/AuthN, and data encryption in every answer.",
	},
	{
		Name:        "The Legacy Cleaner",
		Description: "Focus on refactoring and technical debt. Ask 'How would you migrate this monolith?' or 'How do you handle dependency updates?'.",
	},
}

// SelectStrategy picks the session's strategic lens. Only technical stages
// get one; the choice is stable per session ID so the lens holds for the
// whole interview. An empty session ID picks at random.
func SelectStrategy(sessionID, stageType string) *Strategy {
	if stageType != "technical" {
		return nil
	}
	idx := hashIndex(sessionID+"strategy", len(strategies))
	if sessionID == "" {
		idx = randIndex(len(strategies))
	}
	return &strategies[idx]
}
