// Package skill provides modular prompt-injection units for interview
// personas.
//
// A skill inspects the session context (resume, job description, stage) and
// returns a block of text to splice into the interviewer's system prompt, or
// an empty string when it has nothing useful to add. Personas declare which
// skills they want by ID; guardrail skills are always applied first.
package skill

import (
	"log/slog"
	"math/rand"
	"slices"
)

// GlobalSkills are applied to every session before any persona-selected
// skills, in this order. Guardrails must win ties with persona behavior.
var GlobalSkills = []string{"bias_filter", "topic_blocker"}

// Context carries the session data skills draw on. Skills must treat it as
// read-only.
type Context struct {
	SessionID      string
	StageType      string
	JobRole        string
	Resume         string
	JobDescription string
	Language       string

	// Rand drives strategy selection for skills that randomize their line
	// of inquiry. Callers seed it per session so a session keeps its
	// strategy on prompt recomposition; nil falls back to the global
	// source.
	Rand *rand.Rand
}

// pick returns a pseudo-random index in [0, n).
func (c Context) pick(n int) int {
	if n <= 1 {
		return 0
	}
	if c.Rand != nil {
		return c.Rand.Intn(n)
	}
	return rand.Intn(n)
}

// Skill is a prompt-injection unit. Execute returns the text to add to the
// system prompt, or "" when the skill does not apply to this context.
type Skill interface {
	ID() string
	Execute(ctx Context) string
}

// Registry is the catalog of available skills, keyed by ID.
type Registry struct {
	skills map[string]Skill
}

// NewRegistry returns a Registry pre-populated with every built-in skill.
func NewRegistry() *Registry {
	r := &Registry{skills: make(map[string]Skill)}
	for _, s := range []Skill{
		&BiasFilter{},
		&TopicBlocker{},
		&ResumeProbe{},
		&JobMatchEvaluator{},
		&StarWatchdog{},
		&SalesObjectionSimulator{},
	} {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a skill under its ID.
func (r *Registry) Register(s Skill) {
	r.skills[s.ID()] = s
}

// Get returns the skill registered under id, or nil.
func (r *Registry) Get(id string) Skill {
	return r.skills[id]
}

// Compose executes the global guardrail skills followed by the requested
// persona skills and returns the non-empty injections in order. Duplicate IDs
// run once, unknown IDs are skipped with a warning.
func (r *Registry) Compose(ids []string, ctx Context) []string {
	ordered := make([]string, 0, len(GlobalSkills)+len(ids))
	ordered = append(ordered, GlobalSkills...)
	for _, id := range ids {
		if !slices.Contains(ordered, id) {
			ordered = append(ordered, id)
		}
	}

	var out []string
	for _, id := range ordered {
		s := r.Get(id)
		if s == nil {
			slog.Warn("unknown skill requested", "skill_id", id)
			continue
		}
		if text := s.Execute(ctx); text != "" {
			out = append(out, text)
		}
	}
	return out
}
