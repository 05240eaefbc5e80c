// Package prompt composes system instructions and greetings for interview
// sessions.
//
// The composer resolves a stable interviewer identity and strategic lens from
// the session ID, detects the candidate's tech stack, runs the persona's
// prompt skills, and renders everything through a template that omits any
// section without content. All selection is deterministic per session so
// recomposing the prompt mid-interview never changes who the candidate is
// talking to.
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/voxhire/voxhire/internal/persona"
	"github.com/voxhire/voxhire/internal/skill"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").
	Funcs(template.FuncMap{"join": strings.Join}).
	ParseFS(templateFS, "templates/*.tmpl"))

// DefaultCompanyName is used when the caller does not name a company.
const DefaultCompanyName = "TechVision"

// contextThreshold is the minimum trimmed length for resume and job
// description text to be embedded in the rendered prompt.
const contextThreshold = 50

// Inputs is everything the composer needs to build a prompt. All string
// fields may be empty; empty inputs drop their sections from the output.
type Inputs struct {
	SessionID      string
	StageType      string
	JobRole        string
	Language       string
	CompanyName    string
	Resume         string
	JobDescription string

	// ContextInfo is free-form extra context appended near the end.
	ContextInfo string

	// Preformatted intelligence blocks, included verbatim when non-empty.
	PreviousStageInsights string
	ProfileContext        string
	DifficultyGuidance    string
	CompetencyFocus       string
	PreparedQuestions     string
}

// Composer renders system instructions and greetings.
//
// Composer is safe for concurrent use.
type Composer struct {
	store      *persona.Store
	skills     *skill.Registry
	techStacks TechStacks
}

// NewComposer creates a Composer over the given persona store, skill
// registry, and tech-stack patterns.
func NewComposer(store *persona.Store, skills *skill.Registry, techStacks TechStacks) *Composer {
	return &Composer{store: store, skills: skills, techStacks: techStacks}
}

// templateData is the resolved view handed to the system template.
type templateData struct {
	Name        string
	Role        string
	Style       string
	CompanyName string
	JobRole     string
	StageType   string

	LanguageLine    string
	Directives      []string
	SampleQuestions []string
	Scenarios       []scenarioData
	Strategy        *Strategy
	TechStack       []string

	Resume         string
	JobDescription string

	PreviousStageInsights string
	ProfileContext        string
	DifficultyGuidance    string
	CompetencyFocus       string
	PreparedQuestions     string
	ContextInfo           string
}

type scenarioData struct {
	Trigger  string
	Response string
}

// SystemInstruction renders the complete system prompt for a session.
func (c *Composer) SystemInstruction(in Inputs) (string, error) {
	p, err := c.store.LoadForStage(in.StageType)
	if err != nil {
		return "", fmt.Errorf("prompt: load persona: %w", err)
	}

	identity := ResolveIdentity(p, in.SessionID, in.Language)

	company := in.CompanyName
	if company == "" {
		company = DefaultCompanyName
	}
	role := p.Role
	if role == "" {
		role = "Interviewer"
	}

	data := templateData{
		Name:            identity.Name,
		Role:            role,
		Style:           p.Style,
		CompanyName:     company,
		JobRole:         in.JobRole,
		StageType:       in.StageType,
		LanguageLine:    languageLine(in.Language),
		Directives:      p.Directives.Resolve(in.Language),
		SampleQuestions: p.SampleQuestions.Resolve(in.Language),
		Strategy:        SelectStrategy(in.SessionID, in.StageType),
		TechStack:       c.techStacks.Detect(in.JobRole + " " + in.Resume + " " + in.JobDescription),

		PreviousStageInsights: in.PreviousStageInsights,
		ProfileContext:        in.ProfileContext,
		DifficultyGuidance:    in.DifficultyGuidance,
		CompetencyFocus:       in.CompetencyFocus,
		PreparedQuestions:     in.PreparedQuestions,
	}

	for _, sc := range p.Scenarios {
		data.Scenarios = append(data.Scenarios, scenarioData{
			Trigger:  sc.Trigger,
			Response: sc.ResponsePattern.Resolve(in.Language),
		})
	}

	if len(strings.TrimSpace(in.Resume)) > contextThreshold {
		data.Resume = in.Resume
	}
	if len(strings.TrimSpace(in.JobDescription)) > contextThreshold {
		data.JobDescription = in.JobDescription
	}

	// Skills see the raw documents; they apply their own gates.
	injections := c.skills.Compose(p.SkillIDs(), skill.Context{
		SessionID:      in.SessionID,
		StageType:      in.StageType,
		JobRole:        in.JobRole,
		Resume:         in.Resume,
		JobDescription: in.JobDescription,
		Language:       in.Language,
		Rand:           sessionRand(in.SessionID),
	})
	data.ContextInfo = joinContext(in.ContextInfo, injections)

	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, "system_instruction.tmpl", data); err != nil {
		return "", fmt.Errorf("prompt: render system instruction: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}

// Greeting renders the interviewer's opening line. A persona may carry its
// own localized greeting template; otherwise the built-in one is used.
func (c *Composer) Greeting(in Inputs) (string, error) {
	p, err := c.store.LoadForStage(in.StageType)
	if err != nil {
		return "", fmt.Errorf("prompt: load persona: %w", err)
	}
	identity := ResolveIdentity(p, in.SessionID, in.Language)

	data := struct {
		Name     string
		JobRole  string
		Language string
	}{identity.Name, in.JobRole, in.Language}

	if custom := p.Greeting.Resolve(in.Language); custom != "" {
		tmpl, err := template.New("persona_greeting").Parse(custom)
		if err != nil {
			return "", fmt.Errorf("prompt: parse persona greeting: %w", err)
		}
		var b strings.Builder
		if err := tmpl.Execute(&b, data); err != nil {
			return "", fmt.Errorf("prompt: render persona greeting: %w", err)
		}
		return strings.TrimSpace(b.String()), nil
	}

	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, "greeting.tmpl", data); err != nil {
		return "", fmt.Errorf("prompt: render greeting: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}

// Voice returns the TTS voice ID for a session, resolved from the session's
// stable identity with an English fallback.
func (c *Composer) Voice(stageType, language, sessionID string) (string, error) {
	p, err := c.store.LoadForStage(stageType)
	if err != nil {
		return "", fmt.Errorf("prompt: load persona: %w", err)
	}
	return ResolveIdentity(p, sessionID, language).VoiceID(language), nil
}

func languageLine(language string) string {
	if language == "vi" {
		return "Conduct the entire interview in Vietnamese."
	}
	return "Conduct the entire interview in English."
}

func joinContext(contextInfo string, injections []string) string {
	parts := make([]string, 0, len(injections)+1)
	if contextInfo != "" {
		parts = append(parts, contextInfo)
	}
	parts = append(parts, injections...)
	return strings.Join(parts, "\n\n")
}
