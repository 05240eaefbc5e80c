package prompt_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/voxhire/voxhire/internal/persona"
	"github.com/voxhire/voxhire/internal/prompt"
	"github.com/voxhire/voxhire/internal/skill"
)

const techLeadYAML = `
role: Technical Lead
style: Direct but friendly.
identities:
  - name:
      en: "Minh Tran"
      vi: "Trần Minh"
    voice:
      en: voice-en-1
      vi: voice-vi-1
  - name: "Alex Carter"
    voice:
      en: voice-en-2
directives:
  - Verify claimed skills with implementation questions.
sample_questions:
  - How does Postgres handle concurrent writes?
scenarios:
  - trigger: candidate gives a vague answer
    response_pattern: Ask for a concrete example from their own work.
skills:
  - id: resume_probe
  - id: job_match
`

const practiceYAML = `
role: Practice Coach
identities:
  - name: "Jordan"
    voice:
      en: voice-practice
skills:
  - id: resume_probe
greeting: "Welcome {{.Name}} session for {{.JobRole}}."
`

const hrYAML = `
role: HR Recruiter
identities:
  - name: "Sam Reyes"
    voice:
      en: voice-hr
skills:
  - id: resume_probe
`

func newComposer(t *testing.T) *prompt.Composer {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"tech_lead":            techLeadYAML,
		"practice_interviewer": practiceYAML,
		"hr_recruiter":         hrYAML,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	stacks := prompt.TechStacks{
		"golang":   {"golang", " go ", "goroutine"},
		"react":    {"react", "next.js"},
		"postgres": {"postgres", "postgresql"},
	}
	return prompt.NewComposer(persona.NewStore(dir), skill.NewRegistry(), stacks)
}

func baseInputs() prompt.Inputs {
	return prompt.Inputs{
		SessionID: "sess-42",
		StageType: "technical",
		JobRole:   "Backend Engineer",
		Language:  "en",
		Resume:    strings.Repeat("Built Golang services on PostgreSQL with heavy concurrency. ", 3),
	}
}

// TestSystemInstruction_CoreSections checks the always-present parts of the
// rendered prompt.
func TestSystemInstruction_CoreSections(t *testing.T) {
	c := newComposer(t)
	out, err := c.SystemInstruction(baseInputs())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	for _, want := range []string{
		"Technical Lead at TechVision",
		"technical interview for the Backend Engineer position",
		"Conduct the entire interview in English.",
		"DIRECTIVES:",
		"YOUR STRATEGIC LENS:",
		"BIAS FILTER",
		"TOPIC BLOCKER",
		"RESUME DEEP DIVE",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("prompt missing %q:\n%s", want, out)
		}
	}
}

// TestSystemInstruction_Deterministic checks that the same session always
// renders the same prompt.
func TestSystemInstruction_Deterministic(t *testing.T) {
	c := newComposer(t)
	first, err := c.SystemInstruction(baseInputs())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	second, err := c.SystemInstruction(baseInputs())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if first != second {
		t.Error("same inputs rendered different prompts")
	}
}

// TestSystemInstruction_IdentityStable checks that the interviewer name does
// not change between calls for one session, and differs across sessions
// often enough to prove the hash is used.
func TestSystemInstruction_IdentityStable(t *testing.T) {
	c := newComposer(t)
	name := func(sessionID string) string {
		in := baseInputs()
		in.SessionID = sessionID
		out, err := c.SystemInstruction(in)
		if err != nil {
			t.Fatalf("compose: %v", err)
		}
		line, _, _ := strings.Cut(out, ",")
		return line
	}
	if name("sess-42") != name("sess-42") {
		t.Error("identity changed within a session")
	}
	seen := make(map[string]bool)
	for _, id := range []string{
		"a", "b", "c", "d", "e", "f", "g", "h",
		"i", "j", "k", "l", "m", "n", "o", "p",
	} {
		seen[name(id)] = true
	}
	if len(seen) < 2 {
		t.Error("all sessions resolved to the same identity; hash not applied")
	}
}

// TestSystemInstruction_TechStackDetected checks keyword scanning over role,
// resume, and job description.
func TestSystemInstruction_TechStackDetected(t *testing.T) {
	c := newComposer(t)
	out, err := c.SystemInstruction(baseInputs())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !strings.Contains(out, "DETECTED TECH STACK:") {
		t.Fatalf("missing tech stack section:\n%s", out)
	}
	if !strings.Contains(out, "golang") || !strings.Contains(out, "postgres") {
		t.Errorf("expected golang and postgres detected:\n%s", out)
	}
	if strings.Contains(out, "react") {
		t.Error("react should not be detected")
	}
}

// TestSystemInstruction_OmitsEmptySections checks that absent inputs leave no
// stub headings behind.
func TestSystemInstruction_OmitsEmptySections(t *testing.T) {
	c := newComposer(t)
	in := prompt.Inputs{
		SessionID: "sess-1",
		StageType: "hr",
		JobRole:   "Designer",
		Language:  "en",
	}
	out, err := c.SystemInstruction(in)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	for _, absent := range []string{
		"CANDIDATE RESUME:",
		"JOB DESCRIPTION:",
		"DETECTED TECH STACK:",
		"YOUR STRATEGIC LENS:",
		"PREPARED QUESTIONS",
		"DIRECTIVES:",
	} {
		if strings.Contains(out, absent) {
			t.Errorf("empty input left stub section %q:\n%s", absent, out)
		}
	}
	if strings.Contains(out, "\n\n\n") {
		t.Errorf("omitted sections left blank-line runs:\n%q", out)
	}
}

// TestSystemInstruction_StrategyOnlyTechnical checks that non-technical
// stages get no strategic lens.
func TestSystemInstruction_StrategyOnlyTechnical(t *testing.T) {
	c := newComposer(t)
	in := baseInputs()
	in.StageType = "hr"
	out, err := c.SystemInstruction(in)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if strings.Contains(out, "YOUR STRATEGIC LENS:") {
		t.Error("hr stage should not carry a strategy")
	}
}

// TestSystemInstruction_ShortDocumentsExcluded checks the 50-char embedding
// gates for resume and JD.
func TestSystemInstruction_ShortDocumentsExcluded(t *testing.T) {
	c := newComposer(t)
	in := baseInputs()
	in.Resume = "short resume"
	in.JobDescription = "short jd"
	out, err := c.SystemInstruction(in)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if strings.Contains(out, "CANDIDATE RESUME:") || strings.Contains(out, "JOB DESCRIPTION:") {
		t.Error("sub-threshold documents should not be embedded")
	}
}

// TestSystemInstruction_IntelligenceBlocks checks that preformatted blocks
// pass through verbatim.
func TestSystemInstruction_IntelligenceBlocks(t *testing.T) {
	c := newComposer(t)
	in := baseInputs()
	in.PreviousStageInsights = "PREVIOUS STAGE INSIGHTS:\n[HR - Score: 72/100]"
	in.ProfileContext = "CANDIDATE PROFILE (live):\nVERIFIED SKILLS:"
	in.DifficultyGuidance = "DIFFICULTY CALIBRATION:\nCurrent level: advanced"
	in.CompetencyFocus = "FOCUS COMPETENCIES: technical_depth, communication"
	out, err := c.SystemInstruction(in)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	for _, want := range []string{
		"[HR - Score: 72/100]",
		"CANDIDATE PROFILE (live):",
		"Current level: advanced",
		"FOCUS COMPETENCIES:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing intelligence block %q", want)
		}
	}
}

// TestGreeting_DefaultAndLocalized checks the built-in greeting template.
func TestGreeting_DefaultAndLocalized(t *testing.T) {
	c := newComposer(t)
	in := baseInputs()
	out, err := c.Greeting(in)
	if err != nil {
		t.Fatalf("greeting: %v", err)
	}
	if !strings.Contains(out, "Backend Engineer") {
		t.Errorf("greeting missing job role: %q", out)
	}
	in.Language = "vi"
	out, err = c.Greeting(in)
	if err != nil {
		t.Fatalf("vi greeting: %v", err)
	}
	if !strings.Contains(out, "Xin chào") {
		t.Errorf("expected Vietnamese greeting, got %q", out)
	}
}

// TestGreeting_PersonaOverride checks that a persona-supplied greeting
// template wins over the default.
func TestGreeting_PersonaOverride(t *testing.T) {
	c := newComposer(t)
	in := baseInputs()
	in.StageType = "practice"
	out, err := c.Greeting(in)
	if err != nil {
		t.Fatalf("greeting: %v", err)
	}
	if !strings.Contains(out, "Welcome Jordan session for Backend Engineer.") {
		t.Errorf("persona greeting not used: %q", out)
	}
}

// TestVoice_LanguageFallback checks voice resolution with the en fallback.
func TestVoice_LanguageFallback(t *testing.T) {
	c := newComposer(t)
	// Find a session that resolves to the identity carrying a vi voice.
	var viSession string
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8"} {
		v, err := c.Voice("technical", "vi", id)
		if err != nil {
			t.Fatalf("voice: %v", err)
		}
		if v == "voice-vi-1" {
			viSession = id
			break
		}
		if v != "voice-en-2" {
			t.Fatalf("vi voice for en-only identity should fall back to en, got %q", v)
		}
	}
	if viSession == "" {
		t.Skip("no sampled session hit the bilingual identity")
	}
	v, err := c.Voice("technical", "en", viSession)
	if err != nil {
		t.Fatalf("voice: %v", err)
	}
	if v != "voice-en-1" {
		t.Errorf("expected en voice of same identity, got %q", v)
	}
}

// TestSelectStrategy_StablePerSession checks the strategy hash.
func TestSelectStrategy_StablePerSession(t *testing.T) {
	a := prompt.SelectStrategy("sess-1", "technical")
	b := prompt.SelectStrategy("sess-1", "technical")
	if a == nil || b == nil {
		t.Fatal("technical stage must get a strategy")
	}
	if a.Name != b.Name {
		t.Error("strategy changed between calls for one session")
	}
	if s := prompt.SelectStrategy("sess-1", "behavioral"); s != nil {
		t.Errorf("behavioral stage should get no strategy, got %v", s.Name)
	}
}
