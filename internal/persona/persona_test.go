package persona_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/voxhire/voxhire/internal/persona"
)

const techLeadYAML = `
role: Technical Lead
style: Direct, probing, respectful.
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
  en:
    - Verify claimed skills with implementation questions.
    - Ask one question at a time.
  vi:
    - Kiểm tra kỹ năng bằng câu hỏi triển khai.
sample_questions:
  - How does your favorite database handle concurrent writes?
scenarios:
  - trigger: candidate gives a vague answer
    response_pattern:
      en: Ask for a concrete example from their own work.
skills:
  - id: resume_probe
  - id: job_match
greeting: "Hi, I'm {{name}}, the tech lead here."
`

const practiceYAML = `
role: Practice Coach
identities:
  - name: "Jordan"
    voice:
      en: voice-practice
skills:
  - id: resume_probe
`

func writeStore(t *testing.T, files map[string]string) *persona.Store {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return persona.NewStore(dir)
}

// TestLoad_ParsesFullPersona checks that a fully-featured persona file round
// trips through the loader.
func TestLoad_ParsesFullPersona(t *testing.T) {
	s := writeStore(t, map[string]string{"tech_lead": techLeadYAML})
	p, err := s.Load("tech_lead")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Key != "tech_lead" {
		t.Errorf("key = %q", p.Key)
	}
	if p.Role != "Technical Lead" {
		t.Errorf("role = %q", p.Role)
	}
	if len(p.Identities) != 2 {
		t.Fatalf("expected 2 identities, got %d", len(p.Identities))
	}
	if got := p.Identities[0].Name.Resolve("vi"); got != "Trần Minh" {
		t.Errorf("vi name = %q", got)
	}
	if got := p.Identities[1].Name.Resolve("vi"); got != "Alex Carter" {
		t.Errorf("scalar name should fall back to en, got %q", got)
	}
	if got := p.SkillIDs(); len(got) != 2 || got[0] != "resume_probe" || got[1] != "job_match" {
		t.Errorf("skill ids = %v", got)
	}
}

// TestLocalizedList_ScalarAndMapForms checks both YAML shapes for directives.
func TestLocalizedList_ScalarAndMapForms(t *testing.T) {
	s := writeStore(t, map[string]string{"tech_lead": techLeadYAML})
	p, err := s.Load("tech_lead")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := p.Directives.Resolve("vi"); len(got) != 1 {
		t.Errorf("vi directives = %v", got)
	}
	if got := p.Directives.Resolve("de"); len(got) != 2 {
		t.Errorf("unknown language should fall back to en, got %v", got)
	}
	// sample_questions uses the plain-sequence shorthand.
	if got := p.SampleQuestions.Resolve("en"); len(got) != 1 {
		t.Errorf("sample questions = %v", got)
	}
}

// TestLoad_Cached checks that a second load does not re-read the file.
func TestLoad_Cached(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tech_lead.yaml")
	if err := os.WriteFile(path, []byte(techLeadYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	s := persona.NewStore(dir)
	first, err := s.Load("tech_lead")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// Corrupt the file; the cache must shield us.
	if err := os.WriteFile(path, []byte("{{{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	second, err := s.Load("tech_lead")
	if err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if first != second {
		t.Error("expected cached persona pointer")
	}
}

// TestLoad_FallsBackToPractice checks the missing-file fallback.
func TestLoad_FallsBackToPractice(t *testing.T) {
	s := writeStore(t, map[string]string{"practice_interviewer": practiceYAML})
	p, err := s.Load("hr_recruiter")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Key != "practice_interviewer" {
		t.Errorf("expected practice fallback, got %q", p.Key)
	}
}

// TestLoad_MissingPracticeIsFatal checks that the fallback itself missing is
// a hard error.
func TestLoad_MissingPracticeIsFatal(t *testing.T) {
	s := writeStore(t, nil)
	if _, err := s.Load("practice_interviewer"); err == nil {
		t.Fatal("expected error for missing practice persona")
	}
}

// TestLoad_RejectsUnknownFields checks strict decoding.
func TestLoad_RejectsUnknownFields(t *testing.T) {
	s := writeStore(t, map[string]string{"tech_lead": techLeadYAML + "\nbogus_field: 1\n"})
	if _, err := s.Load("tech_lead"); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

// TestValidate_ReportsAllViolations checks joined validation errors.
func TestValidate_ReportsAllViolations(t *testing.T) {
	p := &persona.Persona{
		Key:       "broken",
		Scenarios: []persona.Scenario{{}},
		Skills:    []persona.SkillRef{{}},
	}
	err := p.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"identities", "trigger", "skill"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

// TestKeyForStage checks the stage→persona mapping.
func TestKeyForStage(t *testing.T) {
	tests := map[string]string{
		"hr":         "hr_recruiter",
		"technical":  "tech_lead",
		"behavioral": "behavioral_manager",
		"practice":   "practice_interviewer",
		"unknown":    "practice_interviewer",
	}
	for stage, want := range tests {
		if got := persona.KeyForStage(stage); got != want {
			t.Errorf("KeyForStage(%q) = %q, want %q", stage, got, want)
		}
	}
}
