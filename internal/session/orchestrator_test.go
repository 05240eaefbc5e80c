package session_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxhire/voxhire/internal/competency"
	"github.com/voxhire/voxhire/internal/difficulty"
	"github.com/voxhire/voxhire/internal/feedback"
	"github.com/voxhire/voxhire/internal/geval"
	"github.com/voxhire/voxhire/internal/insights"
	"github.com/voxhire/voxhire/internal/media"
	mediamock "github.com/voxhire/voxhire/internal/media/mock"
	"github.com/voxhire/voxhire/internal/observe"
	"github.com/voxhire/voxhire/internal/persona"
	"github.com/voxhire/voxhire/internal/profile"
	"github.com/voxhire/voxhire/internal/prompt"
	"github.com/voxhire/voxhire/internal/scoring"
	"github.com/voxhire/voxhire/internal/session"
	"github.com/voxhire/voxhire/internal/shadow"
	"github.com/voxhire/voxhire/internal/skill"
	"github.com/voxhire/voxhire/internal/store"
	"github.com/voxhire/voxhire/pkg/provider/llm"
	llmmock "github.com/voxhire/voxhire/pkg/provider/llm/mock"
	"github.com/voxhire/voxhire/pkg/types"
)

// ─── Fakes ──────────────────────────────────────────────────────────────────

type transcriptSave struct {
	transcript []types.Turn
	status     string
}

type fakeSessions struct {
	mu       sync.Mutex
	session  *store.Session
	getErr   error
	saveErr  error
	saves    []transcriptSave
	results  map[string]store.Results
	traceIDs map[string]string
}

func newFakeSessions(s *store.Session) *fakeSessions {
	return &fakeSessions{
		session:  s,
		results:  make(map[string]store.Results),
		traceIDs: make(map[string]string),
	}
}

func (f *fakeSessions) Create(ctx context.Context, s *store.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = s
	return nil
}

func (f *fakeSessions) Get(ctx context.Context, sessionID string) (*store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.session == nil || f.session.SessionID != sessionID {
		return nil, nil
	}
	return f.session, nil
}

func (f *fakeSessions) SaveTranscript(ctx context.Context, sessionID string, transcript []types.Turn, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, transcriptSave{transcript: transcript, status: status})
	return nil
}

func (f *fakeSessions) SetTraceID(ctx context.Context, sessionID, traceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.traceIDs[sessionID] = traceID
	return nil
}

func (f *fakeSessions) SaveResults(ctx context.Context, sessionID string, r store.Results) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[sessionID] = r
	return nil
}

func (f *fakeSessions) savedTranscripts() []transcriptSave {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]transcriptSave, len(f.saves))
	copy(out, f.saves)
	return out
}

func (f *fakeSessions) savedResults(sessionID string) (store.Results, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[sessionID]
	return r, ok
}

type fakeApps struct {
	mu    sync.Mutex
	app   *store.Application
	saved map[string]map[string]insights.StageInsights
}

func newFakeApps(app *store.Application) *fakeApps {
	return &fakeApps{app: app, saved: make(map[string]map[string]insights.StageInsights)}
}

func (f *fakeApps) Get(ctx context.Context, id string) (*store.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.app == nil || f.app.ID != id {
		return nil, nil
	}
	return f.app, nil
}

func (f *fakeApps) CrossStageInsights(ctx context.Context, applicationID string) (map[string]insights.StageInsights, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.saved[applicationID]; ok {
		return m, nil
	}
	if f.app != nil && f.app.ID == applicationID {
		return f.app.CrossStageInsights, nil
	}
	return map[string]insights.StageInsights{}, nil
}

func (f *fakeApps) SaveCrossStageInsights(ctx context.Context, applicationID string, m map[string]insights.StageInsights) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[applicationID] = m
	return nil
}

func (f *fakeApps) savedInsights(applicationID string) map[string]insights.StageInsights {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved[applicationID]
}

// loggedLLMCall is one recorded model invocation.
type loggedLLMCall struct {
	traceID   string
	component string
}

// traceProvider is a recording observability provider.
type traceProvider struct {
	observe.NullProvider

	mu       sync.Mutex
	metrics  []string
	evals    []observe.EvaluationResult
	llmCalls []loggedLLMCall
	ended    bool
}

func (p *traceProvider) Enabled() bool { return true }

func (p *traceProvider) StartTrace(context.Context, string, observe.TraceMetadata) (string, error) {
	return "trace-1", nil
}

func (p *traceProvider) EndTrace(context.Context, string, map[string]any, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended = true
	return nil
}

func (p *traceProvider) RecordMetric(_ context.Context, _ string, name string, _ float64, _ map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = append(p.metrics, name)
	return nil
}

func (p *traceProvider) SubmitEvaluation(_ context.Context, eval observe.EvaluationResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evals = append(p.evals, eval)
	return nil
}

func (p *traceProvider) LogLLMCall(_ context.Context, traceID string, call observe.LLMCall) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	component, _ := call.Metadata["component"].(string)
	p.llmCalls = append(p.llmCalls, loggedLLMCall{traceID: traceID, component: component})
	return nil
}

func (p *traceProvider) loggedLLMCalls() []loggedLLMCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]loggedLLMCall, len(p.llmCalls))
	copy(out, p.llmCalls)
	return out
}

func (p *traceProvider) metricNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.metrics))
	copy(out, p.metrics)
	return out
}

func (p *traceProvider) traceEnded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ended
}

// ─── Fixtures ───────────────────────────────────────────────────────────────

const hrPersonaYAML = `
role: HR Recruiter
identities:
  - name: "Sam Reyes"
    voice:
      en: voice-hr
skills:
  - id: resume_probe
`

const techLeadPersonaYAML = `
role: Technical Lead
identities:
  - name: "Minh Tran"
    voice:
      en: voice-tech
directives:
  - Verify claimed skills with implementation questions.
skills:
  - id: resume_probe
  - id: job_match
`

const practicePersonaYAML = `
role: Practice Coach
identities:
  - name: "Jordan"
    voice:
      en: voice-practice
skills:
  - id: resume_probe
`

const scoreJSON = `{
	"overall": 82,
	"relevance": 85,
	"depth": 80,
	"technical_accuracy": 82,
	"communication": 78,
	"dimension": "technical_depth",
	"feedback": "Strong concrete answer.",
	"follow_up_needed": false,
	"confidence": 0.9
}`

const reviewJSON = `{
	"score": 71,
	"summary": "Competent backend candidate.",
	"pros": ["Concrete examples"],
	"cons": ["Light on system design"],
	"feedback": "Practice designing for failure."
}`

const extractionJSON = `{
	"summary": "Communicates clearly under pressure.",
	"communication_style": "structured",
	"verified_skills": ["golang"],
	"red_flags": [],
	"strengths": ["debugging"],
	"concerns": [],
	"key_topics_covered": ["incident response"],
	"notes": ""
}`

const flowingJSON = `{"status": "flowing", "intervention": null}`

func newTestComposer(t *testing.T) *prompt.Composer {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"hr_recruiter":         hrPersonaYAML,
		"tech_lead":            techLeadPersonaYAML,
		"practice_interviewer": practicePersonaYAML,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return prompt.NewComposer(persona.NewStore(dir), skill.NewRegistry(), nil)
}

// env wires an orchestrator against fakes and per-engine mock providers.
type env struct {
	rt       *mediamock.Runtime
	sessions *fakeSessions
	apps     *fakeApps
	provider *traceProvider
	observed *observe.Service

	scoreProv    *llmmock.Provider
	shadowProv   *llmmock.Provider
	feedbackProv *llmmock.Provider
	insightsProv *llmmock.Provider

	deps session.Deps
}

func newEnv(t *testing.T, sess *store.Session, app *store.Application) *env {
	t.Helper()
	e := &env{
		rt:           mediamock.NewRuntime(),
		sessions:     newFakeSessions(sess),
		apps:         newFakeApps(app),
		provider:     &traceProvider{},
		scoreProv:    &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: scoreJSON}},
		shadowProv:   &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: flowingJSON}},
		feedbackProv: &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: reviewJSON}},
		insightsProv: &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: extractionJSON}},
	}
	e.observed = observe.NewService(e.provider)

	// The profile manager degrades to a no-op when its model is down, which
	// keeps these tests focused on the orchestration flow.
	profileProv := &llmmock.Provider{CompleteErr: errors.New("profile model down")}
	gevalProv := &llmmock.Provider{CompleteErr: errors.New("judge model down")}

	e.deps = session.Deps{
		Sessions:     e.sessions,
		Apps:         e.apps,
		Runtime:      e.rt,
		Composer:     newTestComposer(t),
		Scoring:      scoring.NewEngine(e.scoreProv),
		Profiles:     profile.NewManager(profileProv),
		Difficulty:   difficulty.NewAdapter(difficulty.Config{}),
		Competency:   competency.NewEvaluator(nil),
		Insights:     insights.NewMemory(e.insightsProv, e.apps),
		Shadow:       shadow.NewMonitor(e.shadowProv),
		Feedback:     feedback.NewGenerator(e.feedbackProv),
		GEval:        geval.NewEvaluator(gevalProv),
		Observe:      e.observed,
		Metrics:      observe.DefaultMetrics(),
		SaveInterval: time.Hour,
	}
	return e
}

// run drives a full session: the events are emitted up front and Run is
// awaited to completion.
func (e *env) run(t *testing.T, events ...media.Event) error {
	t.Helper()
	for _, ev := range events {
		e.rt.Emit(ev)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.New("sess-1", e.deps).Run(context.Background())
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
		return nil
	}
}

func longAnswer(topic string) string {
	return fmt.Sprintf("I spent three weeks tracking down a %s race in our ingestion pipeline.", topic)
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestRun_DefaultsWhenSessionMissing(t *testing.T) {
	e := newEnv(t, nil, nil)

	if err := e.run(t, media.ParticipantLeft{Identity: "candidate"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	replies := e.rt.Replies()
	if len(replies) != 1 {
		t.Fatalf("replies = %d, want 1 greeting", len(replies))
	}
	for _, want := range []string{
		"HR Recruiter at TechVision",
		"Open the interview now with this greeting:",
	} {
		if !strings.Contains(replies[0].Instructions, want) {
			t.Errorf("greeting instructions missing %q", want)
		}
	}

	saves := e.sessions.savedTranscripts()
	if len(saves) == 0 || saves[len(saves)-1].status != store.StatusCompleted {
		t.Fatalf("final transcript save missing or wrong status: %+v", saves)
	}

	r, ok := e.sessions.savedResults("sess-1")
	if !ok {
		t.Fatal("results were not saved")
	}
	if r.OverallScore != 0 || !strings.Contains(r.FeedbackMarkdown, "without any conversation") {
		t.Errorf("empty session results = %+v", r)
	}
	if len(e.feedbackProv.Calls()) != 0 {
		t.Error("feedback model must not run on an empty transcript")
	}
}

func TestRun_TraceLifecycle(t *testing.T) {
	e := newEnv(t, nil, nil)

	if err := e.run(t, media.ParticipantLeft{}); err != nil {
		t.Fatalf("run: %v", err)
	}

	e.sessions.mu.Lock()
	traceID := e.sessions.traceIDs["sess-1"]
	e.sessions.mu.Unlock()
	if traceID != "trace-1" {
		t.Errorf("persisted trace id = %q, want trace-1", traceID)
	}
	if !e.provider.traceEnded() {
		t.Error("trace was not ended")
	}
	if got := e.observed.TraceForSession("sess-1"); got != "" {
		t.Errorf("session still registered after shutdown: %q", got)
	}
}

func TestRun_ScoresSubstantialAnswers(t *testing.T) {
	e := newEnv(t,
		&store.Session{SessionID: "sess-1", ApplicationID: "app-1", StageType: "technical", Language: "en"},
		&store.Application{
			ID:             "app-1",
			JobRole:        "Backend Engineer",
			ResumeText:     strings.Repeat("Built Go services on PostgreSQL with heavy concurrency. ", 2),
			JobDescription: strings.Repeat("Own backend services end to end, from design to on-call. ", 2),
		},
	)

	err := e.run(t,
		media.TurnAdded{Role: "assistant", Content: "Tell me about the hardest bug you have debugged."},
		media.TurnAdded{Role: "user", Content: longAnswer("goroutine")},
		media.TurnAdded{Role: "user", Content: "ok"},
		media.ParticipantLeft{},
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(e.scoreProv.Calls()) != 1 {
		t.Fatalf("scoring calls = %d, want 1 (short answer must be skipped)", len(e.scoreProv.Calls()))
	}

	r, ok := e.sessions.savedResults("sess-1")
	if !ok {
		t.Fatal("results were not saved")
	}
	if len(r.SkillAssessments) != 1 {
		t.Fatalf("skill assessments = %+v, want one entry", r.SkillAssessments)
	}
	if got := r.SkillAssessments[0]; got.Turn != 1 || got.Score != 82 {
		t.Errorf("assessment = %+v", got)
	}
	if r.DifficultyLevel != "intermediate" {
		t.Errorf("difficulty = %q, want intermediate (one score cannot move the level)", r.DifficultyLevel)
	}
	if r.OverallScore != 71 {
		t.Errorf("overall score = %d, want 71 from the feedback report", r.OverallScore)
	}
	if len(r.CompetencyScores) == 0 {
		t.Error("competency scores missing from results")
	}

	var sawAnswerScore bool
	for _, name := range e.provider.metricNames() {
		if name == "answer_score" {
			sawAnswerScore = true
		}
	}
	if !sawAnswerScore {
		t.Errorf("metrics = %v, want answer_score", e.provider.metricNames())
	}
}

func TestRun_ShadowInterventionUpdatesInstructions(t *testing.T) {
	e := newEnv(t, nil, nil)
	e.shadowProv.CompleteResponse = &llm.CompletionResponse{
		Content: `{"status": "stuck", "intervention": "Offer a hint about indexing."}`,
	}

	err := e.run(t,
		media.TurnAdded{Role: "assistant", Content: "How would you speed up this query?"},
		media.TurnAdded{Role: "user", Content: "not sure"},
		media.ParticipantLeft{},
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	updates := e.rt.InstructionUpdates()
	if len(updates) == 0 {
		t.Fatal("no instruction updates after shadow intervention")
	}
	last := updates[len(updates)-1].Instructions
	if !strings.Contains(last, "[IMPORTANT RUNTIME UPDATE]: Offer a hint about indexing.") {
		t.Errorf("instructions missing intervention block:\n%s", last)
	}
	if !strings.Contains(last, "HR Recruiter at TechVision") {
		t.Error("intervention must append to the base prompt, not replace it")
	}
}

func TestRun_CrossStageContext(t *testing.T) {
	e := newEnv(t,
		&store.Session{SessionID: "sess-1", ApplicationID: "app-1", StageType: "technical", Language: "en"},
		&store.Application{
			ID:      "app-1",
			JobRole: "Backend Engineer",
			CrossStageInsights: map[string]insights.StageInsights{
				"hr": {
					StageType:        "hr",
					Summary:          "Warm communicator, vague about team size.",
					OverallScore:     68,
					KeyTopicsCovered: []string{"career history"},
				},
			},
		},
	)

	err := e.run(t,
		media.TurnAdded{Role: "assistant", Content: "Let's dig into your Go experience."},
		media.TurnAdded{Role: "user", Content: longAnswer("deadlock")},
		media.ParticipantLeft{},
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	greeting := e.rt.Replies()[0].Instructions
	for _, want := range []string{
		"PREVIOUS STAGE INSIGHTS:",
		"Warm communicator, vague about team size.",
		"career history",
	} {
		if !strings.Contains(greeting, want) {
			t.Errorf("prompt missing previous stage context %q", want)
		}
	}

	saved := e.apps.savedInsights("app-1")
	if saved == nil {
		t.Fatal("stage insights were not persisted at shutdown")
	}
	ins, ok := saved["technical"]
	if !ok || ins.Summary != "Communicates clearly under pressure." {
		t.Errorf("persisted insights = %+v", saved)
	}
	if _, ok := saved["hr"]; !ok {
		t.Error("existing hr insights must survive the read-modify-write")
	}
}

func TestRun_ScoredTurnLogsLLMCall(t *testing.T) {
	e := newEnv(t, nil, nil)
	e.deps.Scoring = scoring.NewEngine(observe.InstrumentLLM(e.scoreProv, e.observed, "shadow-model", "scoring"))

	err := e.run(t,
		media.TurnAdded{Role: "assistant", Content: "Tell me about the hardest bug you have debugged."},
		media.TurnAdded{Role: "user", Content: longAnswer("mutex")},
		media.ParticipantLeft{},
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var scoringCalls int
	for _, c := range e.provider.loggedLLMCalls() {
		if c.component != "scoring" {
			continue
		}
		scoringCalls++
		if c.traceID != "trace-1" {
			t.Errorf("scoring call trace = %q, want trace-1 via the session registry", c.traceID)
		}
	}
	if scoringCalls != 1 {
		t.Errorf("scoring llm calls logged = %d, want 1", scoringCalls)
	}
}

func TestRun_ProfileUpdatesSurviveIntoResults(t *testing.T) {
	e := newEnv(t, nil, nil)
	e.deps.Profiles = profile.NewManager(&llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{
			"verified_skills": {"golang": {"depth": 4, "evidence": "walked through the race fix"}},
			"weakness_signals": [],
			"red_flags": [],
			"new_strengths": ["debugging"],
			"key_facts": [],
			"topic_covered": "concurrency"
		}`},
	})

	err := e.run(t,
		media.TurnAdded{Role: "assistant", Content: "Tell me about the hardest bug you have debugged."},
		media.TurnAdded{Role: "user", Content: longAnswer("channel")},
		media.ParticipantLeft{},
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	r, ok := e.sessions.savedResults("sess-1")
	if !ok {
		t.Fatal("results were not saved")
	}
	p := r.CandidateProfile
	if p == nil {
		t.Fatal("candidate profile missing from results")
	}
	if p.CurrentTurn != 1 || len(p.PerformanceTrajectory) != 1 {
		t.Errorf("profile counters = turn %d, trajectory %v", p.CurrentTurn, p.PerformanceTrajectory)
	}
	got, ok := p.VerifiedSkills["golang"]
	if !ok || got.Depth != 4 {
		t.Errorf("verified skill = %+v, want golang at depth 4", p.VerifiedSkills)
	}
	if got.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8 for a score of 82", got.Confidence)
	}
	if len(r.TopicsCovered) == 0 || r.TopicsCovered[0] != "concurrency" {
		t.Errorf("topics covered = %v, want [concurrency]", r.TopicsCovered)
	}
}

func TestRun_SessionLookupFailureFallsBack(t *testing.T) {
	e := newEnv(t, nil, nil)
	e.sessions.getErr = errors.New("database down")

	if err := e.run(t, media.ParticipantLeft{}); err != nil {
		t.Fatalf("run must fall back to defaults, got %v", err)
	}
	if len(e.rt.Replies()) != 1 {
		t.Fatal("greeting missing after fallback boot")
	}
}

func TestRun_ComposerFailureIsFatal(t *testing.T) {
	e := newEnv(t, nil, nil)
	e.deps.Composer = prompt.NewComposer(persona.NewStore(t.TempDir()), skill.NewRegistry(), nil)

	err := session.New("sess-1", e.deps).Run(context.Background())
	if err == nil {
		t.Fatal("expected an error when no persona can be loaded")
	}
	if len(e.rt.Replies()) != 0 {
		t.Error("no greeting must be generated without a system prompt")
	}
}
