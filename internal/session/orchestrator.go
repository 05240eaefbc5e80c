// Package session runs one live interview from greeting to final report.
//
// The Orchestrator owns the per-session event loop: it composes the system
// prompt, drives the media runtime, scores answers in the background, lets
// the shadow monitor steer the interviewer mid-session, and persists the
// transcript and derived results. A Recorder provides periodic durability so
// a crash loses at most one save interval of conversation.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/voxhire/voxhire/internal/competency"
	"github.com/voxhire/voxhire/internal/difficulty"
	"github.com/voxhire/voxhire/internal/feedback"
	"github.com/voxhire/voxhire/internal/geval"
	"github.com/voxhire/voxhire/internal/insights"
	"github.com/voxhire/voxhire/internal/media"
	"github.com/voxhire/voxhire/internal/observe"
	"github.com/voxhire/voxhire/internal/profile"
	"github.com/voxhire/voxhire/internal/prompt"
	"github.com/voxhire/voxhire/internal/scoring"
	"github.com/voxhire/voxhire/internal/shadow"
	"github.com/voxhire/voxhire/internal/store"
	"github.com/voxhire/voxhire/pkg/types"
)

const (
	// Boot defaults applied when the session row is missing or incomplete.
	defaultStageType = "hr"
	defaultJobRole   = "General"
	defaultLanguage  = "en"

	// minScoredAnswerChars is the trimmed answer length above which a user
	// turn is scored.
	minScoredAnswerChars = 20

	// shadowMinTurns is how many turns the transcript needs before the
	// shadow monitor is consulted.
	shadowMinTurns = 2

	// maxInstructionLen bounds the live system prompt; runtime updates
	// that would push past it are dropped.
	maxInstructionLen = 30000

	// shutdownStepTimeout bounds each independent shutdown step.
	shutdownStepTimeout = 30 * time.Second
)

// Deps is everything an [Orchestrator] needs. All fields are required unless
// noted.
type Deps struct {
	Sessions store.SessionStore
	Apps     store.ApplicationStore
	Runtime  media.Runtime
	Composer *prompt.Composer

	Scoring    *scoring.Engine
	Profiles   *profile.Manager
	Difficulty *difficulty.Adapter
	Competency *competency.Evaluator
	Insights   *insights.Memory
	Shadow     *shadow.Monitor
	Feedback   *feedback.Generator
	GEval      *geval.Evaluator

	Observe *observe.Service
	Metrics *observe.Metrics

	// SaveInterval overrides the recorder's periodic save interval.
	// Defaults to 30 seconds if zero.
	SaveInterval time.Duration
}

// Orchestrator runs a single interview session. Create one per session with
// [New] and drive it with [Orchestrator.Run]; it is not reusable.
type Orchestrator struct {
	deps      Deps
	sessionID string

	// Resolved at boot.
	stageType string
	jobRole   string
	language  string
	appID     string
	resume    string
	jobDesc   string
	traceID   string

	mu           sync.Mutex
	instructions string
	transcript   []types.Turn
	userTurns    int
	lastQuestion string
	turnScores   []scoring.AnswerScore
	compScores   []competency.TurnScore
	prof         *profile.Profile
	diff         *difficulty.State

	// scoreMu serializes the score-profile-difficulty pipeline so updates
	// apply in turn order even though each runs in the background.
	scoreMu sync.Mutex
	tasks   sync.WaitGroup

	recorder *Recorder
}

// New creates an Orchestrator for the given session.
func New(sessionID string, deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps, sessionID: sessionID}
}

// Run drives the session to completion: boot, greeting, event loop, and the
// shutdown sequence. It returns when the candidate leaves, the runtime's
// event stream closes, or ctx is cancelled. Only boot failures that make the
// interview impossible are returned; everything after the greeting degrades
// instead of failing.
func (o *Orchestrator) Run(ctx context.Context) error {
	// Background work spawned from this context finds its trace through the
	// session→trace registry.
	ctx = observe.WithSessionID(ctx, o.sessionID)

	if err := o.boot(ctx); err != nil {
		return err
	}

	greeting, err := o.compose(ctx)
	if err != nil {
		return err
	}

	o.startTrace(ctx)

	o.recorder = NewRecorder(RecorderConfig{
		Store:     o.deps.Sessions,
		SessionID: o.sessionID,
		Snapshot:  o.transcriptSnapshot,
		Interval:  o.deps.SaveInterval,
	})
	o.recorder.Start(ctx)

	o.mu.Lock()
	instr := o.instructions
	o.mu.Unlock()
	opening := instr + "\n\nOpen the interview now with this greeting: " + greeting
	if err := o.deps.Runtime.GenerateReply(ctx, opening); err != nil {
		slog.Warn("greeting failed", "session_id", o.sessionID, "error", err)
	}

	o.eventLoop(ctx)
	o.shutdown()
	return nil
}

// ─── Boot ───────────────────────────────────────────────────────────────────

// boot loads the session and application rows and resolves their defaults.
// A missing or unreadable session row falls back to a standalone HR session
// so the interview can still run.
func (o *Orchestrator) boot(ctx context.Context) error {
	o.stageType = defaultStageType
	o.jobRole = defaultJobRole
	o.language = defaultLanguage

	sess, err := o.deps.Sessions.Get(ctx, o.sessionID)
	if err != nil {
		slog.Warn("session lookup failed, using defaults", "session_id", o.sessionID, "error", err)
	}
	if sess != nil {
		if sess.StageType != "" {
			o.stageType = sess.StageType
		}
		if sess.Language != "" {
			o.language = sess.Language
		}
		o.appID = sess.ApplicationID
		o.transcript = sess.Transcript
	}

	if o.appID != "" {
		app, err := o.deps.Apps.Get(ctx, o.appID)
		if err != nil {
			slog.Warn("application lookup failed", "application_id", o.appID, "error", err)
		}
		if app != nil {
			if app.JobRole != "" {
				o.jobRole = app.JobRole
			}
			o.resume = app.ResumeText
			o.jobDesc = app.JobDescription
		}
	}

	if o.resume != "" || o.jobDesc != "" {
		o.prof = o.deps.Profiles.CreateInitial(ctx, o.resume, o.jobDesc)
	} else {
		o.prof = profile.New()
	}
	o.diff = difficulty.NewState(difficulty.LevelForStage(o.stageType))
	return nil
}

// compose builds the system prompt and greeting from the boot state plus the
// initial intelligence blocks. A prompt composition failure is fatal: there
// is no interviewer without a persona.
func (o *Orchestrator) compose(ctx context.Context) (greeting string, err error) {
	var prevInsights string
	if o.appID != "" && (o.stageType == "technical" || o.stageType == "behavioral") {
		prev := o.deps.Insights.PreviousInsights(ctx, o.appID, o.stageType)
		prevInsights = insights.BuildContextPrompt(prev)
	}

	in := prompt.Inputs{
		SessionID:             o.sessionID,
		StageType:             o.stageType,
		JobRole:               o.jobRole,
		Language:              o.language,
		Resume:                o.resume,
		JobDescription:        o.jobDesc,
		PreviousStageInsights: prevInsights,
		ProfileContext:        profile.ContextString(o.prof),
		DifficultyGuidance:    o.deps.Difficulty.PromptInjection(o.diff),
		CompetencyFocus:       o.deps.Competency.InterviewGuidance(o.stageType, o.jobRole, nil),
	}

	instr, err := o.deps.Composer.SystemInstruction(in)
	if err != nil {
		return "", fmt.Errorf("session: compose system prompt: %w", err)
	}
	o.mu.Lock()
	o.instructions = instr
	o.mu.Unlock()

	greeting, err = o.deps.Composer.Greeting(in)
	if err != nil {
		return "", fmt.Errorf("session: compose greeting: %w", err)
	}
	return greeting, nil
}

// startTrace opens the observability trace and links it to the session.
func (o *Orchestrator) startTrace(ctx context.Context) {
	o.traceID = o.deps.Observe.StartTrace(ctx, "interview_session_"+o.sessionID, observe.TraceMetadata{
		SessionID: o.sessionID,
		StageType: o.stageType,
		JobRole:   o.jobRole,
		Language:  o.language,
	})
	if o.traceID == "" {
		return
	}
	o.deps.Observe.RegisterSessionTrace(o.sessionID, o.traceID)
	if err := o.deps.Sessions.SetTraceID(ctx, o.sessionID, o.traceID); err != nil {
		slog.Warn("failed to persist trace id", "session_id", o.sessionID, "error", err)
	}
}

// ─── Event loop ─────────────────────────────────────────────────────────────

// eventLoop consumes runtime events until the candidate leaves, the stream
// closes, or ctx is cancelled. It never surfaces errors: every per-turn
// failure is absorbed so the conversation keeps flowing.
func (o *Orchestrator) eventLoop(ctx context.Context) {
	events := o.deps.Runtime.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch e := ev.(type) {
			case media.TurnAdded:
				o.handleTurn(ctx, e)
			case media.ParticipantLeft:
				slog.Info("participant left", "session_id", o.sessionID, "identity", e.Identity)
				return
			}
		}
	}
}

// handleTurn appends a committed turn and kicks off the background work it
// triggers: the turn event log, the scoring pipeline for substantial user
// answers, and the shadow analysis.
func (o *Orchestrator) handleTurn(ctx context.Context, t media.TurnAdded) {
	o.mu.Lock()
	o.transcript = append(o.transcript, types.Turn{
		Role:      t.Role,
		Content:   t.Content,
		Timestamp: time.Now().UTC(),
	})
	question := o.lastQuestion
	if t.Role == "assistant" {
		o.lastQuestion = t.Content
	} else {
		o.userTurns++
	}
	turns := len(o.transcript)
	o.mu.Unlock()

	o.spawn(func() { o.logTurnEvent(ctx, t.Role, turns) })

	if t.Role != "user" {
		return
	}
	if len(strings.TrimSpace(t.Content)) > minScoredAnswerChars && question != "" {
		o.spawn(func() { o.scorePipeline(ctx, question, t.Content) })
	}
	if turns >= shadowMinTurns {
		o.spawn(func() { o.runShadow(ctx) })
	}
}

// spawn runs fn in a tracked goroutine so shutdown can await it.
func (o *Orchestrator) spawn(fn func()) {
	o.tasks.Add(1)
	go func() {
		defer o.tasks.Done()
		fn()
	}()
}

// logTurnEvent records one turn in the trace and metrics. Fire and forget.
func (o *Orchestrator) logTurnEvent(ctx context.Context, role string, turn int) {
	o.deps.Metrics.RecordTurnEvent(ctx, role)
	spanID := o.deps.Observe.StartSpan(ctx, "turn_event", o.traceID, observe.SpanTypeFunction,
		map[string]any{"role": role, "turn": turn},
		observe.TraceMetadata{SessionID: o.sessionID, StageType: o.stageType},
	)
	o.deps.Observe.EndSpan(ctx, spanID, nil, "")
}

// scorePipeline scores one answer and applies the downstream updates: trace
// metric, live profile, difficulty state. Pipelines are serialized so the
// profile and difficulty window see scores in turn order. The profile is
// updated on a private copy and published by pointer swap under mu, so
// readers never observe a half-merged profile even if shutdown stops
// waiting for an overlong pipeline.
func (o *Orchestrator) scorePipeline(ctx context.Context, question, answer string) {
	o.scoreMu.Lock()
	defer o.scoreMu.Unlock()

	o.mu.Lock()
	prof := o.prof.Clone()
	o.mu.Unlock()

	sc := &scoring.Context{PreviousScores: o.previousOveralls()}
	if data, err := json.Marshal(prof); err == nil {
		sc.ProfileJSON = string(data)
	}

	score := o.deps.Scoring.ScoreAnswer(ctx, question, answer, o.stageType, o.jobRole, sc)

	o.deps.Observe.RecordMetric(ctx, o.traceID, "answer_score", score.Overall,
		map[string]any{"dimension": score.Dimension})
	o.deps.Metrics.RecordAnswerScore(ctx, score.Overall, score.Dimension)

	o.deps.Profiles.UpdateAfterTurn(ctx, prof, question, answer, score.Overall)

	o.mu.Lock()
	o.prof = prof
	o.turnScores = append(o.turnScores, score)
	turn := len(o.turnScores)
	o.compScores = append(o.compScores, competency.TurnScore{
		Turn:      turn,
		Score:     score.Overall,
		Dimension: o.deps.Competency.MapDimension(score.Dimension),
	})
	changed := o.deps.Difficulty.Update(o.diff, score.Overall, turn)
	guidance := o.deps.Difficulty.PromptInjection(o.diff)
	level := o.diff.Level
	o.mu.Unlock()

	if changed {
		slog.Info("difficulty level changed", "session_id", o.sessionID, "level", level)
		o.appendRuntimeUpdate(ctx, guidance)
	}
}

// previousOveralls snapshots the overall scores recorded so far.
func (o *Orchestrator) previousOveralls() []float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	overalls := make([]float64, len(o.turnScores))
	for i, s := range o.turnScores {
		overalls[i] = s.Overall
	}
	return overalls
}

// runShadow asks the shadow monitor for a steering directive and, when one
// comes back, pushes it to the interviewer as a runtime instruction update.
func (o *Orchestrator) runShadow(ctx context.Context) {
	directive := o.deps.Shadow.Analyze(ctx, o.transcriptSnapshot(), o.jobRole, o.stageType)
	if directive == "" {
		return
	}
	o.deps.Metrics.RecordShadowIntervention(ctx, o.stageType)
	o.appendRuntimeUpdate(ctx, "[IMPORTANT RUNTIME UPDATE]: "+directive)
}

// appendRuntimeUpdate grows the live system prompt with a new block and
// pushes it to the runtime. Updates that would blow the prompt budget are
// dropped.
func (o *Orchestrator) appendRuntimeUpdate(ctx context.Context, block string) {
	if block == "" {
		return
	}
	o.mu.Lock()
	if len(o.instructions)+len(block) > maxInstructionLen {
		o.mu.Unlock()
		slog.Warn("runtime update dropped, prompt budget exceeded", "session_id", o.sessionID)
		return
	}
	o.instructions += "\n\n" + block
	instr := o.instructions
	o.mu.Unlock()

	if err := o.deps.Runtime.UpdateInstructions(ctx, instr); err != nil {
		slog.Warn("instruction update failed", "session_id", o.sessionID, "error", err)
	}
}

// transcriptSnapshot copies the transcript for readers outside the lock.
func (o *Orchestrator) transcriptSnapshot() []types.Turn {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]types.Turn, len(o.transcript))
	copy(out, o.transcript)
	return out
}

// ─── Shutdown ───────────────────────────────────────────────────────────────

// shutdown runs the end-of-session sequence. Every step is independent and
// bounded: a failure or timeout in one never blocks the rest.
func (o *Orchestrator) shutdown() {
	o.recorder.Stop()
	o.awaitTasks(shutdownStepTimeout)

	// Snapshot under mu: a pipeline that outlived the await above publishes
	// its profile by pointer swap, so these reads stay consistent even when
	// it is still running.
	transcript := o.transcriptSnapshot()
	o.mu.Lock()
	prof := o.prof
	compScores := append([]competency.TurnScore(nil), o.compScores...)
	level := o.diff.Level
	o.mu.Unlock()

	o.step("final transcript save", func(ctx context.Context) error {
		return o.recorder.SaveNow(ctx, store.StatusCompleted)
	})

	var eval competency.Evaluation
	if len(compScores) > 0 {
		o.step("competency evaluation", func(ctx context.Context) error {
			eval = o.deps.Competency.Compute(compScores, o.jobRole)
			return nil
		})
	}

	if o.appID != "" && len(transcript) > 0 {
		o.step("stage insights", func(ctx context.Context) error {
			o.deps.Insights.SaveStageInsights(ctx, o.appID, o.stageType, prof, transcript, compScores, o.jobRole)
			return nil
		})
	}

	o.step("save results", func(ctx context.Context) error {
		report := o.deps.Feedback.Generate(ctx, transcript, o.resume, o.jobDesc)
		return o.deps.Sessions.SaveResults(ctx, o.sessionID, store.Results{
			CandidateProfile: prof,
			SkillAssessments: compScores,
			DifficultyLevel:  level,
			CompetencyScores: eval.CompetencyScores,
			TopicsCovered:    prof.TopicsCovered,
			FeedbackMarkdown: report.JSON(),
			OverallScore:     report.Score,
		})
	})

	o.step("session evaluation", func(ctx context.Context) error {
		for name, value := range geval.BasicMetrics(transcript) {
			o.deps.Observe.RecordMetric(ctx, o.traceID, name, value, nil)
		}
		if result := o.deps.GEval.EvaluateSession(ctx, o.sessionID, o.traceID, transcript, o.stageType, o.jobRole); result != nil {
			o.deps.Observe.SubmitEvaluation(ctx, *result)
		}
		return nil
	})

	o.step("end trace", func(ctx context.Context) error {
		o.deps.Observe.EndTrace(ctx, o.traceID, map[string]any{
			"total_turns":       len(transcript),
			"competency_scores": eval.CompetencyScores,
			"difficulty_final":  level,
		}, "")
		o.deps.Observe.UnregisterSessionTrace(o.sessionID)
		return nil
	})

	if err := o.deps.Runtime.Close(); err != nil {
		slog.Warn("runtime close failed", "session_id", o.sessionID, "error", err)
	}
}

// step runs one shutdown step with its own timeout and logs failures.
func (o *Orchestrator) step(name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(observe.WithSessionID(context.Background(), o.sessionID), shutdownStepTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		slog.Error("shutdown step failed", "session_id", o.sessionID, "step", name, "error", err)
	}
}

// awaitTasks waits for in-flight background work, bounded by timeout.
func (o *Orchestrator) awaitTasks(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		o.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		slog.Warn("timed out waiting for background tasks", "session_id", o.sessionID)
	}
}
