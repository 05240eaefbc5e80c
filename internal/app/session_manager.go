package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxhire/voxhire/internal/media"
	"github.com/voxhire/voxhire/internal/session"
	"github.com/voxhire/voxhire/internal/store"
	"github.com/voxhire/voxhire/internal/transcript"
	"github.com/voxhire/voxhire/pkg/provider/llm"
	"github.com/voxhire/voxhire/pkg/provider/stt"
	"github.com/voxhire/voxhire/pkg/provider/tts"
	"github.com/voxhire/voxhire/pkg/provider/vad"
	"github.com/voxhire/voxhire/pkg/types"
)

// stopTimeout bounds how long StopSession waits for a session's shutdown
// sequence to finish.
const stopTimeout = 2 * time.Minute

// SessionInfo holds metadata about an active interview session.
type SessionInfo struct {
	// SessionID is the unique identifier for this session.
	SessionID string

	// StageType is hr, technical, behavioral, or practice.
	StageType string

	Language string

	// StartedAt is when the session was started.
	StartedAt time.Time
}

// runningSession is the manager's handle on one live interview.
type runningSession struct {
	info   SessionInfo
	rt     *media.CascadeRuntime
	cancel context.CancelFunc
	done   chan struct{}
}

// SessionManager runs concurrent interview sessions. Each session gets its
// own media pipeline and orchestrator; the VAD engine is shared across
// sessions because model loading is expensive.
//
// All exported methods are safe for concurrent use.
type SessionManager struct {
	mu      sync.Mutex
	running map[string]*runningSession

	// Dependencies injected at construction.
	deps      session.Deps
	llmP      llm.Provider
	sttP      stt.Provider
	ttsP      tts.Provider
	vadE      vad.Engine
	vadC      vad.Config
	corrector transcript.Pipeline
	vocab     []string
}

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	// Deps is the orchestrator dependency set. The Runtime field is
	// ignored; the manager builds a fresh pipeline per session.
	Deps session.Deps

	// LLM is the conversational model driving reply generation.
	LLM llm.Provider

	// STT is the transcription provider sessions stream audio to.
	STT stt.Provider

	// TTS synthesizes the interviewer's voice.
	TTS tts.Provider

	// VADEngine is the preloaded speech detector shared by all sessions.
	VADEngine vad.Engine

	// VADConfig configures the per-session detector. Zero values use
	// 16 kHz / 20 ms frames with standard thresholds.
	VADConfig vad.Config

	// Corrector fixes misheard technical terms in final transcripts. Nil
	// disables correction.
	Corrector transcript.Pipeline

	// Vocabulary is the term list the corrector matches against.
	Vocabulary []string
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	vadC := cfg.VADConfig
	if vadC.SampleRate == 0 {
		vadC.SampleRate = 16000
	}
	if vadC.FrameSizeMs == 0 {
		vadC.FrameSizeMs = 20
	}
	if vadC.SpeechThreshold == 0 {
		vadC.SpeechThreshold = 0.5
	}
	if vadC.SilenceThreshold == 0 {
		vadC.SilenceThreshold = 0.35
	}
	return &SessionManager{
		running:   make(map[string]*runningSession),
		deps:      cfg.Deps,
		llmP:      cfg.LLM,
		sttP:      cfg.STT,
		ttsP:      cfg.TTS,
		vadE:      cfg.VADEngine,
		vadC:      vadC,
		corrector: cfg.Corrector,
		vocab:     cfg.Vocabulary,
	}
}

// CreateSession inserts a new pending session row and returns its generated
// ID. The gateway normally pre-creates sessions; this path serves standalone
// practice interviews started without one.
func (sm *SessionManager) CreateSession(ctx context.Context, stageType, language string) (string, error) {
	s := &store.Session{
		SessionID: uuid.NewString(),
		StageType: stageType,
		Status:    store.StatusPending,
		Language:  language,
	}
	if err := sm.deps.Sessions.Create(ctx, s); err != nil {
		return "", fmt.Errorf("app: create session: %w", err)
	}
	slog.Info("session created", "session_id", s.SessionID, "stage", stageType)
	return s.SessionID, nil
}

// StartSession builds the media pipeline for one interview and runs its
// orchestrator in the background. Returns an error if the session is already
// running or the pipeline cannot start.
func (sm *SessionManager) StartSession(ctx context.Context, sessionID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.running[sessionID]; ok {
		return fmt.Errorf("app: session %q is already running", sessionID)
	}

	stageType, language := sm.lookupStage(ctx, sessionID)

	voiceID, err := sm.deps.Composer.Voice(stageType, language, sessionID)
	if err != nil {
		return fmt.Errorf("app: resolve voice for session %q: %w", sessionID, err)
	}

	rt := media.NewCascadeRuntime(sm.llmP, sm.sttP, sm.ttsP, sm.vadE, media.CascadeConfig{
		STT: stt.StreamConfig{
			SampleRate: sm.vadC.SampleRate,
			Channels:   1,
			Language:   sttLanguage(language),
		},
		VAD:        sm.vadC,
		Voice:      types.VoiceProfile{ID: voiceID, Model: ttsModel(language)},
		Corrector:  sm.corrector,
		Vocabulary: sm.vocab,
	})

	sessionCtx, cancel := context.WithCancel(context.Background())
	if err := rt.Start(sessionCtx); err != nil {
		cancel()
		return fmt.Errorf("app: start media pipeline for session %q: %w", sessionID, err)
	}

	deps := sm.deps
	deps.Runtime = rt

	rs := &runningSession{
		info: SessionInfo{
			SessionID: sessionID,
			StageType: stageType,
			Language:  language,
			StartedAt: time.Now().UTC(),
		},
		rt:     rt,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	sm.running[sessionID] = rs

	go func() {
		defer close(rs.done)
		defer cancel()
		if err := session.New(sessionID, deps).Run(sessionCtx); err != nil {
			slog.Error("session failed", "session_id", sessionID, "error", err)
		}
		sm.mu.Lock()
		delete(sm.running, sessionID)
		sm.mu.Unlock()
	}()

	slog.Info("session started",
		"session_id", sessionID,
		"stage", stageType,
		"language", language,
		"voice", voiceID,
	)
	return nil
}

// StopSession asks a running session to shut down and waits for its final
// persistence to complete, bounded by a timeout.
func (sm *SessionManager) StopSession(sessionID string) error {
	sm.mu.Lock()
	rs, ok := sm.running[sessionID]
	sm.mu.Unlock()
	if !ok {
		return fmt.Errorf("app: session %q is not running", sessionID)
	}

	rs.rt.NotifyParticipantLeft("server")

	select {
	case <-rs.done:
	case <-time.After(stopTimeout):
		slog.Warn("session stop timed out, cancelling", "session_id", sessionID)
		rs.cancel()
		<-rs.done
	}

	slog.Info("session stopped", "session_id", sessionID)
	return nil
}

// StopAll stops every running session. Used during server shutdown.
func (sm *SessionManager) StopAll() {
	sm.mu.Lock()
	ids := make([]string, 0, len(sm.running))
	for id := range sm.running {
		ids = append(ids, id)
	}
	sm.mu.Unlock()

	for _, id := range ids {
		if err := sm.StopSession(id); err != nil {
			slog.Warn("stop session failed", "session_id", id, "error", err)
		}
	}
}

// PushAudio forwards one audio frame into a running session's pipeline.
func (sm *SessionManager) PushAudio(sessionID string, frame []byte) error {
	sm.mu.Lock()
	rs, ok := sm.running[sessionID]
	sm.mu.Unlock()
	if !ok {
		return fmt.Errorf("app: session %q is not running", sessionID)
	}
	return rs.rt.PushAudio(frame)
}

// AudioOut returns the synthesized audio stream for a running session, or
// nil if the session is not running.
func (sm *SessionManager) AudioOut(sessionID string) <-chan []byte {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	rs, ok := sm.running[sessionID]
	if !ok {
		return nil
	}
	return rs.rt.Audio()
}

// IsActive reports whether the session is currently running.
func (sm *SessionManager) IsActive(sessionID string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	_, ok := sm.running[sessionID]
	return ok
}

// Active returns metadata for all running sessions.
func (sm *SessionManager) Active() []SessionInfo {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	infos := make([]SessionInfo, 0, len(sm.running))
	for _, rs := range sm.running {
		infos = append(infos, rs.info)
	}
	return infos
}

// lookupStage reads the session row for pipeline parameters. A missing or
// unreadable row falls back to the orchestrator's boot defaults so the two
// layers agree.
func (sm *SessionManager) lookupStage(ctx context.Context, sessionID string) (stageType, language string) {
	stageType, language = "hr", "en"
	sess, err := sm.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		slog.Warn("session lookup for pipeline failed", "session_id", sessionID, "error", err)
		return stageType, language
	}
	if sess != nil {
		if sess.StageType != "" {
			stageType = sess.StageType
		}
		if sess.Language != "" {
			language = sess.Language
		}
	}
	return stageType, language
}

// sttLanguage maps the interview language to a BCP-47 recognition tag.
func sttLanguage(language string) string {
	if language == "vi" {
		return "vi-VN"
	}
	return "en-US"
}

// ttsModel selects the synthesis model per language. Vietnamese needs the
// multilingual model; English uses the faster monolingual one.
func ttsModel(language string) string {
	if language == "vi" {
		return "eleven_turbo_v2_5"
	}
	return "eleven_turbo_v2"
}
