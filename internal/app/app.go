// Package app wires all voxhire subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the health and metrics endpoints until the context
// is cancelled, and Shutdown tears everything down in order.
//
// For testing, inject fakes via functional options (WithSessionStore,
// WithApplicationStore, WithObserveService). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxhire/voxhire/internal/competency"
	"github.com/voxhire/voxhire/internal/config"
	"github.com/voxhire/voxhire/internal/difficulty"
	"github.com/voxhire/voxhire/internal/feedback"
	"github.com/voxhire/voxhire/internal/geval"
	"github.com/voxhire/voxhire/internal/health"
	"github.com/voxhire/voxhire/internal/insights"
	"github.com/voxhire/voxhire/internal/observe"
	"github.com/voxhire/voxhire/internal/persona"
	"github.com/voxhire/voxhire/internal/profile"
	"github.com/voxhire/voxhire/internal/prompt"
	"github.com/voxhire/voxhire/internal/resilience"
	"github.com/voxhire/voxhire/internal/scoring"
	"github.com/voxhire/voxhire/internal/session"
	"github.com/voxhire/voxhire/internal/shadow"
	"github.com/voxhire/voxhire/internal/skill"
	"github.com/voxhire/voxhire/internal/stage"
	"github.com/voxhire/voxhire/internal/store"
	"github.com/voxhire/voxhire/internal/transcript"
	"github.com/voxhire/voxhire/internal/transcript/llmcorrect"
	"github.com/voxhire/voxhire/internal/transcript/phonetic"
	"github.com/voxhire/voxhire/pkg/provider/llm"
	"github.com/voxhire/voxhire/pkg/provider/stt"
	"github.com/voxhire/voxhire/pkg/provider/tts"
	"github.com/voxhire/voxhire/pkg/provider/vad"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	// LLM drives the interviewer's replies.
	LLM llm.Provider

	// Shadow backs scoring, monitoring, profile extraction, and insights.
	// Falls back to LLM when nil.
	Shadow llm.Provider

	STT stt.Provider
	TTS tts.Provider
	VAD vad.Engine
}

// App owns all subsystem lifetimes for the voxhire interview server.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems, initialised in New, torn down in Shutdown.
	pool     *pgxpool.Pool
	sessions store.SessionStore
	apps     store.ApplicationStore
	stages   *stage.Manager
	observed *observe.Service
	metrics  *observe.Metrics
	manager  *SessionManager

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSessionStore injects a session store instead of creating one from config.
func WithSessionStore(s store.SessionStore) Option {
	return func(a *App) { a.sessions = s }
}

// WithApplicationStore injects an application store instead of creating one
// from config.
func WithApplicationStore(s store.ApplicationStore) Option {
	return func(a *App) { a.apps = s }
}

// WithObserveService injects an observability service instead of the default
// disabled one.
func WithObserveService(s *observe.Service) Option {
	return func(a *App) { a.observed = s }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	if a.observed == nil {
		a.observed = observe.NewService(nil)
	}
	a.metrics = observe.DefaultMetrics()

	// ── 1. Stores ────────────────────────────────────────────────────────
	if err := a.initStores(ctx); err != nil {
		return nil, fmt.Errorf("app: init stores: %w", err)
	}

	// ── 2. Intelligence + session manager ────────────────────────────────
	if err := a.initSessions(); err != nil {
		return nil, fmt.Errorf("app: init sessions: %w", err)
	}

	return a, nil
}

// initStores sets up the PostgreSQL stores or uses injected fakes.
func (a *App) initStores(ctx context.Context) error {
	if a.sessions != nil && a.apps != nil {
		return nil // both injected
	}

	dsn := a.cfg.Database.PostgresDSN
	if dsn == "" {
		return fmt.Errorf("database.postgres_dsn is required when stores are not injected")
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	if a.cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = int32(a.cfg.Database.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := store.Migrate(ctx, pool); err != nil {
		pool.Close()
		return err
	}

	a.pool = pool
	if a.sessions == nil {
		a.sessions = store.NewPostgresSessionStore(pool)
	}
	if a.apps == nil {
		a.apps = store.NewPostgresApplicationStore(pool)
	}
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	return nil
}

// initSessions builds the interview intelligence stack and the session
// manager on top of it.
func (a *App) initSessions() error {
	intel := a.cfg.Intelligence

	personaDir := intel.PersonaDir
	if personaDir == "" {
		personaDir = "config/personas"
	}

	var stacks prompt.TechStacks
	if intel.TechStacksFile != "" {
		s, err := prompt.LoadTechStacks(intel.TechStacksFile)
		if err != nil {
			slog.Warn("tech stacks unavailable, resume focus disabled", "path", intel.TechStacksFile, "error", err)
		} else {
			stacks = s
		}
	}

	var fw *competency.Framework
	if intel.CompetencyFramework != "" {
		loaded, err := competency.LoadFramework(intel.CompetencyFramework)
		if err != nil {
			slog.Warn("competency framework unavailable, using built-in defaults", "path", intel.CompetencyFramework, "error", err)
		} else {
			fw = loaded
		}
	}

	stages, err := stage.NewManager(intel.StagesFile)
	if err != nil {
		return fmt.Errorf("load stages: %w", err)
	}
	a.stages = stages

	// The background pipeline keeps scoring even when the shadow model is
	// down: wrap it so calls fall over to the conversation model.
	shadowProv := a.providers.Shadow
	shadowModel := a.cfg.Providers.Shadow.Model
	if shadowProv == nil {
		shadowProv = a.providers.LLM
		shadowModel = a.cfg.Providers.LLM.Model
	} else if a.providers.LLM != nil {
		fb := resilience.NewLLMFallback(shadowProv, "shadow", resilience.FallbackConfig{Kind: "llm"})
		fb.AddFallback("conversation", a.providers.LLM)
		shadowProv = fb
	}

	// Every model invocation is logged under the calling session's trace.
	// The component label tells the scoring call apart from the profile
	// extraction sharing the same shadow model.
	instrument := func(p llm.Provider, model, component string) llm.Provider {
		if p == nil {
			return nil
		}
		return observe.InstrumentLLM(p, a.observed, model, component)
	}
	convProv := instrument(a.providers.LLM, a.cfg.Providers.LLM.Model, "conversation")

	composer := prompt.NewComposer(persona.NewStore(personaDir), skill.NewRegistry(), stacks)

	// Final STT transcripts pass through vocabulary correction so misheard
	// technical terms do not skew scoring or the candidate profile.
	var corrector transcript.Pipeline
	if len(stacks) > 0 {
		corrector = transcript.NewPipeline(
			transcript.WithPhoneticMatcher(phonetic.New()),
			transcript.WithLLMCorrector(llmcorrect.New(instrument(shadowProv, shadowModel, "transcript_correction"))),
		)
	}

	a.manager = NewSessionManager(SessionManagerConfig{
		Deps: session.Deps{
			Sessions:   a.sessions,
			Apps:       a.apps,
			Composer:   composer,
			Scoring:    scoring.NewEngine(instrument(shadowProv, shadowModel, "scoring")),
			Profiles:   profile.NewManager(instrument(shadowProv, shadowModel, "profile")),
			Difficulty: difficulty.NewAdapter(difficulty.Config{}),
			Competency: competency.NewEvaluator(fw),
			Insights:   insights.NewMemory(instrument(shadowProv, shadowModel, "insights"), a.apps),
			Shadow:     shadow.NewMonitor(instrument(shadowProv, shadowModel, "shadow")),
			Feedback:   feedback.NewGenerator(convProv),
			GEval:      geval.NewEvaluator(instrument(shadowProv, shadowModel, "geval")),
			Observe:    a.observed,
			Metrics:    a.metrics,
		},
		LLM:        convProv,
		STT:        a.providers.STT,
		TTS:        a.providers.TTS,
		VADEngine:  a.providers.VAD,
		Corrector:  corrector,
		Vocabulary: stacks.Vocabulary(),
	})
	return nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Sessions returns the session manager.
func (a *App) Sessions() *SessionManager { return a.manager }

// Stages returns the interview pipeline stage manager.
func (a *App) Stages() *stage.Manager { return a.stages }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Handler returns the HTTP handler serving health probes and Prometheus
// metrics, instrumented with request metrics.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()

	checkers := []health.Checker{
		{Name: "providers", Check: func(context.Context) error {
			if a.providers.LLM == nil {
				return fmt.Errorf("no LLM provider configured")
			}
			return nil
		}},
	}
	if a.pool != nil {
		checkers = append(checkers, health.Checker{Name: "database", Check: func(ctx context.Context) error {
			return a.pool.Ping(ctx)
		}})
	}
	health.New(checkers...).Register(mux)

	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(a.metrics)(mux)
}

// Run serves the health and metrics endpoints and blocks until ctx is
// cancelled, then drains running sessions.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    a.cfg.Server.ListenAddr,
		Handler: a.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	slog.Info("server running", "addr", a.cfg.Server.ListenAddr)

	select {
	case err := <-errCh:
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown error", "err", err)
	}

	a.manager.StopAll()
	return ctx.Err()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		a.manager.StopAll()
		a.observed.Flush(ctx)

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
