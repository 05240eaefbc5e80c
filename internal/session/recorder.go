package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voxhire/voxhire/internal/store"
	"github.com/voxhire/voxhire/pkg/types"
)

// defaultSaveInterval is the default period between durability ticks.
const defaultSaveInterval = 30 * time.Second

// Recorder periodically flushes the live transcript to the session store so
// a crash mid-interview loses at most one interval of conversation. Periodic
// ticks only write when the transcript has grown since the last save; the
// final save at shutdown always writes.
//
// All methods are safe for concurrent use.
type Recorder struct {
	store     store.SessionStore
	sessionID string
	snapshot  func() []types.Turn
	interval  time.Duration

	mu sync.Mutex
	// lastLen tracks the transcript length at the last save to avoid
	// rewriting an unchanged transcript every tick.
	lastLen  int
	done     chan struct{}
	stopOnce sync.Once
}

// RecorderConfig configures a [Recorder].
type RecorderConfig struct {
	// Store is the session store transcripts are written to.
	Store store.SessionStore

	// SessionID identifies the interview session.
	SessionID string

	// Snapshot returns the current transcript. It must be safe to call
	// from the recorder goroutine.
	Snapshot func() []types.Turn

	// Interval is how often to save. Defaults to 30 seconds if zero.
	Interval time.Duration
}

// NewRecorder creates a new [Recorder] with the given configuration.
func NewRecorder(cfg RecorderConfig) *Recorder {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultSaveInterval
	}
	return &Recorder{
		store:     cfg.Store,
		sessionID: cfg.SessionID,
		snapshot:  cfg.Snapshot,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

// Start begins periodic saving in a background goroutine. The goroutine
// runs until [Recorder.Stop] is called or ctx is cancelled.
func (r *Recorder) Start(ctx context.Context) {
	go r.loop(ctx)
}

// Stop halts the save loop. Safe to call multiple times.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
}

// SaveNow writes the current transcript with the given status regardless of
// whether it has grown. Used for the final save at session end.
func (r *Recorder) SaveNow(ctx context.Context, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	transcript := r.snapshot()
	if err := r.store.SaveTranscript(ctx, r.sessionID, transcript, status); err != nil {
		return err
	}
	r.lastLen = len(transcript)
	return nil
}

// loop runs the periodic save ticker.
func (r *Recorder) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			r.mu.Lock()
			if err := r.saveIfGrown(ctx); err != nil {
				slog.Warn("periodic transcript save failed",
					"session_id", r.sessionID,
					"error", err,
				)
			}
			r.mu.Unlock()
		}
	}
}

// saveIfGrown writes the transcript when it has new turns since the last
// save. Must be called with r.mu held.
func (r *Recorder) saveIfGrown(ctx context.Context) error {
	transcript := r.snapshot()
	if len(transcript) <= r.lastLen {
		return nil
	}
	if err := r.store.SaveTranscript(ctx, r.sessionID, transcript, store.StatusActive); err != nil {
		return err
	}
	r.lastLen = len(transcript)
	return nil
}
