// Package difficulty adapts interview question difficulty to candidate
// performance.
//
// The adapter walks a fixed four-level ladder and applies hysteresis so a
// single good or bad answer never swings the interview: moves require both a
// windowed average past a threshold and a non-contradicting trend, plus a
// minimum dwell time at the current level. All state lives in the caller's
// [State] value; the adapter itself is stateless and safe for concurrent use.
package difficulty

import (
	"fmt"
	"slices"
)

// Levels is the difficulty ladder, ordered easiest to hardest.
var Levels = []string{"foundational", "intermediate", "advanced", "expert"}

// Default tuning values, applied by [NewAdapter] when the corresponding
// Config field is zero.
const (
	DefaultIncreaseThreshold = 80.0
	DefaultDecreaseThreshold = 50.0
	DefaultMinTurnsAtLevel   = 2
	DefaultWindowSize        = 3
)

// State is the per-session difficulty state. It round-trips through JSON so
// the orchestrator can persist it alongside session results.
type State struct {
	// Level is the current difficulty level, one of [Levels].
	Level string `json:"level"`

	// RecentScores is the sliding window of the latest turn scores,
	// oldest first. Its length never exceeds the adapter's window size.
	RecentScores []float64 `json:"recent_scores"`

	// TurnsAtLevel counts turns observed since the last level change.
	TurnsAtLevel int `json:"turns_at_level"`

	// LastChangeTurn is the turn index at which the level last changed.
	LastChangeTurn int `json:"last_change_turn"`

	// ChangeReason describes why the last change happened. Empty until the
	// first change.
	ChangeReason string `json:"change_reason,omitempty"`
}

// Config tunes an [Adapter]. Zero fields fall back to the package defaults.
type Config struct {
	// IncreaseThreshold is the windowed average at or above which the level
	// may move up.
	IncreaseThreshold float64

	// DecreaseThreshold is the windowed average at or below which the level
	// may move down.
	DecreaseThreshold float64

	// MinTurnsAtLevel is how many turns must pass at the current level
	// before another change is allowed.
	MinTurnsAtLevel int

	// WindowSize caps the recent-score window.
	WindowSize int
}

// Adapter applies the hysteresis rules to difficulty state. Stateless; one
// adapter may serve all sessions in the process.
type Adapter struct {
	cfg Config
}

// NewAdapter creates an Adapter, filling zero Config fields with defaults.
func NewAdapter(cfg Config) *Adapter {
	if cfg.IncreaseThreshold == 0 {
		cfg.IncreaseThreshold = DefaultIncreaseThreshold
	}
	if cfg.DecreaseThreshold == 0 {
		cfg.DecreaseThreshold = DefaultDecreaseThreshold
	}
	if cfg.MinTurnsAtLevel == 0 {
		cfg.MinTurnsAtLevel = DefaultMinTurnsAtLevel
	}
	if cfg.WindowSize == 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	return &Adapter{cfg: cfg}
}

// LevelForStage returns the starting difficulty for a stage type. Practice
// sessions start gentle; every assessed stage starts in the middle of the
// ladder.
func LevelForStage(stageType string) string {
	if stageType == "practice" {
		return "foundational"
	}
	return "intermediate"
}

// NewState creates difficulty state starting at the given level. Unknown
// levels are clamped to "intermediate".
func NewState(level string) *State {
	if !slices.Contains(Levels, level) {
		level = "intermediate"
	}
	return &State{Level: level}
}

// Update records a turn score and applies the level-change rules. It returns
// true when the level changed.
//
// The window and dwell counter advance on every call. A change requires a
// full enough window (≥ 2 scores), the minimum dwell time, a windowed average
// past a threshold, and a trend (newest minus oldest in the window) that does
// not contradict the move. Changes are single-step and reset the dwell
// counter while preserving the score window.
func (a *Adapter) Update(s *State, score float64, turn int) bool {
	s.RecentScores = append(s.RecentScores, score)
	if len(s.RecentScores) > a.cfg.WindowSize {
		s.RecentScores = s.RecentScores[len(s.RecentScores)-a.cfg.WindowSize:]
	}
	s.TurnsAtLevel++

	if len(s.RecentScores) < 2 {
		return false
	}
	if s.TurnsAtLevel < a.cfg.MinTurnsAtLevel {
		return false
	}

	avg := mean(s.RecentScores)
	trend := s.RecentScores[len(s.RecentScores)-1] - s.RecentScores[0]
	idx := slices.Index(Levels, s.Level)

	switch {
	case avg >= a.cfg.IncreaseThreshold && trend >= 0 && idx < len(Levels)-1:
		s.Level = Levels[idx+1]
		s.ChangeReason = fmt.Sprintf("High performance (avg: %.0f, trend: %+.0f)", avg, trend)
	case avg <= a.cfg.DecreaseThreshold && trend <= 0 && idx > 0:
		s.Level = Levels[idx-1]
		s.ChangeReason = fmt.Sprintf("Struggling (avg: %.0f, trend: %+.0f)", avg, trend)
	default:
		return false
	}

	s.TurnsAtLevel = 0
	s.LastChangeTurn = turn
	return true
}

// ShouldProvideHints reports whether the interviewer should offer hints:
// always at the foundational level, otherwise when the windowed average
// drops below 40.
func (a *Adapter) ShouldProvideHints(s *State) bool {
	if s.Level == "foundational" {
		return true
	}
	return len(s.RecentScores) > 0 && mean(s.RecentScores) < 40
}

// levelGuidance maps each level to its question guidance for the system
// prompt.
var levelGuidance = map[string]string{
	"foundational": "Ask basic, definitional questions. Provide context in the question itself and keep one concept per question.",
	"intermediate": "Ask practical application questions. Expect concrete examples from the candidate's own experience.",
	"advanced":     "Ask about edge cases, trade-offs, and design decisions. Push for the reasoning behind choices.",
	"expert":       "Ask about architecture, scale, and failure modes. Challenge assumptions and ask what they would do differently.",
}

// PromptInjection renders the difficulty block for the system prompt.
func (a *Adapter) PromptInjection(s *State) string {
	guidance := levelGuidance[s.Level]
	block := fmt.Sprintf("DIFFICULTY CALIBRATION:\nCurrent level: %s\n%s", s.Level, guidance)
	if a.ShouldProvideHints(s) {
		block += "\nThe candidate may be struggling. Offer hints and simpler follow-ups when an answer stalls."
	}
	return block
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
