// Package energy provides a zero-dependency voice activity detector based on
// short-term signal energy. It implements the vad.Engine interface.
//
// Each frame's root-mean-square energy is mapped onto a pseudo-probability
// and compared against the session's speech/silence thresholds with
// hysteresis: a session enters the speaking state as soon as one frame
// crosses the speech threshold, and leaves it only after a configurable
// number of consecutive sub-silence frames. The hangover prevents short
// pauses between words from being reported as turn boundaries.
//
// Energy detection is less accurate than a trained model on noisy input but
// needs no model file, which makes it the default engine for local
// development and CI. Swap in a model-backed engine via the provider
// registry for production deployments.
package energy

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/voxhire/voxhire/pkg/provider/vad"
)

const (
	// defaultReferenceRMS is the RMS level (in 16-bit PCM units) mapped to
	// probability 1.0. Normal speech at typical microphone gain lands in the
	// 2000–8000 range; 4000 puts conversational speech comfortably above a
	// 0.5 threshold while keyboard noise stays below it.
	defaultReferenceRMS = 4000.0

	// defaultHangoverFrames is the number of consecutive sub-silence frames
	// required before SpeechEnd fires. At 20 ms frames this is 300 ms, short
	// enough to feel responsive and long enough to ride out inter-word gaps.
	defaultHangoverFrames = 15
)

// Compile-time interface assertions.
var (
	_ vad.Engine        = (*Engine)(nil)
	_ vad.SessionHandle = (*session)(nil)
)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithReferenceRMS sets the RMS level mapped to probability 1.0. Lower values
// make the detector more sensitive. Defaults to 4000.
func WithReferenceRMS(rms float64) Option {
	return func(e *Engine) {
		e.referenceRMS = rms
	}
}

// WithHangoverFrames sets how many consecutive frames below the silence
// threshold end an active speech segment. Defaults to 15.
func WithHangoverFrames(n int) Option {
	return func(e *Engine) {
		e.hangoverFrames = n
	}
}

// Engine implements vad.Engine using frame RMS energy. It holds no model
// state, so construction is cheap and NewSession never does I/O.
type Engine struct {
	referenceRMS   float64
	hangoverFrames int
}

// New creates an energy-based VAD engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		referenceRMS:   defaultReferenceRMS,
		hangoverFrames: defaultHangoverFrames,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewSession creates a new detection session. cfg.SampleRate and
// cfg.FrameSizeMs determine the expected frame length in bytes; frames of any
// other length are rejected by ProcessFrame. Zero thresholds fall back to
// 0.5/0.35.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if cfg.SampleRate <= 0 {
		return nil, errors.New("energy: SampleRate must be positive")
	}
	if cfg.FrameSizeMs <= 0 {
		return nil, errors.New("energy: FrameSizeMs must be positive")
	}

	speech := cfg.SpeechThreshold
	if speech == 0 {
		speech = 0.5
	}
	silence := cfg.SilenceThreshold
	if silence == 0 {
		silence = 0.35
	}
	if silence > speech {
		return nil, fmt.Errorf("energy: SilenceThreshold %.2f exceeds SpeechThreshold %.2f", silence, speech)
	}

	return &session{
		frameBytes:     cfg.SampleRate * cfg.FrameSizeMs / 1000 * 2,
		speechThresh:   speech,
		silenceThresh:  silence,
		referenceRMS:   e.referenceRMS,
		hangoverFrames: e.hangoverFrames,
	}, nil
}

// session holds the per-stream detection state.
type session struct {
	frameBytes     int
	speechThresh   float64
	silenceThresh  float64
	referenceRMS   float64
	hangoverFrames int

	mu         sync.Mutex
	inSpeech   bool
	silenceRun int
	closed     bool
}

// ProcessFrame classifies one PCM frame. The frame must be 16-bit
// little-endian mono at the session's configured rate and duration.
func (s *session) ProcessFrame(frame []byte) (vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return vad.Event{}, errors.New("energy: session is closed")
	}
	if len(frame) != s.frameBytes {
		return vad.Event{}, fmt.Errorf("energy: frame is %d bytes, expected %d", len(frame), s.frameBytes)
	}

	p := s.probability(frame)
	ev := vad.Event{Probability: p}

	switch {
	case !s.inSpeech && p >= s.speechThresh:
		s.inSpeech = true
		s.silenceRun = 0
		ev.Type = vad.SpeechStart

	case s.inSpeech && p < s.silenceThresh:
		s.silenceRun++
		if s.silenceRun >= s.hangoverFrames {
			s.inSpeech = false
			s.silenceRun = 0
			ev.Type = vad.SpeechEnd
		} else {
			// Still inside the hangover window.
			ev.Type = vad.SpeechContinue
		}

	case s.inSpeech:
		s.silenceRun = 0
		ev.Type = vad.SpeechContinue

	default:
		ev.Type = vad.Silence
	}

	return ev, nil
}

// Reset clears the speaking state and hangover counter.
func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inSpeech = false
	s.silenceRun = 0
}

// Close marks the session closed. Subsequent ProcessFrame calls error.
// Calling Close more than once is safe.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// probability maps the frame's RMS energy onto [0, 1] against the reference
// level.
func (s *session) probability(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(uint16(frame[i*2]) | uint16(frame[i*2+1])<<8)
		v := float64(sample)
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(n))
	p := rms / s.referenceRMS
	if p > 1 {
		p = 1
	}
	return p
}
