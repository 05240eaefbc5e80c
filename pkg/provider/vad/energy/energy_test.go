package energy

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/voxhire/voxhire/pkg/provider/vad"
)

// testConfig is a 16 kHz / 20 ms session (640-byte frames).
var testConfig = vad.Config{
	SampleRate:       16000,
	FrameSizeMs:      20,
	SpeechThreshold:  0.5,
	SilenceThreshold: 0.35,
}

// speechFrame builds one 20 ms sine frame with amplitude well above the
// default reference level.
func speechFrame() []byte {
	const samples = 320
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(10_000 * math.Sin(2*math.Pi*440*float64(i)/16000))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

// silenceFrame builds one all-zero 20 ms frame.
func silenceFrame() []byte {
	return make([]byte, 320*2)
}

func mustSession(t *testing.T, e *Engine, cfg vad.Config) vad.SessionHandle {
	t.Helper()
	s, err := e.NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func TestNewSession_Validation(t *testing.T) {
	e := New()

	if _, err := e.NewSession(vad.Config{FrameSizeMs: 20}); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if _, err := e.NewSession(vad.Config{SampleRate: 16000}); err == nil {
		t.Error("expected error for zero frame size")
	}
	if _, err := e.NewSession(vad.Config{
		SampleRate: 16000, FrameSizeMs: 20,
		SpeechThreshold: 0.4, SilenceThreshold: 0.6,
	}); err == nil {
		t.Error("expected error when silence threshold exceeds speech threshold")
	}
}

func TestNewSession_DefaultThresholds(t *testing.T) {
	s := mustSession(t, New(), vad.Config{SampleRate: 16000, FrameSizeMs: 20})
	defer s.Close()

	// Silence stays silence with the default 0.5/0.35 thresholds.
	ev, err := s.ProcessFrame(silenceFrame())
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if ev.Type != vad.Silence {
		t.Errorf("event = %v, want Silence", ev.Type)
	}
}

func TestProcessFrame_WrongSize(t *testing.T) {
	s := mustSession(t, New(), testConfig)
	defer s.Close()

	if _, err := s.ProcessFrame(make([]byte, 100)); err == nil {
		t.Error("expected error for undersized frame")
	}
}

func TestProcessFrame_AfterClose(t *testing.T) {
	s := mustSession(t, New(), testConfig)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := s.ProcessFrame(speechFrame()); err == nil {
		t.Error("expected error after Close")
	}
}

func TestSpeechStartTransition(t *testing.T) {
	s := mustSession(t, New(), testConfig)
	defer s.Close()

	ev, err := s.ProcessFrame(speechFrame())
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if ev.Type != vad.SpeechStart {
		t.Errorf("first loud frame = %v, want SpeechStart", ev.Type)
	}
	if ev.Probability < 0.5 {
		t.Errorf("probability = %f, want >= 0.5", ev.Probability)
	}

	ev, _ = s.ProcessFrame(speechFrame())
	if ev.Type != vad.SpeechContinue {
		t.Errorf("second loud frame = %v, want SpeechContinue", ev.Type)
	}
}

func TestHangoverDelaysSpeechEnd(t *testing.T) {
	e := New(WithHangoverFrames(3))
	s := mustSession(t, e, testConfig)
	defer s.Close()

	if ev, _ := s.ProcessFrame(speechFrame()); ev.Type != vad.SpeechStart {
		t.Fatalf("setup: expected SpeechStart, got %v", ev.Type)
	}

	// Two silent frames stay inside the hangover window.
	for i := 0; i < 2; i++ {
		ev, err := s.ProcessFrame(silenceFrame())
		if err != nil {
			t.Fatalf("ProcessFrame: %v", err)
		}
		if ev.Type != vad.SpeechContinue {
			t.Errorf("silent frame %d = %v, want SpeechContinue (hangover)", i, ev.Type)
		}
	}

	// Third consecutive silent frame ends the segment.
	ev, _ := s.ProcessFrame(silenceFrame())
	if ev.Type != vad.SpeechEnd {
		t.Errorf("third silent frame = %v, want SpeechEnd", ev.Type)
	}

	// Once ended, further silence reports Silence.
	ev, _ = s.ProcessFrame(silenceFrame())
	if ev.Type != vad.Silence {
		t.Errorf("post-end frame = %v, want Silence", ev.Type)
	}
}

func TestSpeechResetsHangoverCounter(t *testing.T) {
	e := New(WithHangoverFrames(2))
	s := mustSession(t, e, testConfig)
	defer s.Close()

	s.ProcessFrame(speechFrame())
	s.ProcessFrame(silenceFrame()) // hangover 1 of 2
	s.ProcessFrame(speechFrame())  // speech resumes, counter resets

	// One silent frame is again inside the hangover window.
	ev, _ := s.ProcessFrame(silenceFrame())
	if ev.Type != vad.SpeechContinue {
		t.Errorf("event = %v, want SpeechContinue after counter reset", ev.Type)
	}
}

func TestReset(t *testing.T) {
	s := mustSession(t, New(), testConfig)
	defer s.Close()

	if ev, _ := s.ProcessFrame(speechFrame()); ev.Type != vad.SpeechStart {
		t.Fatal("setup: expected SpeechStart")
	}

	s.Reset()

	// After Reset the session is out of the speaking state, so a loud frame
	// starts a new segment.
	ev, _ := s.ProcessFrame(speechFrame())
	if ev.Type != vad.SpeechStart {
		t.Errorf("post-Reset loud frame = %v, want SpeechStart", ev.Type)
	}
}

func TestWithReferenceRMS_Sensitivity(t *testing.T) {
	// A quiet frame that the default reference treats as silence.
	quiet := make([]byte, 320*2)
	for i := 0; i < 320; i++ {
		binary.LittleEndian.PutUint16(quiet[i*2:], uint16(int16(800)))
	}

	s := mustSession(t, New(), testConfig)
	ev, _ := s.ProcessFrame(quiet)
	s.Close()
	if ev.Type != vad.Silence {
		t.Fatalf("default reference: event = %v, want Silence", ev.Type)
	}

	// Lowering the reference makes the same frame register as speech.
	s = mustSession(t, New(WithReferenceRMS(1000)), testConfig)
	defer s.Close()
	ev, _ = s.ProcessFrame(quiet)
	if ev.Type != vad.SpeechStart {
		t.Errorf("low reference: event = %v, want SpeechStart", ev.Type)
	}
}

func TestProbabilityClampedToOne(t *testing.T) {
	// Full-scale square wave: RMS far above any reference level.
	loud := make([]byte, 320*2)
	for i := 0; i < 320; i++ {
		binary.LittleEndian.PutUint16(loud[i*2:], uint16(int16(32000)))
	}

	s := mustSession(t, New(), testConfig)
	defer s.Close()

	ev, err := s.ProcessFrame(loud)
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if ev.Probability != 1 {
		t.Errorf("probability = %f, want clamped to 1", ev.Probability)
	}
}
