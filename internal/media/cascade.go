package media

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/voxhire/voxhire/internal/transcript"
	"github.com/voxhire/voxhire/pkg/provider/llm"
	"github.com/voxhire/voxhire/pkg/provider/stt"
	"github.com/voxhire/voxhire/pkg/provider/tts"
	"github.com/voxhire/voxhire/pkg/provider/vad"
	"github.com/voxhire/voxhire/pkg/types"
)

const (
	// defaultEventBuf is the default buffer depth of the event channel.
	defaultEventBuf = 32

	// defaultTextBuf is the buffer depth of the text channel feeding TTS.
	// Sized to absorb several sentences without blocking the LLM stream.
	defaultTextBuf = 16

	// defaultAudioBuf is the buffer depth of the outbound audio channel.
	defaultAudioBuf = 64
)

// CascadeConfig describes the pipeline parameters of a [CascadeRuntime].
type CascadeConfig struct {
	// STT configures the transcription stream (sample rate, language).
	STT stt.StreamConfig

	// VAD configures the speech detector gating STT input.
	VAD vad.Config

	// Voice is the interviewer's synthesis voice.
	Voice types.VoiceProfile

	// Corrector fixes STT mishearings of technical vocabulary in final
	// transcripts before they become candidate turns. Nil disables
	// correction.
	Corrector transcript.Pipeline

	// Vocabulary is the list of role-specific terms the corrector should
	// recognise. Ignored when Corrector is nil.
	Vocabulary []string

	// EventBuf overrides the event channel buffer depth. Zero uses the
	// default of 32.
	EventBuf int
}

// CascadeRuntime implements [Runtime] with a classic STT → LLM → TTS cascade.
//
// Inbound audio frames are gated by VAD so the transcription stream only
// receives speech. Final transcripts become user turns. GenerateReply streams
// the LLM completion sentence by sentence into TTS so playback starts before
// generation finishes.
//
// CascadeRuntime is safe for concurrent use, but callers should serialise
// GenerateReply calls per session to keep the conversation coherent.
type CascadeRuntime struct {
	llmP llm.Provider
	sttP stt.Provider
	ttsP tts.Provider
	vadE vad.Engine
	cfg  CascadeConfig

	mu           sync.Mutex
	instructions string
	history      []types.Message
	sttSess      stt.SessionHandle
	vadSess      vad.SessionHandle
	closed       bool

	events chan Event
	audio  chan []byte
	done   chan struct{}

	// wg tracks the transcript consumer goroutines so Close can wait for
	// them after the STT session shuts its channels.
	wg sync.WaitGroup
}

var _ Runtime = (*CascadeRuntime)(nil)

// NewCascadeRuntime constructs a runtime over the given providers. Call
// [CascadeRuntime.Start] before pushing audio.
func NewCascadeRuntime(llmP llm.Provider, sttP stt.Provider, ttsP tts.Provider, vadE vad.Engine, cfg CascadeConfig) *CascadeRuntime {
	if cfg.EventBuf == 0 {
		cfg.EventBuf = defaultEventBuf
	}
	return &CascadeRuntime{
		llmP:   llmP,
		sttP:   sttP,
		ttsP:   ttsP,
		vadE:   vadE,
		cfg:    cfg,
		events: make(chan Event, cfg.EventBuf),
		audio:  make(chan []byte, defaultAudioBuf),
		done:   make(chan struct{}),
	}
}

// Start opens the VAD and STT sessions and begins consuming transcripts.
func (r *CascadeRuntime) Start(ctx context.Context) error {
	vadSess, err := r.vadE.NewSession(r.cfg.VAD)
	if err != nil {
		return fmt.Errorf("media: start VAD session: %w", err)
	}
	sttSess, err := r.sttP.StartStream(ctx, r.cfg.STT)
	if err != nil {
		vadSess.Close()
		return fmt.Errorf("media: start STT stream: %w", err)
	}

	r.mu.Lock()
	r.vadSess = vadSess
	r.sttSess = sttSess
	r.mu.Unlock()

	r.wg.Add(2)
	go r.consumePartials(sttSess.Partials())
	go r.consumeFinals(ctx, sttSess.Finals())
	return nil
}

// PushAudio feeds one raw PCM frame from the transport into the pipeline.
// Frames classified as silence are dropped before they reach STT.
func (r *CascadeRuntime) PushAudio(frame []byte) error {
	r.mu.Lock()
	vadSess, sttSess := r.vadSess, r.sttSess
	closed := r.closed
	r.mu.Unlock()
	if closed || vadSess == nil || sttSess == nil {
		return fmt.Errorf("media: runtime not started")
	}

	ev, err := vadSess.ProcessFrame(frame)
	if err != nil {
		return fmt.Errorf("media: VAD frame: %w", err)
	}
	if ev.Type == vad.Silence {
		return nil
	}
	if err := sttSess.SendAudio(frame); err != nil {
		return fmt.Errorf("media: forward audio: %w", err)
	}
	return nil
}

// Events returns the runtime notification stream.
func (r *CascadeRuntime) Events() <-chan Event {
	return r.events
}

// Audio returns the outbound synthesised audio stream. The transport layer
// drains this channel into the room. It is closed by Close.
func (r *CascadeRuntime) Audio() <-chan []byte {
	return r.audio
}

// GenerateReply streams one LLM completion into TTS and commits the full
// reply text as an assistant turn. If instructions is non-empty it replaces
// the stored system instructions for this and subsequent replies.
func (r *CascadeRuntime) GenerateReply(ctx context.Context, instructions string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("media: runtime closed")
	}
	if instructions != "" {
		r.instructions = instructions
	}
	req := llm.CompletionRequest{
		SystemPrompt: r.instructions,
		Messages:     append([]types.Message(nil), r.history...),
	}
	r.mu.Unlock()

	ch, err := r.llmP.StreamCompletion(ctx, req)
	if err != nil {
		return fmt.Errorf("media: completion stream: %w", err)
	}

	textCh := make(chan string, defaultTextBuf)
	audioCh, err := r.ttsP.SynthesizeStream(ctx, textCh, r.cfg.Voice)
	if err != nil {
		close(textCh)
		go drainChunks(ch)
		return fmt.Errorf("media: TTS start: %w", err)
	}

	r.wg.Add(1)
	go r.pumpAudio(audioCh)

	text, err := r.forwardSentences(ctx, ch, textCh)
	close(textCh)
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}

	r.mu.Lock()
	r.history = append(r.history, types.Message{Role: "assistant", Content: text})
	r.mu.Unlock()
	r.emit(TurnAdded{Role: "assistant", Content: text})
	return nil
}

// UpdateInstructions replaces the system instructions for subsequent replies.
func (r *CascadeRuntime) UpdateInstructions(_ context.Context, instructions string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("media: runtime closed")
	}
	r.instructions = instructions
	return nil
}

// NotifyParticipantLeft reports a disconnect observed by the transport.
func (r *CascadeRuntime) NotifyParticipantLeft(identity string) {
	r.emit(ParticipantLeft{Identity: identity})
}

// Close tears down the STT and VAD sessions, waits for the transcript
// consumers to drain, and closes the event and audio channels.
func (r *CascadeRuntime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sttSess, vadSess := r.sttSess, r.vadSess
	r.mu.Unlock()

	close(r.done)
	if sttSess != nil {
		sttSess.Close()
	}
	if vadSess != nil {
		vadSess.Close()
	}
	r.wg.Wait()
	close(r.events)
	close(r.audio)
	return nil
}

// consumePartials forwards interim transcripts as caption events.
func (r *CascadeRuntime) consumePartials(ch <-chan stt.Transcript) {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case t, ok := <-ch:
			if !ok {
				return
			}
			if t.Text == "" {
				continue
			}
			r.emit(UserTranscribed{Text: t.Text, Final: false})
		}
	}
}

// consumeFinals commits final transcripts as user turns, running each through
// the vocabulary corrector first when one is configured.
func (r *CascadeRuntime) consumeFinals(ctx context.Context, ch <-chan stt.Transcript) {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case t, ok := <-ch:
			if !ok {
				return
			}
			if t.Text == "" {
				continue
			}
			text := r.correctFinal(ctx, t)
			r.mu.Lock()
			r.history = append(r.history, types.Message{Role: "user", Content: text})
			r.mu.Unlock()
			r.emit(UserTranscribed{Text: text, Final: true})
			r.emit(TurnAdded{Role: "user", Content: text})
		}
	}
}

// correctFinal applies the transcript corrector to one final transcript. Any
// corrector failure falls back to the raw STT text: a misheard term is better
// than a dropped turn.
func (r *CascadeRuntime) correctFinal(ctx context.Context, t stt.Transcript) string {
	if r.cfg.Corrector == nil || len(r.cfg.Vocabulary) == 0 {
		return t.Text
	}
	corrected, err := r.cfg.Corrector.Correct(ctx, t, r.cfg.Vocabulary)
	if err != nil {
		slog.Warn("transcript correction failed", "error", err)
		return t.Text
	}
	if len(corrected.Corrections) > 0 {
		slog.Debug("transcript corrected",
			"corrections", len(corrected.Corrections),
			"confidence", t.Confidence,
		)
	}
	return corrected.Corrected
}

// pumpAudio drains one TTS stream into the shared outbound audio channel.
func (r *CascadeRuntime) pumpAudio(ch <-chan []byte) {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case chunk, ok := <-ch:
			if !ok {
				return
			}
			select {
			case r.audio <- chunk:
			case <-r.done:
				return
			}
		}
	}
}

// emit delivers an event unless the runtime is shutting down.
func (r *CascadeRuntime) emit(ev Event) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

// forwardSentences reads token chunks from ch, flushes complete sentences to
// textCh for low-latency synthesis, and returns the accumulated reply text.
func (r *CascadeRuntime) forwardSentences(ctx context.Context, ch <-chan llm.Chunk, textCh chan<- string) (string, error) {
	var full, buf strings.Builder
	flush := func(s string) {
		if s == "" {
			return
		}
		select {
		case textCh <- s:
		case <-ctx.Done():
		}
	}
	for {
		select {
		case <-ctx.Done():
			go drainChunks(ch)
			return full.String(), ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				flush(strings.TrimSpace(buf.String()))
				return strings.TrimSpace(full.String()), nil
			}
			if chunk.FinishReason == "error" {
				go drainChunks(ch)
				return "", fmt.Errorf("media: completion failed: %s", chunk.Text)
			}
			full.WriteString(chunk.Text)
			buf.WriteString(chunk.Text)

			for {
				idx := firstSentenceBoundary(buf.String())
				if idx < 0 {
					break
				}
				sentence := buf.String()[:idx+1]
				rest := strings.TrimLeft(buf.String()[idx+1:], " \t\n\r")
				buf.Reset()
				buf.WriteString(rest)
				flush(sentence)
			}

			if chunk.FinishReason != "" {
				flush(strings.TrimSpace(buf.String()))
				return strings.TrimSpace(full.String()), nil
			}
		}
	}
}

// firstSentenceBoundary returns the index of the first '.', '!', or '?'
// immediately followed by whitespace, or -1 if none exists in s.
func firstSentenceBoundary(s string) int {
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '.', '!', '?':
			switch s[i+1] {
			case ' ', '\n', '\r', '\t':
				return i
			}
		}
	}
	return -1
}

// drainChunks discards the rest of a completion stream so the provider's
// goroutine does not block.
func drainChunks(ch <-chan llm.Chunk) {
	for range ch {
	}
}
