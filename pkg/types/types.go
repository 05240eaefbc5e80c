// Package types defines the shared types used across all Voxhire packages.
//
// These types form the lingua franca between providers, the media runtime,
// the intelligence layer, and the session orchestrator. They are intentionally
// minimal — each package defines its own domain types, but cross-cutting data
// structures live here to avoid circular imports.
package types

import "time"

// Turn is a single entry in an interview transcript. Turns are the atomic
// unit the intelligence layer operates on: scoring, profiling, shadow
// monitoring, and post-session evaluation all consume ordered turn slices.
type Turn struct {
	// Role is "assistant" for the interviewer and "user" for the candidate.
	Role string `json:"role"`

	// Content is the spoken or typed text of the turn.
	Content string `json:"content"`

	// Timestamp is when the turn was committed to the transcript.
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", "assistant", or "tool".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional participant name (for multi-speaker contexts).
	Name string
}

// VoiceProfile describes a TTS voice configuration for an interviewer persona.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Model selects the synthesis model (e.g., "sonic-english", "sonic-3").
	Model string

	// SpeedFactor adjusts speaking rate (0.5–2.0, 1.0 = default).
	SpeedFactor float64
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsJSONMode indicates native structured-output support.
	SupportsJSONMode bool

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool
}
