// Package media defines the Runtime interface between an interview session
// and its real-time media pipeline.
//
// A Runtime owns the audio path for one interview room: it turns candidate
// speech into transcript turns, speaks the interviewer's replies, and reports
// room lifecycle changes. The orchestrator consumes the event stream and
// drives reply generation; it never touches audio directly. The interface is
// intentionally narrow so that sessions can be tested against the mock
// runtime without any live media stack.
package media

import "context"

// Event is a notification emitted by a Runtime. The concrete types are
// [TurnAdded], [UserTranscribed], and [ParticipantLeft].
type Event interface {
	event()
}

// TurnAdded reports that a turn was committed to the conversation. Role is
// "user" for candidate speech finalised by STT and "assistant" for generated
// interviewer replies.
type TurnAdded struct {
	Role    string
	Content string
}

// UserTranscribed carries a live transcription fragment. Non-final fragments
// drive captions only; the final fragment is followed by a [TurnAdded].
type UserTranscribed struct {
	Text  string
	Final bool
}

// ParticipantLeft reports that a participant disconnected from the room.
type ParticipantLeft struct {
	Identity string
}

func (TurnAdded) event()       {}
func (UserTranscribed) event() {}
func (ParticipantLeft) event() {}

// Runtime is the media pipeline for one interview session.
//
// Implementations must be safe for concurrent use. The Events channel is
// closed when the runtime is closed; consumers should range over it.
type Runtime interface {
	// Events returns the stream of runtime notifications. The channel is
	// closed by Close.
	Events() <-chan Event

	// GenerateReply produces one spoken interviewer reply using the given
	// system instructions and the conversation so far. It returns once the
	// reply text is complete; audio may continue streaming afterwards.
	GenerateReply(ctx context.Context, instructions string) error

	// UpdateInstructions replaces the system instructions used by subsequent
	// replies. It is non-blocking; the update takes effect on the next
	// GenerateReply call.
	UpdateInstructions(ctx context.Context, instructions string) error

	// Close tears down the pipeline and closes the Events channel. Calling
	// Close more than once is safe and returns nil.
	Close() error
}
