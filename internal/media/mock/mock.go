// Package mock provides a test double for the media.Runtime interface.
//
// Use Runtime to script inbound events and inspect the instructions the
// session layer sends for reply generation.
//
// Example:
//
//	rt := mock.NewRuntime()
//	go orchestrator.Run(ctx, rt)
//	rt.Emit(media.TurnAdded{Role: "user", Content: "I led the migration."})
//	rt.Close()
package mock

import (
	"context"
	"sync"

	"github.com/voxhire/voxhire/internal/media"
)

// GenerateReplyCall records a single invocation of GenerateReply.
type GenerateReplyCall struct {
	// Ctx is the context passed to GenerateReply.
	Ctx context.Context
	// Instructions is the system instruction string passed to GenerateReply.
	Instructions string
}

// UpdateInstructionsCall records a single invocation of UpdateInstructions.
type UpdateInstructionsCall struct {
	// Ctx is the context passed to UpdateInstructions.
	Ctx context.Context
	// Instructions is the replacement system instruction string.
	Instructions string
}

// Runtime is a mock implementation of media.Runtime.
type Runtime struct {
	mu sync.Mutex

	// GenerateReplyErr, if non-nil, is returned by every GenerateReply call.
	GenerateReplyErr error

	// UpdateInstructionsErr, if non-nil, is returned by every
	// UpdateInstructions call.
	UpdateInstructionsErr error

	// CloseErr, if non-nil, is returned by the first Close call.
	CloseErr error

	// --- Call records (read after test) ---

	// GenerateReplyCalls records every call to GenerateReply in order.
	GenerateReplyCalls []GenerateReplyCall

	// UpdateInstructionsCalls records every call to UpdateInstructions in order.
	UpdateInstructionsCalls []UpdateInstructionsCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	events chan media.Event
	closed bool
}

// NewRuntime returns a mock runtime with a buffered event channel.
func NewRuntime() *Runtime {
	return &Runtime{events: make(chan media.Event, 32)}
}

// Emit delivers an event to the consumer. Panics if called after Close, which
// surfaces ordering bugs in tests immediately.
func (r *Runtime) Emit(ev media.Event) {
	r.events <- ev
}

// Events returns the scripted event channel.
func (r *Runtime) Events() <-chan media.Event {
	return r.events
}

// GenerateReply records the call and returns GenerateReplyErr.
func (r *Runtime) GenerateReply(ctx context.Context, instructions string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.GenerateReplyCalls = append(r.GenerateReplyCalls, GenerateReplyCall{Ctx: ctx, Instructions: instructions})
	return r.GenerateReplyErr
}

// UpdateInstructions records the call and returns UpdateInstructionsErr.
func (r *Runtime) UpdateInstructions(ctx context.Context, instructions string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.UpdateInstructionsCalls = append(r.UpdateInstructionsCalls, UpdateInstructionsCall{Ctx: ctx, Instructions: instructions})
	return r.UpdateInstructionsErr
}

// Close closes the event channel on first call; subsequent calls return nil.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CloseCallCount++
	if r.closed {
		return nil
	}
	r.closed = true
	close(r.events)
	return r.CloseErr
}

// Replies returns a snapshot of recorded GenerateReply calls. Thread-safe.
func (r *Runtime) Replies() []GenerateReplyCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]GenerateReplyCall, len(r.GenerateReplyCalls))
	copy(out, r.GenerateReplyCalls)
	return out
}

// InstructionUpdates returns a snapshot of recorded UpdateInstructions calls.
// Thread-safe.
func (r *Runtime) InstructionUpdates() []UpdateInstructionsCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]UpdateInstructionsCall, len(r.UpdateInstructionsCalls))
	copy(out, r.UpdateInstructionsCalls)
	return out
}

// Ensure Runtime implements media.Runtime at compile time.
var _ media.Runtime = (*Runtime)(nil)
