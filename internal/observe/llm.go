package observe

import (
	"context"
	"strings"
	"time"

	"github.com/voxhire/voxhire/pkg/provider/llm"
	"github.com/voxhire/voxhire/pkg/types"
)

// sessionIDKey carries the interview session ID through contexts so
// instrumented providers can resolve their trace without threading IDs
// through every intelligence-layer signature.
type sessionIDKey struct{}

// WithSessionID returns a context carrying the session ID. The orchestrator
// sets it once at session start; [InstrumentedLLM] reads it back to look up
// the trace in the session→trace registry.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

// SessionIDFromContext returns the session ID stored by [WithSessionID],
// or "" when none is set.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// InstrumentedLLM wraps an [llm.Provider] and logs every model invocation to
// the observability service. The trace is resolved per call from the session
// ID on the context, so a single wrapped provider serves all concurrent
// sessions. Logging is best effort and never changes the wrapped call's
// result.
type InstrumentedLLM struct {
	next      llm.Provider
	svc       *Service
	model     string
	component string
}

var _ llm.Provider = (*InstrumentedLLM)(nil)

// InstrumentLLM wraps next so every completion is logged under the calling
// session's trace. The model and component labels identify the call in the
// backend.
func InstrumentLLM(next llm.Provider, svc *Service, model, component string) *InstrumentedLLM {
	return &InstrumentedLLM{next: next, svc: svc, model: model, component: component}
}

// Complete forwards to the wrapped provider and logs the full round trip,
// including failures.
func (p *InstrumentedLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()
	resp, err := p.next.Complete(ctx, req)

	call := LLMCall{
		Model:    p.model,
		Prompt:   promptText(req),
		Latency:  time.Since(start),
		Metadata: map[string]any{"component": p.component},
	}
	if err != nil {
		call.Metadata["error"] = err.Error()
	} else if resp != nil {
		call.Response = resp.Content
		call.Tokens = resp.Usage.TotalTokens
	}
	p.svc.LogLLMCall(ctx, p.traceFor(ctx), call)
	return resp, err
}

// StreamCompletion forwards to the wrapped provider and logs the assembled
// response once the stream ends. Latency covers the whole stream, first
// chunk to last.
func (p *InstrumentedLLM) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	start := time.Now()
	ch, err := p.next.StreamCompletion(ctx, req)
	if err != nil {
		p.svc.LogLLMCall(ctx, p.traceFor(ctx), LLMCall{
			Model:    p.model,
			Prompt:   promptText(req),
			Latency:  time.Since(start),
			Metadata: map[string]any{"component": p.component, "error": err.Error()},
		})
		return nil, err
	}

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		var b strings.Builder
		meta := map[string]any{"component": p.component}
		logCall := func() {
			p.svc.LogLLMCall(ctx, p.traceFor(ctx), LLMCall{
				Model:    p.model,
				Prompt:   promptText(req),
				Response: b.String(),
				Latency:  time.Since(start),
				Metadata: meta,
			})
		}
		for c := range ch {
			b.WriteString(c.Text)
			select {
			case out <- c:
			case <-ctx.Done():
				// Caller gone; drain so the upstream goroutine can exit.
				for range ch {
				}
				meta["error"] = ctx.Err().Error()
				logCall()
				return
			}
		}
		logCall()
	}()
	return out, nil
}

// CountTokens forwards to the wrapped provider.
func (p *InstrumentedLLM) CountTokens(messages []types.Message) (int, error) {
	return p.next.CountTokens(messages)
}

// Capabilities forwards to the wrapped provider.
func (p *InstrumentedLLM) Capabilities() types.ModelCapabilities {
	return p.next.Capabilities()
}

func (p *InstrumentedLLM) traceFor(ctx context.Context) string {
	return p.svc.TraceForSession(SessionIDFromContext(ctx))
}

// promptText flattens a request into one loggable string. Truncation to the
// backend's field limit happens in the provider.
func promptText(req llm.CompletionRequest) string {
	var b strings.Builder
	if req.SystemPrompt != "" {
		b.WriteString("system: ")
		b.WriteString(req.SystemPrompt)
		b.WriteString("\n")
	}
	for _, m := range req.Messages {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}
