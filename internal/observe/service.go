package observe

import (
	"context"
	"log/slog"
	"sync"
)

// Service is the facade every component talks to for session traces. It
// swallows and logs all provider errors so observability can never break an
// interview, and it keeps a process-wide session→trace registry: background
// tasks spawned without inherited context look their trace up by session ID.
//
// Service is safe for concurrent use.
type Service struct {
	provider Provider

	mu       sync.RWMutex
	sessions map[string]string
}

// NewService creates a Service over the given provider. A nil provider means
// observability is disabled and the NullProvider is substituted silently.
func NewService(provider Provider) *Service {
	if provider == nil {
		slog.Info("observability disabled")
		provider = NullProvider{}
	}
	return &Service{
		provider: provider,
		sessions: make(map[string]string),
	}
}

// Enabled reports whether the underlying provider is operational.
func (s *Service) Enabled() bool { return s.provider.Enabled() }

// RegisterSessionTrace records a session→trace mapping.
func (s *Service) RegisterSessionTrace(sessionID, traceID string) {
	if sessionID == "" || traceID == "" {
		return
	}
	s.mu.Lock()
	s.sessions[sessionID] = traceID
	s.mu.Unlock()
	slog.Debug("registered session trace", "session_id", sessionID, "trace_id", traceID)
}

// UnregisterSessionTrace removes a session from the registry.
func (s *Service) UnregisterSessionTrace(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// TraceForSession returns the trace ID registered for a session, or "".
func (s *Service) TraceForSession(sessionID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}

// StartTrace opens a session-level trace. Returns "" on failure.
func (s *Service) StartTrace(ctx context.Context, name string, meta TraceMetadata) string {
	id, err := s.provider.StartTrace(ctx, name, meta)
	if err != nil {
		slog.Error("start trace failed", "name", name, "error", err)
		return ""
	}
	return id
}

// EndTrace closes a trace. Empty trace IDs are ignored.
func (s *Service) EndTrace(ctx context.Context, traceID string, output map[string]any, errMsg string) {
	if traceID == "" {
		return
	}
	if err := s.provider.EndTrace(ctx, traceID, output, errMsg); err != nil {
		slog.Error("end trace failed", "trace_id", traceID, "error", err)
	}
}

// StartSpan opens a span under a trace. Returns "" on failure.
func (s *Service) StartSpan(ctx context.Context, name, traceID string, spanType SpanType, input map[string]any, meta TraceMetadata) string {
	id, err := s.provider.StartSpan(ctx, name, traceID, spanType, input, meta)
	if err != nil {
		slog.Error("start span failed", "name", name, "error", err)
		return ""
	}
	return id
}

// EndSpan closes a span. Empty span IDs are ignored.
func (s *Service) EndSpan(ctx context.Context, spanID string, output map[string]any, errMsg string) {
	if spanID == "" {
		return
	}
	if err := s.provider.EndSpan(ctx, spanID, output, errMsg); err != nil {
		slog.Error("end span failed", "span_id", spanID, "error", err)
	}
}

// LogLLMCall records one model invocation, best effort.
func (s *Service) LogLLMCall(ctx context.Context, traceID string, call LLMCall) {
	if err := s.provider.LogLLMCall(ctx, traceID, call); err != nil {
		slog.Error("log llm call failed", "model", call.Model, "error", err)
	}
}

// RecordMetric attaches a named score to a trace, best effort.
func (s *Service) RecordMetric(ctx context.Context, traceID, name string, value float64, meta map[string]any) {
	if err := s.provider.RecordMetric(ctx, traceID, name, value, meta); err != nil {
		slog.Error("record metric failed", "metric", name, "error", err)
	}
}

// SubmitEvaluation attaches evaluation scores to a trace, best effort.
func (s *Service) SubmitEvaluation(ctx context.Context, eval EvaluationResult) {
	if err := s.provider.SubmitEvaluation(ctx, eval); err != nil {
		slog.Error("submit evaluation failed", "evaluator", eval.Evaluator, "error", err)
	}
}

// Flush pushes pending data to the backend, best effort.
func (s *Service) Flush(ctx context.Context) {
	if err := s.provider.Flush(ctx); err != nil {
		slog.Error("observability flush failed", "error", err)
	}
}

// Shutdown closes the provider, best effort.
func (s *Service) Shutdown(ctx context.Context) {
	if err := s.provider.Shutdown(ctx); err != nil {
		slog.Error("observability shutdown failed", "error", err)
	}
}
