package observe

import "context"

// Provider is the vendor-agnostic backend for session traces, LLM-call
// logging, metrics, and evaluation submission.
//
// Implementations must degrade gracefully: a failing backend returns errors,
// and the [Service] facade swallows and logs them so business logic is never
// disturbed. A [NullProvider] backs the disabled state.
type Provider interface {
	// Enabled reports whether the provider is configured and operational.
	Enabled() bool

	// StartTrace opens a session-level trace and returns its ID.
	StartTrace(ctx context.Context, name string, meta TraceMetadata) (string, error)

	// EndTrace closes a trace, attaching final output values and an optional
	// error message.
	EndTrace(ctx context.Context, traceID string, output map[string]any, errMsg string) error

	// StartSpan opens a span under the given trace (empty traceID makes a
	// standalone span) and returns the span ID.
	StartSpan(ctx context.Context, name, traceID string, spanType SpanType, input map[string]any, meta TraceMetadata) (string, error)

	// EndSpan closes a span with output values and an optional error message.
	EndSpan(ctx context.Context, spanID string, output map[string]any, errMsg string) error

	// LogLLMCall records one model invocation as a completed span under the
	// trace.
	LogLLMCall(ctx context.Context, traceID string, call LLMCall) error

	// RecordMetric attaches a named score to the trace.
	RecordMetric(ctx context.Context, traceID, name string, value float64, meta map[string]any) error

	// SubmitEvaluation attaches per-metric evaluation scores plus an overall
	// score named "<evaluator>_overall" to the trace.
	SubmitEvaluation(ctx context.Context, eval EvaluationResult) error

	// Flush pushes pending data to the backend.
	Flush(ctx context.Context) error

	// Shutdown closes any still-open traces and spans and flushes.
	Shutdown(ctx context.Context) error
}

// NullProvider is the disabled backend: every operation is a successful no-op.
type NullProvider struct{}

var _ Provider = NullProvider{}

func (NullProvider) Enabled() bool { return false }

func (NullProvider) StartTrace(context.Context, string, TraceMetadata) (string, error) {
	return "", nil
}

func (NullProvider) EndTrace(context.Context, string, map[string]any, string) error { return nil }

func (NullProvider) StartSpan(context.Context, string, string, SpanType, map[string]any, TraceMetadata) (string, error) {
	return "", nil
}

func (NullProvider) EndSpan(context.Context, string, map[string]any, string) error { return nil }

func (NullProvider) LogLLMCall(context.Context, string, LLMCall) error { return nil }

func (NullProvider) RecordMetric(context.Context, string, string, float64, map[string]any) error {
	return nil
}

func (NullProvider) SubmitEvaluation(context.Context, EvaluationResult) error { return nil }

func (NullProvider) Flush(context.Context) error { return nil }

func (NullProvider) Shutdown(context.Context) error { return nil }
