package observe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxFieldChars bounds prompt and response payloads attached to spans.
const maxFieldChars = 10000

// liveSpan tracks an open trace or span so it can be closed by ID later,
// possibly from a different goroutine than the one that opened it.
type liveSpan struct {
	span  trace.Span
	ctx   context.Context
	start time.Time
}

// OTelProvider implements [Provider] on the OpenTelemetry SDK. Session traces
// are root spans; spans opened under them become children. Metrics and
// evaluation scores are attached as span events so exporters carry them
// alongside the trace.
type OTelProvider struct {
	tp trace.TracerProvider

	mu     sync.Mutex
	traces map[string]*liveSpan
	spans  map[string]*liveSpan
}

var _ Provider = (*OTelProvider)(nil)

// NewOTelProvider creates a provider over the given tracer provider, or the
// global one when nil.
func NewOTelProvider(tp trace.TracerProvider) *OTelProvider {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &OTelProvider{
		tp:     tp,
		traces: make(map[string]*liveSpan),
		spans:  make(map[string]*liveSpan),
	}
}

func (p *OTelProvider) Enabled() bool { return true }

func (p *OTelProvider) tracer() trace.Tracer {
	return p.tp.Tracer(tracerName)
}

func (p *OTelProvider) StartTrace(ctx context.Context, name string, meta TraceMetadata) (string, error) {
	ctx, span := p.tracer().Start(ctx, name,
		trace.WithNewRoot(),
		trace.WithAttributes(metaAttributes(meta)...),
	)
	id := span.SpanContext().TraceID().String()

	p.mu.Lock()
	p.traces[id] = &liveSpan{span: span, ctx: ctx, start: time.Now()}
	p.mu.Unlock()
	return id, nil
}

func (p *OTelProvider) EndTrace(_ context.Context, traceID string, output map[string]any, errMsg string) error {
	p.mu.Lock()
	ls, ok := p.traces[traceID]
	delete(p.traces, traceID)
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("observe: trace not found: %s", traceID)
	}

	ls.span.SetAttributes(valueAttributes("output", output)...)
	ls.span.SetAttributes(attribute.Float64("duration_ms", float64(time.Since(ls.start).Milliseconds())))
	if errMsg != "" {
		ls.span.SetStatus(codes.Error, errMsg)
	}
	ls.span.End()
	return nil
}

func (p *OTelProvider) StartSpan(_ context.Context, name, traceID string, spanType SpanType, input map[string]any, meta TraceMetadata) (string, error) {
	parent := context.Background()
	p.mu.Lock()
	if ls, ok := p.traces[traceID]; ok {
		parent = ls.ctx
	}
	p.mu.Unlock()

	attrs := append(metaAttributes(meta), attribute.String("span.type", string(spanType)))
	attrs = append(attrs, valueAttributes("input", input)...)
	ctx, span := p.tracer().Start(parent, name, trace.WithAttributes(attrs...))
	id := span.SpanContext().SpanID().String()

	p.mu.Lock()
	p.spans[id] = &liveSpan{span: span, ctx: ctx, start: time.Now()}
	p.mu.Unlock()
	return id, nil
}

func (p *OTelProvider) EndSpan(_ context.Context, spanID string, output map[string]any, errMsg string) error {
	p.mu.Lock()
	ls, ok := p.spans[spanID]
	delete(p.spans, spanID)
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("observe: span not found: %s", spanID)
	}

	ls.span.SetAttributes(valueAttributes("output", output)...)
	ls.span.SetAttributes(attribute.Float64("duration_ms", float64(time.Since(ls.start).Milliseconds())))
	if errMsg != "" {
		ls.span.SetStatus(codes.Error, errMsg)
	}
	ls.span.End()
	return nil
}

func (p *OTelProvider) LogLLMCall(_ context.Context, traceID string, call LLMCall) error {
	parent := context.Background()
	p.mu.Lock()
	if ls, ok := p.traces[traceID]; ok {
		parent = ls.ctx
	}
	p.mu.Unlock()

	attrs := []attribute.KeyValue{
		attribute.String("span.type", string(SpanTypeLLMCall)),
		attribute.String("llm.model", call.Model),
		attribute.String("llm.prompt", truncate(call.Prompt, maxFieldChars)),
		attribute.String("llm.response", truncate(call.Response, maxFieldChars)),
	}
	if call.Latency > 0 {
		attrs = append(attrs, attribute.Float64("llm.latency_ms", float64(call.Latency.Milliseconds())))
	}
	if call.Tokens > 0 {
		attrs = append(attrs, attribute.Int("llm.tokens", call.Tokens))
	}
	attrs = append(attrs, valueAttributes("metadata", call.Metadata)...)

	_, span := p.tracer().Start(parent, "llm_call_"+call.Model, trace.WithAttributes(attrs...))
	span.End()
	return nil
}

func (p *OTelProvider) RecordMetric(_ context.Context, traceID, name string, value float64, meta map[string]any) error {
	p.mu.Lock()
	ls, ok := p.traces[traceID]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("observe: trace not found: %s", traceID)
	}

	attrs := []attribute.KeyValue{
		attribute.String("metric.name", name),
		attribute.Float64("metric.value", value),
	}
	attrs = append(attrs, valueAttributes("metadata", meta)...)
	ls.span.AddEvent("metric", trace.WithAttributes(attrs...))
	return nil
}

func (p *OTelProvider) SubmitEvaluation(ctx context.Context, eval EvaluationResult) error {
	for _, score := range eval.Scores {
		if err := p.RecordMetric(ctx, eval.TraceID, score.MetricName, score.Score,
			map[string]any{"reason": score.Reason}); err != nil {
			return err
		}
	}
	return p.RecordMetric(ctx, eval.TraceID, eval.Evaluator+"_overall", eval.OverallScore,
		map[string]any{"reason": eval.Summary})
}

func (p *OTelProvider) Flush(ctx context.Context) error {
	if f, ok := p.tp.(interface{ ForceFlush(context.Context) error }); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (p *OTelProvider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	traces := p.traces
	spans := p.spans
	p.traces = make(map[string]*liveSpan)
	p.spans = make(map[string]*liveSpan)
	p.mu.Unlock()

	for _, ls := range spans {
		ls.span.SetStatus(codes.Error, "shutdown")
		ls.span.End()
	}
	for _, ls := range traces {
		ls.span.SetStatus(codes.Error, "shutdown")
		ls.span.End()
	}
	return p.Flush(ctx)
}

func metaAttributes(meta TraceMetadata) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	add := func(key, value string) {
		if value != "" {
			attrs = append(attrs, attribute.String(key, value))
		}
	}
	add("session_id", meta.SessionID)
	add("stage_type", meta.StageType)
	add("job_role", meta.JobRole)
	add("language", meta.Language)
	add("model", meta.Model)
	add("component", meta.Component)
	for k, v := range meta.Extra {
		attrs = append(attrs, attribute.String("extra."+k, fmt.Sprint(v)))
	}
	return attrs
}

func valueAttributes(prefix string, values map[string]any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(values))
	for k, v := range values {
		attrs = append(attrs, attribute.String(prefix+"."+k, truncate(fmt.Sprint(v), maxFieldChars)))
	}
	return attrs
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
