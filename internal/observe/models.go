package observe

import "time"

// SpanType categorizes spans for the observability backend.
type SpanType string

const (
	SpanTypeLLMCall    SpanType = "llm_call"
	SpanTypeFunction   SpanType = "function"
	SpanTypeSession    SpanType = "session"
	SpanTypeEvaluation SpanType = "evaluation"
)

// TraceMetadata is attached to traces and spans.
type TraceMetadata struct {
	SessionID string         `json:"session_id,omitempty"`
	StageType string         `json:"stage_type,omitempty"`
	JobRole   string         `json:"job_role,omitempty"`
	Language  string         `json:"language,omitempty"`
	Model     string         `json:"model,omitempty"`
	Component string         `json:"component,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// LLMCall describes one model invocation for best-effort logging. Prompt and
// response are truncated by the provider before export.
type LLMCall struct {
	Model    string
	Prompt   string
	Response string
	Latency  time.Duration
	Tokens   int
	Metadata map[string]any
}

// EvaluationScore is a single metric from an evaluator, scored 0.0 to 1.0.
type EvaluationScore struct {
	MetricName string  `json:"metric_name"`
	Score      float64 `json:"score"`
	Reason     string  `json:"reason,omitempty"`
}

// EvaluationResult is a complete evaluation of one session.
type EvaluationResult struct {
	SessionID    string            `json:"session_id"`
	TraceID      string            `json:"trace_id,omitempty"`
	Evaluator    string            `json:"evaluator"`
	Scores       []EvaluationScore `json:"scores"`
	OverallScore float64           `json:"overall_score"`
	Summary      string            `json:"summary,omitempty"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
}
