package llmcorrect_test

import (
	"context"
	"strings"
	"testing"

	"github.com/voxhire/voxhire/internal/transcript/llmcorrect"
	"github.com/voxhire/voxhire/pkg/provider/llm"
	"github.com/voxhire/voxhire/pkg/provider/llm/mock"
)

func TestCorrector_CallsLLMWithVocabulary(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"corrected_text": "We store sessions in PostgreSQL.", "corrections": []}`,
		},
	}
	c := llmcorrect.New(provider)

	vocabulary := []string{"PostgreSQL", "Kubernetes", "spring boot"}
	_, _, err := c.Correct(context.Background(), "We store sessions in post gress.", vocabulary)
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}

	if len(provider.CompleteCalls) != 1 {
		t.Fatalf("expected 1 Complete call, got %d", len(provider.CompleteCalls))
	}

	req := provider.CompleteCalls[0].Req
	// System prompt must contain each vocabulary term.
	for _, term := range vocabulary {
		if !strings.Contains(req.SystemPrompt, term) {
			t.Errorf("system prompt missing term %q\nprompt:\n%s", term, req.SystemPrompt)
		}
	}
	if !req.JSONOnly {
		t.Error("JSONOnly not set on correction request")
	}

	// User message must contain the original transcript text.
	if len(req.Messages) == 0 {
		t.Fatal("request has no messages")
	}
	if !strings.Contains(req.Messages[0].Content, "post gress") {
		t.Errorf("user message missing original text, got: %s", req.Messages[0].Content)
	}
}

func TestCorrector_ParsesJSONCorrections(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{
  "corrected_text": "I deployed it with kubectl on Kubernetes.",
  "corrections": [
    {"original": "cube control", "corrected": "kubectl", "confidence": 0.9}
  ]
}`,
		},
	}
	c := llmcorrect.New(provider)

	correctedText, corrections, err := c.Correct(
		context.Background(),
		"I deployed it with cube control on Kubernetes.",
		[]string{"kubectl", "Kubernetes"},
	)
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}

	if correctedText != "I deployed it with kubectl on Kubernetes." {
		t.Errorf("correctedText=%q", correctedText)
	}

	if len(corrections) != 1 {
		t.Fatalf("got %d corrections, want 1", len(corrections))
	}
	if corrections[0].Original != "cube control" {
		t.Errorf("corrections[0].Original=%q, want %q", corrections[0].Original, "cube control")
	}
	if corrections[0].Corrected != "kubectl" {
		t.Errorf("corrections[0].Corrected=%q, want %q", corrections[0].Corrected, "kubectl")
	}
	if corrections[0].Confidence != 0.9 {
		t.Errorf("corrections[0].Confidence=%f, want 0.9", corrections[0].Confidence)
	}
}

func TestCorrector_RevertsUndeclaredEdits(t *testing.T) {
	t.Parallel()

	// The model rewrote "built" to "created" without declaring it. Only the
	// declared kubectl substitution must survive.
	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{
  "corrected_text": "I created the pipeline with kubectl yesterday.",
  "corrections": [
    {"original": "cube control", "corrected": "kubectl", "confidence": 0.9}
  ]
}`,
		},
	}
	c := llmcorrect.New(provider)

	correctedText, corrections, err := c.Correct(
		context.Background(),
		"I built the pipeline with cube control yesterday.",
		[]string{"kubectl"},
	)
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}

	if correctedText != "I built the pipeline with kubectl yesterday." {
		t.Errorf("correctedText=%q, undeclared edit not reverted", correctedText)
	}
	if len(corrections) != 1 || corrections[0].Corrected != "kubectl" {
		t.Errorf("corrections=%v, want only the kubectl substitution", corrections)
	}
}

func TestCorrector_FallbackOnUnparseable(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			// Intentionally invalid JSON.
			Content: "I cannot correct this transcript because it's ambiguous.",
		},
	}
	c := llmcorrect.New(provider)

	originalText := "we use post gress and cube control in production."
	correctedText, corrections, err := c.Correct(
		context.Background(),
		originalText,
		[]string{"PostgreSQL", "kubectl"},
	)
	if err != nil {
		t.Fatalf("Correct returned error on unparseable response: %v", err)
	}

	// Must return original text unchanged.
	if correctedText != originalText {
		t.Errorf("correctedText=%q, want original %q", correctedText, originalText)
	}
	if corrections != nil {
		t.Errorf("corrections=%v, want nil on fallback", corrections)
	}
}

func TestCorrector_NilResponse(t *testing.T) {
	t.Parallel()

	// Zero-value mock returns (nil, nil) from Complete.
	provider := &mock.Provider{}
	c := llmcorrect.New(provider)

	originalText := "some answer"
	correctedText, corrections, err := c.Correct(context.Background(), originalText, []string{"Go"})
	if err != nil {
		t.Fatalf("Correct returned error on nil response: %v", err)
	}
	if correctedText != originalText {
		t.Errorf("correctedText=%q, want original %q", correctedText, originalText)
	}
	if corrections != nil {
		t.Errorf("corrections=%v, want nil", corrections)
	}
}

func TestCorrector_MarkdownStripping(t *testing.T) {
	t.Parallel()

	// Some models wrap JSON in markdown fences.
	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "```json\n" + `{"corrected_text": "Kafka handles the events.", "corrections": [{"original": "calfka", "corrected": "Kafka", "confidence": 0.85}]}` + "\n```",
		},
	}
	c := llmcorrect.New(provider)

	correctedText, _, err := c.Correct(
		context.Background(),
		"calfka handles the events.",
		[]string{"Kafka"},
	)
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}
	if correctedText != "Kafka handles the events." {
		t.Errorf("correctedText=%q, want %q", correctedText, "Kafka handles the events.")
	}
}

func TestCorrector_EmptyVocabulary(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{}
	c := llmcorrect.New(provider)

	text := "some text"
	correctedText, corrections, err := c.Correct(context.Background(), text, nil)
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}
	if correctedText != text {
		t.Errorf("correctedText=%q, want original %q when vocabulary is empty", correctedText, text)
	}
	if len(corrections) != 0 {
		t.Errorf("expected no corrections when vocabulary is nil, got %d", len(corrections))
	}
	// LLM should not be called.
	if len(provider.CompleteCalls) != 0 {
		t.Errorf("expected 0 LLM calls for empty vocabulary, got %d", len(provider.CompleteCalls))
	}
}

func TestCorrector_LLMError(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteErr: context.DeadlineExceeded,
	}
	c := llmcorrect.New(provider)

	_, _, err := c.Correct(
		context.Background(),
		"some answer",
		[]string{"PostgreSQL"},
	)
	if err == nil {
		t.Fatal("expected error from LLM failure, got nil")
	}
}

func TestCorrector_WithTemperature(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"corrected_text": "hello", "corrections": []}`,
		},
	}
	c := llmcorrect.New(provider, llmcorrect.WithTemperature(0.5))

	_, _, err := c.Correct(context.Background(), "hello", []string{"PostgreSQL"})
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}

	if len(provider.CompleteCalls) == 0 {
		t.Fatal("no Complete calls recorded")
	}
	req := provider.CompleteCalls[0].Req
	if req.Temperature != 0.5 {
		t.Errorf("Temperature=%f, want 0.5", req.Temperature)
	}
}
