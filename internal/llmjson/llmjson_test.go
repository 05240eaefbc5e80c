package llmjson_test

import (
	"testing"

	"github.com/voxhire/voxhire/internal/llmjson"
)

// TestClean_PlainJSON checks that unfenced JSON passes through unchanged.
func TestClean_PlainJSON(t *testing.T) {
	in := `{"status": "flowing"}`
	if got := llmjson.Clean(in); got != in {
		t.Errorf("expected unchanged input, got %q", got)
	}
}

// TestClean_JSONFence checks that a ```json fence is stripped.
func TestClean_JSONFence(t *testing.T) {
	in := "```json\n{\"overall\": 80}\n```"
	want := `{"overall": 80}`
	if got := llmjson.Clean(in); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

// TestClean_BareFence checks that a plain ``` fence is stripped.
func TestClean_BareFence(t *testing.T) {
	in := "```\n{\"overall\": 80}\n```"
	want := `{"overall": 80}`
	if got := llmjson.Clean(in); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

// TestClean_TrailingFenceOnly checks the degenerate case of a trailing fence
// without an opening one.
func TestClean_TrailingFenceOnly(t *testing.T) {
	in := "{\"ok\": true}\n```"
	want := `{"ok": true}`
	if got := llmjson.Clean(in); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

// TestClean_SurroundingWhitespace checks whitespace trimming.
func TestClean_SurroundingWhitespace(t *testing.T) {
	in := "  \n {\"a\": 1} \n "
	want := `{"a": 1}`
	if got := llmjson.Clean(in); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

// TestUnmarshal_Fenced checks end-to-end decoding of fenced output.
func TestUnmarshal_Fenced(t *testing.T) {
	var out struct {
		Status       string `json:"status"`
		Intervention string `json:"intervention"`
	}
	err := llmjson.Unmarshal("```json\n{\"status\": \"stalling\", \"intervention\": \"move on\"}\n```", &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != "stalling" {
		t.Errorf("expected status stalling, got %q", out.Status)
	}
	if out.Intervention != "move on" {
		t.Errorf("expected intervention, got %q", out.Intervention)
	}
}

// TestUnmarshal_Invalid checks that non-JSON output surfaces an error.
func TestUnmarshal_Invalid(t *testing.T) {
	var out map[string]any
	if err := llmjson.Unmarshal("I am sorry, I cannot do that.", &out); err == nil {
		t.Fatal("expected error for non-JSON input")
	}
}
