package llmcorrect

import (
	"strings"
	"testing"
)

func TestVerifyCorrectedText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		original        string
		corrected       string
		corrections     []Correction
		wantText        string
		wantCorrections int
	}{
		{
			name:            "identical text",
			original:        "the service uses Redis",
			corrected:       "the service uses Redis",
			corrections:     nil,
			wantText:        "the service uses Redis",
			wantCorrections: 0,
		},
		{
			name:      "single verified correction",
			original:  "postgress stores it",
			corrected: "PostgreSQL stores it",
			corrections: []Correction{
				{Original: "postgress", Corrected: "PostgreSQL", Confidence: 0.9},
			},
			wantText:        "PostgreSQL stores it",
			wantCorrections: 1,
		},
		{
			name:      "multi-word correction",
			original:  "cube control applies the manifest",
			corrected: "kubectl applies the manifest",
			corrections: []Correction{
				{Original: "cube control", Corrected: "kubectl", Confidence: 0.9},
			},
			wantText:        "kubectl applies the manifest",
			wantCorrections: 1,
		},
		{
			name:            "unverified change reverted",
			original:        "the job runs nightly",
			corrected:       "the job runs daily",
			corrections:     nil,
			wantText:        "the job runs nightly",
			wantCorrections: 0,
		},
		{
			name:      "mixed verified and unverified",
			original:  "cube control runs in the small cluster",
			corrected: "kubectl runs in the large cluster",
			corrections: []Correction{
				{Original: "cube control", Corrected: "kubectl", Confidence: 0.9},
			},
			wantText:        "kubectl runs in the small cluster",
			wantCorrections: 1,
		},
		{
			name:            "empty corrections with changed text reverts fully",
			original:        "the service emits metrics",
			corrected:       "the worker emits traces",
			corrections:     []Correction{},
			wantText:        "the service emits metrics",
			wantCorrections: 0,
		},
		{
			name:      "punctuation attached to tokens",
			original:  "deployed on Kuberneties.",
			corrected: "deployed on Kubernetes.",
			corrections: []Correction{
				{Original: "Kuberneties", Corrected: "Kubernetes", Confidence: 0.85},
			},
			wantText:        "deployed on Kubernetes.",
			wantCorrections: 1,
		},
		{
			name:      "multiple verified corrections",
			original:  "cube control deploys it to Kuberneties.",
			corrected: "kubectl deploys it to Kubernetes.",
			corrections: []Correction{
				{Original: "cube control", Corrected: "kubectl", Confidence: 0.9},
				{Original: "Kuberneties", Corrected: "Kubernetes", Confidence: 0.85},
			},
			wantText:        "kubectl deploys it to Kubernetes.",
			wantCorrections: 2,
		},
		{
			name:      "case insensitive lookup",
			original:  "POSTGRESS stores it",
			corrected: "PostgreSQL stores it",
			corrections: []Correction{
				{Original: "postgress", Corrected: "PostgreSQL", Confidence: 0.9},
			},
			wantText:        "PostgreSQL stores it",
			wantCorrections: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gotText, gotCorr := verifyCorrectedText(tt.original, tt.corrected, tt.corrections)
			if gotText != tt.wantText {
				t.Errorf("text = %q, want %q", gotText, tt.wantText)
			}
			if len(gotCorr) != tt.wantCorrections {
				t.Errorf("corrections count = %d, want %d", len(gotCorr), tt.wantCorrections)
			}
		})
	}
}

func TestTokenLCS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		a, b    []string
		wantLen int
	}{
		{"both empty", nil, nil, 0},
		{"a empty", nil, strings.Fields("hello world"), 0},
		{"b empty", strings.Fields("hello world"), nil, 0},
		{"identical", strings.Fields("a b c"), strings.Fields("a b c"), 3},
		{"no common", strings.Fields("a b"), strings.Fields("c d"), 0},
		{"partial overlap", strings.Fields("a b c d"), strings.Fields("a x c d"), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			anchors := tokenLCS(tt.a, tt.b)
			if len(anchors) != tt.wantLen {
				t.Errorf("LCS length = %d, want %d", len(anchors), tt.wantLen)
			}
		})
	}
}

func TestExtractChangeSpans(t *testing.T) {
	t.Parallel()

	orig := strings.Fields("a X c Y e")
	corr := strings.Fields("a B c D e")
	anchors := tokenLCS(orig, corr)
	spans := extractChangeSpans(orig, corr, anchors)

	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if strings.Join(spans[0].origTokens, " ") != "X" {
		t.Errorf("span[0].orig = %q, want %q", strings.Join(spans[0].origTokens, " "), "X")
	}
	if strings.Join(spans[0].corrTokens, " ") != "B" {
		t.Errorf("span[0].corr = %q, want %q", strings.Join(spans[0].corrTokens, " "), "B")
	}
	if strings.Join(spans[1].origTokens, " ") != "Y" {
		t.Errorf("span[1].orig = %q, want %q", strings.Join(spans[1].origTokens, " "), "Y")
	}
	if strings.Join(spans[1].corrTokens, " ") != "D" {
		t.Errorf("span[1].corr = %q, want %q", strings.Join(spans[1].corrTokens, " "), "D")
	}
}
