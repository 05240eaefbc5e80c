package feedback_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/voxhire/voxhire/internal/feedback"
	"github.com/voxhire/voxhire/pkg/provider/llm"
	"github.com/voxhire/voxhire/pkg/provider/llm/mock"
	"github.com/voxhire/voxhire/pkg/types"
)

const reviewJSON = `{
	"score": 74,
	"summary": "Solid backend fundamentals.",
	"pros": ["Clear explanations", "Concrete examples"],
	"cons": ["Shallow on distributed systems"],
	"feedback": "Practice system design questions out loud."
}`

func transcript() []types.Turn {
	return []types.Turn{
		{Role: "assistant", Content: "Walk me through your last project."},
		{Role: "user", Content: "I built the ingestion pipeline for our analytics product."},
	}
}

func TestGenerate_HappyPath(t *testing.T) {
	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: reviewJSON}}
	g := feedback.NewGenerator(p)

	got := g.Generate(context.Background(), transcript(), "Eight years of Go.", "Backend role.")
	if got.Score != 74 || got.Summary != "Solid backend fundamentals." {
		t.Errorf("report = %+v", got)
	}
	if len(got.Pros) != 2 || len(got.Cons) != 1 {
		t.Errorf("pros/cons = %v / %v", got.Pros, got.Cons)
	}

	prompt := p.Calls()[0].Req.Messages[0].Content
	for _, want := range []string{
		"Interviewer: Walk me through your last project.",
		"Candidate: I built the ingestion pipeline for our analytics product.",
		"Candidate Resume:\nEight years of Go.",
		"Job Description:\nBackend role.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if !p.Calls()[0].Req.JSONOnly {
		t.Error("review must request JSON output")
	}
}

func TestGenerate_EmptyTranscript(t *testing.T) {
	p := &mock.Provider{}
	g := feedback.NewGenerator(p)

	got := g.Generate(context.Background(), nil, "", "")
	if got.Score != 0 || !strings.Contains(got.Summary, "without any conversation") {
		t.Errorf("report = %+v", got)
	}
	if len(p.Calls()) != 0 {
		t.Error("empty transcript must not call the model")
	}
}

func TestGenerate_Failures(t *testing.T) {
	cases := []struct {
		name     string
		provider *mock.Provider
	}{
		{"transport error", &mock.Provider{CompleteErr: errors.New("backend down")}},
		{"garbage output", &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "not json"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := feedback.NewGenerator(tc.provider)
			got := g.Generate(context.Background(), transcript(), "", "")
			if got.Score != 0 || got.Summary != "Could not generate feedback." {
				t.Errorf("fallback report = %+v", got)
			}
		})
	}
}

func TestReport_JSON(t *testing.T) {
	s := feedback.Report{Score: 50, Summary: "ok"}.JSON()
	for _, want := range []string{`"score":50`, `"pros":[]`, `"cons":[]`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON() = %s, missing %s", s, want)
		}
	}
}
