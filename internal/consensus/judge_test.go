package consensus

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/johnayoung/dili-agents/internal/agent"
	"github.com/johnayoung/dili-agents/internal/provider"
	"github.com/johnayoung/dili-agents/internal/runner"
	"github.com/johnayoung/dili-agents/internal/vote"
)

func testPanel(t *testing.T, strategy string, labels ...string) *agent.Panel {
	t.Helper()
	p := &agent.Panel{
		Name:             "test",
		Mode:             agent.ModeMixture,
		StrategyName:     strategy,
		Labels:           labels,
		AggregatorPrompt: "Decide if this is DILI related or not.",
		Agents:           []agent.Agent{{Name: "A", Model: "m"}, {Name: "B", Model: "m"}},
		Aggregator:       &agent.Agent{Name: "Director", Model: "judge"},
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return p
}

func resp(name, content string) runner.Response {
	return runner.Response{Agent: name, Response: provider.Response{Model: "m", Content: content, Provider: "test"}}
}

func TestJudge_Decide(t *testing.T) {
	tests := []struct {
		name      string
		responses []runner.Response
		judge     func(ctx context.Context, req provider.Request) (provider.Response, error)
		want      vote.Classification
		wantErr   bool
	}{
		{
			name:      "empty responses returns error",
			responses: []runner.Response{},
			wantErr:   true,
		},
		{
			name:      "only failed responses returns error",
			responses: []runner.Response{{Agent: "A", Error: "timeout"}},
			wantErr:   true,
		},
		{
			name:      "single response is final",
			responses: []runner.Response{resp("A", `{"classification":"dili","rationale":"r"}`), {Agent: "B", Error: "boom"}},
			want:      "dili",
		},
		{
			name:      "multiple responses call aggregator",
			responses: []runner.Response{resp("A", "answer a"), resp("B", "answer b")},
			judge: func(ctx context.Context, req provider.Request) (provider.Response, error) {
				if !strings.Contains(req.Prompt, "answer a") || !strings.Contains(req.Prompt, "answer b") {
					t.Error("aggregator prompt missing agent answers")
				}
				return provider.Response{Content: "```json\n{\"classification\":\"non_dili\",\"rationale\":\"no liver signal\"}\n```"}, nil
			},
			want: "non_dili",
		},
		{
			name:      "unparseable aggregator answer is no consensus",
			responses: []runner.Response{resp("A", "a"), resp("B", "b")},
			judge: func(ctx context.Context, req provider.Request) (provider.Response, error) {
				return provider.Response{Content: "I cannot decide."}, nil
			},
			want: vote.NoConsensus,
		},
		{
			name:      "aggregator failure propagates error",
			responses: []runner.Response{resp("A", "a"), resp("B", "b")},
			judge: func(ctx context.Context, req provider.Request) (provider.Response, error) {
				return provider.Response{}, errors.New("judge api error")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p provider.Provider
			if tt.judge != nil {
				p = provider.ProviderFunc(tt.judge)
			} else {
				p = provider.ProviderFunc(func(ctx context.Context, req provider.Request) (provider.Response, error) {
					return provider.Response{}, nil
				})
			}

			panel := testPanel(t, "structured", "dili", "non_dili")
			verdict, err := NewJudge(p, panel, *panel.Aggregator).Decide(context.Background(), "task", tt.responses)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if verdict.Decision.Classification != tt.want {
				t.Errorf("classification = %q, want %q", verdict.Decision.Classification, tt.want)
			}
		})
	}
}

func TestJudge_PromptTemplate(t *testing.T) {
	var captured provider.Request

	p := provider.ProviderFunc(func(ctx context.Context, req provider.Request) (provider.Response, error) {
		captured = req
		return provider.Response{Content: "Relevant"}, nil
	})

	panel := testPanel(t, "keyword", "Relevant", "Not Relevant")
	responses := []runner.Response{
		resp("Hepatocellular", "ALT elevated, Relevant"),
		resp("Cholestatic", "ALP normal, Not Relevant"),
	}

	verdict, err := NewJudge(p, panel, *panel.Aggregator).Decide(context.Background(), "Tenofovir hepatotoxicity", responses)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Agent != "Director" || verdict.Model != "judge" {
		t.Errorf("verdict = %+v", verdict)
	}
	if captured.Model != "judge" {
		t.Errorf("model = %q, want judge", captured.Model)
	}

	checks := []string{
		"Decide if this is DILI related or not.",
		"Tenofovir hepatotoxicity",
		"Hepatocellular",
		"Cholestatic",
		"ALT elevated, Relevant",
		"Respond with exactly one of: Relevant, Not Relevant.",
	}
	for _, check := range checks {
		if !strings.Contains(captured.Prompt, check) {
			t.Errorf("prompt missing %q", check)
		}
	}
}
