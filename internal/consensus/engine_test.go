package consensus

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/johnayoung/dili-agents/internal/agent"
	"github.com/johnayoung/dili-agents/internal/provider"
	"github.com/johnayoung/dili-agents/internal/runner"
	"github.com/johnayoung/dili-agents/internal/vote"
)

// byAgent answers according to the agent name found in the system prompt.
func byAgent(answers map[string]string) provider.ProviderFunc {
	return func(ctx context.Context, req provider.Request) (provider.Response, error) {
		for name, answer := range answers {
			if strings.Contains(req.System, name) {
				if answer == "" {
					return provider.Response{}, errors.New("upstream error")
				}
				return provider.Response{Model: req.Model, Content: answer}, nil
			}
		}
		return provider.Response{}, errors.New("unexpected agent")
	}
}

func votePanel(t *testing.T) *agent.Panel {
	t.Helper()
	p := &agent.Panel{
		Name:           "liver",
		StrategyName:   "keyword",
		Labels:         []string{"Relevant", "Not Relevant"},
		SystemTemplate: "You are {{.Agent.Name}}.",
		Agents: []agent.Agent{
			{Name: "Hepato", Model: "m"},
			{Name: "Chole", Model: "m"},
			{Name: "Mixed", Model: "m"},
		},
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return p
}

type panelCounter struct {
	mu     sync.Mutex
	rounds map[string]int
}

func (c *panelCounter) Panel(name string) vote.Observer { return roundFunc(func() { c.mu.Lock(); c.rounds[name]++; c.mu.Unlock() }) }

type roundFunc func()

func (f roundFunc) ObserveRound(string, vote.Result) { f() }

func TestEngine_VoteMode(t *testing.T) {
	tests := []struct {
		name    string
		answers map[string]string
		want    vote.Decision
		failed  []string
	}{
		{
			name:    "majority relevant",
			answers: map[string]string{"Hepato": "Relevant", "Chole": "Not Relevant", "Mixed": "Relevant, ALT and ALP elevated"},
			want:    vote.Decision{Classification: "Relevant", Rationale: "Relevant"},
		},
		{
			name:    "failed agent is unparseable and excluded",
			answers: map[string]string{"Hepato": "Not Relevant", "Chole": "", "Mixed": "Not Relevant"},
			want:    vote.Decision{Classification: "Not Relevant", Rationale: "Not Relevant"},
			failed:  []string{"Chole"},
		},
		{
			name:    "split vote",
			answers: map[string]string{"Hepato": "Relevant", "Chole": "Not Relevant", "Mixed": "unsure"},
			want:    vote.Decision{Classification: vote.NoConsensus, Rationale: vote.MsgNoMajority},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := provider.NewRegistry()
			reg.Register("m", byAgent(tt.answers))
			counter := &panelCounter{rounds: make(map[string]int)}

			e := NewEngine(reg, runner.New(reg, time.Second), WithObserver(counter))
			out, err := e.Run(context.Background(), votePanel(t), "ALT 5x ULN after dosing")
			if err != nil {
				t.Fatalf("Run: %v", err)
			}

			if diff := cmp.Diff(tt.want, out.Decision); diff != "" {
				t.Errorf("decision mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.failed, out.FailedAgents); diff != "" {
				t.Errorf("failed agents mismatch (-want +got):\n%s", diff)
			}
			if len(out.Responses) != 3 || out.Round.Responses != 3 {
				t.Errorf("responses = %d, round saw %d", len(out.Responses), out.Round.Responses)
			}
			if out.Strategy != vote.StrategyKeyword || out.Judge != nil {
				t.Errorf("outcome = %+v", out)
			}
			if counter.rounds["liver"] != 1 {
				t.Errorf("observer saw %d rounds, want 1", counter.rounds["liver"])
			}
		})
	}
}

func TestEngine_AllAgentsFail(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register("m", byAgent(map[string]string{"Hepato": "", "Chole": "", "Mixed": ""}))

	_, err := NewEngine(reg, runner.New(reg, time.Second)).Run(context.Background(), votePanel(t), "x")
	if err == nil {
		t.Fatal("expected error when every agent fails")
	}
}

func TestEngine_MixtureMode(t *testing.T) {
	var (
		mu      sync.Mutex
		prompts []string
	)
	reference := provider.ProviderFunc(func(ctx context.Context, req provider.Request) (provider.Response, error) {
		mu.Lock()
		prompts = append(prompts, req.Prompt)
		mu.Unlock()
		return provider.Response{Content: `{"classification":"dili","rationale":"hepatotoxicity reported"}`}, nil
	})
	var judgePrompt string
	judge := provider.ProviderFunc(func(ctx context.Context, req provider.Request) (provider.Response, error) {
		judgePrompt = req.Prompt
		return provider.Response{Content: `{"classification":"DILI","rationale":"consistent evidence"}`}, nil
	})

	reg := provider.NewRegistry()
	reg.Register("m", reference)
	reg.Register("judge", judge)

	panel := testPanel(t, "structured", "dili", "non_dili")
	panel.Layers = 2

	var started []string
	cb := &runner.Callbacks{OnAgentStart: func(a string) { started = append(started, a) }}

	out, err := NewEngine(reg, runner.New(reg, time.Second), WithJudgeCallbacks(cb)).Run(context.Background(), panel, "Tenofovir hepatotoxicity")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := vote.Decision{Classification: "dili", Rationale: "consistent evidence"}
	if diff := cmp.Diff(want, out.Decision); diff != "" {
		t.Errorf("decision mismatch (-want +got):\n%s", diff)
	}
	if out.Judge == nil || out.Judge.Agent != "Director" {
		t.Errorf("judge = %+v", out.Judge)
	}
	if out.Round.Decision.Classification != "dili" {
		t.Errorf("reference round = %+v, want dili majority", out.Round.Decision)
	}
	if len(prompts) != 4 {
		t.Fatalf("reference calls = %d, want 2 agents x 2 layers", len(prompts))
	}

	var refined int
	for _, p := range prompts {
		if strings.Contains(p, "Answers from the previous round") {
			refined++
		}
	}
	if refined != 2 {
		t.Errorf("%d prompts carried previous answers, want 2", refined)
	}
	if !strings.Contains(judgePrompt, "hepatotoxicity reported") {
		t.Error("aggregator prompt missing reference answers")
	}
	if diff := cmp.Diff([]string{"Director"}, started); diff != "" {
		t.Errorf("judge callbacks mismatch (-want +got):\n%s", diff)
	}
}

type roundRecorder struct {
	decisions []vote.Decision
	responses []int
}

func (r *roundRecorder) Panel(string) vote.Observer { return r }

func (r *roundRecorder) ObserveRound(_ string, res vote.Result) {
	r.decisions = append(r.decisions, res.Decision)
	r.responses = append(r.responses, res.Responses)
}

func TestEngine_MixtureObservesFinalDecision(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register("m", provider.ProviderFunc(func(ctx context.Context, req provider.Request) (provider.Response, error) {
		return provider.Response{Content: `{"classification":"dili","rationale":"ALT elevated"}`}, nil
	}))
	reg.Register("judge", provider.ProviderFunc(func(ctx context.Context, req provider.Request) (provider.Response, error) {
		return provider.Response{Content: `{"classification":"non_dili","rationale":"no causal link"}`}, nil
	}))

	rec := &roundRecorder{}
	out, err := NewEngine(reg, runner.New(reg, time.Second), WithObserver(rec)).
		Run(context.Background(), testPanel(t, "structured", "dili", "non_dili"), "Tenofovir")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if out.Round.Decision.Classification != "dili" {
		t.Errorf("reference round = %+v, want dili", out.Round.Decision)
	}
	want := []vote.Decision{{Classification: "non_dili", Rationale: "no causal link"}}
	if diff := cmp.Diff(want, rec.decisions); diff != "" {
		t.Errorf("observed decisions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2}, rec.responses); diff != "" {
		t.Errorf("observed responses mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_MixtureMissingAggregatorModel(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register("m", provider.ProviderFunc(func(ctx context.Context, req provider.Request) (provider.Response, error) {
		return provider.Response{Content: "x"}, nil
	}))

	_, err := NewEngine(reg, runner.New(reg, time.Second)).Run(context.Background(), testPanel(t, "structured"), "x")
	if err == nil || !strings.Contains(err.Error(), "Director") {
		t.Errorf("err = %v, want aggregator error", err)
	}
}
