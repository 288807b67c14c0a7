// Package consensus turns a panel's agent answers into one decision, either
// by majority vote or by an aggregator agent in mixture mode.
package consensus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/template"

	"github.com/johnayoung/dili-agents/internal/agent"
	"github.com/johnayoung/dili-agents/internal/provider"
	"github.com/johnayoung/dili-agents/internal/runner"
	"github.com/johnayoung/dili-agents/internal/vote"
)

const layerPromptTemplate = `{{.Task}}

Answers from the previous round:
{{range .Responses}}{{if not .Failed}}
--- {{.Agent}} ---
{{.Content}}
{{end}}{{end}}
Use these answers to refine your own response.`

var layerTmpl = template.Must(template.New("layer").Parse(layerPromptTemplate))

// Outcome is the full record of one panel run.
type Outcome struct {
	Panel        string            `json:"panel"`
	Mode         agent.Mode        `json:"mode"`
	Strategy     string            `json:"strategy"`
	Input        string            `json:"input"`
	Layers       int               `json:"layers,omitempty"`
	Responses    []runner.Response `json:"responses"`
	Round        vote.Result       `json:"round"`
	Decision     vote.Decision     `json:"decision"`
	Judge        *Verdict          `json:"judge,omitempty"`
	Warnings     []string          `json:"warnings,omitempty"`
	FailedAgents []string          `json:"failed_agents,omitempty"`
}

// PanelObserver hands out a round observer for a panel.
type PanelObserver interface {
	Panel(name string) vote.Observer
}

// Engine runs panels end to end.
type Engine struct {
	registry *provider.Registry
	runner   *runner.Runner
	log      *slog.Logger
	observer PanelObserver
	judgeCB  *runner.Callbacks
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithObserver attaches per-panel round observers.
func WithObserver(o PanelObserver) Option {
	return func(e *Engine) { e.observer = o }
}

// WithJudgeCallbacks reports the aggregator agent's progress in mixture mode.
func WithJudgeCallbacks(cb *runner.Callbacks) Option {
	return func(e *Engine) { e.judgeCB = cb }
}

// NewEngine creates an engine that queries agents through r and resolves
// aggregator models from registry.
func NewEngine(registry *provider.Registry, r *runner.Runner, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		runner:   r,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run classifies input with panel.
func (e *Engine) Run(ctx context.Context, panel *agent.Panel, input string) (*Outcome, error) {
	strategy, err := panel.Strategy()
	if err != nil {
		return nil, err
	}
	task, err := panel.TaskPrompt(input)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		Panel:    panel.Name,
		Mode:     panel.Mode,
		Strategy: strategy.Name(),
		Input:    input,
	}

	log := e.log.With(slog.String("panel", panel.Name))
	aggregator := vote.NewAggregator(strategy, vote.WithLogger(log))

	switch panel.Mode {
	case agent.ModeMixture:
		if err := e.runMixture(ctx, panel, task, out, log); err != nil {
			return nil, err
		}
		out.Round = aggregator.Run(runnerContents(out.Responses))
	default:
		res, err := e.query(ctx, panel, task)
		if err != nil {
			return nil, err
		}
		out.Responses = res.Responses
		out.Warnings = res.Warnings
		out.FailedAgents = res.FailedAgents
		out.Round = aggregator.Run(res.Contents())
		out.Decision = out.Round.Decision
	}

	e.observe(panel.Name, out)

	log.Info("panel decided",
		slog.String("mode", string(out.Mode)),
		slog.String("classification", string(out.Decision.Classification)),
		slog.Int("responses", len(out.Responses)),
		slog.Int("failed", len(out.FailedAgents)))

	return out, nil
}

func (e *Engine) runMixture(ctx context.Context, panel *agent.Panel, task string, out *Outcome, log *slog.Logger) error {
	out.Layers = panel.LayerCount()

	prompt := task
	var last *runner.Result
	for layer := 1; layer <= out.Layers; layer++ {
		if last != nil {
			var err error
			prompt, err = layerPrompt(task, last.Responses)
			if err != nil {
				return err
			}
		}
		res, err := e.query(ctx, panel, prompt)
		if err != nil {
			return fmt.Errorf("layer %d: %w", layer, err)
		}
		for _, w := range res.Warnings {
			out.Warnings = append(out.Warnings, fmt.Sprintf("layer %d: %s", layer, w))
		}
		log.Debug("mixture layer complete", slog.Int("layer", layer), slog.Int("answered", res.Succeeded()))
		last = res
	}

	out.Responses = last.Responses
	out.FailedAgents = last.FailedAgents

	p, err := e.registry.Get(panel.Aggregator.Model)
	if err != nil {
		return fmt.Errorf("aggregator %s: %w", panel.Aggregator.Name, err)
	}
	judge := NewJudge(p, panel, *panel.Aggregator)

	name := panel.Aggregator.Name
	e.judgeEvent(func(cb *runner.Callbacks) {
		if cb.OnAgentStart != nil {
			cb.OnAgentStart(name)
		}
	})
	verdict, err := judge.DecideStream(ctx, task, last.Responses, func(chunk string) {
		e.judgeEvent(func(cb *runner.Callbacks) {
			if cb.OnAgentStream != nil {
				cb.OnAgentStream(name, chunk)
			}
		})
	})
	if err != nil {
		e.judgeEvent(func(cb *runner.Callbacks) {
			if cb.OnAgentError != nil {
				cb.OnAgentError(name, err)
			}
		})
		return fmt.Errorf("aggregation: %w", err)
	}
	e.judgeEvent(func(cb *runner.Callbacks) {
		if cb.OnAgentComplete != nil {
			cb.OnAgentComplete(name)
		}
	})

	out.Judge = &verdict
	out.Decision = verdict.Decision
	return nil
}

func (e *Engine) query(ctx context.Context, panel *agent.Panel, prompt string) (*runner.Result, error) {
	tasks, err := runner.Tasks(panel, prompt)
	if err != nil {
		return nil, err
	}
	res, err := e.runner.Run(ctx, tasks)
	if err != nil {
		return nil, fmt.Errorf("running agents: %w", err)
	}
	return res, nil
}

// observe reports the round with the panel's final decision, which in
// mixture mode is the aggregator agent's rather than the reference tally's.
func (e *Engine) observe(panel string, out *Outcome) {
	if e.observer == nil {
		return
	}
	round := out.Round
	round.Decision = out.Decision
	e.observer.Panel(panel).ObserveRound(out.Strategy, round)
}

func (e *Engine) judgeEvent(fn func(*runner.Callbacks)) {
	if e.judgeCB != nil {
		fn(e.judgeCB)
	}
}

func layerPrompt(task string, responses []runner.Response) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Task      string
		Responses []runner.Response
	}{task, responses}
	if err := layerTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing layer template: %w", err)
	}
	return buf.String(), nil
}

func runnerContents(responses []runner.Response) []string {
	out := make([]string, len(responses))
	for i, r := range responses {
		out[i] = r.Content
	}
	return out
}
