package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/johnayoung/dili-agents/internal/agent"
	"github.com/johnayoung/dili-agents/internal/provider"
	"golang.org/x/sync/errgroup"
)

// Task is one agent's query.
type Task struct {
	Agent   agent.Agent
	Request provider.Request
}

// Tasks builds one task per panel agent, all answering prompt.
func Tasks(p *agent.Panel, prompt string) ([]Task, error) {
	tasks := make([]Task, 0, len(p.Agents))
	for _, a := range p.Agents {
		t, err := NewTask(p, a, prompt)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// NewTask builds the query for a single agent of p.
func NewTask(p *agent.Panel, a agent.Agent, prompt string) (Task, error) {
	system, err := p.SystemPrompt(a)
	if err != nil {
		return Task{}, fmt.Errorf("agent %s: %w", a.Name, err)
	}
	return Task{
		Agent: a,
		Request: provider.Request{
			Model:       a.Model,
			System:      system,
			Prompt:      prompt,
			Temperature: p.Temperature,
			MaxTokens:   p.MaxTokens,
		},
	}, nil
}

// Response is one agent's answer. A failed agent keeps its slot with empty
// content and Error set.
type Response struct {
	Agent string `json:"agent"`
	provider.Response
	Error string `json:"error,omitempty"`
}

// Failed reports whether the agent produced no answer.
func (r Response) Failed() bool { return r.Error != "" }

// Result contains the outcomes of querying every agent, in task order.
type Result struct {
	Responses    []Response
	Warnings     []string
	FailedAgents []string
}

// Contents returns the raw answers in task order. Failed agents contribute
// an empty string.
func (r *Result) Contents() []string {
	out := make([]string, len(r.Responses))
	for i, resp := range r.Responses {
		out[i] = resp.Content
	}
	return out
}

// Succeeded returns the number of agents that answered.
func (r *Result) Succeeded() int {
	return len(r.Responses) - len(r.FailedAgents)
}

// Callbacks receive progress events. Any field may be nil.
type Callbacks struct {
	OnAgentStart    func(agent string)
	OnAgentStream   func(agent, chunk string)
	OnAgentComplete func(agent string)
	OnAgentError    func(agent string, err error)
}

// Observer records per-agent query outcomes.
type Observer interface {
	ObserveAgent(agent, model string, latency time.Duration, err error)
}

// Runner orchestrates parallel agent queries.
type Runner struct {
	registry  *provider.Registry
	timeout   time.Duration
	callbacks *Callbacks
	observer  Observer
	log       *slog.Logger
}

// New creates a runner with the given registry and per-agent timeout.
func New(registry *provider.Registry, timeout time.Duration) *Runner {
	return &Runner{
		registry: registry,
		timeout:  timeout,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithCallbacks sets the progress callbacks.
func (r *Runner) WithCallbacks(cb *Callbacks) *Runner {
	r.callbacks = cb
	return r
}

// WithObserver sets the metrics observer.
func (r *Runner) WithObserver(o Observer) *Runner {
	r.observer = o
	return r
}

// WithLogger sets the logger. A nil logger is ignored.
func (r *Runner) WithLogger(l *slog.Logger) *Runner {
	if l != nil {
		r.log = l
	}
	return r
}

// Run queries every task concurrently and collects the answers in task order.
// Uses best-effort strategy: partial failures don't abort the run.
func (r *Runner) Run(ctx context.Context, tasks []Task) (*Result, error) {
	var (
		mu        sync.Mutex
		responses = make([]Response, len(tasks))
		failures  = make([]error, len(tasks))
	)

	g, ctx := errgroup.WithContext(ctx)

	for i, task := range tasks {
		g.Go(func() error {
			name := task.Agent.Name
			responses[i] = Response{Agent: name, Response: provider.Response{Model: task.Request.Model}}

			// Per-agent timeout
			agentCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			r.emitStart(name)

			p, err := r.registry.Get(task.Request.Model)
			if err != nil {
				failures[i] = err
				r.emitError(name, err)
				return nil // best effort: don't fail entire run
			}

			start := time.Now()
			resp, err := p.QueryStream(agentCtx, task.Request, func(chunk string) {
				r.emitStream(&mu, name, chunk)
			})
			r.observe(name, task.Request.Model, time.Since(start), err)

			if err != nil {
				failures[i] = err
				r.emitError(name, err)
				return nil // best effort
			}

			responses[i].Response = resp
			r.emitComplete(name)
			return nil
		})
	}

	// Wait for all goroutines to complete
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Responses: responses}
	for i, err := range failures {
		if err == nil {
			continue
		}
		name := tasks[i].Agent.Name
		responses[i].Error = err.Error()
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", name, err))
		result.FailedAgents = append(result.FailedAgents, name)
		r.log.Warn("agent failed",
			slog.String("agent", name),
			slog.String("model", tasks[i].Request.Model),
			"error", err)
	}

	if len(tasks) > 0 && result.Succeeded() == 0 {
		return result, fmt.Errorf("all agents failed: %s", strings.Join(result.Warnings, "; "))
	}

	return result, nil
}

func (r *Runner) emitStart(name string) {
	if r.callbacks != nil && r.callbacks.OnAgentStart != nil {
		r.callbacks.OnAgentStart(name)
	}
}

// emitStream serializes chunk delivery so the progress display sees one
// writer at a time.
func (r *Runner) emitStream(mu *sync.Mutex, name, chunk string) {
	if r.callbacks == nil || r.callbacks.OnAgentStream == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	r.callbacks.OnAgentStream(name, chunk)
}

func (r *Runner) emitComplete(name string) {
	if r.callbacks != nil && r.callbacks.OnAgentComplete != nil {
		r.callbacks.OnAgentComplete(name)
	}
}

func (r *Runner) emitError(name string, err error) {
	if r.callbacks != nil && r.callbacks.OnAgentError != nil {
		r.callbacks.OnAgentError(name, err)
	}
}

func (r *Runner) observe(name, model string, latency time.Duration, err error) {
	if r.observer != nil {
		r.observer.ObserveAgent(name, model, latency, err)
	}
}
