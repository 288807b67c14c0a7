package consensus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/johnayoung/dili-agents/internal/agent"
	"github.com/johnayoung/dili-agents/internal/provider"
	"github.com/johnayoung/dili-agents/internal/runner"
	"github.com/johnayoung/dili-agents/internal/vote"
)

const judgePromptTemplate = `
Role
{{if .Instructions}}{{.Instructions}}{{else}}You aggregate the answers of several expert agents into one final classification.{{end}}

Original task:
{{.Task}}

Agent answers:
{{range .Responses}}
--- Agent: {{.Agent}} | Model: {{.Model}} ---
{{.Content}}

{{end}}

Method
1) Weigh the answers by how well they are justified by the original task input.
2) Prefer specific, evidence-based reasoning over unsupported claims.
3) If the answers conflict, choose the most defensible classification.

Output Requirements
{{- if eq .Strategy "keyword"}}
- Respond with exactly one of: {{join .Labels ", "}}.
{{- else}}
- Respond with a single JSON object with the keys "{{.RationaleField}}" and "{{.ClassificationField}}".
{{- if .Labels}}
- "{{.ClassificationField}}" must be one of: {{join .Labels ", "}}.
{{- end}}
{{- end}}
- Do not mention the individual agents.
`

var tmpl = template.Must(template.New("judge").Funcs(template.FuncMap{"join": strings.Join}).Parse(judgePromptTemplate))

// Verdict is the aggregator agent's final answer.
type Verdict struct {
	Agent    string        `json:"agent"`
	Model    string        `json:"model"`
	Raw      string        `json:"raw"`
	Decision vote.Decision `json:"decision"`
}

// Judge asks an aggregator agent for the panel's final classification.
type Judge struct {
	provider provider.Provider
	panel    *agent.Panel
	agent    agent.Agent
}

// NewJudge creates a judge for panel using the given aggregator agent.
func NewJudge(p provider.Provider, panel *agent.Panel, aggregator agent.Agent) *Judge {
	return &Judge{
		provider: p,
		panel:    panel,
		agent:    aggregator,
	}
}

// Decide produces the final decision from the reference answers.
func (j *Judge) Decide(ctx context.Context, task string, responses []runner.Response) (Verdict, error) {
	return j.DecideStream(ctx, task, responses, nil)
}

// DecideStream produces the final decision with streaming callback.
// Failed reference answers are left out of the prompt.
func (j *Judge) DecideStream(ctx context.Context, task string, responses []runner.Response, callback provider.StreamCallback) (Verdict, error) {
	var answered []runner.Response
	for _, r := range responses {
		if !r.Failed() {
			answered = append(answered, r)
		}
	}
	if len(answered) == 0 {
		return Verdict{}, errors.New("no responses to aggregate")
	}

	strategy, err := j.panel.Strategy()
	if err != nil {
		return Verdict{}, err
	}

	verdict := Verdict{Agent: j.agent.Name, Model: j.agent.Model}

	// If only one agent answered, its answer is final
	if len(answered) == 1 {
		if callback != nil {
			callback(answered[0].Content)
		}
		verdict.Agent = answered[0].Agent
		verdict.Model = answered[0].Model
		verdict.Raw = answered[0].Content
		verdict.Decision = vote.Aggregate([]string{verdict.Raw}, strategy)
		return verdict, nil
	}

	prompt, err := j.prompt(task, strategy.Name(), answered)
	if err != nil {
		return Verdict{}, err
	}
	system, err := j.panel.SystemPrompt(j.agent)
	if err != nil {
		return Verdict{}, err
	}

	resp, err := j.provider.QueryStream(ctx, provider.Request{
		Model:       j.agent.Model,
		System:      system,
		Prompt:      prompt,
		Temperature: j.panel.Temperature,
		MaxTokens:   j.panel.MaxTokens,
	}, callback)
	if err != nil {
		return Verdict{}, fmt.Errorf("aggregator query failed: %w", err)
	}

	verdict.Raw = resp.Content
	verdict.Decision = vote.Aggregate([]string{resp.Content}, strategy)
	return verdict, nil
}

func (j *Judge) prompt(task, strategy string, responses []runner.Response) (string, error) {
	classField := j.panel.ClassificationField
	if classField == "" {
		classField = "classification"
	}
	rationaleField := j.panel.RationaleField
	if rationaleField == "" {
		rationaleField = "rationale"
	}

	data := struct {
		Instructions        string
		Task                string
		Responses           []runner.Response
		Strategy            string
		Labels              []string
		ClassificationField string
		RationaleField      string
	}{
		Instructions:        j.panel.AggregatorPrompt,
		Task:                task,
		Responses:           responses,
		Strategy:            strategy,
		Labels:              j.panel.Labels,
		ClassificationField: classField,
		RationaleField:      rationaleField,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}
