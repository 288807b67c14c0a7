// Package agent defines classification agents and the panels that group them.
package agent

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/johnayoung/dili-agents/internal/vote"
)

// DefaultModel is used for agents whose panel names no model.
const DefaultModel = "gpt-4o-mini"

// Agent is one prompt-templated LLM persona.
type Agent struct {
	Name      string `yaml:"name" json:"name"`
	Model     string `yaml:"model,omitempty" json:"model"`
	Expertise string `yaml:"expertise" json:"expertise"`
	// Instructions replaces the panel's system template for this agent.
	Instructions string `yaml:"instructions,omitempty" json:"instructions,omitempty"`
}

// Mode selects how a panel reaches its decision.
type Mode string

const (
	// ModeVote tallies the agents' answers by strict majority.
	ModeVote Mode = "vote"
	// ModeMixture runs layered reference agents and lets an aggregator agent decide.
	ModeMixture Mode = "mixture"
)

const defaultSystemTemplate = `You are {{.Agent.Name}}. {{.Agent.Expertise}}
Classify whether the text is related to {{.Topic}}.
Respond with one of: {{join .Labels ", "}}.`

const defaultTaskTemplate = `{{.Input}}`

var funcs = template.FuncMap{"join": strings.Join}

// Panel is a named group of agents answering the same classification task.
type Panel struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Mode        Mode   `yaml:"mode,omitempty" json:"mode"`
	Topic       string `yaml:"topic,omitempty" json:"topic,omitempty"`

	StrategyName        string   `yaml:"strategy,omitempty" json:"strategy"`
	Labels              []string `yaml:"labels,omitempty" json:"labels,omitempty"`
	ClassificationField string   `yaml:"classification_field,omitempty" json:"classification_field,omitempty"`
	RationaleField      string   `yaml:"rationale_field,omitempty" json:"rationale_field,omitempty"`

	Model       string   `yaml:"model,omitempty" json:"model,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`

	SystemTemplate string `yaml:"system_template,omitempty" json:"-"`
	TaskTemplate   string `yaml:"task_template,omitempty" json:"-"`

	Agents     []Agent `yaml:"agents" json:"agents"`
	Aggregator *Agent  `yaml:"aggregator,omitempty" json:"aggregator,omitempty"`
	Layers     int     `yaml:"layers,omitempty" json:"layers,omitempty"`

	// AggregatorPrompt is the instruction given to the aggregator in mixture mode.
	AggregatorPrompt string `yaml:"aggregator_prompt,omitempty" json:"-"`

	system *template.Template
	task   *template.Template
}

type promptData struct {
	Agent  Agent
	Topic  string
	Labels []string
	Input  string
}

// Validate checks the panel definition and compiles its templates.
func (p *Panel) Validate() error {
	if p.Name == "" {
		return errors.New("panel name is required")
	}
	if p.Mode == "" {
		p.Mode = ModeVote
	}
	if p.Mode != ModeVote && p.Mode != ModeMixture {
		return fmt.Errorf("panel %s: unknown mode %q", p.Name, p.Mode)
	}
	if len(p.Agents) == 0 {
		return fmt.Errorf("panel %s: at least one agent is required", p.Name)
	}

	seen := make(map[string]bool, len(p.Agents))
	for i, a := range p.Agents {
		if a.Name == "" {
			return fmt.Errorf("panel %s: agent %d has no name", p.Name, i)
		}
		if seen[a.Name] {
			return fmt.Errorf("panel %s: duplicate agent %q", p.Name, a.Name)
		}
		seen[a.Name] = true
	}

	if p.Mode == ModeMixture && (p.Aggregator == nil || p.Aggregator.Name == "") {
		return fmt.Errorf("panel %s: mixture mode requires an aggregator agent", p.Name)
	}
	if p.Layers < 0 {
		return fmt.Errorf("panel %s: layers must not be negative", p.Name)
	}

	if _, err := p.Strategy(); err != nil {
		return fmt.Errorf("panel %s: %w", p.Name, err)
	}

	system := p.SystemTemplate
	if system == "" {
		system = defaultSystemTemplate
	}
	t, err := template.New(p.Name + "/system").Funcs(funcs).Parse(system)
	if err != nil {
		return fmt.Errorf("panel %s: parsing system template: %w", p.Name, err)
	}
	p.system = t

	task := p.TaskTemplate
	if task == "" {
		task = defaultTaskTemplate
	}
	t, err = template.New(p.Name + "/task").Funcs(funcs).Parse(task)
	if err != nil {
		return fmt.Errorf("panel %s: parsing task template: %w", p.Name, err)
	}
	p.task = t

	return nil
}

// Strategy builds the parse strategy that normalizes this panel's answers.
func (p *Panel) Strategy() (vote.ParseStrategy, error) {
	switch p.StrategyName {
	case "", vote.StrategyStructured:
		return vote.StructuredParse{
			ClassificationField: p.ClassificationField,
			RationaleField:      p.RationaleField,
			Labels:              p.Labels,
		}, nil
	default:
		return vote.NewStrategy(p.StrategyName, p.Labels)
	}
}

// LayerCount returns the number of reference rounds, at least one.
func (p *Panel) LayerCount() int {
	if p.Layers < 1 {
		return 1
	}
	return p.Layers
}

// FillModels assigns a model to every agent that has none: the panel's
// model if set, otherwise fallback, otherwise DefaultModel.
func (p *Panel) FillModels(fallback string) {
	model := p.Model
	if model == "" {
		model = fallback
	}
	if model == "" {
		model = DefaultModel
	}
	for i := range p.Agents {
		if p.Agents[i].Model == "" {
			p.Agents[i].Model = model
		}
	}
	if p.Aggregator != nil && p.Aggregator.Model == "" {
		p.Aggregator.Model = model
	}
}

// Models returns the distinct models the panel needs, in agent order.
func (p *Panel) Models() []string {
	var models []string
	seen := make(map[string]bool)
	add := func(m string) {
		if m != "" && !seen[m] {
			seen[m] = true
			models = append(models, m)
		}
	}
	for _, a := range p.Agents {
		add(a.Model)
	}
	if p.Aggregator != nil {
		add(p.Aggregator.Model)
	}
	return models
}

// SystemPrompt renders the system prompt for a.
func (p *Panel) SystemPrompt(a Agent) (string, error) {
	if a.Instructions != "" {
		return a.Instructions, nil
	}
	if p.system == nil {
		if err := p.Validate(); err != nil {
			return "", err
		}
	}
	return p.render(p.system, promptData{Agent: a, Topic: p.Topic, Labels: p.Labels})
}

// TaskPrompt renders the user prompt for input.
func (p *Panel) TaskPrompt(input string) (string, error) {
	if p.task == nil {
		if err := p.Validate(); err != nil {
			return "", err
		}
	}
	return p.render(p.task, promptData{Topic: p.Topic, Labels: p.Labels, Input: input})
}

func (p *Panel) render(t *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
