package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Kind identifies which LLM provider serves a model.
type Kind int

const (
	KindOpenAI Kind = iota
	KindAnthropic
	KindGoogle
	KindOllama
)

func (k Kind) String() string {
	switch k {
	case KindOpenAI:
		return "openai"
	case KindAnthropic:
		return "anthropic"
	case KindGoogle:
		return "google"
	case KindOllama:
		return "ollama"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// OllamaPrefix routes any model name to the local Ollama server.
const OllamaPrefix = "ollama/"

// Known models mapped to their providers.
// Add new models here as they become available.
var knownModels = map[string]Kind{
	// OpenAI
	"gpt-4o-mini":  KindOpenAI,
	"gpt-4o":       KindOpenAI,
	"gpt-4.1":      KindOpenAI,
	"gpt-4.1-mini": KindOpenAI,

	// Anthropic
	"claude-sonnet-4-5": KindAnthropic,
	"claude-haiku-4-5":  KindAnthropic,
	"claude-opus-4-5":   KindAnthropic,

	// Google
	"gemini-2.5-pro":   KindGoogle,
	"gemini-2.5-flash": KindGoogle,
	"gemini-2.0-flash": KindGoogle,
}

// KindFor returns the provider kind serving model.
func KindFor(model string) (Kind, error) {
	if strings.HasPrefix(model, OllamaPrefix) && len(model) > len(OllamaPrefix) {
		return KindOllama, nil
	}
	kind, ok := knownModels[model]
	if !ok {
		return 0, fmt.Errorf("unknown model %q; available models: %v (or %s<name>)", model, KnownModels(), OllamaPrefix)
	}
	return kind, nil
}

// KnownModels returns the catalog's model names in sorted order.
func KnownModels() []string {
	models := make([]string, 0, len(knownModels))
	for m := range knownModels {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

// Factory creates the provider for a kind. Tests swap it to avoid network clients.
type Factory func(Kind) (Provider, error)

// DefaultFactory builds real HTTP clients configured from the environment.
func DefaultFactory(kind Kind) (Provider, error) {
	switch kind {
	case KindOpenAI:
		return NewOpenAI()
	case KindAnthropic:
		return NewAnthropic()
	case KindGoogle:
		return NewGoogle()
	case KindOllama:
		return NewOllama(), nil
	default:
		return nil, fmt.Errorf("unhandled provider kind %s", kind)
	}
}

// NewRegistryFor builds a registry holding a provider for every model.
// Models served by the same kind share one client.
func NewRegistryFor(models []string, factory Factory) (*Registry, error) {
	if factory == nil {
		factory = DefaultFactory
	}

	registry := NewRegistry()
	clients := make(map[Kind]Provider)

	for _, model := range models {
		if _, err := registry.Get(model); err == nil {
			continue
		}
		kind, err := KindFor(model)
		if err != nil {
			return nil, err
		}
		p, ok := clients[kind]
		if !ok {
			p, err = factory(kind)
			if err != nil {
				return nil, fmt.Errorf("initializing %s provider for %s: %w", kind, model, err)
			}
			clients[kind] = p
		}
		registry.Register(model, p)
	}

	return registry, nil
}

// Registry maps model names to the provider serving them.
// Safe for concurrent use by the runner's goroutines.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register associates a model name with a provider, replacing any previous one.
func (r *Registry) Register(model string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[model] = p
}

// Get retrieves the provider for a model.
func (r *Registry) Get(model string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[model]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", model)
	}
	return p, nil
}

// Models returns all registered model names in sorted order.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]string, 0, len(r.providers))
	for m := range r.providers {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}
