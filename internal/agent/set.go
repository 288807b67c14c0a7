package agent

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed panels.yaml
var defaultPanelsYAML []byte

// ErrUnknownPanel is returned when a panel name is not in the set.
var ErrUnknownPanel = errors.New("unknown panel")

type panelFile struct {
	Panels []*Panel `yaml:"panels"`
}

// Set is a validated collection of panels keyed by name.
type Set struct {
	panels map[string]*Panel
}

// ParsePanels decodes and validates a YAML panel file.
func ParsePanels(data []byte) (*Set, error) {
	var f panelFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse panels yaml: %w", err)
	}
	if len(f.Panels) == 0 {
		return nil, errors.New("no panels defined")
	}

	s := &Set{panels: make(map[string]*Panel, len(f.Panels))}
	for _, p := range f.Panels {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.panels[p.Name]; dup {
			return nil, fmt.Errorf("duplicate panel %q", p.Name)
		}
		s.panels[p.Name] = p
	}
	return s, nil
}

// LoadPanels reads a panel file from disk.
func LoadPanels(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read panels: %w", err)
	}
	return ParsePanels(data)
}

// DefaultPanels returns the built-in panels.
func DefaultPanels() *Set {
	s, err := ParsePanels(defaultPanelsYAML)
	if err != nil {
		panic("agent: embedded panels are invalid: " + err.Error())
	}
	return s
}

// Load returns the panels at path, or the built-in panels if path is empty.
func Load(path string) (*Set, error) {
	if path == "" {
		return DefaultPanels(), nil
	}
	return LoadPanels(path)
}

// Get returns the named panel.
func (s *Set) Get(name string) (*Panel, error) {
	p, ok := s.panels[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownPanel, name, strings.Join(s.Names(), ", "))
	}
	return p, nil
}

// Names returns the panel names, sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.panels))
	for n := range s.panels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Panels returns every panel, sorted by name.
func (s *Set) Panels() []*Panel {
	out := make([]*Panel, 0, len(s.panels))
	for _, n := range s.Names() {
		out = append(out, s.panels[n])
	}
	return out
}

// FillModels applies Panel.FillModels to every panel in the set.
func (s *Set) FillModels(fallback string) {
	for _, p := range s.panels {
		p.FillModels(fallback)
	}
}
