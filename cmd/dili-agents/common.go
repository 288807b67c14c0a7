package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/johnayoung/dili-agents/internal/agent"
	"github.com/johnayoung/dili-agents/internal/label"
	"github.com/johnayoung/dili-agents/internal/provider"
)

// newLogger writes text logs to stderr. Warnings only unless --verbose.
func newLogger(level slog.Level) *slog.Logger {
	if globalFlags.verbose {
		level = slog.LevelDebug
	}
	l := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(l)
	return l
}

// loadPanels loads the configured panel set and assigns the default model
// to agents that name none.
func loadPanels() (*agent.Set, error) {
	set, err := agent.Load(cfg.PanelsFile)
	if err != nil {
		return nil, err
	}
	set.FillModels(cfg.Model)
	return set, nil
}

// panelModels collects every model the panels reference, plus extra.
func panelModels(panels []*agent.Panel, extra ...string) []string {
	seen := make(map[string]bool)
	var models []string
	add := func(m string) {
		if m != "" && !seen[m] {
			seen[m] = true
			models = append(models, m)
		}
	}
	for _, p := range panels {
		for _, m := range p.Models() {
			add(m)
		}
	}
	for _, m := range extra {
		add(m)
	}
	return models
}

// newReviewer builds a label reviewer on the configured library, or returns
// nil when no library is configured.
func newReviewer(registry *provider.Registry, log *slog.Logger) (*label.Reviewer, error) {
	if cfg.LabelsFile == "" {
		return nil, nil
	}
	lib, err := label.LoadLibrary(cfg.LabelsFile)
	if err != nil {
		return nil, err
	}
	p, err := registry.Get(cfg.Model)
	if err != nil {
		return nil, err
	}
	return label.NewReviewer(p, cfg.Model, lib, label.WithLogger(log)), nil
}

// readInput returns text from: positional args > file > stdin.
func readInput(args []string, file string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading input file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if f, ok := stdin.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return "", fmt.Errorf("no input provided: use positional argument, --file, or pipe to stdin")
		}
	}
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if text == "" {
		return "", fmt.Errorf("no input provided: use positional argument, --file, or pipe to stdin")
	}
	return text, nil
}
