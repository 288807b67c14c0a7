package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/johnayoung/dili-agents/internal/output"
	"github.com/johnayoung/dili-agents/internal/ui"
	"github.com/johnayoung/dili-agents/internal/vote"
)

var aggregateFlags struct {
	panel    string
	strategy string
	labels   []string
	file     string
	json     bool
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Majority-vote raw agent answers without querying any model",
	Long: `Reduce already collected agent answers to one decision.

Answers are read from --file or stdin in one of three forms: a JSON array of
strings, a stream of JSON objects (one structured answer each, pretty-printed
or not), or one plain answer per line. Line mode splits multi-line answers,
so use one of the JSON forms for those. The parse strategy comes from --panel, or from
--strategy and --label.`,
	Example: `  echo '["Relevant", "Not Relevant", "Relevant"]' | dili-agents aggregate --strategy keyword --label Relevant --label "Not Relevant"
  dili-agents aggregate --panel dili-regulatory --file answers.json --json`,
	Args: cobra.NoArgs,
	RunE: runAggregate,
}

func init() {
	f := aggregateCmd.Flags()
	f.StringVar(&aggregateFlags.panel, "panel", "", "Take the parse strategy and labels from this panel")
	f.StringVar(&aggregateFlags.strategy, "strategy", vote.StrategyStructured, "Parse strategy: structured or keyword")
	f.StringArrayVar(&aggregateFlags.labels, "label", nil, "Allowed label (repeatable; required for keyword)")
	f.StringVar(&aggregateFlags.file, "file", "", "Read answers from file instead of stdin (JSON array, JSON objects, or one per line)")
	f.BoolVar(&aggregateFlags.json, "json", false, "Output the full round as JSON")
}

func runAggregate(cmd *cobra.Command, _ []string) error {
	log := newLogger(slog.LevelWarn)

	var (
		strategy vote.ParseStrategy
		err      error
	)
	if aggregateFlags.panel != "" {
		panels, perr := loadPanels()
		if perr != nil {
			return perr
		}
		p, perr := panels.Get(aggregateFlags.panel)
		if perr != nil {
			return perr
		}
		strategy, err = p.Strategy()
	} else {
		strategy, err = vote.NewStrategy(aggregateFlags.strategy, aggregateFlags.labels)
	}
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if aggregateFlags.file != "" {
		f, err := os.Open(aggregateFlags.file)
		if err != nil {
			return fmt.Errorf("opening answers file: %w", err)
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("reading answers: %w", err)
	}
	responses, err := parseResponses(data)
	if err != nil {
		return err
	}

	res := vote.NewAggregator(strategy, vote.WithLogger(log)).Run(responses)

	w := cmd.OutOrStdout()
	if aggregateFlags.json {
		return output.WriteJSON(w, res)
	}
	fmt.Fprintln(w, output.TallyTable(res, output.ASCII))
	for _, rej := range res.Rejected {
		fmt.Fprintf(w, "rejected #%d: %s\n", rej.Index+1, rej.Error)
	}
	ui.PrintDecision(w, res.Decision)
	return nil
}

// parseResponses accepts a JSON array of strings, a stream of JSON objects,
// or one answer per line.
func parseResponses(data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	switch trimmed[0] {
	case '[':
		var responses []string
		if err := json.Unmarshal(trimmed, &responses); err != nil {
			return nil, fmt.Errorf("decoding answers: %w", err)
		}
		return responses, nil
	case '{':
		var responses []string
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		for {
			var obj json.RawMessage
			err := dec.Decode(&obj)
			if err == io.EOF {
				return responses, nil
			}
			if err != nil {
				return nil, fmt.Errorf("decoding answer %d: %w", len(responses)+1, err)
			}
			responses = append(responses, string(obj))
		}
	}

	var responses []string
	for _, line := range strings.Split(string(trimmed), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			responses = append(responses, line)
		}
	}
	return responses, nil
}
