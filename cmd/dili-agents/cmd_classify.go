package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/johnayoung/dili-agents/internal/agent"
	"github.com/johnayoung/dili-agents/internal/consensus"
	"github.com/johnayoung/dili-agents/internal/label"
	"github.com/johnayoung/dili-agents/internal/metrics"
	"github.com/johnayoung/dili-agents/internal/output"
	"github.com/johnayoung/dili-agents/internal/provider"
	"github.com/johnayoung/dili-agents/internal/runner"
	"github.com/johnayoung/dili-agents/internal/ui"
)

var classifyFlags struct {
	panel       string
	file        string
	drug        string
	output      string
	metricsFile string
	quiet       bool
	json        bool
	noSave      bool
}

var classifyCmd = &cobra.Command{
	Use:   "classify [text]",
	Short: "Ask a panel whether a text is DILI related",
	Long: `Query every agent of a panel and reduce the answers to one decision.

The text comes from the positional arguments, --file, or stdin. With --drug
the text is the DILI evidence extracted from that drug's label instead.
Runs are saved to <data-dir>/<run-id>/ unless --json, --output or --no-save
is given.`,
	RunE: runClassify,
}

func init() {
	f := classifyCmd.Flags()
	f.StringVar(&classifyFlags.panel, "panel", "dili-regulatory", "Panel to query")
	f.StringVar(&classifyFlags.file, "file", "", "Read input from file")
	f.StringVar(&classifyFlags.drug, "drug", "", "Classify the DILI evidence from this drug's label (requires --labels)")
	f.StringVar(&classifyFlags.output, "output", "", "Write JSON output to specific file (overrides auto-save)")
	f.StringVar(&classifyFlags.metricsFile, "metrics-file", "", "Write Prometheus metrics for this run to a textfile")
	f.BoolVarP(&classifyFlags.quiet, "quiet", "q", false, "Suppress progress output")
	f.BoolVar(&classifyFlags.json, "json", false, "Output JSON to stdout (no interactive display, no auto-save)")
	f.BoolVar(&classifyFlags.noSave, "no-save", false, "Don't auto-save results to data directory")
}

func runClassify(cmd *cobra.Command, args []string) error {
	log := newLogger(slog.LevelWarn)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	panels, err := loadPanels()
	if err != nil {
		return err
	}
	panel, err := panels.Get(classifyFlags.panel)
	if err != nil {
		return err
	}

	var input string
	if classifyFlags.drug == "" {
		if input, err = readInput(args, classifyFlags.file, cmd.InOrStdin()); err != nil {
			return err
		}
	}

	models := panelModels([]*agent.Panel{panel})
	if classifyFlags.drug != "" {
		models = append(models, cfg.Model)
	}
	registry, err := provider.NewRegistryFor(models, nil)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	showUI := ui.IsTerminal(os.Stderr) && !classifyFlags.quiet && !classifyFlags.json
	startTime := time.Now()

	var review *label.Review
	if classifyFlags.drug != "" {
		if review, err = reviewDrug(ctx, registry, log, classifyFlags.drug, showUI); err != nil {
			return err
		}
		input = review.Evidence()
	}

	if showUI {
		ui.PrintHeader(stderr, panel.Name, input)
		ui.PrintPhase(stderr, "Querying agents...")
		fmt.Fprintln(stderr)
	}

	progress := ui.NewProgress(stderr, panel.Name, agentNames(panel), !showUI)
	progress.Start()

	rec := metrics.New(false)
	r := runner.New(registry, cfg.Timeout).
		WithCallbacks(progress.Callbacks()).
		WithObserver(rec).
		WithLogger(log)
	engine := consensus.NewEngine(registry, r,
		consensus.WithLogger(log),
		consensus.WithObserver(rec),
		consensus.WithJudgeCallbacks(judgeCallbacks(progress, panel)))

	outcome, err := engine.Run(ctx, panel, input)
	progress.Stop()
	if err != nil {
		return fmt.Errorf("running panel %s: %w", panel.Name, err)
	}

	if classifyFlags.metricsFile != "" {
		if err := rec.WriteTextfile(classifyFlags.metricsFile); err != nil {
			log.Warn("writing metrics textfile", "path", classifyFlags.metricsFile, "error", err)
		}
	}

	out := output.FromOutcome(outcome)
	out.Review = review

	switch {
	case classifyFlags.output != "":
		f, err := os.Create(classifyFlags.output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		if err := output.WriteJSON(f, out); err != nil {
			return err
		}
		if showUI {
			ui.PrintSuccess(stderr, fmt.Sprintf("Result written to %s", classifyFlags.output))
		}
	case classifyFlags.json || !showUI:
		if !classifyFlags.json && !classifyFlags.noSave {
			if _, err := output.Save(cfg.DataDir, out); err != nil {
				log.Warn("auto-save failed", "error", err)
			}
		}
		return output.WriteJSON(cmd.OutOrStdout(), out)
	default:
		printOutcome(stderr, out, len(panel.Agents), time.Since(startTime))
		if !classifyFlags.noSave {
			runDir, err := output.Save(cfg.DataDir, out)
			if err != nil {
				ui.PrintError(stderr, fmt.Sprintf("Failed to save run: %v", err))
				return nil
			}
			fmt.Fprintln(stderr)
			ui.PrintSuccess(stderr, fmt.Sprintf("Run saved to %s", runDir))
		}
	}

	return nil
}

func reviewDrug(ctx context.Context, registry *provider.Registry, log *slog.Logger, drug string, showUI bool) (*label.Review, error) {
	reviewer, err := newReviewer(registry, log)
	if err != nil {
		return nil, err
	}
	if reviewer == nil {
		return nil, fmt.Errorf("--drug requires a label library (--labels or DILI_LABELS_FILE)")
	}
	if showUI {
		ui.PrintPhase(os.Stderr, fmt.Sprintf("Reviewing %s label...", drug))
	}
	review, err := reviewer.Review(ctx, drug)
	if err != nil {
		return nil, fmt.Errorf("reviewing %s label: %w", drug, err)
	}
	if len(review.Sections) == 0 {
		return nil, fmt.Errorf("no DILI sections found in the %s label", drug)
	}
	return review, nil
}

func agentNames(panel *agent.Panel) []string {
	names := make([]string, 0, len(panel.Agents))
	for _, a := range panel.Agents {
		names = append(names, a.Name)
	}
	return names
}

// judgeCallbacks shows the aggregator agent in the progress display once
// mixture layers finish.
func judgeCallbacks(progress *ui.Progress, panel *agent.Panel) *runner.Callbacks {
	if panel.Aggregator == nil {
		return nil
	}
	cb := progress.Callbacks()
	start := cb.OnAgentStart
	cb.OnAgentStart = func(name string) {
		progress.Track(name)
		start(name)
	}
	return cb
}

func printOutcome(w io.Writer, out output.Result, total int, elapsed time.Duration) {
	for _, resp := range out.Responses {
		ui.PrintAgentResponse(w, resp)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, output.TallyTable(out.Round, output.ASCII))

	if out.Judge != nil {
		ui.PrintPhase(w, fmt.Sprintf("Aggregator %s (%s)", out.Judge.Agent, out.Judge.Model))
	}
	ui.PrintDecision(w, out.Decision)
	ui.PrintSummary(w, total, len(out.FailedAgents), elapsed)

	if len(out.Warnings) > 0 {
		fmt.Fprintln(w)
		for _, warning := range out.Warnings {
			ui.PrintError(w, warning)
		}
	}
}
