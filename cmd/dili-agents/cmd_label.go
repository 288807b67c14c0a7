package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/johnayoung/dili-agents/internal/label"
	"github.com/johnayoung/dili-agents/internal/output"
	"github.com/johnayoung/dili-agents/internal/provider"
)

var labelFlags struct {
	json bool
	list bool
}

var labelCmd = &cobra.Command{
	Use:   "label <drug>",
	Short: "Extract DILI sections and keywords from a drug label",
	Long: `Review a drug's label PDF from the --labels library: find the sections
that mention liver injury, then extract the DILI keywords of each.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if labelFlags.list {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runLabel,
}

func init() {
	f := labelCmd.Flags()
	f.BoolVar(&labelFlags.json, "json", false, "Output the review as JSON")
	f.BoolVar(&labelFlags.list, "list", false, "List the drugs in the library")
}

func runLabel(cmd *cobra.Command, args []string) error {
	log := newLogger(slog.LevelWarn)
	w := cmd.OutOrStdout()

	if cfg.LabelsFile == "" {
		return fmt.Errorf("no label library configured: use --labels or DILI_LABELS_FILE")
	}

	if labelFlags.list {
		lib, err := label.LoadLibrary(cfg.LabelsFile)
		if err != nil {
			return err
		}
		for _, d := range lib.Drugs() {
			fmt.Fprintln(w, d)
		}
		return nil
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry, err := provider.NewRegistryFor([]string{cfg.Model}, nil)
	if err != nil {
		return err
	}
	reviewer, err := newReviewer(registry, log)
	if err != nil {
		return err
	}

	review, err := reviewer.Review(ctx, args[0])
	if err != nil {
		return err
	}

	if labelFlags.json {
		return output.WriteJSON(w, review)
	}
	if len(review.Sections) == 0 {
		fmt.Fprintln(w, label.NoDILIFound)
	} else {
		fmt.Fprintln(w, review.Evidence())
	}
	for _, warning := range review.Warnings {
		log.Warn(warning, slog.String("drug", review.Drug))
	}
	return nil
}
