package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/johnayoung/dili-agents/internal/config"
)

// Version information set via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// cfg starts from the environment; persistent flags override it.
var cfg = config.Load()

var globalFlags struct {
	verbose bool
}

var rootCmd = &cobra.Command{
	Use:   "dili-agents",
	Short: "Classify drug-induced liver injury text with a panel of LLM agents",
	Long: `dili-agents asks a panel of prompt-templated LLM agents whether a text
is related to drug-induced liver injury (DILI) and reduces their answers to
one decision by strict majority vote, or by an aggregator agent in mixture
mode.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&globalFlags.verbose, "verbose", "v", false, "Debug logging to stderr")
	pf.StringVar(&cfg.PanelsFile, "panels", cfg.PanelsFile, "Panel definitions YAML (default: built-in panels)")
	pf.StringVar(&cfg.Model, "model", cfg.Model, "Model for agents whose panel names none")
	pf.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-agent timeout")
	pf.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory for auto-saved runs")
	pf.StringVar(&cfg.LabelsFile, "labels", cfg.LabelsFile, "Drug label library YAML (drug name to PDF path)")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(panelsCmd)
	rootCmd.AddCommand(serveCmd)

	rootCmd.Version = getVersion()
	rootCmd.SetVersionTemplate(fmt.Sprintf("dili-agents {{.Version}}\n  commit: %s\n  built:  %s\n", commit, date))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// getVersion returns the version string, using build info as fallback.
func getVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
