package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/johnayoung/dili-agents/internal/agent"
)

var panelsFlags struct {
	verbose bool
}

var panelsCmd = &cobra.Command{
	Use:   "panels",
	Short: "List the configured agent panels",
	Args:  cobra.NoArgs,
	RunE:  runPanels,
}

func init() {
	panelsCmd.Flags().BoolVar(&panelsFlags.verbose, "agents", false, "Also list every agent with its model")
}

func runPanels(cmd *cobra.Command, _ []string) error {
	panels, err := loadPanels()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), panelsTable(panels.Panels(), panelsFlags.verbose))
	return nil
}

func panelsTable(panels []*agent.Panel, withAgents bool) string {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"Panel", "Mode", "Strategy", "Labels", "Agents"})
	for _, p := range panels {
		strategy, _ := p.Strategy()
		agents := fmt.Sprint(len(p.Agents))
		if withAgents {
			var lines []string
			for _, a := range p.Agents {
				lines = append(lines, fmt.Sprintf("%s (%s)", a.Name, a.Model))
			}
			if p.Aggregator != nil {
				lines = append(lines, fmt.Sprintf("%s (%s, aggregator)", p.Aggregator.Name, p.Aggregator.Model))
			}
			agents = strings.Join(lines, "\n")
		}
		w.AppendRow(table.Row{p.Name, p.Mode, strategy.Name(), strings.Join(p.Labels, ", "), agents})
	}
	return w.Render()
}
