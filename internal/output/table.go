package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/johnayoung/dili-agents/internal/runner"
	"github.com/johnayoung/dili-agents/internal/vote"
)

// Mode controls the table format.
type Mode int

const (
	ASCII    Mode = iota // Fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

func newWriter(m Mode) table.Writer {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return w
}

func render(w table.Writer, m Mode) string {
	if m == Markdown {
		return w.RenderMarkdown()
	}
	return w.Render()
}

// TallyTable renders the vote counts of a round in first-seen order.
func TallyTable(round vote.Result, m Mode) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"Classification", "Votes", "Share"})
	parsed := len(round.Votes)
	for _, e := range round.Tally {
		w.AppendRow(table.Row{e.Classification, e.Count, share(e.Count, parsed)})
	}
	w.AppendFooter(table.Row{"Parsed", fmt.Sprintf("%d / %d", parsed, round.Responses), ""})
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	return render(w, m)
}

// ResponsesTable renders one row per agent.
func ResponsesTable(responses []runner.Response, m Mode) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"Agent", "Model", "Status", "Latency"})
	for _, r := range responses {
		status := "ok"
		if r.Failed() {
			status = "failed"
		}
		w.AppendRow(table.Row{r.Agent, r.Model, status, r.Latency.Round(time.Millisecond)})
	}
	w.SetColumnConfigs([]table.ColumnConfig{{Number: 4, Align: text.AlignRight}})
	return render(w, m)
}

// DecisionMarkdown renders the run as a Markdown document.
func DecisionMarkdown(r Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Decision.Classification)
	fmt.Fprintf(&b, "Panel: `%s` (%s, %s)  \nRun: `%s`\n\n", r.Panel, r.Mode, r.Strategy, r.RunID)
	fmt.Fprintf(&b, "## Rationale\n\n%s\n\n", r.Decision.Rationale)
	if r.Judge != nil {
		fmt.Fprintf(&b, "Decided by aggregator `%s` (%s).\n\n", r.Judge.Agent, r.Judge.Model)
	}
	fmt.Fprintf(&b, "## Votes\n\n%s\n\n", TallyTable(r.Round, Markdown))
	fmt.Fprintf(&b, "## Agents\n\n%s\n", ResponsesTable(r.Responses, Markdown))
	if len(r.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

func share(count, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", 100*float64(count)/float64(total))
}
