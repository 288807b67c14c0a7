package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/johnayoung/dili-agents/internal/runner"
	"github.com/johnayoung/dili-agents/internal/vote"
)

var (
	accent  = lipgloss.Color("#5B8DEF")
	muted   = lipgloss.Color("#888888")
	success = lipgloss.Color("#4CAF50")
	warning = lipgloss.Color("#E5C07B")
	danger  = lipgloss.Color("#FF6B6B")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	phaseStyle   = lipgloss.NewStyle().Bold(true).Foreground(warning)
	successStyle = lipgloss.NewStyle().Foreground(success)
	errorStyle   = lipgloss.NewStyle().Foreground(danger)
	runningStyle = lipgloss.NewStyle().Foreground(warning)
	streamStyle  = lipgloss.NewStyle().Foreground(accent)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// AgentStatus represents the current state of an agent query.
type AgentStatus int

const (
	StatusPending AgentStatus = iota
	StatusRunning
	StatusStreaming
	StatusComplete
	StatusFailed
)

// AgentState holds the state of a single agent query.
type AgentState struct {
	Agent     string
	Status    AgentStatus
	StartTime time.Time
	EndTime   time.Time
	Error     error
	CharCount int
}

// Progress displays real-time progress of agent queries.
type Progress struct {
	mu        sync.Mutex
	w         io.Writer
	agents    map[string]*AgentState
	order     []string
	label     string
	startTime time.Time
	ticker    *time.Ticker
	done      chan struct{}
	quiet     bool
	lines     int
}

// NewProgress creates a progress display for the named agents.
func NewProgress(w io.Writer, label string, agents []string, quiet bool) *Progress {
	p := &Progress{
		w:         w,
		agents:    make(map[string]*AgentState, len(agents)),
		order:     agents,
		label:     label,
		startTime: time.Now(),
		done:      make(chan struct{}),
		quiet:     quiet,
	}
	for _, a := range agents {
		p.agents[a] = &AgentState{Agent: a}
	}
	return p
}

// Callbacks adapts the display to runner progress events.
func (p *Progress) Callbacks() *runner.Callbacks {
	return &runner.Callbacks{
		OnAgentStart:    p.AgentStarted,
		OnAgentStream:   p.AgentStreaming,
		OnAgentComplete: p.AgentCompleted,
		OnAgentError:    p.AgentFailed,
	}
}

// Track adds agents that were not known when the display was created.
// Completed agents are reset to pending.
func (p *Progress) Track(agents ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range agents {
		if _, ok := p.agents[a]; !ok {
			p.order = append(p.order, a)
		}
		p.agents[a] = &AgentState{Agent: a}
	}
}

// Start begins the refresh loop.
func (p *Progress) Start() {
	if p.quiet {
		return
	}

	p.ticker = time.NewTicker(100 * time.Millisecond)
	go func() {
		for {
			select {
			case <-p.ticker.C:
				p.render()
			case <-p.done:
				return
			}
		}
	}()

	p.render()
}

// Stop ends the display and erases it.
func (p *Progress) Stop() {
	if p.quiet {
		return
	}

	close(p.done)
	if p.ticker != nil {
		p.ticker.Stop()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clear()
}

// AgentStarted marks an agent as querying.
func (p *Progress) AgentStarted(agent string) {
	p.update(agent, func(s *AgentState) {
		s.Status = StatusRunning
		s.StartTime = time.Now()
	})
}

// AgentStreaming records a received chunk.
func (p *Progress) AgentStreaming(agent, chunk string) {
	p.update(agent, func(s *AgentState) {
		s.Status = StatusStreaming
		s.CharCount += len(chunk)
	})
}

// AgentCompleted marks an agent as finished.
func (p *Progress) AgentCompleted(agent string) {
	p.update(agent, func(s *AgentState) {
		s.Status = StatusComplete
		s.EndTime = time.Now()
	})
}

// AgentFailed marks an agent as failed.
func (p *Progress) AgentFailed(agent string, err error) {
	p.update(agent, func(s *AgentState) {
		s.Status = StatusFailed
		s.EndTime = time.Now()
		s.Error = err
	})
}

func (p *Progress) update(agent string, fn func(*AgentState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.agents[agent]; ok {
		fn(s)
	}
}

func (p *Progress) render() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.clear()

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n",
		titleStyle.Render(fmt.Sprintf("⚡ %s: %d agents", p.label, len(p.order))),
		mutedStyle.Render(fmt.Sprintf("(%.1fs)", time.Since(p.startTime).Seconds())))
	for _, a := range p.order {
		b.WriteString(agentLine(p.agents[a]))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	fmt.Fprint(p.w, b.String())
	p.lines = len(p.order) + 2
}

func agentLine(s *AgentState) string {
	var icon, status string
	style := mutedStyle

	switch s.Status {
	case StatusPending:
		icon, status = "○", "pending"
	case StatusRunning:
		icon, style = spinner(time.Now()), runningStyle
		status = fmt.Sprintf("querying... %.1fs", time.Since(s.StartTime).Seconds())
	case StatusStreaming:
		icon, style = spinner(time.Now()), streamStyle
		status = fmt.Sprintf("streaming ~%d tokens %.1fs", s.CharCount/4, time.Since(s.StartTime).Seconds())
	case StatusComplete:
		icon, style = "✓", successStyle
		status = fmt.Sprintf("done ~%d tokens in %.1fs", s.CharCount/4, s.EndTime.Sub(s.StartTime).Seconds())
	case StatusFailed:
		icon, style = "✗", errorStyle
		status = truncate(fmt.Sprintf("failed: %v", s.Error), 60)
	}

	return fmt.Sprintf("  %s %-32s %s", style.Render(icon), truncate(s.Agent, 32), style.Render(status))
}

// clear moves the cursor up over the last frame. Callers hold p.mu.
func (p *Progress) clear() {
	for i := 0; i < p.lines; i++ {
		fmt.Fprint(p.w, "\033[A\033[K")
	}
	p.lines = 0
}

func spinner(t time.Time) string {
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	return frames[int(t.UnixMilli()/100)%len(frames)]
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if r := []rune(s); len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}

// PrintHeader prints the run header.
func PrintHeader(w io.Writer, panel, input string) {
	body := fmt.Sprintf("%s\n%s %s",
		titleStyle.Render("DILI Agents"),
		mutedStyle.Render("Panel:"), panel) +
		fmt.Sprintf("\n%s %s", mutedStyle.Render("Input:"), truncate(input, 60))
	fmt.Fprintf(w, "\n%s\n\n", boxStyle.Render(body))
}

// PrintPhase prints a phase header.
func PrintPhase(w io.Writer, phase string) {
	fmt.Fprintln(w, phaseStyle.Render("▸ "+phase))
}

// PrintSuccess prints a success message.
func PrintSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, successStyle.Render("✓ "+msg))
}

// PrintError prints an error message.
func PrintError(w io.Writer, msg string) {
	fmt.Fprintln(w, errorStyle.Render("✗ "+msg))
}

// PrintAgentResponse prints one agent's answer in a box.
func PrintAgentResponse(w io.Writer, r runner.Response) {
	title := fmt.Sprintf("%s (%s) [%.1fs]", r.Agent, r.Model, r.Latency.Seconds())
	content := r.Content
	if r.Failed() {
		content = errorStyle.Render(r.Error)
	}
	fmt.Fprintf(w, "\n%s\n%s\n", titleStyle.Render(title), boxStyle.Render(strings.TrimSpace(content)))
}

// PrintDecision prints the final decision.
func PrintDecision(w io.Writer, d vote.Decision) {
	style := successStyle
	if !d.Consensus() {
		style = phaseStyle
	}
	box := boxStyle.BorderForeground(success)
	body := style.Bold(true).Render(string(d.Classification)) + "\n" + d.Rationale
	fmt.Fprintf(w, "\n%s\n%s\n", titleStyle.Render("DECISION"), box.Render(body))
}

// PrintSummary prints a summary of the run.
func PrintSummary(w io.Writer, total, failed int, elapsed time.Duration) {
	fmt.Fprintf(w, "\n%s\n", mutedStyle.Render("─── Summary ───"))
	fmt.Fprintf(w, "Agents queried: %d (%s, %s)\n", total,
		successStyle.Render(fmt.Sprintf("%d succeeded", total-failed)),
		errorStyle.Render(fmt.Sprintf("%d failed", failed)))
	fmt.Fprintf(w, "Total time: %.1fs\n", elapsed.Seconds())
}

// IsTerminal checks if the given file is a terminal.
func IsTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
