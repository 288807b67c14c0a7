package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/johnayoung/dili-agents/internal/vote"
)

func TestProgress_Render(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, "liver-injury", []string{"Hepatocellular", "Cholestatic"}, false)

	cb := p.Callbacks()
	cb.OnAgentStart("Hepatocellular")
	cb.OnAgentStream("Hepatocellular", "Relevant")
	cb.OnAgentComplete("Hepatocellular")
	cb.OnAgentError("Cholestatic", errors.New("timeout"))
	p.Track("Director")

	p.render()
	out := buf.String()

	for _, want := range []string{"liver-injury: 3 agents", "Hepatocellular", "done", "failed: timeout", "Director", "pending"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
	if p.lines != 5 {
		t.Errorf("lines = %d, want 5", p.lines)
	}
}

func TestProgress_QuietWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, "x", []string{"a"}, true)
	p.Start()
	p.AgentStarted("a")
	p.Stop()
	if buf.Len() != 0 {
		t.Errorf("quiet progress wrote %q", buf.String())
	}
}

func TestPrintDecision(t *testing.T) {
	var buf bytes.Buffer
	PrintDecision(&buf, vote.Decision{Classification: vote.NoConsensus, Rationale: vote.MsgNoMajority})
	if !strings.Contains(buf.String(), "NoConsensus") || !strings.Contains(buf.String(), vote.MsgNoMajority) {
		t.Errorf("PrintDecision = %q", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hépatotoxicité\nsévère", 10); got != "hépatotox…" {
		t.Errorf("truncate = %q", got)
	}
}
