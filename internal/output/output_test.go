package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/johnayoung/dili-agents/internal/consensus"
	"github.com/johnayoung/dili-agents/internal/provider"
	"github.com/johnayoung/dili-agents/internal/runner"
	"github.com/johnayoung/dili-agents/internal/vote"
)

func sampleOutcome() *consensus.Outcome {
	agg := vote.NewAggregator(vote.KeywordMatchParse{Labels: []string{"Relevant", "Not Relevant"}})
	contents := []string{"Relevant", "Not Relevant", "Relevant"}
	round := agg.Run(contents)
	return &consensus.Outcome{
		Panel:    "liver-injury",
		Mode:     "vote",
		Strategy: vote.StrategyKeyword,
		Input:    "ALT elevated",
		Responses: []runner.Response{
			{Agent: "Hepatocellular", Response: provider.Response{Model: "gpt-4o-mini", Content: contents[0]}},
			{Agent: "Cholestatic", Response: provider.Response{Model: "gpt-4o-mini", Content: contents[1]}},
			{Agent: "Mixed", Response: provider.Response{Model: "gpt-4o-mini", Content: contents[2]}},
		},
		Round:    round,
		Decision: round.Decision,
	}
}

func TestTallyTable(t *testing.T) {
	res := FromOutcome(sampleOutcome())

	ascii := TallyTable(res.Round, ASCII)
	if !strings.Contains(ascii, "Relevant") || !strings.Contains(ascii, "67%") || !strings.Contains(ascii, "3 / 3") {
		t.Errorf("ASCII table:\n%s", ascii)
	}
	if strings.Index(ascii, "Not Relevant") < strings.Index(ascii, "│ Relevant") {
		t.Errorf("rows should keep first-seen order:\n%s", ascii)
	}

	md := TallyTable(res.Round, Markdown)
	if !strings.Contains(md, "| Classification") || !strings.Contains(md, "| Not Relevant") {
		t.Errorf("Markdown table:\n%s", md)
	}
}

func TestSave(t *testing.T) {
	res := FromOutcome(sampleOutcome())
	if res.RunID == "" || len(strings.Split(res.RunID, "-")) != 3 {
		t.Fatalf("RunID = %q", res.RunID)
	}

	runDir, err := Save(t.TempDir(), res)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(runDir) != res.RunID {
		t.Errorf("run dir = %s", runDir)
	}

	data, err := os.ReadFile(filepath.Join(runDir, "result.json"))
	if err != nil {
		t.Fatal(err)
	}
	var got Result
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("result.json: %v", err)
	}
	if diff := cmp.Diff(res.Decision, got.Decision); diff != "" {
		t.Errorf("decision mismatch (-want +got):\n%s", diff)
	}

	input, _ := os.ReadFile(filepath.Join(runDir, "input.txt"))
	if string(input) != "ALT elevated" {
		t.Errorf("input.txt = %q", input)
	}

	md, _ := os.ReadFile(filepath.Join(runDir, "decision.md"))
	for _, want := range []string{"# Relevant", "## Votes", "| Hepatocellular"} {
		if !strings.Contains(string(md), want) {
			t.Errorf("decision.md missing %q:\n%s", want, md)
		}
	}
}
