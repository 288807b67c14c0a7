package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/johnayoung/dili-agents/internal/vote"
)

func TestRecorder_Textfile(t *testing.T) {
	r := New(false)

	agg := vote.NewAggregator(vote.KeywordMatchParse{Labels: []string{"Relevant", "Not Relevant"}},
		vote.WithObserver(r.Panel("liver-injury")))
	agg.Aggregate([]string{"Relevant", "Relevant", "no idea"})
	agg.Aggregate([]string{"Relevant", "Not Relevant"})

	r.ObserveAgent("Hepatocellular_Classifier", "gpt-4o-mini", 2*time.Second, nil)
	r.ObserveAgent("Cholestatic_Classifier", "gpt-4o-mini", time.Second, errors.New("timeout"))

	path := filepath.Join(t.TempDir(), "dili.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)

	for _, want := range []string{
		`dili_agents_rounds_total{outcome="consensus",panel="liver-injury"} 1`,
		`dili_agents_rounds_total{outcome="no_consensus",panel="liver-injury"} 1`,
		`dili_agents_responses_total{panel="liver-injury",status="parsed"} 4`,
		`dili_agents_responses_total{panel="liver-injury",status="rejected"} 1`,
		`dili_agents_agent_latency_seconds_count{agent="Hepatocellular_Classifier"} 1`,
		`dili_agents_agent_errors_total{agent="Cholestatic_Classifier"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("textfile missing %q\n%s", want, text)
		}
	}
	if strings.Contains(text, "go_goroutines") {
		t.Error("runtime collectors registered without withRuntime")
	}
}
