package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/johnayoung/dili-agents/internal/agent"
	"github.com/johnayoung/dili-agents/internal/vote"
)

func TestParseResponses(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr bool
	}{
		{name: "json array", in: `["dili", "{\"classification\": \"non_dili\"}"]`, want: []string{"dili", `{"classification": "non_dili"}`}},
		{name: "lines", in: "Relevant\n\n  Not Relevant  \nRelevant\n", want: []string{"Relevant", "Not Relevant", "Relevant"}},
		{name: "empty", in: "  \n", want: nil},
		{name: "bad array", in: `["dili"`, wantErr: true},
		{
			name: "pretty-printed objects",
			in:   "{\n  \"classification\": \"dili\"\n}\n\n{\"classification\": \"non_dili\"}\n",
			want: []string{"{\n  \"classification\": \"dili\"\n}", `{"classification": "non_dili"}`},
		},
		{name: "truncated object", in: "{\"classification\": \"dili\"", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResponses([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("responses mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadInput(t *testing.T) {
	got, err := readInput([]string{"Tenofovir", "hepatotoxicity"}, "", strings.NewReader("ignored"))
	if err != nil || got != "Tenofovir hepatotoxicity" {
		t.Errorf("args: got %q, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte("  elevated ALT\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = readInput(nil, path, strings.NewReader("ignored"))
	if err != nil || got != "elevated ALT" {
		t.Errorf("file: got %q, %v", got, err)
	}

	got, err = readInput(nil, "", strings.NewReader("line one\nline two\n"))
	if err != nil || got != "line one\nline two" {
		t.Errorf("stdin: got %q, %v", got, err)
	}

	if _, err := readInput(nil, "", strings.NewReader("")); err == nil {
		t.Error("empty stdin: expected error")
	}
}

func TestAggregateCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(`["Relevant", "Not Relevant", "relevant"]`))
	rootCmd.SetArgs([]string{"aggregate", "--strategy", "keyword", "--label", "Relevant", "--label", "Not Relevant", "--json"})
	t.Cleanup(func() {
		aggregateFlags.labels = nil
		aggregateFlags.json = false
		aggregateFlags.strategy = vote.StrategyStructured
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}

	var res vote.Result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decoding %q: %v", out.String(), err)
	}
	if res.Decision.Classification != "Relevant" || res.Responses != 3 {
		t.Errorf("result = %+v", res)
	}
}

func TestPanelsTable(t *testing.T) {
	set := agent.DefaultPanels()
	set.FillModels("gpt-4o-mini")

	got := panelsTable(set.Panels(), true)
	for _, want := range []string{"dili-regulatory", "keyword", "Relevant, Not Relevant", "Director (gpt-4o-mini, aggregator)"} {
		if !strings.Contains(got, want) {
			t.Errorf("panels table missing %q:\n%s", want, got)
		}
	}
}

func TestPanelModels(t *testing.T) {
	set := agent.DefaultPanels()
	set.FillModels("gpt-4o-mini")

	got := panelModels(set.Panels(), "gpt-4o-mini", "ollama/llama3")
	if diff := cmp.Diff([]string{"gpt-4o-mini", "ollama/llama3"}, got); diff != "" {
		t.Errorf("models mismatch (-want +got):\n%s", diff)
	}
}
