package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/johnayoung/dili-agents/internal/agent"
	"github.com/johnayoung/dili-agents/internal/consensus"
	"github.com/johnayoung/dili-agents/internal/label"
	"github.com/johnayoung/dili-agents/internal/runner"
	"github.com/johnayoung/dili-agents/internal/vote"
)

// Result is the JSON output structure for a classification run.
type Result struct {
	RunID        string             `json:"run_id"`
	Panel        string             `json:"panel"`
	Mode         agent.Mode         `json:"mode"`
	Strategy     string             `json:"strategy"`
	Input        string             `json:"input"`
	Decision     vote.Decision      `json:"decision"`
	Responses    []runner.Response  `json:"responses"`
	Round        vote.Result        `json:"round"`
	Judge        *consensus.Verdict `json:"judge,omitempty"`
	Review       *label.Review      `json:"review,omitempty"`
	Warnings     []string           `json:"warnings,omitempty"`
	FailedAgents []string           `json:"failed_agents,omitempty"`
}

// FromOutcome wraps a panel outcome under a fresh run ID.
func FromOutcome(o *consensus.Outcome) Result {
	return Result{
		RunID:        NewRunID(),
		Panel:        o.Panel,
		Mode:         o.Mode,
		Strategy:     o.Strategy,
		Input:        o.Input,
		Decision:     o.Decision,
		Responses:    o.Responses,
		Round:        o.Round,
		Judge:        o.Judge,
		Warnings:     o.Warnings,
		FailedAgents: o.FailedAgents,
	}
}

// NewRunID creates a unique run identifier using timestamp + random suffix.
// Format: 20260112-143052-1f0c2a9e
func NewRunID() string {
	return fmt.Sprintf("%s-%s", time.Now().Format("20060102-150405"), uuid.NewString()[:8])
}

// WriteJSON encodes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Save writes the run to dataDir/<run-id>/ and returns the run directory.
// The directory holds result.json, input.txt and decision.md.
func Save(dataDir string, r Result) (string, error) {
	runDir := filepath.Join(dataDir, r.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}

	f, err := os.Create(filepath.Join(runDir, "result.json"))
	if err != nil {
		return "", fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	if err := WriteJSON(f, r); err != nil {
		return "", fmt.Errorf("writing result: %w", err)
	}

	if err := os.WriteFile(filepath.Join(runDir, "input.txt"), []byte(r.Input), 0o644); err != nil {
		return "", fmt.Errorf("saving input: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "decision.md"), []byte(DecisionMarkdown(r)), 0o644); err != nil {
		return "", fmt.Errorf("saving decision: %w", err)
	}

	return runDir, nil
}
