// Package vote reduces the raw answers of several classification agents to a
// single decision by strict majority.
package vote

import "errors"

// Classification is an opaque label produced by one agent.
// Labels are compared by equality; the label set varies per panel.
type Classification string

// Reserved sentinels.
const (
	Unparseable Classification = "Unparseable"
	NoConsensus Classification = "NoConsensus"
)

// Rationale messages attached to NoConsensus decisions.
const (
	MsgNoAnswers     = "No answers provided by agents."
	MsgNoValidLabels = "No valid classifications in agent responses."
	MsgNoMajority    = "No clear consensus among agents."
)

// ErrUnparseable is wrapped by every normalization failure.
var ErrUnparseable = errors.New("unparseable response")

// Vote is a successfully normalized agent response.
type Vote struct {
	Classification Classification `json:"classification"`
	Rationale      string         `json:"rationale"`
}

// Decision is the outcome of one aggregation round.
type Decision struct {
	Classification Classification `json:"classification"`
	Rationale      string         `json:"rationale"`
}

// Consensus reports whether the decision carries a real label.
func (d Decision) Consensus() bool {
	return d.Classification != NoConsensus && d.Classification != ""
}
