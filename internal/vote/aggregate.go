package vote

import (
	"io"
	"log/slog"
)

// Rejection records a response that could not be normalized.
type Rejection struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// Result is the full record of one aggregation round.
type Result struct {
	Decision  Decision    `json:"decision"`
	Votes     []Vote      `json:"votes"`
	Tally     []Entry     `json:"tally"`
	Rejected  []Rejection `json:"rejected,omitempty"`
	Responses int         `json:"responses"`
}

// Observer receives every completed round. It is for metrics only and
// cannot influence the decision.
type Observer interface {
	ObserveRound(strategy string, r Result)
}

// Aggregator normalizes, tallies and resolves agent responses.
// It holds only immutable configuration and is safe for concurrent use.
type Aggregator struct {
	strategy ParseStrategy
	log      *slog.Logger
	observer Observer
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger used for trace entries.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// WithObserver attaches a round observer.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) { a.observer = o }
}

// NewAggregator creates an aggregator for the given strategy.
// A nil strategy means StructuredParse with default field names.
func NewAggregator(strategy ParseStrategy, opts ...Option) *Aggregator {
	if strategy == nil {
		strategy = StructuredParse{}
	}
	a := &Aggregator{
		strategy: strategy,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate returns the decision for responses.
func (a *Aggregator) Aggregate(responses []string) Decision {
	return a.Run(responses).Decision
}

// Run normalizes every response, tallies the parsed votes and resolves them.
// It never fails: every input, including nil, yields a Decision.
func (a *Aggregator) Run(responses []string) Result {
	res := Result{Responses: len(responses)}

	if len(responses) == 0 {
		res.Decision = Decision{Classification: NoConsensus, Rationale: MsgNoAnswers}
		a.log.Debug("no responses to aggregate")
		a.observe(res)
		return res
	}

	for i, raw := range responses {
		v, err := a.strategy.Parse(raw)
		if err != nil {
			res.Rejected = append(res.Rejected, Rejection{Index: i, Error: err.Error()})
			a.log.Warn("skipping response",
				slog.Int("index", i),
				slog.String("strategy", a.strategy.Name()),
				slog.String("error", err.Error()))
			continue
		}
		res.Votes = append(res.Votes, v)
	}

	tally := Count(res.Votes)
	res.Tally = tally.Entries()
	res.Decision = Resolve(tally, res.Votes)

	a.log.Debug("aggregated responses",
		slog.Int("parsed", len(res.Votes)),
		slog.Int("total", len(responses)),
		slog.String("classification", string(res.Decision.Classification)))

	a.observe(res)
	return res
}

func (a *Aggregator) observe(r Result) {
	if a.observer != nil {
		a.observer.ObserveRound(a.strategy.Name(), r)
	}
}

// Aggregate is a convenience wrapper around NewAggregator(strategy).Aggregate.
func Aggregate(responses []string, strategy ParseStrategy) Decision {
	return NewAggregator(strategy).Aggregate(responses)
}
