// Package metrics exports aggregation and agent metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/johnayoung/dili-agents/internal/consensus"
	"github.com/johnayoung/dili-agents/internal/runner"
	"github.com/johnayoung/dili-agents/internal/vote"
)

const namespace = "dili_agents"

// Recorder owns a registry and the collectors fed by panel runs.
type Recorder struct {
	registry    *prometheus.Registry
	rounds      *prometheus.CounterVec
	responses   *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	agentErrors *prometheus.CounterVec
}

var (
	_ consensus.PanelObserver = (*Recorder)(nil)
	_ runner.Observer         = (*Recorder)(nil)
)

// New creates a recorder with its own registry. withRuntime adds the Go and
// process collectors, which only make sense for a long-running server.
func New(withRuntime bool) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Aggregation rounds by panel and outcome.",
		}, []string{"panel", "outcome"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Agent responses by panel and normalization status.",
		}, []string{"panel", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_latency_seconds",
			Help:      "Agent query latency.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"agent"}),
		agentErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_errors_total",
			Help:      "Failed agent queries.",
		}, []string{"agent"}),
	}

	r.registry.MustRegister(r.rounds, r.responses, r.latency, r.agentErrors)
	if withRuntime {
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

// Registry returns the registry to expose or write.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Panel returns a round observer labelled with panel.
func (r *Recorder) Panel(name string) vote.Observer {
	return panelObserver{r: r, panel: name}
}

// ObserveAgent records one agent query.
func (r *Recorder) ObserveAgent(agent, model string, latency time.Duration, err error) {
	r.latency.WithLabelValues(agent).Observe(latency.Seconds())
	if err != nil {
		r.agentErrors.WithLabelValues(agent).Inc()
	}
}

// WriteTextfile writes every metric in the text exposition format, for the
// node exporter's textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

type panelObserver struct {
	r     *Recorder
	panel string
}

func (o panelObserver) ObserveRound(strategy string, res vote.Result) {
	outcome := "consensus"
	if !res.Decision.Consensus() {
		outcome = "no_consensus"
	}
	o.r.rounds.WithLabelValues(o.panel, outcome).Inc()
	o.r.responses.WithLabelValues(o.panel, "parsed").Add(float64(len(res.Votes)))
	o.r.responses.WithLabelValues(o.panel, "rejected").Add(float64(len(res.Rejected)))
}
