package election

import (
	"github.com/prometheus/client_golang/prometheus"

	"chainvote/pkg/data"
)

// Collector exports poller health and the last election snapshot to
// Prometheus. Values are read from the poller on every scrape.
type Collector struct {
	poller *Poller

	polls       *prometheus.Desc
	failures    *prometheus.Desc
	consecutive *prometheus.Desc
	latency     *prometheus.Desc
	lastSuccess *prometheus.Desc
	phase       *prometheus.Desc
	totalVotes  *prometheus.Desc
	chainLength *prometheus.Desc
	chainValid  *prometheus.Desc
}

// NewCollector creates a collector for p
func NewCollector(p *Poller) *Collector {
	return &Collector{
		poller: p,
		polls: prometheus.NewDesc("chainvote_poller_polls_total",
			"Election state fetches attempted", nil, nil),
		failures: prometheus.NewDesc("chainvote_poller_failures_total",
			"Election state fetches that failed", nil, nil),
		consecutive: prometheus.NewDesc("chainvote_poller_consecutive_failures",
			"Failed fetches since the last success", nil, nil),
		latency: prometheus.NewDesc("chainvote_poller_latency_seconds",
			"Moving average of fetch latency", nil, nil),
		lastSuccess: prometheus.NewDesc("chainvote_poller_last_success_timestamp_seconds",
			"Unix time of the last successful fetch", nil, nil),
		phase: prometheus.NewDesc("chainvote_election_phase",
			"1 for the current election phase, 0 otherwise", []string{"phase"}, nil),
		totalVotes: prometheus.NewDesc("chainvote_election_votes",
			"Votes recorded in the last snapshot", nil, nil),
		chainLength: prometheus.NewDesc("chainvote_election_chain_length",
			"Ledger length in the last snapshot", nil, nil),
		chainValid: prometheus.NewDesc("chainvote_election_chain_valid",
			"1 when the last snapshot reported an intact ledger", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.polls
	ch <- c.failures
	ch <- c.consecutive
	ch <- c.latency
	ch <- c.lastSuccess
	ch <- c.phase
	ch <- c.totalVotes
	ch <- c.chainLength
	ch <- c.chainValid
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.poller.Stats()
	ch <- prometheus.MustNewConstMetric(c.polls, prometheus.CounterValue, float64(stats.Polls))
	ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(stats.Failures))
	ch <- prometheus.MustNewConstMetric(c.consecutive, prometheus.GaugeValue, float64(stats.ConsecutiveFailures))
	ch <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue, stats.AverageLatency.Seconds())
	if !stats.LastSuccess.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.lastSuccess, prometheus.GaugeValue, float64(stats.LastSuccess.Unix()))
	}

	state, ok := c.poller.Snapshot()
	if !ok {
		return
	}
	for _, phase := range []data.Phase{data.PhaseWaiting, data.PhaseLive, data.PhaseClosed} {
		v := 0.0
		if phase == state.Phase {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.phase, prometheus.GaugeValue, v, phase.String())
	}
	ch <- prometheus.MustNewConstMetric(c.totalVotes, prometheus.GaugeValue, float64(state.TotalVotes))
	ch <- prometheus.MustNewConstMetric(c.chainLength, prometheus.GaugeValue, float64(state.ChainLength))
	valid := 0.0
	if state.ChainValid {
		valid = 1
	}
	ch <- prometheus.MustNewConstMetric(c.chainValid, prometheus.GaugeValue, valid)
}
