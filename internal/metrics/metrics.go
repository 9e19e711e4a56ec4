// Package metrics exposes a Prometheus collector for one crawl: frontier
// size, worker occupancy, and session outcomes. The crawl controller reports
// into a Recorder; Collect reads that state on scrape rather than pushing on
// every event, the same custom-collector shape lnd uses for its peer and
// channel stats.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/p2p-crawler/crawler/internal/addr"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome buckets a terminated session for the sessions-by-outcome counter.
type Outcome string

const (
	OutcomeUnreachable     Outcome = "unreachable"
	OutcomeHandshakeFailed Outcome = "handshake_failed"
	OutcomeSuccess         Outcome = "success"
)

// FrontierStats is the subset of frontier state the collector scrapes.
type FrontierStats interface {
	SizeSeen() int
	SizePending() int
}

// kindCounts tallies session outcomes for one addr.Kind. Guarded entirely by
// Recorder.kindMu; never accessed outside that lock.
type kindCounts struct {
	unreachable     int64
	handshakeFailed int64
	success         int64
}

// Recorder accumulates counts the controller reports as sessions complete.
// All fields are accessed concurrently by worker goroutines and must only be
// mutated through its methods.
type Recorder struct {
	busy       atomic.Int64
	outcomes   [3]atomic.Int64
	advertised atomic.Int64

	kindMu sync.Mutex
	byKind map[addr.Kind]*kindCounts
}

// NewRecorder returns a zeroed Recorder.
func NewRecorder() *Recorder {
	return &Recorder{byKind: make(map[addr.Kind]*kindCounts)}
}

// WorkerStarted marks one worker as mid-session.
func (r *Recorder) WorkerStarted() { r.busy.Add(1) }

// WorkerFinished marks one worker as idle again.
func (r *Recorder) WorkerFinished() { r.busy.Add(-1) }

// RecordOutcome increments the counter for the given session outcome, both
// overall and broken down by the target's address kind.
func (r *Recorder) RecordOutcome(o Outcome, kind addr.Kind) {
	r.outcomes[outcomeIndex(o)].Add(1)

	r.kindMu.Lock()
	kc, ok := r.byKind[kind]
	if !ok {
		kc = &kindCounts{}
		r.byKind[kind] = kc
	}
	switch o {
	case OutcomeUnreachable:
		kc.unreachable++
	case OutcomeHandshakeFailed:
		kc.handshakeFailed++
	default:
		kc.success++
	}
	r.kindMu.Unlock()
}

// RecordAdvertised adds n to the count of advertised-address records
// persisted to the advertised-addresses sink.
func (r *Recorder) RecordAdvertised(n int) {
	r.advertised.Add(int64(n))
}

// ReachableCount returns the number of sessions that completed a TCP
// connect, regardless of handshake outcome: a handshake failure still
// implies the node answered at the transport level.
func (r *Recorder) ReachableCount() int {
	return int(r.outcomes[outcomeIndex(OutcomeHandshakeFailed)].Load() + r.outcomes[outcomeIndex(OutcomeSuccess)].Load())
}

// HandshakeOKCount returns the number of sessions that completed the full
// version/verack handshake.
func (r *Recorder) HandshakeOKCount() int {
	return int(r.outcomes[outcomeIndex(OutcomeSuccess)].Load())
}

// AdvertisedCount returns the total number of advertised-address records
// persisted across the crawl.
func (r *Recorder) AdvertisedCount() int {
	return int(r.advertised.Load())
}

// KindBreakdown returns, for every address kind the crawl has dialed, the
// number of sessions against that kind that completed a full handshake.
func (r *Recorder) KindBreakdown() map[addr.Kind]int {
	r.kindMu.Lock()
	defer r.kindMu.Unlock()
	out := make(map[addr.Kind]int, len(r.byKind))
	for k, kc := range r.byKind {
		out[k] = int(kc.success)
	}
	return out
}

func outcomeIndex(o Outcome) int {
	switch o {
	case OutcomeUnreachable:
		return 0
	case OutcomeHandshakeFailed:
		return 1
	default:
		return 2
	}
}

// Collector adapts a Recorder and a FrontierStats into a prometheus.Collector.
type Collector struct {
	recorder *Recorder
	frontier FrontierStats

	frontierSeenDesc    *prometheus.Desc
	frontierPendingDesc *prometheus.Desc
	workersBusyDesc     *prometheus.Desc
	sessionOutcomeDesc  *prometheus.Desc
	kindSuccessDesc     *prometheus.Desc
}

// NewCollector builds a Collector reading live state from recorder and
// frontier. Register it with prometheus.MustRegister once per crawl.
func NewCollector(recorder *Recorder, frontier FrontierStats) *Collector {
	return &Collector{
		recorder: recorder,
		frontier: frontier,
		frontierSeenDesc: prometheus.NewDesc(
			"crawler_frontier_seen_total",
			"Number of distinct addresses the frontier has ever accepted.",
			nil, nil),
		frontierPendingDesc: prometheus.NewDesc(
			"crawler_frontier_pending",
			"Number of addresses currently queued for a worker to take.",
			nil, nil),
		workersBusyDesc: prometheus.NewDesc(
			"crawler_workers_busy",
			"Number of workers currently mid-session.",
			nil, nil),
		sessionOutcomeDesc: prometheus.NewDesc(
			"crawler_sessions_total",
			"Number of terminated sessions by outcome.",
			[]string{"outcome"}, nil),
		kindSuccessDesc: prometheus.NewDesc(
			"crawler_sessions_success_total",
			"Number of successful handshake sessions by address network.",
			[]string{"network"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.frontierSeenDesc
	ch <- c.frontierPendingDesc
	ch <- c.workersBusyDesc
	ch <- c.sessionOutcomeDesc
	ch <- c.kindSuccessDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.frontier != nil {
		ch <- prometheus.MustNewConstMetric(c.frontierSeenDesc, prometheus.GaugeValue, float64(c.frontier.SizeSeen()))
		ch <- prometheus.MustNewConstMetric(c.frontierPendingDesc, prometheus.GaugeValue, float64(c.frontier.SizePending()))
	}
	ch <- prometheus.MustNewConstMetric(c.workersBusyDesc, prometheus.GaugeValue, float64(c.recorder.busy.Load()))

	ch <- prometheus.MustNewConstMetric(c.sessionOutcomeDesc, prometheus.CounterValue, float64(c.recorder.outcomes[outcomeIndex(OutcomeUnreachable)].Load()), string(OutcomeUnreachable))
	ch <- prometheus.MustNewConstMetric(c.sessionOutcomeDesc, prometheus.CounterValue, float64(c.recorder.outcomes[outcomeIndex(OutcomeHandshakeFailed)].Load()), string(OutcomeHandshakeFailed))
	ch <- prometheus.MustNewConstMetric(c.sessionOutcomeDesc, prometheus.CounterValue, float64(c.recorder.outcomes[outcomeIndex(OutcomeSuccess)].Load()), string(OutcomeSuccess))

	for kind, n := range c.recorder.KindBreakdown() {
		ch <- prometheus.MustNewConstMetric(c.kindSuccessDesc, prometheus.CounterValue, float64(n), kind.String())
	}
}
