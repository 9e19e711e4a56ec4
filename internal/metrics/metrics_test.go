package metrics

import (
	"testing"

	"github.com/p2p-crawler/crawler/internal/addr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type fakeFrontier struct {
	seen    int
	pending int
}

func (f fakeFrontier) SizeSeen() int    { return f.seen }
func (f fakeFrontier) SizePending() int { return f.pending }

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		require.Len(t, mf.GetMetric(), 1)
		return mf.GetMetric()[0].GetGauge().GetValue()
	}
	t.Fatalf("metric family %s not found", name)
	return 0
}

func counterValueForOutcome(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "crawler_sessions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("outcome %s not found", outcome)
	return 0
}

func TestCollectorReportsWorkerOccupancyAndFrontierSize(t *testing.T) {
	recorder := NewRecorder()
	recorder.WorkerStarted()
	recorder.WorkerStarted()
	recorder.WorkerFinished()

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(NewCollector(recorder, fakeFrontier{seen: 5, pending: 2})))

	require.Equal(t, float64(1), gaugeValue(t, registry, "crawler_workers_busy"))
	require.Equal(t, float64(5), gaugeValue(t, registry, "crawler_frontier_seen_total"))
	require.Equal(t, float64(2), gaugeValue(t, registry, "crawler_frontier_pending"))
}

func TestCollectorReportsSessionOutcomes(t *testing.T) {
	recorder := NewRecorder()
	recorder.RecordOutcome(OutcomeSuccess, addr.KindIPv4)
	recorder.RecordOutcome(OutcomeSuccess, addr.KindIPv4)
	recorder.RecordOutcome(OutcomeUnreachable, addr.KindIPv4)

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(NewCollector(recorder, nil)))

	require.Equal(t, float64(2), counterValueForOutcome(t, registry, string(OutcomeSuccess)))
	require.Equal(t, float64(1), counterValueForOutcome(t, registry, string(OutcomeUnreachable)))
	require.Equal(t, float64(0), counterValueForOutcome(t, registry, string(OutcomeHandshakeFailed)))
}

func TestRecorderTracksAggregateAndPerKindCounts(t *testing.T) {
	recorder := NewRecorder()
	recorder.RecordOutcome(OutcomeSuccess, addr.KindIPv4)
	recorder.RecordOutcome(OutcomeSuccess, addr.KindOnionV3)
	recorder.RecordOutcome(OutcomeHandshakeFailed, addr.KindIPv4)
	recorder.RecordOutcome(OutcomeUnreachable, addr.KindIPv4)
	recorder.RecordAdvertised(150)
	recorder.RecordAdvertised(25)

	require.Equal(t, 3, recorder.ReachableCount())
	require.Equal(t, 2, recorder.HandshakeOKCount())
	require.Equal(t, 175, recorder.AdvertisedCount())

	breakdown := recorder.KindBreakdown()
	require.Equal(t, 1, breakdown[addr.KindIPv4])
	require.Equal(t, 1, breakdown[addr.KindOnionV3])
	require.Equal(t, 0, breakdown[addr.KindCJDNS])
}
