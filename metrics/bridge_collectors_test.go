package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/babylonchain/btc-bridge/metrics"
)

func TestBridgeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewBridgeMetrics(reg)

	m.RecordPeginRegistered()
	m.RecordPeginRejected("INVALID_AMOUNT")
	m.RecordPeginRejected("INVALID_AMOUNT")
	m.RecordPegoutBuild("SUCCESS")
	m.SetQueueSizes(3, 2, 1)
	m.SetSpvBestHeight(840_000)

	counters := m.SpvCacheCounters()
	counters.Hits.Inc()
	counters.Misses.Inc()
	counters.Misses.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	values := make(map[string]int)
	for _, f := range families {
		values[f.GetName()] = len(f.GetMetric())
	}
	require.Equal(t, 1, values["bridge_pegins_rejected_total"])
	require.Equal(t, 1, values["bridge_pegout_builds_total"])

	require.Equal(t, float64(1), testutil.ToFloat64(counters.Hits))
	require.Equal(t, float64(2), testutil.ToFloat64(counters.Misses))

	// registering twice on one registry is a programming error
	require.Panics(t, func() { metrics.NewBridgeMetrics(reg) })
}
