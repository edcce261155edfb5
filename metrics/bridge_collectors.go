package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/babylonchain/btc-bridge/spv"
)

type BridgeMetrics struct {
	// peg-ins
	peginsRegistered prometheus.Counter
	peginsRefunded   prometheus.Counter
	peginsRejected   *prometheus.CounterVec
	// releases
	releaseRequests  prometheus.Counter
	pegoutsBuilt     *prometheus.CounterVec
	pegoutsSigned    prometheus.Counter
	migrationSweeps  prometheus.Counter
	releaseQueueSize prometheus.Gauge
	waitingConfirms  prometheus.Gauge
	waitingSigs      prometheus.Gauge
	// spv
	spvBestHeight  prometheus.Gauge
	spvCacheHits   prometheus.Counter
	spvCacheMisses prometheus.Counter
}

// bridgeMetricsRegisterOnce guards registration on the default registerer.
var bridgeMetricsRegisterOnce sync.Once

var bridgeMetricsInstance *BridgeMetrics

// DefaultBridgeMetrics returns the metrics registered on the default
// Prometheus registry, creating them on the first call.
func DefaultBridgeMetrics() *BridgeMetrics {
	bridgeMetricsRegisterOnce.Do(func() {
		bridgeMetricsInstance = NewBridgeMetrics(prometheus.DefaultRegisterer)
	})
	return bridgeMetricsInstance
}

// NewBridgeMetrics creates the bridge metrics and registers them on reg.
func NewBridgeMetrics(reg prometheus.Registerer) *BridgeMetrics {
	m := &BridgeMetrics{
		peginsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_pegins_registered_total",
			Help: "Total number of peg-ins credited on the ledger",
		}),
		peginsRefunded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_pegins_refunded_total",
			Help: "Total number of peg-ins sent back to their sender",
		}),
		peginsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_pegins_rejected_total",
			Help: "Total number of peg-ins that could not be processed, by reason",
		}, []string{"reason"}),
		releaseRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_release_requests_total",
			Help: "Total number of accepted release requests",
		}),
		pegoutsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_pegout_builds_total",
			Help: "Total number of pegout transaction builds, by response code",
		}, []string{"code"}),
		pegoutsSigned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_pegouts_signed_total",
			Help: "Total number of release transactions that collected enough signatures",
		}),
		migrationSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_migration_sweeps_total",
			Help: "Total number of transactions moving funds to a new federation",
		}),
		releaseQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_release_queue_size",
			Help: "Number of release requests waiting to be batched",
		}),
		waitingConfirms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_pegouts_waiting_confirmations",
			Help: "Number of release transactions waiting for ledger confirmations",
		}),
		waitingSigs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_pegouts_waiting_signatures",
			Help: "Number of release transactions waiting for federator signatures",
		}),
		spvBestHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_spv_best_chain_height",
			Help: "Height of the best Bitcoin header known to the bridge",
		}),
		spvCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_spv_cache_hits_total",
			Help: "Total number of header lookups served from the cache",
		}),
		spvCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_spv_cache_misses_total",
			Help: "Total number of header lookups that went to storage",
		}),
	}

	reg.MustRegister(
		m.peginsRegistered,
		m.peginsRefunded,
		m.peginsRejected,
		m.releaseRequests,
		m.pegoutsBuilt,
		m.pegoutsSigned,
		m.migrationSweeps,
		m.releaseQueueSize,
		m.waitingConfirms,
		m.waitingSigs,
		m.spvBestHeight,
		m.spvCacheHits,
		m.spvCacheMisses,
	)

	return m
}

// SpvCacheCounters are the counters to hand to the SPV store factory.
func (m *BridgeMetrics) SpvCacheCounters() spv.CacheCounters {
	return spv.CacheCounters{Hits: m.spvCacheHits, Misses: m.spvCacheMisses}
}

func (m *BridgeMetrics) RecordPeginRegistered() {
	m.peginsRegistered.Inc()
}

func (m *BridgeMetrics) RecordPeginRefunded() {
	m.peginsRefunded.Inc()
}

func (m *BridgeMetrics) RecordPeginRejected(reason string) {
	m.peginsRejected.WithLabelValues(reason).Inc()
}

func (m *BridgeMetrics) RecordReleaseRequest() {
	m.releaseRequests.Inc()
}

func (m *BridgeMetrics) RecordPegoutBuild(code string) {
	m.pegoutsBuilt.WithLabelValues(code).Inc()
}

func (m *BridgeMetrics) RecordPegoutSigned() {
	m.pegoutsSigned.Inc()
}

func (m *BridgeMetrics) RecordMigrationSweep() {
	m.migrationSweeps.Inc()
}

func (m *BridgeMetrics) SetQueueSizes(releaseRequests, waitingConfirmations, waitingSignatures int) {
	m.releaseQueueSize.Set(float64(releaseRequests))
	m.waitingConfirms.Set(float64(waitingConfirmations))
	m.waitingSigs.Set(float64(waitingSignatures))
}

func (m *BridgeMetrics) SetSpvBestHeight(height int32) {
	m.spvBestHeight.Set(float64(height))
}
