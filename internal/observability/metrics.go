// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Program metrics
	InstructionsProcessed *prometheus.CounterVec
	InstructionFailures   *prometheus.CounterVec
	InstructionLatency    *prometheus.HistogramVec
	RewardsPaid           prometheus.Counter
	NFTsStaked            prometheus.Gauge

	// History metrics
	StakeEventsArchived prometheus.Counter
	HistoryWriteErrors  prometheus.Counter

	// Chain client metrics
	RPCCallLatency   *prometheus.HistogramVec
	WSNotifications  *prometheus.CounterVec
	WSReconnects     prometheus.Counter
	HighestSlotSeen  prometheus.Gauge
	EventSubscribers prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastCommittedTransaction prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "nft_stake_vault"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		InstructionsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "program",
			Name:      "instructions_processed_total",
			Help:      "Total number of instructions executed by name and result",
		}, []string{"instruction", "result"}),
		InstructionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "program",
			Name:      "instruction_failures_total",
			Help:      "Total number of aborted instructions by error kind",
		}, []string{"instruction", "kind"}),
		InstructionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "program",
			Name:      "instruction_latency_seconds",
			Help:      "Instruction execution latency including commit",
			Buckets:   prometheus.DefBuckets,
		}, []string{"instruction"}),
		RewardsPaid: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "program",
			Name:      "rewards_paid_total",
			Help:      "Total reward token units paid out on unstake",
		}),
		NFTsStaked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "program",
			Name:      "nfts_staked",
			Help:      "NFTs currently held by the vault as seen by this process",
		}),

		StakeEventsArchived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "stake_events_archived_total",
			Help:      "Total number of stake events written to the history store",
		}),
		HistoryWriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "write_errors_total",
			Help:      "Total number of failed history store writes",
		}),

		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		WSNotifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_notifications_total",
			Help:      "Total number of websocket notifications by method",
		}, []string{"method"}),
		WSReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_reconnects_total",
			Help:      "Total number of websocket reconnects",
		}),
		HighestSlotSeen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen",
		}),
		EventSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "event_subscribers",
			Help:      "Open websocket subscriptions to the stake event feed",
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastCommittedTransaction: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_committed_transaction_timestamp",
			Help:      "Unix timestamp of the last committed transaction",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordInstruction records one executed instruction. kind is empty on success.
func RecordInstruction(instruction, kind string, seconds float64) {
	result := "ok"
	if kind != "" {
		result = "error"
		DefaultMetrics.InstructionFailures.WithLabelValues(instruction, kind).Inc()
	}
	DefaultMetrics.InstructionsProcessed.WithLabelValues(instruction, result).Inc()
	DefaultMetrics.InstructionLatency.WithLabelValues(instruction).Observe(seconds)
}

// RecordStake tracks an NFT entering the vault.
func RecordStake() {
	DefaultMetrics.NFTsStaked.Inc()
}

// RecordUnstake tracks an NFT leaving the vault with its reward.
func RecordUnstake(reward uint64) {
	DefaultMetrics.NFTsStaked.Dec()
	DefaultMetrics.RewardsPaid.Add(float64(reward))
}

// RecordHistoryWrite records a stake history batch write.
func RecordHistoryWrite(events int, err error) {
	if err != nil {
		DefaultMetrics.HistoryWriteErrors.Inc()
		return
	}
	DefaultMetrics.StakeEventsArchived.Add(float64(events))
}

// RecordCommit stamps the time of the last committed transaction.
func RecordCommit(unix int64) {
	DefaultMetrics.LastCommittedTransaction.Set(float64(unix))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordWSNotification counts a websocket notification.
func RecordWSNotification(method string) {
	DefaultMetrics.WSNotifications.WithLabelValues(method).Inc()
}

// RecordWSReconnect counts a websocket reconnect.
func RecordWSReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}

// UpdateHighestSlot updates the highest slot seen gauge.
func UpdateHighestSlot(slot uint64) {
	DefaultMetrics.HighestSlotSeen.Set(float64(slot))
}

// UpdateEventSubscribers sets the number of open event feed subscriptions.
func UpdateEventSubscribers(n int) {
	DefaultMetrics.EventSubscribers.Set(float64(n))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
