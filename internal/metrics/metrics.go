package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics.
type Metrics struct {
	// Order lifecycle
	OrdersPlaced    *prometheus.CounterVec
	OrdersCancelled prometheus.Counter
	OrdersFilled    prometheus.Counter
	OrdersRejected  *prometheus.CounterVec

	// Trades
	TradesTotal   prometheus.Counter
	TradeVolume   *prometheus.CounterVec
	MatchDuration prometheus.Histogram

	// RabbitMQ
	MQMessagesPublished *prometheus.CounterVec
	MQMessagesConsumed  *prometheus.CounterVec

	// Cache
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// New creates and registers all application metrics.
func New() *Metrics {
	return &Metrics{
		OrdersPlaced: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orders_placed_total",
				Help: "Total number of orders placed",
			},
			[]string{"side", "type"},
		),
		OrdersCancelled: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "orders_cancelled_total",
				Help: "Total number of orders cancelled",
			},
		),
		OrdersFilled: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "orders_filled_total",
				Help: "Total number of orders fully filled",
			},
		),
		OrdersRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orders_rejected_total",
				Help: "Total number of orders rejected before placement",
			},
			[]string{"reason"},
		),
		TradesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "trades_executed_total",
				Help: "Total number of trades executed",
			},
		),
		TradeVolume: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trade_volume_total",
				Help: "Executed trade volume by currency pair",
			},
			[]string{"pair"},
		),
		MatchDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "match_duration_seconds",
				Help:    "Duration of a single matching pass",
				Buckets: prometheus.DefBuckets,
			},
		),
		MQMessagesPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mq_messages_published_total",
				Help: "Total messages published to RabbitMQ",
			},
			[]string{"routing_key"},
		),
		MQMessagesConsumed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mq_messages_consumed_total",
				Help: "Total messages consumed from RabbitMQ",
			},
			[]string{"event_type", "outcome"},
		),
		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total cache misses",
			},
		),
	}
}
