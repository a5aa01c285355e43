package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedemptionDuration tracks the latency of a click from ack to reply
	RedemptionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "giftbot_redemption_duration_seconds",
			Help: "Duration of gift code redemption attempts in seconds",
			Buckets: []float64{
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
				5.0,   // 5s
				10.0,  // 10s
				30.0,  // 30s
			},
		},
		[]string{"outcome"},
	)

	Redemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftbot_redemptions_total",
			Help: "Redemption attempts by outcome",
		},
		[]string{"outcome"},
	)

	ListenerUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "giftbot_listener_up",
			Help: "1 while the channel listener is receiving, 0 while it is reconnecting",
		},
		[]string{"channel"},
	)

	ListenerReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftbot_listener_reconnects_total",
			Help: "Times a channel listener had to resubscribe",
		},
		[]string{"channel"},
	)

	// QuantityReconcile counts redemptions whose ledger row was written but whose
	// quantity decrement did not reach the inventory
	QuantityReconcile = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "giftbot_quantity_reconcile_total",
			Help: "Redemptions left with a stale inventory quantity",
		},
	)

	IndexEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "giftbot_index_entries",
			Help: "Gift codes currently routable from broadcast buttons",
		},
	)
)

func RecordRedemption(outcome string, seconds float64) {
	Redemptions.WithLabelValues(outcome).Inc()
	RedemptionDuration.WithLabelValues(outcome).Observe(seconds)
}

func SetListenerUp(channelID int64, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	ListenerUp.WithLabelValues(strconv.FormatInt(channelID, 10)).Set(v)
}

func RecordReconnect(channelID int64) {
	ListenerReconnects.WithLabelValues(strconv.FormatInt(channelID, 10)).Inc()
}
