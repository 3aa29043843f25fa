// Package metrics exposes engine and boundary counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"titan/domain/book"
)

// Set holds the counters mutated by the boundary components. Engine
// internals are exported read-only via RegisterBook.
type Set struct {
	MessagesIn      prometheus.Counter
	FramesRejected  prometheus.Counter
	EventsPublished prometheus.Counter
	EventsJournaled prometheus.Counter
	WSClients       prometheus.Gauge
}

func New(reg prometheus.Registerer) *Set {
	s := &Set{
		MessagesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "titan_gateway_messages_total",
			Help: "Wire messages accepted by the gateway.",
		}),
		FramesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "titan_gateway_frames_rejected_total",
			Help: "Malformed or unsupported frames dropped at the gateway.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "titan_events_published_total",
			Help: "Engine events delivered to the Kafka topic.",
		}),
		EventsJournaled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "titan_events_journaled_total",
			Help: "Engine events captured by the pebble journal.",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "titan_ws_clients",
			Help: "Connected dashboard websocket clients.",
		}),
	}
	reg.MustRegister(s.MessagesIn, s.FramesRejected, s.EventsPublished, s.EventsJournaled, s.WSClients)
	return s
}

// RegisterBook exports the engine's own counters without giving the
// scrape path any way to mutate book state.
func RegisterBook(reg prometheus.Registerer, b *book.Book) {
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "titan_trades_total",
			Help: "Trades executed by the matching engine.",
		}, func() float64 { return float64(b.TradesExecuted()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "titan_engine_messages_total",
			Help: "Operations applied by the matching engine.",
		}, func() float64 { return float64(b.MessagesProcessed()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "titan_events_dropped_total",
			Help: "Events dropped because the output ring was full.",
		}, func() float64 { return float64(b.MessagesDropped()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "titan_active_orders",
			Help: "Resting orders currently in the book.",
		}, func() float64 { return float64(b.OrderCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "titan_bid_levels",
			Help: "Non-empty bid price levels.",
		}, func() float64 { return float64(b.BidLevels()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "titan_ask_levels",
			Help: "Non-empty ask price levels.",
		}, func() float64 { return float64(b.AskLevels()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "titan_output_ring_depth",
			Help: "Approximate events waiting in the output ring.",
		}, func() float64 { return float64(b.Output().SizeApprox()) }),
	)
}
