package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"vwapbook/orderbook"
)

// Metrics are registered on a caller supplied registry so tests and
// multiple feeds never clash on the global one.
type Metrics struct {
	Lines        *prometheus.CounterVec
	Events       *prometheus.CounterVec
	ApplySeconds prometheus.Histogram
	QueueDepth   prometheus.Gauge
	LiveOrders   *prometheus.GaugeVec
	Result       prometheus.Gauge
	Threshold    prometheus.Gauge
	DomainSize   *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vwapbook_lines_total",
			Help: "Feed lines by outcome.",
		}, []string{"outcome"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vwapbook_events_total",
			Help: "Relation events applied to the view engine.",
		}, []string{"kind"}),
		ApplySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vwapbook_apply_seconds",
			Help:    "Time to process one line end to end.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vwapbook_queue_depth",
			Help: "Lines waiting to be applied.",
		}),
		LiveOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vwapbook_live_orders",
			Help: "Live orders per book side.",
		}, []string{"side"}),
		Result: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vwapbook_result",
			Help: "Current output value, 0 while undefined.",
		}),
		Threshold: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vwapbook_threshold",
			Help: "Current threshold price, 0 while undefined.",
		}),
		DomainSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vwapbook_domain_keys",
			Help: "Materialised keys per view domain.",
		}, []string{"domain"}),
	}
	reg.MustRegister(m.Lines, m.Events, m.ApplySeconds, m.QueueDepth, m.LiveOrders, m.Result, m.Threshold, m.DomainSize)
	return m
}

func (m *Metrics) ObserveEvents(events []orderbook.Event) {
	for _, ev := range events {
		m.Events.WithLabelValues(ev.Kind.String()).Inc()
	}
}

func (m *Metrics) ObserveBook(b *orderbook.Book) {
	m.LiveOrders.WithLabelValues(string(orderbook.Bid)).Set(float64(len(b.Bids)))
	m.LiveOrders.WithLabelValues(string(orderbook.Ask)).Set(float64(len(b.Asks)))
}

func (m *Metrics) ObserveResult(threshold, result decimal.Decimal, ok bool) {
	if !ok {
		m.Result.Set(0)
		m.Threshold.Set(0)
		return
	}
	m.Result.Set(result.InexactFloat64())
	m.Threshold.Set(threshold.InexactFloat64())
}

func (m *Metrics) ObserveDomains(sizes map[string]int) {
	for name, n := range sizes {
		m.DomainSize.WithLabelValues(name).Set(float64(n))
	}
}
