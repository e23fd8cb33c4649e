package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"vwapbook/orderbook"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	p, v := decimal.NewFromInt(10), decimal.NewFromInt(5)
	m.ObserveEvents([]orderbook.Event{orderbook.InsertEvent(p, v), orderbook.DeleteEvent(p, v), orderbook.InsertEvent(p, v)})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Events.WithLabelValues(orderbook.Insert.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues(orderbook.Delete.String())))

	m.ObserveResult(decimal.RequireFromString("10.5"), decimal.NewFromInt(1050), true)
	assert.Equal(t, 1050.0, testutil.ToFloat64(m.Result))
	assert.Equal(t, 10.5, testutil.ToFloat64(m.Threshold))
	m.ObserveResult(decimal.Zero, decimal.Zero, false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Result))

	b := orderbook.NewBook()
	b.Bids[1] = &orderbook.Order{ID: 1, Side: orderbook.Bid}
	m.ObserveBook(b)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LiveOrders.WithLabelValues("bid")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LiveOrders.WithLabelValues("ask")))

	m.ObserveDomains(map[string]int{"depth_dom": 3, "vwap_dom": 1})
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DomainSize.WithLabelValues("depth_dom")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DomainSize.WithLabelValues("vwap_dom")))
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
