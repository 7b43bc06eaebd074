package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShopMetrics(t *testing.T) {
	m := NewShopMetrics(prometheus.NewRegistry())

	require.NotNil(t, m)
	assert.NotNil(t, m.ordersPlaced)
	assert.NotNil(t, m.ordersCancelled)
	assert.NotNil(t, m.checkoutFailures)
	assert.NotNil(t, m.checkoutDuration)
	assert.NotNil(t, m.statusTransitions)
	assert.NotNil(t, m.stockUnits)
	assert.NotNil(t, m.cartMutations)
	assert.NotNil(t, m.comparisonCache)
	assert.NotNil(t, m.eventsPublished)
	assert.NotNil(t, m.httpDuration)
}

func TestNewShopMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := NewShopMetrics(reg)
	second := NewShopMetrics(reg)

	first.RecordOrderCancelled()
	second.RecordOrderCancelled()

	assert.Equal(t, 2.0, testutil.ToFloat64(first.ordersCancelled))
}

func TestRecordCheckout(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewShopMetrics(reg)

	m.RecordOrderPlaced(10 * time.Millisecond)
	m.RecordOrderPlaced(20 * time.Millisecond)
	m.RecordCheckoutFailure("insufficient_stock", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersPlaced))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkoutFailures.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.checkoutDuration))
}

func TestRecordLedgerAndLifecycle(t *testing.T) {
	m := NewShopMetrics(prometheus.NewRegistry())

	m.RecordStockDebit(3)
	m.RecordStockDebit(0)
	m.RecordStockCredit(2)
	m.RecordStatusTransition("pending", "cancelled")
	m.RecordCartMutation("add")
	m.RecordComparisonCache(true)
	m.RecordComparisonCache(false)
	m.RecordEvent("order.placed", nil)
	m.RecordEvent("order.placed", errors.New("broker down"))
	m.ObserveHTTPRequest("GET", "/cart", 200, time.Millisecond)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.stockUnits.WithLabelValues("debit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.stockUnits.WithLabelValues("credit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusTransitions.WithLabelValues("pending", "cancelled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cartMutations.WithLabelValues("add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.comparisonCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.comparisonCache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("order.placed", "failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.httpDuration))
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *ShopMetrics

	assert.NotPanics(t, func() {
		m.RecordOrderPlaced(time.Second)
		m.RecordCheckoutFailure("empty_cart", time.Second)
		m.RecordOrderCancelled()
		m.RecordStatusTransition("a", "b")
		m.RecordStockDebit(1)
		m.RecordStockCredit(1)
		m.RecordCartMutation("clear")
		m.RecordComparisonCache(true)
		m.RecordEvent("order.cancelled", nil)
		m.ObserveHTTPRequest("GET", "/", 200, time.Second)
	})
}
