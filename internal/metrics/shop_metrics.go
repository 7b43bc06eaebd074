// Package metrics holds the Prometheus collectors of the shop.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ShopMetrics groups checkout, lifecycle, ledger, cache and HTTP collectors.
// All record methods are safe on a nil receiver.
type ShopMetrics struct {
	ordersPlaced     prometheus.Counter
	ordersCancelled  prometheus.Counter
	checkoutFailures *prometheus.CounterVec
	checkoutDuration prometheus.Histogram

	statusTransitions *prometheus.CounterVec
	stockUnits        *prometheus.CounterVec
	cartMutations     *prometheus.CounterVec
	comparisonCache   *prometheus.CounterVec
	eventsPublished   *prometheus.CounterVec

	httpDuration *prometheus.HistogramVec
}

// NewShopMetrics registers the collectors on registerer, or on the default
// registerer when it is nil.
func NewShopMetrics(registerer prometheus.Registerer) *ShopMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ShopMetrics{
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_placed_total",
			Help: "Total number of orders placed",
		}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_cancelled_total",
			Help: "Total number of orders cancelled",
		}),
		checkoutFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_checkout_failures_total",
			Help: "Total number of failed checkouts by error kind",
		}, []string{"kind"}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shop_checkout_duration_seconds",
			Help:    "Duration of checkout transactions in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		statusTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_order_status_transitions_total",
			Help: "Total number of order status transitions",
		}, []string{"from", "to"}),
		stockUnits: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_stock_units_total",
			Help: "Stock units debited or credited through the ledger",
		}, []string{"direction"}),
		cartMutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_cart_mutations_total",
			Help: "Total number of cart mutations by operation",
		}, []string{"op"}),
		comparisonCache: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_comparison_cache_lookups_total",
			Help: "Comparison matrix cache lookups by result",
		}, []string{"result"}),
		eventsPublished: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_order_events_total",
			Help: "Order events handed to the publisher by outcome",
		}, []string{"type", "outcome"}),
		httpDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "shop_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderPlaced counts a committed checkout and its duration.
func (m *ShopMetrics) RecordOrderPlaced(duration time.Duration) {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
	m.checkoutDuration.Observe(duration.Seconds())
}

// RecordCheckoutFailure counts a rolled back checkout by error kind.
func (m *ShopMetrics) RecordCheckoutFailure(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.checkoutFailures.WithLabelValues(kind).Inc()
	m.checkoutDuration.Observe(duration.Seconds())
}

func (m *ShopMetrics) RecordOrderCancelled() {
	if m == nil {
		return
	}
	m.ordersCancelled.Inc()
}

func (m *ShopMetrics) RecordStatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(from, to).Inc()
}

// RecordStockDebit counts units taken out of the ledger.
func (m *ShopMetrics) RecordStockDebit(units int) {
	if m == nil || units <= 0 {
		return
	}
	m.stockUnits.WithLabelValues("debit").Add(float64(units))
}

// RecordStockCredit counts units returned to the ledger.
func (m *ShopMetrics) RecordStockCredit(units int) {
	if m == nil || units <= 0 {
		return
	}
	m.stockUnits.WithLabelValues("credit").Add(float64(units))
}

func (m *ShopMetrics) RecordCartMutation(op string) {
	if m == nil {
		return
	}
	m.cartMutations.WithLabelValues(op).Inc()
}

func (m *ShopMetrics) RecordComparisonCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.comparisonCache.WithLabelValues(result).Inc()
}

func (m *ShopMetrics) RecordEvent(eventType string, err error) {
	if m == nil {
		return
	}
	outcome := "published"
	if err != nil {
		outcome = "failed"
	}
	m.eventsPublished.WithLabelValues(eventType, outcome).Inc()
}

func (m *ShopMetrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}
