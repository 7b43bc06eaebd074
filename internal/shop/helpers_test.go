package shop

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/safar/go-sql-shop/internal/config"
	"github.com/safar/go-sql-shop/internal/events"
	"github.com/safar/go-sql-shop/internal/metrics"
	"github.com/safar/go-sql-shop/internal/models"
	"github.com/safar/go-sql-shop/internal/store/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event *events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	store       *memory.Store
	ledger      *Ledger
	cart        *CartService
	checkout    *Checkout
	lifecycle   *Lifecycle
	comparisons *Comparisons
	publisher   *recordingPublisher
	registry    *prometheus.Registry
}

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "test")
}

func newFixture(t *testing.T, policy string) *fixture {
	t.Helper()

	s := memory.New()
	reg := prometheus.NewRegistry()
	m := metrics.NewShopMetrics(reg)
	pub := &recordingPublisher{}
	logger := testLogger()
	ledger := NewLedger(s)

	return &fixture{
		store:       s,
		ledger:      ledger,
		cart:        NewCartService(s, policy, m, logger),
		checkout:    NewCheckout(s, ledger, pub, m, logger),
		lifecycle:   NewLifecycle(s, ledger, pub, 2, 10, m, logger),
		comparisons: NewComparisons(s, nil, 3, m, logger),
		publisher:   pub,
		registry:    reg,
	}
}

func (f *fixture) item(t *testing.T, name string, price models.Money, quantity int) models.Item {
	t.Helper()
	return f.store.PutItem(models.Item{SKU: "SKU-" + name, Name: name, Price: price, Quantity: quantity})
}

func (f *fixture) stock(t *testing.T, itemID int64) int {
	t.Helper()
	item, ok := f.store.Item(itemID)
	require.True(t, ok, "item %d missing", itemID)
	return item.Quantity
}

func (f *fixture) cartQuantities(t *testing.T, userID int64) map[int64]int {
	t.Helper()
	cart, err := f.cart.Get(context.Background(), userID)
	require.NoError(t, err)
	out := make(map[int64]int, len(cart.Lines))
	for _, line := range cart.Lines {
		out[line.ItemID] = line.Quantity
	}
	return out
}

func validDetails() models.OrderDetails {
	return models.OrderDetails{ShippingAddress: "221B Baker Street", ContactPhone: "+447700900123"}
}

// counter returns the value of the counter series whose labels include all
// of the given pairs, or zero when there is none.
func (f *fixture) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := f.registry.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if matchLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, pair := range metric.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok {
			if pair.GetValue() != want {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}

var defaultPolicy = config.AddPolicyCumulative
