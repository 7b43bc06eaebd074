package shop

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/go-sql-shop/internal/database"
	"github.com/safar/go-sql-shop/internal/events"
	"github.com/safar/go-sql-shop/internal/models"
	"github.com/safar/go-sql-shop/internal/store"
)

// X has stock 5 and Y stock 1; ordering 3 X and 2 Y must fail on Y and leave
// everything untouched.
func TestPlaceOrderInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	ctx := context.Background()
	x := f.item(t, "X", 100, 5)
	y := f.item(t, "Y", 300, 1)

	require.NoError(t, f.store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Carts().Save(ctx, 1, x.ID, 3); err != nil {
			return err
		}
		return tx.Carts().Save(ctx, 1, y.ID, 2)
	}))

	_, err := f.checkout.PlaceOrder(ctx, 1, validDetails())

	var stockErr *models.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, y.ID, stockErr.ItemID)
	assert.Equal(t, 2, stockErr.Requested)
	assert.Equal(t, 1, stockErr.Available)

	assert.Equal(t, map[int64]int{x.ID: 3, y.ID: 2}, f.cartQuantities(t, 1))
	assert.Equal(t, 5, f.stock(t, x.ID))
	assert.Equal(t, 1, f.stock(t, y.ID))
	assert.Empty(t, f.publisher.types())
	assert.Equal(t, 1.0, f.counter(t, "shop_checkout_failures_total", map[string]string{"kind": "insufficient_stock"}))
}

// X has stock 5 and price 100; ordering 2 gives a total of 200.
func TestPlaceOrderSuccess(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	ctx := context.Background()
	x := f.item(t, "X", 100, 5)

	_, err := f.cart.Add(ctx, 1, x.ID, 2)
	require.NoError(t, err)

	order, err := f.checkout.PlaceOrder(ctx, 1, validDetails())
	require.NoError(t, err)

	assert.NotZero(t, order.ID)
	assert.Regexp(t, `^ORD-[0-9a-f-]{36}$`, order.OrderNumber)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.Money(200), order.TotalAmount)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "X", order.Lines[0].ItemName)
	assert.Equal(t, models.Money(100), order.Lines[0].PriceAtPurchase)
	assert.NoError(t, order.CheckInvariants())

	assert.Equal(t, 3, f.stock(t, x.ID))
	assert.Empty(t, f.cartQuantities(t, 1))
	assert.Equal(t, []events.EventType{events.EventTypeOrderPlaced}, f.publisher.types())
	assert.Equal(t, 1.0, f.counter(t, "shop_orders_placed_total", nil))
	assert.Equal(t, 2.0, f.counter(t, "shop_stock_units_total", map[string]string{"direction": "debit"}))
}

func TestPlaceOrderFreezesPrices(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	ctx := context.Background()
	x := f.item(t, "X", 100, 5)
	y := f.item(t, "Y", 40, 5)

	_, err := f.cart.Add(ctx, 1, x.ID, 2)
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, 1, y.ID, 3)
	require.NoError(t, err)

	x.Price = 150
	f.store.PutItem(x)

	order, err := f.checkout.PlaceOrder(ctx, 1, validDetails())
	require.NoError(t, err)
	assert.Equal(t, models.Money(2*150+3*40), order.TotalAmount)

	x.Price = 999
	f.store.PutItem(x)
	f.store.DeleteItem(y.ID)

	got, err := f.lifecycle.Get(ctx, 1, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.TotalAmount, got.TotalAmount)
	assert.Equal(t, got.ComputeTotal(), got.TotalAmount)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, models.Money(150), got.Lines[0].PriceAtPurchase)
	assert.Equal(t, "Y", got.Lines[1].ItemName)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := newFixture(t, defaultPolicy)

	_, err := f.checkout.PlaceOrder(context.Background(), 1, validDetails())
	var emptyErr *models.EmptyCartError
	assert.ErrorAs(t, err, &emptyErr)
}

func TestPlaceOrderValidatesDetails(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	ctx := context.Background()
	x := f.item(t, "X", 100, 5)
	_, err := f.cart.Add(ctx, 1, x.ID, 1)
	require.NoError(t, err)

	details := validDetails()
	details.ContactPhone = "call me"
	_, err = f.checkout.PlaceOrder(ctx, 1, details)

	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "contact_phone", validationErr.Field)
	assert.Equal(t, map[int64]int{x.ID: 1}, f.cartQuantities(t, 1))
}

func TestPlaceOrderPublishFailureKeepsOrder(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	ctx := context.Background()
	x := f.item(t, "X", 100, 5)
	f.publisher.err = errors.New("broker down")

	_, err := f.cart.Add(ctx, 1, x.ID, 1)
	require.NoError(t, err)

	order, err := f.checkout.PlaceOrder(ctx, 1, validDetails())
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.Equal(t, 4, f.stock(t, x.ID))
	assert.Equal(t, 1.0, f.counter(t, "shop_order_events_total", map[string]string{"outcome": "failed"}))
}

// Ten users race for an item with stock 7, each wanting 1; then ten more
// race for an item with stock 5, each wanting 2.
func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	ctx := context.Background()
	single := f.item(t, "single", 10, 7)
	pair := f.item(t, "pair", 10, 5)

	run := func(itemID int64, each int, firstUser int64) (successes, rejected int) {
		for u := int64(0); u < 10; u++ {
			require.NoError(t, f.store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
				return tx.Carts().Save(ctx, firstUser+u, itemID, each)
			}))
		}

		var wg sync.WaitGroup
		results := make(chan error, 10)
		for u := int64(0); u < 10; u++ {
			wg.Add(1)
			go func(userID int64) {
				defer wg.Done()
				_, err := f.checkout.PlaceOrder(ctx, userID, validDetails())
				results <- err
			}(firstUser + u)
		}
		wg.Wait()
		close(results)

		for err := range results {
			switch {
			case err == nil:
				successes++
			case models.IsKind(err, models.KindInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		return successes, rejected
	}

	ok, rejected := run(single.ID, 1, 100)
	assert.Equal(t, 7, ok)
	assert.Equal(t, 3, rejected)
	assert.Equal(t, 0, f.stock(t, single.ID))

	ok, rejected = run(pair.ID, 2, 200)
	assert.Equal(t, 2, ok)
	assert.Equal(t, 8, rejected)
	assert.Equal(t, 1, f.stock(t, pair.ID))
}

func TestLedger(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	ctx := context.Background()
	a := f.item(t, "A", 1, 3)
	b := f.item(t, "B", 1, 1)

	quantity, err := f.ledger.Peek(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, quantity)

	_, err = f.ledger.Peek(ctx, 999)
	assert.True(t, models.IsKind(err, models.KindItemNotFound))

	err = f.store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		return f.ledger.Debit(ctx, tx, []Movement{{ItemID: b.ID, Quantity: 2}, {ItemID: a.ID, Quantity: 1}})
	})
	var stockErr *models.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, b.ID, stockErr.ItemID)
	assert.Equal(t, 3, f.stock(t, a.ID), "debit of A must roll back with B")

	require.NoError(t, f.store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := f.ledger.Debit(ctx, tx, []Movement{{ItemID: a.ID, Quantity: 3}}); err != nil {
			return err
		}
		return f.ledger.Credit(ctx, tx, []Movement{{ItemID: a.ID, Quantity: 2}, {ItemID: b.ID, Quantity: 4}})
	}))
	assert.Equal(t, 2, f.stock(t, a.ID))
	assert.Equal(t, 5, f.stock(t, b.ID))
}

func TestSortMovements(t *testing.T) {
	in := []Movement{{ItemID: 9, Quantity: 1}, {ItemID: 2, Quantity: 5}, {ItemID: 4, Quantity: 2}}

	out := sortMovements(in)

	assert.Equal(t, []int64{2, 4, 9}, []int64{out[0].ItemID, out[1].ItemID, out[2].ItemID})
	assert.Equal(t, int64(9), in[0].ItemID, "input must not be reordered")
	assert.Equal(t, 8, totalUnits(in))
}

type staleCartUnitOfWork struct {
	store.UnitOfWork
	lines []models.CartLine
}

func (u staleCartUnitOfWork) Do(ctx context.Context, fn store.TxFunc) error {
	return u.UnitOfWork.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, staleCartTx{Tx: tx, lines: u.lines})
	})
}

type staleCartTx struct {
	store.Tx
	lines []models.CartLine
}

func (t staleCartTx) Carts() store.CartRepository {
	return staleCartRepository{CartRepository: t.Tx.Carts(), lines: t.lines}
}

// staleCartRepository hands out lines read before another checkout emptied
// the cart.
type staleCartRepository struct {
	store.CartRepository
	lines []models.CartLine
}

func (r staleCartRepository) ListForUpdate(context.Context, int64) ([]models.CartLine, error) {
	return r.lines, nil
}

func orderCount(t *testing.T, f *fixture, userID int64) int64 {
	t.Helper()
	var total int64
	require.NoError(t, f.store.View(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		_, total, err = tx.Orders().ListByUser(ctx, userID, 10, 0)
		return err
	}))
	return total
}

// A checkout working from cart lines that another checkout already turned
// into an order must not place a second order or debit stock again.
func TestPlaceOrderRejectsCartClearedByAnotherCheckout(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	ctx := context.Background()
	x := f.item(t, "X", 100, 5)

	_, err := f.cart.Add(ctx, 1, x.ID, 2)
	require.NoError(t, err)

	var snapshot []models.CartLine
	require.NoError(t, f.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		snapshot, err = tx.Carts().List(ctx, 1)
		return err
	}))
	require.Len(t, snapshot, 1)

	_, err = f.checkout.PlaceOrder(ctx, 1, validDetails())
	require.NoError(t, err)
	require.Equal(t, 3, f.stock(t, x.ID))

	late := NewCheckout(staleCartUnitOfWork{UnitOfWork: f.store, lines: snapshot},
		f.ledger, f.publisher, nil, testLogger())
	_, err = late.PlaceOrder(ctx, 1, validDetails())
	require.ErrorIs(t, err, database.ErrOptimisticLockFailed)

	assert.Equal(t, 3, f.stock(t, x.ID))
	assert.Equal(t, int64(1), orderCount(t, f, 1))
	assert.Equal(t, []events.EventType{events.EventTypeOrderPlaced}, f.publisher.types())
}

func TestConcurrentCheckoutsOfSameCart(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	ctx := context.Background()
	x := f.item(t, "X", 100, 10)

	_, err := f.cart.Add(ctx, 1, x.ID, 2)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.checkout.PlaceOrder(ctx, 1, validDetails())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	placed := 0
	for err := range results {
		switch {
		case err == nil:
			placed++
		case models.IsKind(err, models.KindEmptyCart):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, placed)
	assert.Equal(t, 8, f.stock(t, x.ID))
	assert.Equal(t, int64(1), orderCount(t, f, 1))
}
