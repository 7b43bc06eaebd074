package shop

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/go-sql-shop/internal/config"
	"github.com/safar/go-sql-shop/internal/models"
)

func TestCartAddMergesLines(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	ctx := context.Background()
	x := f.item(t, "X", 100, 10)

	_, err := f.cart.Add(ctx, 1, x.ID, 2)
	require.NoError(t, err)
	line, err := f.cart.Add(ctx, 1, x.ID, 3)
	require.NoError(t, err)

	assert.Equal(t, 5, line.Quantity)
	assert.Equal(t, map[int64]int{x.ID: 5}, f.cartQuantities(t, 1))
}

func TestCartAddValidation(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	ctx := context.Background()
	x := f.item(t, "X", 100, 2)

	_, err := f.cart.Add(ctx, 1, x.ID, 0)
	assert.True(t, models.IsKind(err, models.KindValidation))

	_, err = f.cart.Add(ctx, 1, 999, 1)
	assert.True(t, models.IsKind(err, models.KindItemNotFound))

	_, err = f.cart.Add(ctx, 1, x.ID, 3)
	var stockErr *models.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Available)
	assert.Empty(t, f.cartQuantities(t, 1))
}

// Adding 3 of an item with stock 5 twice.
func TestCartAddPolicies(t *testing.T) {
	t.Run("cumulative rejects the second add", func(t *testing.T) {
		f := newFixture(t, config.AddPolicyCumulative)
		ctx := context.Background()
		x := f.item(t, "X", 100, 5)

		_, err := f.cart.Add(ctx, 1, x.ID, 3)
		require.NoError(t, err)

		_, err = f.cart.Add(ctx, 1, x.ID, 3)
		var stockErr *models.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, x.ID, stockErr.ItemID)
		assert.Equal(t, 6, stockErr.Requested)
		assert.Equal(t, 5, stockErr.Available)
		assert.Equal(t, map[int64]int{x.ID: 3}, f.cartQuantities(t, 1))
	})

	t.Run("delta accepts the second add and checkout rejects", func(t *testing.T) {
		f := newFixture(t, config.AddPolicyDelta)
		ctx := context.Background()
		x := f.item(t, "X", 100, 5)

		_, err := f.cart.Add(ctx, 1, x.ID, 3)
		require.NoError(t, err)
		line, err := f.cart.Add(ctx, 1, x.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, 6, line.Quantity)

		_, err = f.checkout.PlaceOrder(ctx, 1, validDetails())
		var stockErr *models.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, 6, stockErr.Requested)
		assert.Equal(t, 5, stockErr.Available)
		assert.Equal(t, 5, f.stock(t, x.ID))
	})

	t.Run("delta still rejects a single oversized add", func(t *testing.T) {
		f := newFixture(t, config.AddPolicyDelta)
		x := f.item(t, "X", 100, 5)

		_, err := f.cart.Add(context.Background(), 1, x.ID, 6)
		assert.True(t, models.IsKind(err, models.KindInsufficientStock))
	})
}

func TestCartUpdateQuantity(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	ctx := context.Background()
	x := f.item(t, "X", 100, 4)

	_, err := f.cart.UpdateQuantity(ctx, 1, x.ID, 2)
	assert.True(t, models.IsKind(err, models.KindLineNotFound))

	_, err = f.cart.Add(ctx, 1, x.ID, 1)
	require.NoError(t, err)

	line, err := f.cart.UpdateQuantity(ctx, 1, x.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, line.Quantity)

	_, err = f.cart.UpdateQuantity(ctx, 1, x.ID, 5)
	assert.True(t, models.IsKind(err, models.KindInsufficientStock))

	line, err = f.cart.UpdateQuantity(ctx, 1, x.ID, 0)
	require.NoError(t, err)
	assert.Nil(t, line)
	assert.Empty(t, f.cartQuantities(t, 1))

	_, err = f.cart.UpdateQuantity(ctx, 1, x.ID, -1)
	assert.True(t, models.IsKind(err, models.KindLineNotFound))
}

func TestCartRemoveAndClear(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	ctx := context.Background()
	x := f.item(t, "X", 100, 4)
	y := f.item(t, "Y", 250, 4)

	err := f.cart.Remove(ctx, 1, x.ID)
	var lineErr *models.LineNotFoundError
	require.True(t, errors.As(err, &lineErr))

	_, err = f.cart.Add(ctx, 1, x.ID, 1)
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, 1, y.ID, 2)
	require.NoError(t, err)

	require.NoError(t, f.cart.Remove(ctx, 1, x.ID))
	assert.Equal(t, map[int64]int{y.ID: 2}, f.cartQuantities(t, 1))

	require.NoError(t, f.cart.Clear(ctx, 1))
	first := f.cartQuantities(t, 1)
	require.NoError(t, f.cart.Clear(ctx, 1))
	second := f.cartQuantities(t, 1)

	assert.Empty(t, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 2.0, f.counter(t, "shop_cart_mutations_total", map[string]string{"op": "clear"}))
}

func TestCartGetTotalsUseCurrentPrice(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	ctx := context.Background()
	x := f.item(t, "X", 100, 10)
	y := f.item(t, "Y", 250, 10)

	_, err := f.cart.Add(ctx, 1, y.ID, 1)
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, 1, x.ID, 3)
	require.NoError(t, err)

	x.Price = 120
	f.store.PutItem(x)

	cart, err := f.cart.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 2)
	assert.Equal(t, x.ID, cart.Lines[0].ItemID)
	assert.Equal(t, models.Money(360), cart.Lines[0].Total())
	assert.Equal(t, 4, cart.TotalItems)
	assert.Equal(t, models.Money(610), cart.TotalAmount)
}

func TestCartConcurrentAddsAccumulate(t *testing.T) {
	f := newFixture(t, defaultPolicy)
	ctx := context.Background()
	x := f.item(t, "X", 100, 20)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.cart.Add(ctx, 1, x.ID, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, map[int64]int{x.ID: 10}, f.cartQuantities(t, 1))
}
