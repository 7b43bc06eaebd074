// Package shop holds the cart, checkout, order lifecycle and comparison
// services. Every service method runs as one store unit of work.
package shop

import (
	"context"
	"sort"

	"github.com/safar/go-sql-shop/internal/store"
)

// Movement is a stock change for one item. Quantity is always positive; the
// direction comes from the ledger call.
type Movement struct {
	ItemID   int64
	Quantity int
}

// Ledger is the only writer of stock quantities. All changes are signed
// deltas applied by the store as conditional updates.
type Ledger struct {
	uow store.UnitOfWork
}

func NewLedger(uow store.UnitOfWork) *Ledger {
	return &Ledger{uow: uow}
}

// Peek reads the committed quantity. The value is advisory: it may be stale
// by the time the caller acts on it.
func (l *Ledger) Peek(ctx context.Context, itemID int64) (int, error) {
	var quantity int
	err := l.uow.View(ctx, func(ctx context.Context, tx store.Tx) error {
		item, err := tx.Items().Get(ctx, itemID)
		if err != nil {
			return err
		}
		quantity = item.Quantity
		return nil
	})
	return quantity, err
}

// ApplyDelta changes the quantity of one item inside tx and returns the new
// quantity.
func (l *Ledger) ApplyDelta(ctx context.Context, tx store.Tx, itemID int64, delta int) (int, error) {
	return tx.Items().AddQuantity(ctx, itemID, delta)
}

// Debit takes every movement out of stock in ascending item id order.
func (l *Ledger) Debit(ctx context.Context, tx store.Tx, movements []Movement) error {
	return l.applyAll(ctx, tx, movements, -1)
}

// Credit returns every movement to stock in ascending item id order.
func (l *Ledger) Credit(ctx context.Context, tx store.Tx, movements []Movement) error {
	return l.applyAll(ctx, tx, movements, 1)
}

func (l *Ledger) applyAll(ctx context.Context, tx store.Tx, movements []Movement, sign int) error {
	for _, m := range sortMovements(movements) {
		if _, err := l.ApplyDelta(ctx, tx, m.ItemID, sign*m.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func sortMovements(movements []Movement) []Movement {
	sorted := append([]Movement(nil), movements...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ItemID < sorted[j].ItemID })
	return sorted
}

func totalUnits(movements []Movement) int {
	units := 0
	for _, m := range movements {
		units += m.Quantity
	}
	return units
}
