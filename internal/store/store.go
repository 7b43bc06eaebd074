// Package store defines the persistence ports used by the shop services.
// Implementations live in store/postgres and store/memory.
package store

import (
	"context"

	"github.com/safar/go-sql-shop/internal/models"
)

// TxFunc is the body of a unit of work.
type TxFunc func(ctx context.Context, tx Tx) error

// UnitOfWork runs a set of repository calls as one atomic transaction.
// If fn returns an error, nothing it did is persisted.
type UnitOfWork interface {
	Do(ctx context.Context, fn TxFunc) error
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn TxFunc) error
	Ping(ctx context.Context) error
}

// Tx gives access to repositories bound to one transaction.
type Tx interface {
	Items() ItemRepository
	Carts() CartRepository
	Orders() OrderRepository
	Comparisons() ComparisonRepository
}

type ItemRepository interface {
	// Get returns *models.ItemNotFoundError when the item is absent.
	Get(ctx context.Context, id int64) (*models.Item, error)
	// LockForUpdate row-locks the given items in ascending id order and
	// returns the ones that exist, keyed by id.
	LockForUpdate(ctx context.Context, ids []int64) (map[int64]models.Item, error)
	// AddQuantity applies a signed delta to the stock counter and returns the
	// new quantity. It never lets the counter go below zero: that case fails
	// with *models.InsufficientStockError.
	AddQuantity(ctx context.Context, id int64, delta int) (int, error)
	Specifications(ctx context.Context, itemID int64) ([]models.Specification, error)
}

type CartRepository interface {
	// List returns the user's lines joined with item snapshots, ordered by item id.
	List(ctx context.Context, userID int64) ([]models.CartLine, error)
	// ListForUpdate is List with the user's cart rows locked until the
	// transaction ends. Lines removed by a transaction that committed while
	// waiting are not returned.
	ListForUpdate(ctx context.Context, userID int64) ([]models.CartLine, error)
	// Get returns *models.LineNotFoundError when there is no such line.
	Get(ctx context.Context, userID, itemID int64) (*models.CartLine, error)
	// Save creates or overwrites the line quantity.
	Save(ctx context.Context, userID, itemID int64, quantity int) error
	// Increment adds delta to the line quantity, creating the line when it
	// does not exist, and returns the resulting quantity. Concurrent
	// increments of the same line are serialized.
	Increment(ctx context.Context, userID, itemID int64, delta int) (int, error)
	// Delete returns *models.LineNotFoundError when there is no such line.
	Delete(ctx context.Context, userID, itemID int64) error
	// Clear removes every line of the user and reports how many were removed.
	Clear(ctx context.Context, userID int64) (int, error)
}

type OrderRepository interface {
	// Create stores the order and its lines, assigning ids.
	Create(ctx context.Context, order *models.Order) error
	// Get returns the order with lines or *models.OrderNotFoundError.
	Get(ctx context.Context, id int64) (*models.Order, error)
	// GetForUpdate is Get plus a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*models.Order, error)
	// ListByUser returns a page of orders without lines, newest first, and the total count.
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Order, int64, error)
	// UpdateStatus is a compare-and-set on status; a mismatch returns
	// database.ErrOptimisticLockFailed.
	UpdateStatus(ctx context.Context, id int64, from, to models.OrderStatus) error
	HasPurchased(ctx context.Context, userID, itemID int64) (bool, error)
}

type ComparisonRepository interface {
	Create(ctx context.Context, c *models.Comparison) error
	// Get returns *models.ComparisonNotFoundError when absent.
	Get(ctx context.Context, id int64) (*models.Comparison, error)
	GetForUpdate(ctx context.Context, id int64) (*models.Comparison, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Comparison, error)
	Delete(ctx context.Context, id int64) error
	AddItem(ctx context.Context, comparisonID, itemID int64) error
	// RemoveItem reports whether the item was part of the set.
	RemoveItem(ctx context.Context, comparisonID, itemID int64) (bool, error)
}
