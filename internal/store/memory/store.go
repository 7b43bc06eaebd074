// Package memory is an in-process implementation of store.UnitOfWork for
// tests and local runs. Every read-write unit of work runs alone against a
// private copy of the data, which replaces the live data only if the unit
// of work succeeds.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/safar/go-sql-shop/internal/models"
	"github.com/safar/go-sql-shop/internal/store"
)

var errReadOnly = errors.New("memory store: write in read-only transaction")

type cartEntry struct {
	quantity  int
	createdAt time.Time
	updatedAt time.Time
}

type state struct {
	items       map[int64]models.Item
	specs       map[int64][]models.Specification
	carts       map[int64]map[int64]cartEntry
	orders      map[int64]models.Order
	comparisons map[int64]models.Comparison

	nextItemID       int64
	nextOrderID      int64
	nextLineID       int64
	nextComparisonID int64
}

func newState() *state {
	return &state{
		items:       make(map[int64]models.Item),
		specs:       make(map[int64][]models.Specification),
		carts:       make(map[int64]map[int64]cartEntry),
		orders:      make(map[int64]models.Order),
		comparisons: make(map[int64]models.Comparison),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, item := range s.items {
		c.items[id] = item
	}
	for id, specs := range s.specs {
		c.specs[id] = append([]models.Specification(nil), specs...)
	}
	for userID, lines := range s.carts {
		copied := make(map[int64]cartEntry, len(lines))
		for itemID, entry := range lines {
			copied[itemID] = entry
		}
		c.carts[userID] = copied
	}
	for id, order := range s.orders {
		c.orders[id] = order
	}
	for id, cmp := range s.comparisons {
		cmp.ItemIDs = append([]int64(nil), cmp.ItemIDs...)
		c.comparisons[id] = cmp
	}
	c.nextItemID = s.nextItemID
	c.nextOrderID = s.nextOrderID
	c.nextLineID = s.nextLineID
	c.nextComparisonID = s.nextComparisonID
	return c
}

// Store is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

func New() *Store {
	return &Store{
		state: newState(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Do(ctx context.Context, fn store.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &tx{state: work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.state = work
	return nil
}

func (s *Store) View(ctx context.Context, fn store.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(ctx, &tx{state: s.state, now: s.now, readOnly: true})
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// PutItem inserts or replaces a catalog item. A zero ID gets the next free id.
func (s *Store) PutItem(item models.Item) models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if item.ID == 0 {
		s.state.nextItemID++
		item.ID = s.state.nextItemID
	} else if item.ID > s.state.nextItemID {
		s.state.nextItemID = item.ID
	}
	if existing, ok := s.state.items[item.ID]; ok {
		item.CreatedAt = existing.CreatedAt
	} else if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	s.state.items[item.ID] = item
	return item
}

// DeleteItem removes a catalog item together with its cart lines,
// specifications and comparison entries. Order lines keep their snapshot.
func (s *Store) DeleteItem(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.state.items, id)
	delete(s.state.specs, id)
	for _, lines := range s.state.carts {
		delete(lines, id)
	}
	for cid, c := range s.state.comparisons {
		if !c.Contains(id) {
			continue
		}
		kept := make([]int64, 0, len(c.ItemIDs))
		for _, itemID := range c.ItemIDs {
			if itemID != id {
				kept = append(kept, itemID)
			}
		}
		c.ItemIDs = kept
		c.Version++
		s.state.comparisons[cid] = c
	}
}

func (s *Store) PutSpecification(spec models.Specification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	specs := s.state.specs[spec.ItemID]
	for i := range specs {
		if specs[i].Name == spec.Name {
			specs[i] = spec
			return
		}
	}
	s.state.specs[spec.ItemID] = append(specs, spec)
}

// Item returns the committed state of an item.
func (s *Store) Item(id int64) (models.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.state.items[id]
	return item, ok
}

type tx struct {
	state    *state
	now      func() time.Time
	readOnly bool
}

func (t *tx) Items() store.ItemRepository             { return itemRepository{t} }
func (t *tx) Carts() store.CartRepository             { return cartRepository{t} }
func (t *tx) Orders() store.OrderRepository           { return orderRepository{t} }
func (t *tx) Comparisons() store.ComparisonRepository { return comparisonRepository{t} }

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func sortedIDs(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	_ store.UnitOfWork = (*Store)(nil)
	_ store.Tx         = (*tx)(nil)
)
