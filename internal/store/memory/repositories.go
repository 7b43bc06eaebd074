package memory

import (
	"context"
	"sort"

	"github.com/safar/go-sql-shop/internal/database"
	"github.com/safar/go-sql-shop/internal/models"
)

type itemRepository struct{ tx *tx }

func (r itemRepository) Get(_ context.Context, id int64) (*models.Item, error) {
	item, ok := r.tx.state.items[id]
	if !ok {
		return nil, &models.ItemNotFoundError{ItemID: id}
	}
	return &item, nil
}

func (r itemRepository) LockForUpdate(_ context.Context, ids []int64) (map[int64]models.Item, error) {
	found := make(map[int64]models.Item, len(ids))
	for _, id := range sortedIDs(ids) {
		if item, ok := r.tx.state.items[id]; ok {
			found[id] = item
		}
	}
	return found, nil
}

func (r itemRepository) AddQuantity(_ context.Context, id int64, delta int) (int, error) {
	if err := r.tx.writable(); err != nil {
		return 0, err
	}

	item, ok := r.tx.state.items[id]
	if !ok {
		return 0, &models.ItemNotFoundError{ItemID: id}
	}
	if item.Quantity+delta < 0 {
		return 0, &models.InsufficientStockError{ItemID: id, Requested: -delta, Available: item.Quantity}
	}

	item.Quantity += delta
	item.UpdatedAt = r.tx.now()
	r.tx.state.items[id] = item
	return item.Quantity, nil
}

func (r itemRepository) Specifications(_ context.Context, itemID int64) ([]models.Specification, error) {
	specs := append([]models.Specification(nil), r.tx.state.specs[itemID]...)
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs, nil
}

type cartRepository struct{ tx *tx }

func (r cartRepository) line(userID, itemID int64, entry cartEntry) (models.CartLine, bool) {
	item, ok := r.tx.state.items[itemID]
	if !ok {
		return models.CartLine{}, false
	}
	return models.CartLine{
		UserID:    userID,
		ItemID:    itemID,
		Quantity:  entry.quantity,
		Item:      item,
		CreatedAt: entry.createdAt,
		UpdatedAt: entry.updatedAt,
	}, true
}

func (r cartRepository) List(_ context.Context, userID int64) ([]models.CartLine, error) {
	entries := r.tx.state.carts[userID]

	ids := make([]int64, 0, len(entries))
	for itemID := range entries {
		ids = append(ids, itemID)
	}

	lines := make([]models.CartLine, 0, len(ids))
	for _, itemID := range sortedIDs(ids) {
		if line, ok := r.line(userID, itemID, entries[itemID]); ok {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// ListForUpdate needs no row locks: the store serializes writers.
func (r cartRepository) ListForUpdate(ctx context.Context, userID int64) ([]models.CartLine, error) {
	return r.List(ctx, userID)
}

func (r cartRepository) Get(_ context.Context, userID, itemID int64) (*models.CartLine, error) {
	entry, ok := r.tx.state.carts[userID][itemID]
	if !ok {
		return nil, &models.LineNotFoundError{UserID: userID, ItemID: itemID}
	}
	line, ok := r.line(userID, itemID, entry)
	if !ok {
		return nil, &models.LineNotFoundError{UserID: userID, ItemID: itemID}
	}
	return &line, nil
}

func (r cartRepository) Save(_ context.Context, userID, itemID int64, quantity int) error {
	if err := r.tx.writable(); err != nil {
		return err
	}
	if _, ok := r.tx.state.items[itemID]; !ok {
		return &models.ItemNotFoundError{ItemID: itemID}
	}

	lines, ok := r.tx.state.carts[userID]
	if !ok {
		lines = make(map[int64]cartEntry)
		r.tx.state.carts[userID] = lines
	}

	now := r.tx.now()
	entry, exists := lines[itemID]
	if !exists {
		entry.createdAt = now
	}
	entry.quantity = quantity
	entry.updatedAt = now
	lines[itemID] = entry
	return nil
}

func (r cartRepository) Increment(ctx context.Context, userID, itemID int64, delta int) (int, error) {
	current := 0
	if entry, ok := r.tx.state.carts[userID][itemID]; ok {
		current = entry.quantity
	}
	if err := r.Save(ctx, userID, itemID, current+delta); err != nil {
		return 0, err
	}
	return current + delta, nil
}

func (r cartRepository) Delete(_ context.Context, userID, itemID int64) error {
	if err := r.tx.writable(); err != nil {
		return err
	}
	if _, ok := r.tx.state.carts[userID][itemID]; !ok {
		return &models.LineNotFoundError{UserID: userID, ItemID: itemID}
	}
	delete(r.tx.state.carts[userID], itemID)
	return nil
}

func (r cartRepository) Clear(_ context.Context, userID int64) (int, error) {
	if err := r.tx.writable(); err != nil {
		return 0, err
	}
	removed := len(r.tx.state.carts[userID])
	delete(r.tx.state.carts, userID)
	return removed, nil
}

type orderRepository struct{ tx *tx }

func copyOrder(order models.Order) *models.Order {
	order.Lines = append([]models.OrderLine(nil), order.Lines...)
	return &order
}

func (r orderRepository) Create(_ context.Context, order *models.Order) error {
	if err := r.tx.writable(); err != nil {
		return err
	}

	s := r.tx.state
	s.nextOrderID++
	order.ID = s.nextOrderID
	for i := range order.Lines {
		s.nextLineID++
		order.Lines[i].ID = s.nextLineID
		order.Lines[i].OrderID = order.ID
	}
	s.orders[order.ID] = *copyOrder(*order)
	return nil
}

func (r orderRepository) Get(_ context.Context, id int64) (*models.Order, error) {
	order, ok := r.tx.state.orders[id]
	if !ok {
		return nil, &models.OrderNotFoundError{OrderID: id}
	}
	return copyOrder(order), nil
}

// GetForUpdate needs no extra locking: read-write units of work are serialized.
func (r orderRepository) GetForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	return r.Get(ctx, id)
}

func (r orderRepository) ListByUser(_ context.Context, userID int64, limit, offset int) ([]models.Order, int64, error) {
	var all []models.Order
	for _, order := range r.tx.state.orders {
		if order.UserID == userID {
			order.Lines = nil
			all = append(all, order)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	total := int64(len(all))
	if offset >= len(all) {
		return []models.Order{}, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (r orderRepository) UpdateStatus(_ context.Context, id int64, from, to models.OrderStatus) error {
	if err := r.tx.writable(); err != nil {
		return err
	}

	order, ok := r.tx.state.orders[id]
	if !ok {
		return &models.OrderNotFoundError{OrderID: id}
	}
	if order.Status != from {
		return database.ErrOptimisticLockFailed
	}
	order.Status = to
	order.UpdatedAt = r.tx.now()
	r.tx.state.orders[id] = order
	return nil
}

func (r orderRepository) HasPurchased(_ context.Context, userID, itemID int64) (bool, error) {
	for _, order := range r.tx.state.orders {
		if order.UserID != userID || order.Status != models.OrderStatusDelivered {
			continue
		}
		for _, line := range order.Lines {
			if line.ItemID == itemID {
				return true, nil
			}
		}
	}
	return false, nil
}

type comparisonRepository struct{ tx *tx }

func copyComparison(c models.Comparison) *models.Comparison {
	c.ItemIDs = append([]int64{}, c.ItemIDs...)
	return &c
}

func (r comparisonRepository) Create(_ context.Context, c *models.Comparison) error {
	if err := r.tx.writable(); err != nil {
		return err
	}

	s := r.tx.state
	s.nextComparisonID++
	c.ID = s.nextComparisonID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.tx.now()
	}
	if c.ItemIDs == nil {
		c.ItemIDs = []int64{}
	}
	c.Version = 1
	s.comparisons[c.ID] = *copyComparison(*c)
	return nil
}

func (r comparisonRepository) Get(_ context.Context, id int64) (*models.Comparison, error) {
	c, ok := r.tx.state.comparisons[id]
	if !ok {
		return nil, &models.ComparisonNotFoundError{ComparisonID: id}
	}
	return copyComparison(c), nil
}

func (r comparisonRepository) GetForUpdate(ctx context.Context, id int64) (*models.Comparison, error) {
	return r.Get(ctx, id)
}

func (r comparisonRepository) ListByUser(_ context.Context, userID int64) ([]models.Comparison, error) {
	out := []models.Comparison{}
	for _, c := range r.tx.state.comparisons {
		if c.UserID == userID {
			out = append(out, *copyComparison(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r comparisonRepository) Delete(_ context.Context, id int64) error {
	if err := r.tx.writable(); err != nil {
		return err
	}
	if _, ok := r.tx.state.comparisons[id]; !ok {
		return &models.ComparisonNotFoundError{ComparisonID: id}
	}
	delete(r.tx.state.comparisons, id)
	return nil
}

func (r comparisonRepository) AddItem(_ context.Context, comparisonID, itemID int64) error {
	if err := r.tx.writable(); err != nil {
		return err
	}

	c, ok := r.tx.state.comparisons[comparisonID]
	if !ok {
		return &models.ComparisonNotFoundError{ComparisonID: comparisonID}
	}
	if c.Contains(itemID) {
		return &models.DuplicateComparisonItemError{ComparisonID: comparisonID, ItemID: itemID}
	}
	c.ItemIDs = append(append([]int64(nil), c.ItemIDs...), itemID)
	c.Version++
	r.tx.state.comparisons[comparisonID] = c
	return nil
}

func (r comparisonRepository) RemoveItem(_ context.Context, comparisonID, itemID int64) (bool, error) {
	if err := r.tx.writable(); err != nil {
		return false, err
	}

	c, ok := r.tx.state.comparisons[comparisonID]
	if !ok {
		return false, &models.ComparisonNotFoundError{ComparisonID: comparisonID}
	}

	kept := make([]int64, 0, len(c.ItemIDs))
	removed := false
	for _, id := range c.ItemIDs {
		if id == itemID {
			removed = true
			continue
		}
		kept = append(kept, id)
	}
	if !removed {
		return false, nil
	}
	c.ItemIDs = kept
	c.Version++
	r.tx.state.comparisons[comparisonID] = c
	return true, nil
}
