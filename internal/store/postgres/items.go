package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/lib/pq"
	"github.com/safar/go-sql-shop/internal/database"
	"github.com/safar/go-sql-shop/internal/models"
)

const itemColumns = `i.id, i.sku, i.name, i.price, i.quantity, COALESCE(i.image_url, ''), i.created_at, i.updated_at`

func scanItem(row rowScanner, item *models.Item) error {
	return row.Scan(
		&item.ID,
		&item.SKU,
		&item.Name,
		&item.Price,
		&item.Quantity,
		&item.ImageURL,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
}

type itemRepository struct {
	tx *sql.Tx
}

func (r *itemRepository) Get(ctx context.Context, id int64) (*models.Item, error) {
	item := &models.Item{}

	query := `SELECT ` + itemColumns + ` FROM items i WHERE i.id = $1`

	err := scanItem(r.tx.QueryRowContext(ctx, query, id), item)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &models.ItemNotFoundError{ItemID: id}
		}
		return nil, fmt.Errorf("get item: %w", err)
	}

	return item, nil
}

func (r *itemRepository) LockForUpdate(ctx context.Context, ids []int64) (map[int64]models.Item, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	query := `
		SELECT ` + itemColumns + `
		FROM items i
		WHERE i.id = ANY($1)
		ORDER BY i.id
		FOR UPDATE`

	rows, err := r.tx.QueryContext(ctx, query, pq.Array(sorted))
	if err != nil {
		return nil, fmt.Errorf("lock items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64]models.Item, len(sorted))
	for rows.Next() {
		var item models.Item
		if err := scanItem(rows, &item); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items[item.ID] = item
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func (r *itemRepository) AddQuantity(ctx context.Context, id int64, delta int) (int, error) {
	var quantity int
	err := r.tx.QueryRowContext(ctx,
		`UPDATE items
		 SET quantity = quantity + $1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND quantity + $1 >= 0
		 RETURNING quantity`,
		delta, id).Scan(&quantity)
	if err == nil {
		return quantity, nil
	}
	if !errors.Is(err, sql.ErrNoRows) && !database.IsCheckViolation(err) {
		return 0, fmt.Errorf("apply stock delta: %w", err)
	}

	var available int
	err = r.tx.QueryRowContext(ctx, `SELECT quantity FROM items WHERE id = $1`, id).Scan(&available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, &models.ItemNotFoundError{ItemID: id}
		}
		return 0, fmt.Errorf("read stock: %w", err)
	}

	return 0, &models.InsufficientStockError{ItemID: id, Requested: -delta, Available: available}
}

func (r *itemRepository) Specifications(ctx context.Context, itemID int64) ([]models.Specification, error) {
	rows, err := r.tx.QueryContext(ctx,
		`SELECT st.name, s.value, st.unit
		 FROM specifications s
		 JOIN specification_types st ON st.id = s.specification_type_id
		 WHERE s.item_id = $1
		 ORDER BY st.name`,
		itemID)
	if err != nil {
		return nil, fmt.Errorf("get specifications: %w", err)
	}
	defer rows.Close()

	var specs []models.Specification
	for rows.Next() {
		spec := models.Specification{ItemID: itemID}
		var unit sql.NullString
		if err := rows.Scan(&spec.Name, &spec.Value, &unit); err != nil {
			return nil, fmt.Errorf("scan specification: %w", err)
		}
		if unit.Valid {
			u := unit.String
			spec.Unit = &u
		}
		specs = append(specs, spec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return specs, nil
}
