package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-sql-shop/internal/database"
	"github.com/safar/go-sql-shop/internal/models"
)

type orderRepository struct {
	tx *sql.Tx
}

const orderColumns = `id, user_id, order_number, status, total_amount, shipping_address, contact_phone, notes, created_at, updated_at`

func scanOrder(row rowScanner, order *models.Order) error {
	var notes sql.NullString
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Status,
		&order.TotalAmount,
		&order.ShippingAddress,
		&order.ContactPhone,
		&notes,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if notes.Valid {
		n := notes.String
		order.Notes = &n
	}
	return nil
}

func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	var notes sql.NullString
	if order.Notes != nil {
		notes = sql.NullString{String: *order.Notes, Valid: true}
	}

	err := r.tx.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, order_number, status, total_amount, shipping_address, contact_phone, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 RETURNING id`,
		order.UserID, order.OrderNumber, order.Status, order.TotalAmount,
		order.ShippingAddress, order.ContactPhone, notes, order.CreatedAt,
	).Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	for i := range order.Lines {
		line := &order.Lines[i]
		line.OrderID = order.ID

		err := r.tx.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, item_id, item_name, quantity, price_at_purchase, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			order.ID, line.ItemID, line.ItemName, line.Quantity, line.PriceAtPurchase, line.CreatedAt,
		).Scan(&line.ID)
		if err != nil {
			return fmt.Errorf("create order item: %w", err)
		}
	}

	return nil
}

func (r *orderRepository) Get(ctx context.Context, id int64) (*models.Order, error) {
	return r.get(ctx, id, false)
}

func (r *orderRepository) GetForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	return r.get(ctx, id, true)
}

func (r *orderRepository) get(ctx context.Context, id int64, forUpdate bool) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	order := &models.Order{}
	if err := scanOrder(r.tx.QueryRowContext(ctx, query, id), order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &models.OrderNotFoundError{OrderID: id}
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	lines, err := r.lines(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Lines = lines

	return order, nil
}

func (r *orderRepository) lines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	rows, err := r.tx.QueryContext(ctx,
		`SELECT id, order_id, item_id, item_name, quantity, price_at_purchase, created_at
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var lines []models.OrderLine
	for rows.Next() {
		var line models.OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ItemID, &line.ItemName,
			&line.Quantity, &line.PriceAtPurchase, &line.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Order, int64, error) {
	var total int64
	if err := r.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := r.tx.QueryContext(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return orders, total, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, from, to models.OrderStatus) error {
	result, err := r.tx.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 1 {
		return nil
	}

	var exists bool
	if err := r.tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return &models.OrderNotFoundError{OrderID: id}
	}
	return database.ErrOptimisticLockFailed
}

func (r *orderRepository) HasPurchased(ctx context.Context, userID, itemID int64) (bool, error) {
	var purchased bool
	err := r.tx.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1
			FROM orders o
			JOIN order_items oi ON oi.order_id = o.id
			WHERE o.user_id = $1 AND oi.item_id = $2 AND o.status = $3
		)`,
		userID, itemID, models.OrderStatusDelivered).Scan(&purchased)
	if err != nil {
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return purchased, nil
}
