package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-sql-shop/internal/database"
	"github.com/safar/go-sql-shop/internal/models"
)

type cartRepository struct {
	tx *sql.Tx
}

const cartLineQuery = `
	SELECT c.user_id, c.item_id, c.quantity, c.created_at, c.updated_at, ` + itemColumns + `
	FROM cart_items c
	JOIN items i ON i.id = c.item_id`

func scanCartLine(row rowScanner) (models.CartLine, error) {
	var line models.CartLine
	err := row.Scan(
		&line.UserID,
		&line.ItemID,
		&line.Quantity,
		&line.CreatedAt,
		&line.UpdatedAt,
		&line.Item.ID,
		&line.Item.SKU,
		&line.Item.Name,
		&line.Item.Price,
		&line.Item.Quantity,
		&line.Item.ImageURL,
		&line.Item.CreatedAt,
		&line.Item.UpdatedAt,
	)
	return line, err
}

func (r *cartRepository) List(ctx context.Context, userID int64) ([]models.CartLine, error) {
	return r.list(ctx, userID, false)
}

func (r *cartRepository) ListForUpdate(ctx context.Context, userID int64) ([]models.CartLine, error) {
	return r.list(ctx, userID, true)
}

func (r *cartRepository) list(ctx context.Context, userID int64, forUpdate bool) ([]models.CartLine, error) {
	query := cartLineQuery + ` WHERE c.user_id = $1 ORDER BY c.item_id`
	if forUpdate {
		query += ` FOR UPDATE OF c`
	}

	rows, err := r.tx.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	defer rows.Close()

	lines := []models.CartLine{}
	for rows.Next() {
		line, err := scanCartLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

func (r *cartRepository) Get(ctx context.Context, userID, itemID int64) (*models.CartLine, error) {
	row := r.tx.QueryRowContext(ctx, cartLineQuery+` WHERE c.user_id = $1 AND c.item_id = $2`, userID, itemID)
	line, err := scanCartLine(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &models.LineNotFoundError{UserID: userID, ItemID: itemID}
		}
		return nil, fmt.Errorf("get cart line: %w", err)
	}
	return &line, nil
}

func (r *cartRepository) Save(ctx context.Context, userID, itemID int64, quantity int) error {
	_, err := r.tx.ExecContext(ctx,
		`INSERT INTO cart_items (user_id, item_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, item_id)
		 DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()`,
		userID, itemID, quantity)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return &models.ItemNotFoundError{ItemID: itemID}
		}
		return fmt.Errorf("save cart line: %w", err)
	}
	return nil
}

func (r *cartRepository) Increment(ctx context.Context, userID, itemID int64, delta int) (int, error) {
	var quantity int
	err := r.tx.QueryRowContext(ctx,
		`INSERT INTO cart_items (user_id, item_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, item_id)
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		 RETURNING quantity`,
		userID, itemID, delta).Scan(&quantity)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return 0, &models.ItemNotFoundError{ItemID: itemID}
		}
		return 0, fmt.Errorf("increment cart line: %w", err)
	}
	return quantity, nil
}

func (r *cartRepository) Delete(ctx context.Context, userID, itemID int64) error {
	result, err := r.tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND item_id = $2`,
		userID, itemID)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return &models.LineNotFoundError{UserID: userID, ItemID: itemID}
	}
	return nil
}

func (r *cartRepository) Clear(ctx context.Context, userID int64) (int, error) {
	result, err := r.tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return int(rows), nil
}
