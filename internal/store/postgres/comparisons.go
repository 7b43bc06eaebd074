package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/go-sql-shop/internal/database"
	"github.com/safar/go-sql-shop/internal/models"
)

type comparisonRepository struct {
	tx *sql.Tx
}

func (r *comparisonRepository) Create(ctx context.Context, c *models.Comparison) error {
	err := r.tx.QueryRowContext(ctx,
		`INSERT INTO comparisons (user_id, name)
		 VALUES ($1, $2)
		 RETURNING id, version, created_at`,
		c.UserID, c.Name).Scan(&c.ID, &c.Version, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create comparison: %w", err)
	}
	c.ItemIDs = []int64{}
	return nil
}

func (r *comparisonRepository) Get(ctx context.Context, id int64) (*models.Comparison, error) {
	return r.get(ctx, id, false)
}

func (r *comparisonRepository) GetForUpdate(ctx context.Context, id int64) (*models.Comparison, error) {
	return r.get(ctx, id, true)
}

func (r *comparisonRepository) get(ctx context.Context, id int64, forUpdate bool) (*models.Comparison, error) {
	query := `SELECT id, user_id, name, version, created_at FROM comparisons WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	c := &models.Comparison{}
	err := r.tx.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.UserID, &c.Name, &c.Version, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &models.ComparisonNotFoundError{ComparisonID: id}
		}
		return nil, fmt.Errorf("get comparison: %w", err)
	}

	ids, err := r.itemIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	c.ItemIDs = ids

	return c, nil
}

func (r *comparisonRepository) itemIDs(ctx context.Context, comparisonID int64) ([]int64, error) {
	var ids pq.Int64Array
	err := r.tx.QueryRowContext(ctx,
		`SELECT COALESCE(array_agg(item_id ORDER BY id), '{}')
		 FROM comparison_items
		 WHERE comparison_id = $1`,
		comparisonID).Scan(&ids)
	if err != nil {
		return nil, fmt.Errorf("get comparison items: %w", err)
	}
	return append([]int64{}, ids...), nil
}

func (r *comparisonRepository) ListByUser(ctx context.Context, userID int64) ([]models.Comparison, error) {
	rows, err := r.tx.QueryContext(ctx,
		`SELECT c.id, c.user_id, c.name, c.version, c.created_at,
		        COALESCE(array_agg(ci.item_id ORDER BY ci.id) FILTER (WHERE ci.item_id IS NOT NULL), '{}')
		 FROM comparisons c
		 LEFT JOIN comparison_items ci ON ci.comparison_id = c.id
		 WHERE c.user_id = $1
		 GROUP BY c.id
		 ORDER BY c.created_at DESC, c.id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list comparisons: %w", err)
	}
	defer rows.Close()

	out := []models.Comparison{}
	for rows.Next() {
		var c models.Comparison
		var ids pq.Int64Array
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Version, &c.CreatedAt, &ids); err != nil {
			return nil, fmt.Errorf("scan comparison: %w", err)
		}
		c.ItemIDs = append([]int64{}, ids...)
		out = append(out, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return out, nil
}

func (r *comparisonRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.tx.ExecContext(ctx, `DELETE FROM comparisons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comparison: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return &models.ComparisonNotFoundError{ComparisonID: id}
	}
	return nil
}

func (r *comparisonRepository) AddItem(ctx context.Context, comparisonID, itemID int64) error {
	_, err := r.tx.ExecContext(ctx,
		`INSERT INTO comparison_items (comparison_id, item_id) VALUES ($1, $2)`,
		comparisonID, itemID)
	if err != nil {
		switch {
		case database.IsUniqueViolation(err):
			return &models.DuplicateComparisonItemError{ComparisonID: comparisonID, ItemID: itemID}
		case database.IsForeignKeyViolation(err):
			return &models.ItemNotFoundError{ItemID: itemID}
		}
		return fmt.Errorf("add comparison item: %w", err)
	}
	return r.bumpVersion(ctx, comparisonID)
}

func (r *comparisonRepository) RemoveItem(ctx context.Context, comparisonID, itemID int64) (bool, error) {
	var exists bool
	if err := r.tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM comparisons WHERE id = $1)`, comparisonID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check comparison: %w", err)
	}
	if !exists {
		return false, &models.ComparisonNotFoundError{ComparisonID: comparisonID}
	}

	result, err := r.tx.ExecContext(ctx,
		`DELETE FROM comparison_items WHERE comparison_id = $1 AND item_id = $2`,
		comparisonID, itemID)
	if err != nil {
		return false, fmt.Errorf("remove comparison item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}
	return true, r.bumpVersion(ctx, comparisonID)
}

func (r *comparisonRepository) bumpVersion(ctx context.Context, comparisonID int64) error {
	if _, err := r.tx.ExecContext(ctx,
		`UPDATE comparisons SET version = version + 1 WHERE id = $1`, comparisonID); err != nil {
		return fmt.Errorf("bump comparison version: %w", err)
	}
	return nil
}
