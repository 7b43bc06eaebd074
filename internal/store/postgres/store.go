// Package postgres implements the store ports on PostgreSQL through
// database/sql. Read-write units of work run at READ COMMITTED; stock rows are
// protected by SELECT ... FOR UPDATE taken in ascending id order plus
// conditional delta updates.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/safar/go-sql-shop/internal/database"
	"github.com/safar/go-sql-shop/internal/store"
)

type Store struct {
	db         *sql.DB
	maxRetries int
}

func New(db *sql.DB, maxRetries int) *Store {
	return &Store{db: db, maxRetries: maxRetries}
}

func (s *Store) Do(ctx context.Context, fn store.TxFunc) error {
	opts := database.DefaultTxOptions()
	opts.MaxRetries = s.maxRetries
	return database.WithRetry(ctx, s.db, opts, func(sqlTx *sql.Tx) error {
		return fn(ctx, &tx{tx: sqlTx})
	})
}

func (s *Store) View(ctx context.Context, fn store.TxFunc) error {
	opts := database.DefaultTxOptions()
	opts.IsolationLevel = sql.LevelRepeatableRead
	opts.ReadOnly = true
	return database.WithTransaction(ctx, s.db, opts, func(sqlTx *sql.Tx) error {
		return fn(ctx, &tx{tx: sqlTx})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

type tx struct {
	tx *sql.Tx
}

func (t *tx) Items() store.ItemRepository             { return &itemRepository{tx: t.tx} }
func (t *tx) Carts() store.CartRepository             { return &cartRepository{tx: t.tx} }
func (t *tx) Orders() store.OrderRepository           { return &orderRepository{tx: t.tx} }
func (t *tx) Comparisons() store.ComparisonRepository { return &comparisonRepository{tx: t.tx} }

type rowScanner interface {
	Scan(dest ...any) error
}

var (
	_ store.UnitOfWork = (*Store)(nil)
	_ store.Tx         = (*tx)(nil)
)
