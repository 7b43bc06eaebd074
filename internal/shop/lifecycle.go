package shop

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/safar/go-sql-shop/internal/events"
	"github.com/safar/go-sql-shop/internal/metrics"
	"github.com/safar/go-sql-shop/internal/models"
	"github.com/safar/go-sql-shop/internal/store"
)

// Lifecycle moves orders through their status graph. Every transition into
// cancelled returns the order's lines to stock in the same unit of work.
type Lifecycle struct {
	uow         store.UnitOfWork
	ledger      *Ledger
	publisher   events.Publisher
	logger      *log.Entry
	metrics     *metrics.ShopMetrics
	pageSize    int
	maxPageSize int
}

func NewLifecycle(uow store.UnitOfWork, ledger *Ledger, publisher events.Publisher, pageSize, maxPageSize int, m *metrics.ShopMetrics, logger *log.Entry) *Lifecycle {
	if logger == nil {
		logger = log.WithField("component", "order-lifecycle")
	}
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}
	if maxPageSize < 1 {
		maxPageSize = 100
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return &Lifecycle{
		uow:         uow,
		ledger:      ledger,
		publisher:   publisher,
		logger:      logger,
		metrics:     m,
		pageSize:    pageSize,
		maxPageSize: maxPageSize,
	}
}

// Get returns the order with its lines. Orders of other users are reported
// as not found.
func (l *Lifecycle) Get(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	var order *models.Order
	err := l.uow.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		order, err = tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return &models.OrderNotFoundError{OrderID: orderID}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// List returns one page of the user's orders, newest first, without lines.
// page starts at 1; out of range values are clamped.
func (l *Lifecycle) List(ctx context.Context, userID int64, page, perPage int) (models.Page[models.Order], error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = l.pageSize
	}
	if perPage > l.maxPageSize {
		perPage = l.maxPageSize
	}

	var orders []models.Order
	var total int64
	err := l.uow.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		orders, total, err = tx.Orders().ListByUser(ctx, userID, perPage, (page-1)*perPage)
		return err
	})
	if err != nil {
		return models.Page[models.Order]{}, err
	}
	return models.NewPage(orders, total, page, perPage), nil
}

// Advance moves an order to status to. It does not check ownership.
func (l *Lifecycle) Advance(ctx context.Context, orderID int64, to models.OrderStatus) (*models.Order, error) {
	if !to.Valid() {
		return nil, &models.InvalidStatusError{Value: string(to)}
	}
	return l.transition(ctx, 0, orderID, to)
}

// Cancel cancels a pending or processing order of the user and restores
// its stock.
func (l *Lifecycle) Cancel(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	return l.transition(ctx, userID, orderID, models.OrderStatusCancelled)
}

// transition checks ownership when userID is non-zero.
func (l *Lifecycle) transition(ctx context.Context, userID, orderID int64, to models.OrderStatus) (*models.Order, error) {
	var order *models.Order
	var from models.OrderStatus
	var restored int

	err := l.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		order, err = tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if userID != 0 && order.UserID != userID {
			return &models.OrderNotFoundError{OrderID: orderID}
		}

		from = order.Status
		if !from.CanTransitionTo(to) {
			return &models.InvalidTransitionError{OrderID: orderID, From: from, To: to}
		}

		restored = 0
		if to == models.OrderStatusCancelled {
			movements := make([]Movement, 0, len(order.Lines))
			for _, line := range order.Lines {
				movements = append(movements, Movement{ItemID: line.ItemID, Quantity: line.Quantity})
			}
			if err := l.ledger.Credit(ctx, tx, movements); err != nil {
				return err
			}
			restored = totalUnits(movements)
		}

		if err := tx.Orders().UpdateStatus(ctx, orderID, from, to); err != nil {
			return err
		}
		order.Status = to
		return nil
	})
	if err != nil {
		l.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"to":       to,
		}).Info("order transition rejected")
		return nil, err
	}

	l.metrics.RecordStatusTransition(from.String(), to.String())
	eventType := events.EventTypeOrderStatusChanged
	if to == models.OrderStatusCancelled {
		eventType = events.EventTypeOrderCancelled
		l.metrics.RecordOrderCancelled()
		l.metrics.RecordStockCredit(restored)
	}

	l.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"from":         from,
		"to":           to,
		"restored":     restored,
	}).Info("order status changed")

	publish(ctx, l.publisher, l.metrics, l.logger, events.NewOrderEvent(eventType, order, from))

	return order, nil
}

// HasPurchased reports whether the user has a delivered order containing
// the item.
func (l *Lifecycle) HasPurchased(ctx context.Context, userID, itemID int64) (bool, error) {
	var purchased bool
	err := l.uow.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		purchased, err = tx.Orders().HasPurchased(ctx, userID, itemID)
		return err
	})
	return purchased, err
}
