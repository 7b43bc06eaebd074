package shop

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/safar/go-sql-shop/internal/database"
	"github.com/safar/go-sql-shop/internal/events"
	"github.com/safar/go-sql-shop/internal/metrics"
	"github.com/safar/go-sql-shop/internal/models"
	"github.com/safar/go-sql-shop/internal/store"
)

// Checkout turns a cart into an order. The cart read, stock debit, order
// insert and cart clear commit together or not at all.
type Checkout struct {
	uow       store.UnitOfWork
	ledger    *Ledger
	publisher events.Publisher
	logger    *log.Entry
	metrics   *metrics.ShopMetrics

	now         func() time.Time
	orderNumber func() string
}

func NewCheckout(uow store.UnitOfWork, ledger *Ledger, publisher events.Publisher, m *metrics.ShopMetrics, logger *log.Entry) *Checkout {
	if logger == nil {
		logger = log.WithField("component", "checkout")
	}
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}
	return &Checkout{
		uow:         uow,
		ledger:      ledger,
		publisher:   publisher,
		logger:      logger,
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC() },
		orderNumber: generateOrderNumber,
	}
}

func generateOrderNumber() string {
	return "ORD-" + uuid.NewString()
}

// PlaceOrder creates a pending order from the user's cart with prices read
// at checkout time, debits stock and empties the cart.
func (c *Checkout) PlaceOrder(ctx context.Context, userID int64, details models.OrderDetails) (*models.Order, error) {
	details.Normalize()
	if err := details.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	var order *models.Order
	var movements []Movement

	err := c.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		// Cart rows are locked before item rows so a second checkout of the
		// same cart waits here and then finds it empty. Lines come back
		// ordered by item id, which is also the item lock order.
		cartLines, err := tx.Carts().ListForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if len(cartLines) == 0 {
			return &models.EmptyCartError{UserID: userID}
		}

		ids := make([]int64, len(cartLines))
		for i, line := range cartLines {
			ids[i] = line.ItemID
		}

		items, err := tx.Items().LockForUpdate(ctx, ids)
		if err != nil {
			return err
		}

		orderLines := make([]models.OrderLine, 0, len(cartLines))
		movements = make([]Movement, 0, len(cartLines))
		for _, line := range cartLines {
			item, ok := items[line.ItemID]
			if !ok {
				return &models.ItemNotFoundError{ItemID: line.ItemID}
			}
			if item.Quantity < line.Quantity {
				return &models.InsufficientStockError{
					ItemID:    item.ID,
					Requested: line.Quantity,
					Available: item.Quantity,
				}
			}

			orderLines = append(orderLines, models.OrderLine{
				ItemID:          item.ID,
				ItemName:        item.Name,
				Quantity:        line.Quantity,
				PriceAtPurchase: item.Price,
			})
			movements = append(movements, Movement{ItemID: item.ID, Quantity: line.Quantity})
		}

		order = models.NewOrder(userID, c.orderNumber(), details, orderLines, c.now())
		if err := order.CheckInvariants(); err != nil {
			return fmt.Errorf("build order: %w", err)
		}

		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}

		if err := c.ledger.Debit(ctx, tx, movements); err != nil {
			return err
		}

		removed, err := tx.Carts().Clear(ctx, userID)
		if err != nil {
			return err
		}
		if removed != len(cartLines) {
			return fmt.Errorf("%w: cart of user %d changed during checkout (%d lines read, %d removed)",
				database.ErrOptimisticLockFailed, userID, len(cartLines), removed)
		}
		return nil
	})
	if err != nil {
		c.metrics.RecordCheckoutFailure(string(models.KindOf(err)), time.Since(start))
		entry := c.logger.WithError(err).WithField("user_id", userID)
		if models.KindOf(err) == models.KindInternal {
			entry.Error("checkout failed")
		} else {
			entry.Info("checkout rejected")
		}
		return nil, err
	}

	c.metrics.RecordOrderPlaced(time.Since(start))
	c.metrics.RecordStockDebit(totalUnits(movements))
	c.logger.WithFields(log.Fields{
		"user_id":      userID,
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total_amount": order.TotalAmount.String(),
		"lines":        len(order.Lines),
	}).Info("order placed")

	publish(ctx, c.publisher, c.metrics, c.logger, events.NewOrderEvent(events.EventTypeOrderPlaced, order, ""))

	return order, nil
}

// publish hands an event to the publisher after commit. Failures are logged
// and counted only.
func publish(ctx context.Context, p events.Publisher, m *metrics.ShopMetrics, logger *log.Entry, event *events.OrderEvent) {
	err := p.Publish(ctx, event)
	m.RecordEvent(string(event.EventType), err)
	if err != nil {
		logger.WithError(err).WithFields(log.Fields{
			"event_type": event.EventType,
			"order_id":   event.OrderID,
		}).Warn("order event not published")
	}
}
