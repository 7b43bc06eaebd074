package shop

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/safar/go-sql-shop/internal/config"
	"github.com/safar/go-sql-shop/internal/metrics"
	"github.com/safar/go-sql-shop/internal/models"
	"github.com/safar/go-sql-shop/internal/store"
)

// CartService manages the pre-checkout lines of each user. Prices are never
// cached on a line; every read joins the current item.
type CartService struct {
	uow     store.UnitOfWork
	policy  string
	logger  *log.Entry
	metrics *metrics.ShopMetrics
}

// NewCartService builds the service. policy is config.AddPolicyCumulative or
// config.AddPolicyDelta; anything else falls back to cumulative.
func NewCartService(uow store.UnitOfWork, policy string, m *metrics.ShopMetrics, logger *log.Entry) *CartService {
	if logger == nil {
		logger = log.WithField("component", "cart")
	}
	if policy != config.AddPolicyDelta {
		policy = config.AddPolicyCumulative
	}
	return &CartService{uow: uow, policy: policy, logger: logger, metrics: m}
}

func (s *CartService) Get(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart *models.Cart
	err := s.uow.View(ctx, func(ctx context.Context, tx store.Tx) error {
		lines, err := tx.Carts().List(ctx, userID)
		if err != nil {
			return err
		}
		cart = models.NewCart(userID, lines)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// Add puts quantity units of the item into the cart, merging with an
// existing line by summing.
func (s *CartService) Add(ctx context.Context, userID, itemID int64, quantity int) (*models.CartLine, error) {
	if quantity < 1 {
		return nil, &models.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}

	var line *models.CartLine
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		item, err := tx.Items().Get(ctx, itemID)
		if err != nil {
			return err
		}

		// The increment locks the line, so concurrent adds stack up instead of
		// overwriting each other. A rejected add rolls the increment back.
		total, err := tx.Carts().Increment(ctx, userID, itemID, quantity)
		if err != nil {
			return err
		}

		requested := quantity
		if s.policy == config.AddPolicyCumulative {
			requested = total
		}
		if requested > item.Quantity {
			return &models.InsufficientStockError{ItemID: itemID, Requested: requested, Available: item.Quantity}
		}

		line, err = tx.Carts().Get(ctx, userID, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordCartMutation("add")
	s.logger.WithFields(log.Fields{
		"user_id":  userID,
		"item_id":  itemID,
		"added":    quantity,
		"quantity": line.Quantity,
		"policy":   s.policy,
	}).Debug("cart line added")

	return line, nil
}

// UpdateQuantity overwrites the quantity of an existing line. A quantity of
// zero or less removes the line and returns a nil line.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) (*models.CartLine, error) {
	if quantity <= 0 {
		return nil, s.Remove(ctx, userID, itemID)
	}

	var line *models.CartLine
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.Carts().Get(ctx, userID, itemID)
		if err != nil {
			return err
		}
		if quantity > current.Item.Quantity {
			return &models.InsufficientStockError{ItemID: itemID, Requested: quantity, Available: current.Item.Quantity}
		}

		if err := tx.Carts().Save(ctx, userID, itemID, quantity); err != nil {
			return err
		}

		line, err = tx.Carts().Get(ctx, userID, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordCartMutation("update")
	s.logger.WithFields(log.Fields{
		"user_id":  userID,
		"item_id":  itemID,
		"quantity": quantity,
	}).Debug("cart line updated")

	return line, nil
}

func (s *CartService) Remove(ctx context.Context, userID, itemID int64) error {
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Carts().Delete(ctx, userID, itemID)
	})
	if err != nil {
		return err
	}

	s.metrics.RecordCartMutation("remove")
	s.logger.WithFields(log.Fields{"user_id": userID, "item_id": itemID}).Debug("cart line removed")
	return nil
}

// Clear empties the cart. Clearing an empty cart is not an error.
func (s *CartService) Clear(ctx context.Context, userID int64) error {
	var removed int
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		removed, err = tx.Carts().Clear(ctx, userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	s.metrics.RecordCartMutation("clear")
	s.logger.WithFields(log.Fields{"user_id": userID, "removed": removed}).Debug("cart cleared")
	return nil
}
