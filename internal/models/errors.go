package models

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure for callers and transports.
type Kind string

const (
	KindItemNotFound            Kind = "item_not_found"
	KindOrderNotFound           Kind = "order_not_found"
	KindLineNotFound            Kind = "line_not_found"
	KindComparisonNotFound      Kind = "comparison_not_found"
	KindInsufficientStock       Kind = "insufficient_stock"
	KindEmptyCart               Kind = "empty_cart"
	KindInvalidTransition       Kind = "invalid_transition"
	KindInvalidStatus           Kind = "invalid_status"
	KindComparisonLimitExceeded Kind = "comparison_limit_exceeded"
	KindDuplicateComparisonItem Kind = "duplicate_comparison_item"
	KindValidation              Kind = "validation"
	KindInternal                Kind = "internal"
)

type kinded interface {
	Kind() Kind
}

// KindOf returns the Kind of the first domain error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

type ItemNotFoundError struct {
	ItemID int64
}

func (e *ItemNotFoundError) Error() string { return fmt.Sprintf("item %d not found", e.ItemID) }
func (e *ItemNotFoundError) Kind() Kind    { return KindItemNotFound }

type OrderNotFoundError struct {
	OrderID int64
}

func (e *OrderNotFoundError) Error() string { return fmt.Sprintf("order %d not found", e.OrderID) }
func (e *OrderNotFoundError) Kind() Kind    { return KindOrderNotFound }

type LineNotFoundError struct {
	UserID int64
	ItemID int64
}

func (e *LineNotFoundError) Error() string {
	return fmt.Sprintf("item %d is not in the cart", e.ItemID)
}
func (e *LineNotFoundError) Kind() Kind { return KindLineNotFound }

type ComparisonNotFoundError struct {
	ComparisonID int64
}

func (e *ComparisonNotFoundError) Error() string {
	return fmt.Sprintf("comparison %d not found", e.ComparisonID)
}
func (e *ComparisonNotFoundError) Kind() Kind { return KindComparisonNotFound }

// InsufficientStockError carries the available quantity for display.
type InsufficientStockError struct {
	ItemID    int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d: requested %d, available %d",
		e.ItemID, e.Requested, e.Available)
}
func (e *InsufficientStockError) Kind() Kind { return KindInsufficientStock }

type EmptyCartError struct {
	UserID int64
}

func (e *EmptyCartError) Error() string { return "cart is empty" }
func (e *EmptyCartError) Kind() Kind    { return KindEmptyCart }

type InvalidTransitionError struct {
	OrderID int64
	From    OrderStatus
	To      OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %d cannot move from %s to %s", e.OrderID, e.From, e.To)
}
func (e *InvalidTransitionError) Kind() Kind { return KindInvalidTransition }

type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string { return fmt.Sprintf("unknown order status %q", e.Value) }
func (e *InvalidStatusError) Kind() Kind    { return KindInvalidStatus }

type ComparisonLimitExceededError struct {
	ComparisonID int64
	Limit        int
}

func (e *ComparisonLimitExceededError) Error() string {
	return fmt.Sprintf("comparison %d already holds the maximum of %d items", e.ComparisonID, e.Limit)
}
func (e *ComparisonLimitExceededError) Kind() Kind { return KindComparisonLimitExceeded }

type DuplicateComparisonItemError struct {
	ComparisonID int64
	ItemID       int64
}

func (e *DuplicateComparisonItemError) Error() string {
	return fmt.Sprintf("item %d is already in comparison %d", e.ItemID, e.ComparisonID)
}
func (e *DuplicateComparisonItemError) Kind() Kind { return KindDuplicateComparisonItem }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Reason) }
func (e *ValidationError) Kind() Kind    { return KindValidation }
