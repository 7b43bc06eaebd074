package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// OrderDetails is the customer-supplied part of a checkout request.
type OrderDetails struct {
	ShippingAddress string  `json:"shipping_address"`
	ContactPhone    string  `json:"contact_phone"`
	Notes           *string `json:"notes,omitempty"`
}

func (d *OrderDetails) Normalize() {
	d.ShippingAddress = strings.TrimSpace(d.ShippingAddress)
	d.ContactPhone = strings.TrimSpace(d.ContactPhone)
	if d.Notes != nil {
		notes := strings.TrimSpace(*d.Notes)
		if notes == "" {
			d.Notes = nil
		} else {
			d.Notes = &notes
		}
	}
}

func (d OrderDetails) Validate() error {
	if n := utf8.RuneCountInString(d.ShippingAddress); n < 5 || n > 500 {
		return &ValidationError{Field: "shipping_address", Reason: "must be between 5 and 500 characters"}
	}
	if !phonePattern.MatchString(d.ContactPhone) {
		return &ValidationError{Field: "contact_phone", Reason: "must be an E.164 phone number"}
	}
	if d.Notes != nil && utf8.RuneCountInString(*d.Notes) > 1000 {
		return &ValidationError{Field: "notes", Reason: "must be at most 1000 characters"}
	}
	return nil
}

// NewOrder assembles a pending order and freezes its total from lines.
func NewOrder(userID int64, number string, details OrderDetails, lines []OrderLine, now time.Time) *Order {
	order := &Order{
		UserID:          userID,
		OrderNumber:     number,
		Status:          OrderStatusPending,
		ShippingAddress: details.ShippingAddress,
		ContactPhone:    details.ContactPhone,
		Notes:           details.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
		Lines:           lines,
	}
	for i := range order.Lines {
		order.Lines[i].CreatedAt = now
	}
	order.TotalAmount = order.ComputeTotal()
	return order
}

// ComputeTotal sums quantity * price_at_purchase over all lines.
func (o *Order) ComputeTotal() Money {
	var total Money
	for _, line := range o.Lines {
		total += line.Subtotal()
	}
	return total
}

// CheckInvariants verifies the frozen total and the line quantities.
func (o *Order) CheckInvariants() error {
	if len(o.Lines) == 0 {
		return fmt.Errorf("order %d has no lines", o.ID)
	}
	for _, line := range o.Lines {
		if line.Quantity < 1 {
			return fmt.Errorf("order %d line for item %d has quantity %d", o.ID, line.ItemID, line.Quantity)
		}
		if line.PriceAtPurchase < 0 {
			return fmt.Errorf("order %d line for item %d has negative price", o.ID, line.ItemID)
		}
	}
	if calc := o.ComputeTotal(); calc != o.TotalAmount {
		return fmt.Errorf("order %d total %d does not match lines sum %d", o.ID, o.TotalAmount, calc)
	}
	return nil
}
