package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units.
type Money int64

// Decimal converts minor units into a major-unit decimal for display.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Times multiplies a unit price by a quantity.
func (m Money) Times(quantity int) Money {
	return m * Money(quantity)
}

type Item struct {
	ID        int64     `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Price     Money     `json:"price"`
	Quantity  int       `json:"quantity"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Specification is one attribute of an item, e.g. RAM = 16 (GB).
type Specification struct {
	ItemID int64   `json:"item_id"`
	Name   string  `json:"name"`
	Value  string  `json:"value"`
	Unit   *string `json:"unit"`
}

// CartLine is one (item, quantity) pair in a user's cart. Item is the
// snapshot joined at read time; price is never stored on the line.
type CartLine struct {
	UserID    int64     `json:"user_id"`
	ItemID    int64     `json:"item_id"`
	Quantity  int       `json:"quantity"`
	Item      Item      `json:"item"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Total is the line value at the item's current price.
func (l CartLine) Total() Money {
	return l.Item.Price.Times(l.Quantity)
}

type Cart struct {
	UserID      int64      `json:"user_id"`
	Lines       []CartLine `json:"lines"`
	TotalItems  int        `json:"total_items"`
	TotalAmount Money      `json:"total_amount"`
}

// NewCart builds a cart view and its totals from lines.
func NewCart(userID int64, lines []CartLine) *Cart {
	cart := &Cart{UserID: userID, Lines: lines}
	if cart.Lines == nil {
		cart.Lines = []CartLine{}
	}
	for _, line := range lines {
		cart.TotalItems += line.Quantity
		cart.TotalAmount += line.Total()
	}
	return cart
}

type Order struct {
	ID              int64       `json:"id"`
	UserID          int64       `json:"user_id"`
	OrderNumber     string      `json:"order_number"`
	Status          OrderStatus `json:"status"`
	TotalAmount     Money       `json:"total_amount"`
	ShippingAddress string      `json:"shipping_address"`
	ContactPhone    string      `json:"contact_phone"`
	Notes           *string     `json:"notes,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Lines           []OrderLine `json:"lines,omitempty"`
}

// OrderLine is an immutable, price-frozen copy of one purchased item.
// ItemID is a weak reference: the item may later change or disappear.
type OrderLine struct {
	ID              int64     `json:"id"`
	OrderID         int64     `json:"order_id"`
	ItemID          int64     `json:"item_id"`
	ItemName        string    `json:"item_name"`
	Quantity        int       `json:"quantity"`
	PriceAtPurchase Money     `json:"price_at_purchase"`
	CreatedAt       time.Time `json:"created_at"`
}

func (l OrderLine) Subtotal() Money {
	return l.PriceAtPurchase.Times(l.Quantity)
}

// Comparison is a user's named set of items. Version grows with every change
// to the item set and keys cached matrices.
type Comparison struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	ItemIDs   []int64   `json:"item_ids"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// Contains reports whether itemID is already part of the set.
func (c *Comparison) Contains(itemID int64) bool {
	for _, id := range c.ItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// Page is one offset page of results.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func NewPage[T any](items []T, total int64, page, pageSize int) Page[T] {
	if items == nil {
		items = []T{}
	}

	totalPages := 0
	if pageSize > 0 {
		totalPages = int(total) / pageSize
		if int(total)%pageSize > 0 {
			totalPages++
		}
	}

	return Page[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
