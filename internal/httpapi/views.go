package httpapi

import "github.com/safar/go-sql-shop/internal/models"

// Response views add decimal display strings next to minor-unit amounts.

type cartLineView struct {
	models.CartLine
	TotalPrice   models.Money `json:"total_price"`
	PriceDisplay string       `json:"price_display"`
	TotalDisplay string       `json:"total_display"`
}

type cartView struct {
	UserID             int64          `json:"user_id"`
	Lines              []cartLineView `json:"lines"`
	TotalItems         int            `json:"total_items"`
	TotalAmount        models.Money   `json:"total_amount"`
	TotalAmountDisplay string         `json:"total_amount_display"`
}

func newCartView(cart *models.Cart) cartView {
	view := cartView{
		UserID:             cart.UserID,
		Lines:              make([]cartLineView, 0, len(cart.Lines)),
		TotalItems:         cart.TotalItems,
		TotalAmount:        cart.TotalAmount,
		TotalAmountDisplay: cart.TotalAmount.String(),
	}
	for _, line := range cart.Lines {
		view.Lines = append(view.Lines, newCartLineView(line))
	}
	return view
}

func newCartLineView(line models.CartLine) cartLineView {
	return cartLineView{
		CartLine:     line,
		TotalPrice:   line.Total(),
		PriceDisplay: line.Item.Price.String(),
		TotalDisplay: line.Total().String(),
	}
}

type orderLineView struct {
	models.OrderLine
	SubtotalDisplay string `json:"subtotal_display"`
}

type orderView struct {
	models.Order
	TotalAmountDisplay string          `json:"total_amount_display"`
	Lines              []orderLineView `json:"lines,omitempty"`
}

func newOrderView(order *models.Order) orderView {
	view := orderView{Order: *order, TotalAmountDisplay: order.TotalAmount.String()}
	for _, line := range order.Lines {
		view.Lines = append(view.Lines, orderLineView{OrderLine: line, SubtotalDisplay: line.Subtotal().String()})
	}
	return view
}

func newOrderPage(page models.Page[models.Order]) models.Page[orderView] {
	views := make([]orderView, 0, len(page.Items))
	for i := range page.Items {
		views = append(views, newOrderView(&page.Items[i]))
	}
	return models.Page[orderView]{
		Items:      views,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}
}
