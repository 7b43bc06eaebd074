// Package httpapi exposes the shop services over JSON/HTTP.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/safar/go-sql-shop/internal/metrics"
	"github.com/safar/go-sql-shop/internal/models"
	"github.com/safar/go-sql-shop/internal/shop"
	"github.com/safar/go-sql-shop/internal/store"
)

// Services groups the dependencies of the HTTP handlers.
type Services struct {
	Store       store.UnitOfWork
	Cart        *shop.CartService
	Checkout    *shop.Checkout
	Orders      *shop.Lifecycle
	Comparisons *shop.Comparisons
}

type Handler struct {
	svc     Services
	logger  *log.Entry
	metrics *metrics.ShopMetrics
}

func NewHandler(svc Services, m *metrics.ShopMetrics, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	return &Handler{svc: svc, logger: logger, metrics: m}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Store.Ping(r.Context()); err != nil {
		h.logger.WithError(err).Warn("health check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.svc.Cart.Get(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartView(cart))
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID   int64 `json:"item_id"`
		Quantity int   `json:"quantity"`
	}
	if !decode(w, r, &req) {
		return
	}

	line, err := h.svc.Cart.Add(r.Context(), userIDFrom(r.Context()), req.ItemID, req.Quantity)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, newCartLineView(*line))
}

func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if !decode(w, r, &req) {
		return
	}

	line, err := h.svc.Cart.UpdateQuantity(r.Context(), userIDFrom(r.Context()), itemID, req.Quantity)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	if line == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, newCartLineView(*line))
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	if err := h.svc.Cart.Remove(r.Context(), userIDFrom(r.Context()), itemID); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cart.Clear(r.Context(), userIDFrom(r.Context())); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var details models.OrderDetails
	if !decode(w, r, &details) {
		return
	}

	order, err := h.svc.Checkout.PlaceOrder(r.Context(), userIDFrom(r.Context()), details)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, newOrderView(order))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	result, err := h.svc.Orders.List(r.Context(), userIDFrom(r.Context()), page, perPage)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, newOrderPage(result))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	order, err := h.svc.Orders.Get(r.Context(), userIDFrom(r.Context()), orderID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, newOrderView(order))
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	order, err := h.svc.Orders.Cancel(r.Context(), userIDFrom(r.Context()), orderID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, newOrderView(order))
}

// AdvanceOrder is the operator surface for moving an order along its
// lifecycle. It does not check ownership.
func (h *Handler) AdvanceOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}

	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	order, err := h.svc.Orders.Advance(r.Context(), orderID, status)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, newOrderView(order))
}

func (h *Handler) HasPurchased(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}

	purchased, err := h.svc.Orders.HasPurchased(r.Context(), userIDFrom(r.Context()), itemID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"item_id": itemID, "purchased": purchased})
}

func (h *Handler) ListComparisons(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Comparisons.List(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []models.Comparison{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) CreateComparison(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}

	c, err := h.svc.Comparisons.Create(r.Context(), userIDFrom(r.Context()), req.Name)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *Handler) BuildComparison(w http.ResponseWriter, r *http.Request) {
	comparisonID, ok := pathID(w, r, "comparisonID")
	if !ok {
		return
	}

	matrix, err := h.svc.Comparisons.Build(r.Context(), userIDFrom(r.Context()), comparisonID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, matrix)
}

func (h *Handler) DeleteComparison(w http.ResponseWriter, r *http.Request) {
	comparisonID, ok := pathID(w, r, "comparisonID")
	if !ok {
		return
	}

	if err := h.svc.Comparisons.Delete(r.Context(), userIDFrom(r.Context()), comparisonID); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddComparisonItem(w http.ResponseWriter, r *http.Request) {
	comparisonID, ok := pathID(w, r, "comparisonID")
	if !ok {
		return
	}
	var req struct {
		ItemID int64 `json:"item_id"`
	}
	if !decode(w, r, &req) {
		return
	}

	c, err := h.svc.Comparisons.AddItem(r.Context(), userIDFrom(r.Context()), comparisonID, req.ItemID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) RemoveComparisonItem(w http.ResponseWriter, r *http.Request) {
	comparisonID, ok := pathID(w, r, "comparisonID")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}

	if err := h.svc.Comparisons.RemoveItem(r.Context(), userIDFrom(r.Context()), comparisonID, itemID); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		respondError(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}
