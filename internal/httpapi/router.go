package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the shop API. gatherer backs /metrics and defaults to the
// global registry.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.logger, h.metrics))
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(RequireUser)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddCartItem)
			r.Put("/items/{itemID}", h.UpdateCartItem)
			r.Delete("/items/{itemID}", h.RemoveCartItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.PlaceOrder)
			r.Get("/", h.ListOrders)
			r.Get("/{orderID}", h.GetOrder)
			r.Post("/{orderID}/cancel", h.CancelOrder)
			r.Put("/{orderID}/status", h.AdvanceOrder)
		})

		r.Get("/purchases/{itemID}", h.HasPurchased)

		r.Route("/comparisons", func(r chi.Router) {
			r.Get("/", h.ListComparisons)
			r.Post("/", h.CreateComparison)
			r.Get("/{comparisonID}", h.BuildComparison)
			r.Delete("/{comparisonID}", h.DeleteComparison)
			r.Post("/{comparisonID}/items", h.AddComparisonItem)
			r.Delete("/{comparisonID}/items/{itemID}", h.RemoveComparisonItem)
		})
	})

	return r
}
