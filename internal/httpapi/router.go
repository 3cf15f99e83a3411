package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/seckill", func(r chi.Router) {
		r.Post("/", h.Purchase)
		r.Post("/init", h.InitActivity)
		r.Get("/status/{orderId}", h.OrderStatus)
		r.Get("/stock/{voucherId}", h.Stock)
		r.Get("/bought", h.BoughtCount)
	})

	r.Get("/api/orders/{orderId}", h.GetOrder)
	r.Get("/api/users/{userId}/orders", h.ListOrdersByUser)

	return r
}
