// Package httpapi exposes the sale over HTTP: admission, status polling
// and activity administration.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Fyongquan/new-top-binfa/internal/coupon"
	"github.com/Fyongquan/new-top-binfa/internal/gate"
	"github.com/Fyongquan/new-top-binfa/internal/order"
	"github.com/Fyongquan/new-top-binfa/internal/seckill"
)

type Handler struct {
	svc          *seckill.Service
	coupons      coupon.Repository // nil disables window checks and admin inserts
	orders       order.Store
	defaultLimit int
	logger       zerolog.Logger
}

func NewHandler(svc *seckill.Service, coupons coupon.Repository, orders order.Store, defaultLimit int, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:          svc,
		coupons:      coupons,
		orders:       orders,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "seckill"})
}

type purchaseRequest struct {
	UserID    int64 `json:"userId"`
	VoucherID int64 `json:"voucherId"`
}

type purchaseResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	OrderID int64  `json:"orderId,omitempty"`
}

// Purchase is the hot path: one admission attempt per request.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}
	if req.UserID <= 0 || req.VoucherID <= 0 {
		writeError(w, http.StatusBadRequest, "userId and voucherId are required")
		return
	}

	if h.coupons != nil {
		c, err := h.coupons.GetByID(r.Context(), req.VoucherID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load coupon")
			return
		}
		if c == nil {
			writeError(w, http.StatusNotFound, "coupon not found")
			return
		}
		if !c.Valid(time.Now()) {
			writeError(w, http.StatusForbidden, "sale is not active")
			return
		}
	}

	res, err := h.svc.Purchase(r.Context(), req.UserID, req.VoucherID, h.defaultLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "purchase failed")
		return
	}

	writeJSON(w, http.StatusOK, purchaseResponse{
		Code:    int(res.Outcome),
		Message: res.Outcome.String(),
		OrderID: res.OrderID,
	})
}

type statusResponse struct {
	OrderID int64  `json:"orderId"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

var statusNames = map[int]string{
	gate.StatusProcessing: "processing",
	gate.StatusSuccess:    "success",
	gate.StatusFailed:     "failed",
}

// OrderStatus serves the polling endpoint. The fast marker lives in the
// gate with a TTL; once it expires we fall back to the durable store.
func (h *Handler) OrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad orderId")
		return
	}

	status, ok, err := h.svc.OrderStatus(r.Context(), orderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load status")
		return
	}
	if !ok {
		stored, err := h.orders.GetByID(r.Context(), orderID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load order")
			return
		}
		if stored == nil {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		switch stored.Status {
		case order.StatusSuccess:
			status = gate.StatusSuccess
		case order.StatusFailed:
			status = gate.StatusFailed
		default:
			status = gate.StatusProcessing
		}
	}

	writeJSON(w, http.StatusOK, statusResponse{
		OrderID: orderID,
		Status:  status,
		Message: statusNames[status],
	})
}

type initRequest struct {
	VoucherID int64     `json:"voucherId"`
	Name      string    `json:"name"`
	Stock     int       `json:"stock"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// InitActivity records the coupon and primes the gate counters.
func (h *Handler) InitActivity(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}
	if req.VoucherID <= 0 || req.Stock < 0 {
		writeError(w, http.StatusBadRequest, "voucherId and stock are required")
		return
	}

	if h.coupons != nil {
		c := &coupon.Coupon{
			ID:         req.VoucherID,
			Name:       req.Name,
			Stock:      req.Stock,
			TotalStock: req.Stock,
			StartTime:  req.StartTime,
			EndTime:    req.EndTime,
		}
		if err := h.coupons.Insert(r.Context(), c); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to store coupon")
			return
		}
	}

	if err := h.svc.InitActivity(r.Context(), req.VoucherID, req.Stock); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to init activity")
		return
	}

	h.logger.Info().
		Int64("voucherId", req.VoucherID).
		Int("stock", req.Stock).
		Msg("activity initialized")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) Stock(w http.ResponseWriter, r *http.Request) {
	voucherID, err := strconv.ParseInt(chi.URLParam(r, "voucherId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad voucherId")
		return
	}

	stock, err := h.svc.Stock(r.Context(), voucherID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stock")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"voucherId": voucherID, "stock": stock})
}

func (h *Handler) BoughtCount(w http.ResponseWriter, r *http.Request) {
	voucherID, err := strconv.ParseInt(r.URL.Query().Get("voucherId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad voucherId")
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad userId")
		return
	}

	count, err := h.svc.BoughtCount(r.Context(), voucherID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load count")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"voucherId": voucherID, "userId": userID, "count": count})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad orderId")
		return
	}

	stored, err := h.orders.GetByID(r.Context(), orderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	if stored == nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (h *Handler) ListOrdersByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad userId")
		return
	}

	orders, err := h.orders.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load orders")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
