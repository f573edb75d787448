package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/danupranata/go-marketplace-orders/internal/checkout"
	"github.com/danupranata/go-marketplace-orders/internal/redisx"
)

type OrdersHandler struct {
	Orchestrator *checkout.Orchestrator
	Store        checkout.Store
	Redis        *redis.Client // optional status cache
	Log          *zap.Logger
}

type Selection struct {
	CartLineID int64 `json:"cart_line_id"`
	Qty        int   `json:"qty"`
}

type PlaceOrderReq struct {
	UserID        int64                 `json:"user_id"`
	Selections    []Selection           `json:"selections"`
	Shipping      checkout.ShippingInfo `json:"shipping"`
	PaymentMethod string                `json:"payment_method"`
}

type StatusUpdateReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.placeOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Post("/orders/{id}/status", h.updateStatus)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "missing user_id")
		return
	}
	selections := make(map[int64]int, len(req.Selections))
	for _, s := range req.Selections {
		selections[s.CartLineID] = s.Qty
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Orchestrator.PlaceOrder(ctx, req.UserID, selections, req.Shipping, req.PaymentMethod)
	if err != nil {
		h.placementError(w, err)
		return
	}

	h.cacheStatus(ctx, res.OrderID, checkout.StatusInitial)
	writeJSON(w, http.StatusCreated, res)
}

func (h *OrdersHandler) placementError(w http.ResponseWriter, err error) {
	var stock *checkout.InsufficientStockError
	var addr *checkout.AddressValidationError
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &addr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrCartLineNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &stock):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":        "insufficient stock",
			"product_name": stock.ProductName,
			"requested":    stock.Requested,
			"available":    stock.Available,
		})
	default:
		h.Log.Error("order placement failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "order placement failed")
	}
}

type orderResp struct {
	ID            int64      `json:"id"`
	Code          string     `json:"code"`
	UserID        int64      `json:"user_id"`
	Status        string     `json:"status"`
	TotalCents    int        `json:"total_cents"`
	PaymentMethod string     `json:"payment_method"`
	InvoiceNumber string     `json:"invoice_number"`
	SellerIDs     []int64    `json:"seller_ids"`
	Lines         []lineResp `json:"lines"`
	CreatedAt     time.Time  `json:"created_at"`
}

type lineResp struct {
	CartLineID     int64  `json:"cart_line_id"`
	ProductID      int64  `json:"product_id"`
	SellerID       int64  `json:"seller_id"`
	ProductName    string `json:"product_name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int    `json:"unit_price_cents"`
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Store.GetOrder(ctx, id)
	if errors.Is(err, checkout.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		h.Log.Error("get order failed", zap.Int64("order_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := orderResp{
		ID: o.ID, Code: o.Code, UserID: o.UserID, Status: string(o.Status),
		TotalCents: o.TotalCents, PaymentMethod: o.PaymentMethod,
		InvoiceNumber: o.InvoiceNumber, SellerIDs: o.SellerIDs, CreatedAt: o.CreatedAt,
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, lineResp{
			CartLineID: l.ID, ProductID: l.ProductID, SellerID: l.SellerID,
			ProductName: l.ProductName, Qty: l.Quantity, UnitPriceCents: l.UnitPriceCents,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, id)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	status, err := h.Store.GetOrderStatus(ctx, id)
	if errors.Is(err, checkout.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.cacheStatus(ctx, id, status)
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req StatusUpdateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	next := checkout.Status(req.Status)

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.UpdateOrderStatus(ctx, id, next); err != nil {
		h.transitionError(w, id, err)
		return
	}
	h.cacheStatus(ctx, id, next)
	writeJSON(w, http.StatusOK, map[string]any{"status": next})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.CancelOrder(ctx, id); err != nil {
		h.transitionError(w, id, err)
		return
	}
	h.cacheStatus(ctx, id, checkout.StatusCancelled)
	writeJSON(w, http.StatusOK, map[string]any{"status": checkout.StatusCancelled})
}

func (h *OrdersHandler) transitionError(w http.ResponseWriter, id int64, err error) {
	switch {
	case errors.Is(err, checkout.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, checkout.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.Log.Error("order transition failed", zap.Int64("order_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// cacheStatus is best-effort; the DB stays the source of truth.
func (h *OrdersHandler) cacheStatus(ctx context.Context, orderID int64, s checkout.Status) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]any{"status": s})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return id, true
}
