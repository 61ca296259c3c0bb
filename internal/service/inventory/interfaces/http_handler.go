// internal/service/inventory/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"stocknexus/internal/service/inventory/application"
	"stocknexus/internal/service/inventory/domain"
)

const serviceName = "inventory-service"

// LedgerHandler 封装了库存账本的 HTTP 处理器。
type LedgerHandler struct {
	ledger *application.ReservationLedger
}

// NewLedgerHandler 创建一个新的 HTTP 处理器实例。
func NewLedgerHandler(ledger *application.ReservationLedger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *LedgerHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/reserve", h.reserveHandler)
	mux.HandleFunc("/consume", h.consumeHandler)
	mux.HandleFunc("/release", h.releaseHandler)
	mux.HandleFunc("/adjust_stock", h.adjustStockHandler)
	mux.HandleFunc("/availability", h.availabilityHandler)
}

type reserveBody struct {
	ProductID      string `json:"productId"`
	Quantity       int    `json:"quantity"`
	OwnerReference string `json:"ownerReference"`
	OwnerType      string `json:"ownerType"`
	TTLSeconds     int64  `json:"ttlSeconds"`
	Note           string `json:"note,omitempty"`
}

func (h *LedgerHandler) reserveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := extractContext(r)
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.Reserve")
	defer span.End()

	var body reserveBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.ProductID == "" || body.Quantity <= 0 || body.TTLSeconds <= 0 {
		http.Error(w, "productId, positive quantity and positive ttlSeconds are required", http.StatusBadRequest)
		return
	}
	span.SetAttributes(
		attribute.String("product.id", body.ProductID),
		attribute.Int("reserve.quantity", body.Quantity),
	)

	resp, err := h.ledger.Reserve(ctx, &application.ReserveRequest{
		ProductID:      body.ProductID,
		Quantity:       body.Quantity,
		OwnerReference: body.OwnerReference,
		OwnerType:      parseOwnerType(body.OwnerType),
		TTL:            time.Duration(body.TTLSeconds) * time.Second,
		Note:           body.Note,
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

type reservationBody struct {
	ReservationID string `json:"reservationId"`
}

func (h *LedgerHandler) consumeHandler(w http.ResponseWriter, r *http.Request) {
	h.resolveHandler(w, r, "http.Consume", h.ledger.Consume)
}

func (h *LedgerHandler) releaseHandler(w http.ResponseWriter, r *http.Request) {
	h.resolveHandler(w, r, "http.Release", h.ledger.Release)
}

func (h *LedgerHandler) resolveHandler(w http.ResponseWriter, r *http.Request, spanName string, op func(ctx context.Context, id string) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := extractContext(r)
	ctx, span := otel.Tracer(serviceName).Start(ctx, spanName)
	defer span.End()

	var body reservationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ReservationID == "" {
		http.Error(w, "reservationId is required", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("reservation.id", body.ReservationID))

	if err := op(ctx, body.ReservationID); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type adjustBody struct {
	ProductID string `json:"productId"`
	Delta     int    `json:"delta"`
}

func (h *LedgerHandler) adjustStockHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := extractContext(r)
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.AdjustStock")
	defer span.End()

	var body adjustBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProductID == "" || body.Delta == 0 {
		http.Error(w, "productId and non-zero delta are required", http.StatusBadRequest)
		return
	}
	span.SetAttributes(
		attribute.String("product.id", body.ProductID),
		attribute.Int("adjust.delta", body.Delta),
	)

	available, err := h.ledger.AdjustStock(ctx, &application.AdjustStockRequest{
		ProductID: body.ProductID,
		Delta:     body.Delta,
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"available": available})
}

func (h *LedgerHandler) availabilityHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extractContext(r)
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.GetAvailableQuantity")
	defer span.End()

	productID := r.URL.Query().Get("productId")
	if productID == "" {
		http.Error(w, "productId is required", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("product.id", productID))

	available, err := h.ledger.GetAvailableQuantity(ctx, productID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"productId": productID,
		"available": available,
	})
}

// writeLedgerError 把账本的业务错误映射到 HTTP 状态码。
// 调用方通过状态码和 error 字段区分业务结果，不需要解析异常。
func writeLedgerError(w http.ResponseWriter, err error) {
	var insufficient *domain.InsufficientStockError
	if errors.As(err, &insufficient) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":     "insufficient_stock",
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
	case errors.Is(err, domain.ErrPolicyRejected):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "policy_rejected"})
	case errors.Is(err, domain.ErrReservationNotActive):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "reservation_not_active"})
	case errors.Is(err, domain.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product_not_found"})
	case errors.Is(err, domain.ErrReservationNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reservation_not_found"})
	case errors.Is(err, domain.ErrConcurrencyConflict):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "conflict_retry_exhausted"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func extractContext(r *http.Request) context.Context {
	propagator := otel.GetTextMapPropagator()
	return propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

func parseOwnerType(s string) domain.OwnerType {
	switch s {
	case string(domain.OwnerCart):
		return domain.OwnerCart
	case string(domain.OwnerRepairOrder):
		return domain.OwnerRepairOrder
	default:
		return domain.OwnerOther
	}
}
