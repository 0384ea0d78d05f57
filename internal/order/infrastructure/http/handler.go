package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Exponent1/devops-order-system/internal/order/application"
	"github.com/Exponent1/devops-order-system/internal/order/domain"
)

type Handler struct {
	log         *slog.Logger
	coordinator *application.Coordinator
	tracer      trace.Tracer
}

func NewHandler(log *slog.Logger, coordinator *application.Coordinator) *Handler {
	return &Handler{
		log:         log,
		coordinator: coordinator,
		tracer:      otel.Tracer("order-http"),
	}
}

type createOrderReq struct {
	Item     string `json:"item"`
	Quantity int64  `json:"quantity"`
}

type orderResp struct {
	OrderID   string    `json:"order_id"`
	Item      string    `json:"item"`
	Quantity  int64     `json:"quantity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)

	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	o, err := h.coordinator.CreateOrder(ctx, req.Item, req.Quantity)
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, domain.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient stock")
		return
	case errors.Is(err, domain.ErrCompensationFailed):
		writeError(w, http.StatusBadGateway, "order failed; stock reconciliation pending")
		return
	case errors.Is(err, domain.ErrAmbiguousOutcome):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "reservation outcome unknown, retry later")
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"order_id": o.ID})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	id := chi.URLParam(r, "id")
	o, err := h.coordinator.GetOrder(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		h.log.Error("get order failed", "order_id", id, "err", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(orderResp{
		OrderID:   o.ID,
		Item:      o.Item,
		Quantity:  o.Quantity,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
