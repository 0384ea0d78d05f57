package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Exponent1/devops-order-system/internal/ledger"
	"github.com/Exponent1/devops-order-system/internal/reservation/application"
	"github.com/Exponent1/devops-order-system/pkg/idempotency"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("reservation-http"),
	}
}

type reserveReq struct {
	Item           string `json:"item"`
	Quantity       int64  `json:"quantity"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type reserveResp struct {
	OK            bool   `json:"ok"`
	Remaining     int64  `json:"remaining"`
	ReservationID string `json:"reservation_id,omitempty"`
}

type releaseReq struct {
	Item     string `json:"item"`
	Quantity int64  `json:"quantity"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/reserve", h.reserve)
	r.Post("/release", h.release)
	r.Get("/inventory/{item}", h.inventory)

	return r
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Reserve")
	defer span.End()

	var req reserveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Item == "" || req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "item and quantity required")
		return
	}
	key := req.IdempotencyKey
	if key == "" {
		key = r.Header.Get("Idempotency-Key")
	}

	res, err := h.service.Reserve(ctx, req.Item, req.Quantity, key)
	switch {
	case errors.Is(err, idempotency.ErrInFlight):
		writeError(w, http.StatusConflict, "request with this idempotency key is in flight")
		return
	case errors.Is(err, ledger.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.log.Error("reserve failed", "item", req.Item, "err", err)
		writeError(w, http.StatusServiceUnavailable, "stock store unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reserveResp{
		OK:            res.OK,
		Remaining:     res.Remaining,
		ReservationID: res.ReservationID,
	})
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Release")
	defer span.End()

	var req releaseReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Item == "" || req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "item and quantity required")
		return
	}

	if err := h.service.Release(ctx, req.Item, req.Quantity); err != nil {
		if errors.Is(err, ledger.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("release failed", "item", req.Item, "err", err)
		writeError(w, http.StatusServiceUnavailable, "stock store unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) inventory(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Inspect")
	defer span.End()

	item := chi.URLParam(r, "item")
	quantity, err := h.service.Inspect(ctx, item)
	if errors.Is(err, ledger.ErrNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		h.log.Error("inventory read failed", "item", item, "err", err)
		writeError(w, http.StatusServiceUnavailable, "stock store unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"item": item, "quantity": quantity})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
