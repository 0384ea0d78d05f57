package reservation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/Exponent1/devops-order-system/internal/order/application"
)

// Client talks to the reservation service over HTTP. Every call carries a
// bounded timeout; the transport timeout is owned here, not by the caller's
// context alone.
type Client struct {
	log     *slog.Logger
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
	timeout time.Duration
}

func NewClient(log *slog.Logger, baseURL string, timeout time.Duration) *Client {
	return &Client{
		log:     log,
		baseURL: baseURL,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
		},
		tracer:  otel.Tracer("reservation-client"),
		timeout: timeout,
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
	ReservationID string `json:"reservation_id"`
}

type releaseReq struct {
	Item     string `json:"item"`
	Quantity int64  `json:"quantity"`
}

func (c *Client) Reserve(ctx context.Context, item string, quantity int64, idempotencyKey string) (application.ReservationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "ReserveStock", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	body := reserveReq{Item: item, Quantity: quantity, IdempotencyKey: idempotencyKey}
	resp, err := c.post(ctx, "/reserve", body)
	if err != nil {
		span.RecordError(err)
		return application.ReservationResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("reservation service returned %d", resp.StatusCode)
		span.RecordError(err)
		return application.ReservationResult{}, err
	}

	var out reserveResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return application.ReservationResult{}, fmt.Errorf("decode reserve response: %w", err)
	}
	return application.ReservationResult{
		OK:            out.OK,
		Remaining:     out.Remaining,
		ReservationID: out.ReservationID,
	}, nil
}

func (c *Client) Release(ctx context.Context, item string, quantity int64) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "ReleaseStock", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	resp, err := c.post(ctx, "/release", releaseReq{Item: item, Quantity: quantity})
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		err := fmt.Errorf("reservation service returned %d", resp.StatusCode)
		span.RecordError(err)
		return err
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	return c.http.Do(req)
}
