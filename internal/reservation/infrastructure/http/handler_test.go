package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Exponent1/devops-order-system/internal/ledger"
	"github.com/Exponent1/devops-order-system/internal/reservation/application"
	"github.com/Exponent1/devops-order-system/pkg/idempotency"
)

type noopKeys struct{}

func (noopKeys) Acquire(context.Context, string) (*idempotency.Outcome, bool, error) {
	return nil, true, nil
}
func (noopKeys) Complete(context.Context, string, idempotency.Outcome) error { return nil }
func (noopKeys) Forget(context.Context, string) error                        { return nil }

type inFlightKeys struct{}

func (inFlightKeys) Acquire(context.Context, string) (*idempotency.Outcome, bool, error) {
	return nil, false, idempotency.ErrInFlight
}
func (inFlightKeys) Complete(context.Context, string, idempotency.Outcome) error { return nil }
func (inFlightKeys) Forget(context.Context, string) error                        { return nil }

func newServer(defaultStock int64) *httptest.Server {
	log := slog.New(slog.DiscardHandler)
	svc := application.NewService(log, ledger.NewMemoryLedger(defaultStock), noopKeys{})
	return httptest.NewServer(NewHandler(log, svc).Routes())
}

func TestReserveEndpoint(t *testing.T) {
	srv := newServer(100)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/reserve", "application/json",
		strings.NewReader(`{"item":"widget","quantity":15}`))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		OK            bool   `json:"ok"`
		Remaining     int64  `json:"remaining"`
		ReservationID string `json:"reservation_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Expected valid JSON, got: %v", err)
	}
	if !body.OK || body.Remaining != 85 || body.ReservationID == "" {
		t.Errorf("Expected ok with remaining 85, got %+v", body)
	}
}

func TestReserveEndpointInsufficientIs200(t *testing.T) {
	srv := newServer(10)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/reserve", "application/json",
		strings.NewReader(`{"item":"widget","quantity":50}`))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for a business refusal, got %d", resp.StatusCode)
	}
	var body struct {
		OK        bool  `json:"ok"`
		Remaining int64 `json:"remaining"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Expected valid JSON, got: %v", err)
	}
	if body.OK || body.Remaining != 10 {
		t.Errorf("Expected refusal with remaining 10, got %+v", body)
	}
}

func TestReserveEndpointMalformed(t *testing.T) {
	srv := newServer(100)
	defer srv.Close()

	cases := []string{
		`{"quantity":5}`,
		`{"item":"widget"}`,
		`{"item":"widget","quantity":-1}`,
		`not json`,
	}
	for _, c := range cases {
		resp, err := http.Post(srv.URL+"/reserve", "application/json", strings.NewReader(c))
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400 for %q, got %d", c, resp.StatusCode)
		}
	}
}

func TestReserveEndpointInFlightIs409(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	svc := application.NewService(log, ledger.NewMemoryLedger(100), inFlightKeys{})
	srv := httptest.NewServer(NewHandler(log, svc).Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/reserve", "application/json",
		strings.NewReader(`{"item":"widget","quantity":5,"idempotency_key":"k1"}`))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 while the key is in flight, got %d", resp.StatusCode)
	}
}

func TestReleaseEndpoint(t *testing.T) {
	srv := newServer(100)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/reserve", "application/json",
		strings.NewReader(`{"item":"widget","quantity":30}`))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Post(srv.URL+"/release", "application/json",
		strings.NewReader(`{"item":"widget","quantity":30}`))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/inventory/widget")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Quantity int64 `json:"quantity"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Expected valid JSON, got: %v", err)
	}
	if body.Quantity != 100 {
		t.Errorf("Expected stock restored to 100, got %d", body.Quantity)
	}
}

func TestInventoryEndpointNeverTouched(t *testing.T) {
	srv := newServer(100)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/inventory/ghost")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for a never-touched item, got %d", resp.StatusCode)
	}
}
