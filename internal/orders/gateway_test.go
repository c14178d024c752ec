package orders

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ququlondon/storefront/internal/api"
	"github.com/ququlondon/storefront/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type noToken struct{}

func (noToken) Token(context.Context) (string, bool) { return "", false }

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := api.NewClient(server.URL, noToken{}, testLogger())
	client.SetHTTPClient(server.Client())
	return NewGateway(client, testLogger())
}

func TestListMine(t *testing.T) {
	t.Run("returns and retains the caller's orders", func(t *testing.T) {
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/orders/my-orders" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			_ = json.NewEncoder(w).Encode([]domain.Order{{ID: "o1", TotalAmount: 47.95}})
		})

		list, err := g.ListMine(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(list) != 1 || list[0].ID != "o1" {
			t.Errorf("unexpected orders: %+v", list)
		}
		if g.Loading() {
			t.Error("loading flag must reset")
		}
		if got := g.Orders(); len(got) != 1 {
			t.Errorf("expected retained orders, got %+v", got)
		}
	})

	t.Run("401 maps to a login-required error", func(t *testing.T) {
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		_, err := g.ListMine(context.Background())
		if !errors.Is(err, ErrLoginRequired) {
			t.Errorf("expected ErrLoginRequired, got %v", err)
		}
		if g.Err() != "Please log in to view your orders" {
			t.Errorf("unexpected message %q", g.Err())
		}
	})

	t.Run("other failures map to a generic retryable error", func(t *testing.T) {
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := g.ListMine(context.Background())
		if err == nil || errors.Is(err, ErrLoginRequired) {
			t.Errorf("expected generic error, got %v", err)
		}
		if g.Err() != "Could not fetch orders. Please try again." {
			t.Errorf("unexpected message %q", g.Err())
		}
	})
}

func TestCreate(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/orders" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var payload domain.Order
		_ = json.NewDecoder(r.Body).Decode(&payload)
		payload.ID = "o-new"
		payload.OrderStatus = domain.OrderStatusPending
		_ = json.NewEncoder(w).Encode(payload)
	})

	created, err := g.Create(context.Background(), domain.Order{
		TotalAmount:   47.95,
		PaymentMethod: "PayPal",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID != "o-new" {
		t.Errorf("unexpected order %+v", created)
	}
	if active := g.Active(); active == nil || active.ID != "o-new" {
		t.Errorf("expected active order, got %+v", active)
	}
}

func TestGetByID(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/orders/o7" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(domain.Order{ID: "o7"})
	})

	order, err := g.GetByID(context.Background(), "o7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID != "o7" {
		t.Errorf("unexpected order %+v", order)
	}
}

func TestCapturePayment(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/orders/o7/payment" || r.Method != http.MethodPut {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(domain.Order{ID: "o7", PaymentStatus: domain.PaymentStatusCompleted})
	})

	order, err := g.CapturePayment(context.Background(), "o7", map[string]any{"paymentId": "pay-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.PaymentStatus != domain.PaymentStatusCompleted {
		t.Errorf("unexpected order %+v", order)
	}
}

func TestErrorClearedBetweenCalls(t *testing.T) {
	var failNext = true
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if failNext {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode([]domain.Order{})
	})

	_, _ = g.ListMine(context.Background())
	if g.Err() == "" {
		t.Fatal("expected a retained error")
	}

	failNext = false
	if _, err := g.ListMine(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Err() != "" {
		t.Errorf("expected error cleared, got %q", g.Err())
	}
}
