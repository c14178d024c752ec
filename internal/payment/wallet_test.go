package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ququlondon/storefront/internal/api"
	"github.com/ququlondon/storefront/internal/domain"
	"github.com/ququlondon/storefront/internal/orders"
)

type fakeProvider struct {
	createErr  error
	captureErr error
	capture    ProviderCapture
	lastReq    ProviderOrderRequest
}

func (f *fakeProvider) CreateOrder(_ context.Context, req ProviderOrderRequest) (string, error) {
	f.lastReq = req
	if f.createErr != nil {
		return "", f.createErr
	}
	return "prov-1", nil
}

func (f *fakeProvider) CaptureOrder(context.Context, string) (*ProviderCapture, error) {
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return &f.capture, nil
}

func walletRequest() Request {
	return Request{
		Items: []domain.CartItem{
			{ProductID: "p1", Name: "Oud Noir", Price: 19.98, Quantity: 2, Image: "oud.jpg"},
			{ProductID: "p2", Name: "Rose Veil", Price: 7.99, Quantity: 1},
		},
		Total: 47.95,
		Shipping: domain.ShippingAddress{
			Name:     "Ada Lovelace",
			Email:    "ada@example.com",
			Phone:    "07000000000",
			Street:   "1 Analytical Way",
			City:     "London",
			County:   "Greater London",
			Postcode: "sw1a1aa",
		},
	}
}

func TestWalletAdapter_BuildRequest(t *testing.T) {
	w := NewWalletAdapter(&fakeProvider{}, nil, "QUQU LONDON", testLogger())
	req := walletRequest()

	built := w.BuildRequest(req.Total, req.Shipping)

	if len(built.PurchaseUnits) != 1 {
		t.Fatalf("expected one purchase unit, got %d", len(built.PurchaseUnits))
	}
	unit := built.PurchaseUnits[0]
	if unit.Amount.Value != "47.95" || unit.Amount.CurrencyCode != "GBP" {
		t.Errorf("unexpected amount %+v", unit.Amount)
	}
	if unit.Shipping.Name.FullName != "Ada Lovelace" {
		t.Errorf("unexpected shipping name %+v", unit.Shipping.Name)
	}
	addr := unit.Shipping.Address
	if addr.AddressLine1 != "1 Analytical Way" || addr.AdminArea1 != "Greater London" || addr.AdminArea2 != "London" {
		t.Errorf("unexpected address mapping %+v", addr)
	}
	if addr.PostalCode != "SW1A 1AA" {
		t.Errorf("postcode must be normalized, got %q", addr.PostalCode)
	}
	if addr.CountryCode != "GB" {
		t.Errorf("country must be fixed to GB, got %q", addr.CountryCode)
	}
	if built.ApplicationContext.BrandName != "QUQU LONDON" || built.ApplicationContext.Locale != "en-GB" {
		t.Errorf("unexpected application context %+v", built.ApplicationContext)
	}
}

func TestWalletAdapter_Pay(t *testing.T) {
	newGateway := func(t *testing.T) (*orders.Gateway, *int) {
		t.Helper()
		var creates int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/orders" || r.Method != http.MethodPost {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			creates++
			var payload domain.Order
			_ = json.NewDecoder(r.Body).Decode(&payload)
			payload.ID = "o-1"
			_ = json.NewEncoder(w).Encode(payload)
		}))
		t.Cleanup(server.Close)
		client := api.NewClient(server.URL, noToken{}, testLogger())
		client.SetHTTPClient(server.Client())
		return orders.NewGateway(client, testLogger()), &creates
	}

	t.Run("captures then submits the local order", func(t *testing.T) {
		gateway, creates := newGateway(t)
		provider := &fakeProvider{capture: ProviderCapture{ID: "pay-9", Status: "COMPLETED"}}
		w := NewWalletAdapter(provider, gateway, "QUQU LONDON", testLogger())

		order, err := w.Pay(context.Background(), walletRequest())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.PaymentID != "pay-9" || order.PaymentStatus != "completed" {
			t.Errorf("unexpected payment fields %+v", order)
		}
		if order.PaymentMethod != "PayPal" {
			t.Errorf("unexpected method %q", order.PaymentMethod)
		}
		if order.ShippingAddress.Postcode != "SW1A 1AA" || order.ShippingAddress.Country != "GB" {
			t.Errorf("unexpected shipping address %+v", order.ShippingAddress)
		}
		if len(order.Items) != 2 || order.Items[0].Name != "Oud Noir" {
			t.Errorf("unexpected items %+v", order.Items)
		}
		if *creates != 1 {
			t.Errorf("expected one order submission, got %d", *creates)
		}
	})

	t.Run("provider failure surfaces the failed message and submits nothing", func(t *testing.T) {
		gateway, creates := newGateway(t)
		provider := &fakeProvider{captureErr: fmt.Errorf("gateway timeout")}
		w := NewWalletAdapter(provider, gateway, "QUQU LONDON", testLogger())

		_, err := w.Pay(context.Background(), walletRequest())
		if err == nil || err.Error() != "Payment failed. Please try again." {
			t.Errorf("unexpected error %v", err)
		}
		if errors.Is(err, ErrCancelled) {
			t.Error("a failure must not read as a cancellation")
		}
		if *creates != 0 {
			t.Errorf("no order must be submitted, got %d", *creates)
		}
	})

	t.Run("cancellation surfaces a distinct message and submits nothing", func(t *testing.T) {
		gateway, creates := newGateway(t)
		provider := &fakeProvider{captureErr: fmt.Errorf("%w: buyer closed window", ErrCancelled)}
		w := NewWalletAdapter(provider, gateway, "QUQU LONDON", testLogger())

		_, err := w.Pay(context.Background(), walletRequest())
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("expected ErrCancelled, got %v", err)
		}
		if *creates != 0 {
			t.Errorf("no order must be submitted, got %d", *creates)
		}
	})
}

func TestHTTPProvider(t *testing.T) {
	t.Run("creates and captures provider orders", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/v2/checkout/orders":
				user, _, ok := r.BasicAuth()
				if !ok || user != "client-1" {
					t.Errorf("expected client id auth, got %q", user)
				}
				_ = json.NewEncoder(w).Encode(map[string]string{"id": "prov-7"})
			case "/v2/checkout/orders/prov-7/capture":
				_ = json.NewEncoder(w).Encode(ProviderCapture{ID: "cap-7", Status: "COMPLETED"})
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		t.Cleanup(server.Close)

		provider := NewHTTPProvider(server.URL, "client-1", testLogger())
		provider.SetHTTPClient(server.Client())

		id, err := provider.CreateOrder(context.Background(), ProviderOrderRequest{})
		if err != nil || id != "prov-7" {
			t.Fatalf("unexpected result %q, %v", id, err)
		}

		capture, err := provider.CaptureOrder(context.Background(), id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if capture.Status != "COMPLETED" {
			t.Errorf("unexpected capture %+v", capture)
		}
	})

	t.Run("voided capture reads as cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(ProviderCapture{ID: "cap-8", Status: "VOIDED"})
		}))
		t.Cleanup(server.Close)

		provider := NewHTTPProvider(server.URL, "client-1", testLogger())
		provider.SetHTTPClient(server.Client())

		_, err := provider.CaptureOrder(context.Background(), "prov-8")
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("expected ErrCancelled, got %v", err)
		}
	})
}
