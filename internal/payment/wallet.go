package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ququlondon/storefront/internal/domain"
	"github.com/ququlondon/storefront/internal/orders"
)

// ProviderClient is the wallet provider's checkout API: create a provider
// order, then capture it once approved. Implementations return ErrCancelled
// (wrapped) when the buyer abandons the flow.
type ProviderClient interface {
	CreateOrder(ctx context.Context, req ProviderOrderRequest) (string, error)
	CaptureOrder(ctx context.Context, providerOrderID string) (*ProviderCapture, error)
}

// ProviderOrderRequest is the provider-side representation of a checkout,
// distinct from the local order record.
type ProviderOrderRequest struct {
	Intent             string             `json:"intent"`
	PurchaseUnits      []PurchaseUnit     `json:"purchase_units"`
	ApplicationContext ApplicationContext `json:"application_context"`
}

type PurchaseUnit struct {
	Amount   ProviderAmount   `json:"amount"`
	Shipping ProviderShipping `json:"shipping"`
}

type ProviderAmount struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currency_code"`
}

type ProviderShipping struct {
	Name    ProviderName    `json:"name"`
	Address ProviderAddress `json:"address"`
}

type ProviderName struct {
	FullName string `json:"full_name"`
}

type ProviderAddress struct {
	AddressLine1 string `json:"address_line_1"`
	AdminArea1   string `json:"admin_area_1"`
	AdminArea2   string `json:"admin_area_2"`
	PostalCode   string `json:"postal_code"`
	CountryCode  string `json:"country_code"`
}

type ApplicationContext struct {
	ShippingPreference string `json:"shipping_preference"`
	Locale             string `json:"locale"`
	BrandName          string `json:"brand_name"`
	UserAction         string `json:"user_action"`
}

type ProviderCapture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// WalletAdapter pays through the external wallet provider and, on capture,
// submits the finalized order through the order gateway.
type WalletAdapter struct {
	provider  ProviderClient
	gateway   *orders.Gateway
	brandName string
	logger    *slog.Logger
}

func NewWalletAdapter(provider ProviderClient, gateway *orders.Gateway, brandName string, logger *slog.Logger) *WalletAdapter {
	return &WalletAdapter{provider: provider, gateway: gateway, brandName: brandName, logger: logger}
}

func (w *WalletAdapter) Method() string { return "PayPal" }

// BuildRequest maps the cart total and shipping form into the provider's
// schema. Currency is fixed to GBP and country to GB.
func (w *WalletAdapter) BuildRequest(total float64, addr domain.ShippingAddress) ProviderOrderRequest {
	return ProviderOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []PurchaseUnit{{
			Amount: ProviderAmount{
				Value:        strconv.FormatFloat(total, 'f', 2, 64),
				CurrencyCode: "GBP",
			},
			Shipping: ProviderShipping{
				Name: ProviderName{FullName: addr.Name},
				Address: ProviderAddress{
					AddressLine1: addr.Street,
					AdminArea1:   addr.County,
					AdminArea2:   addr.City,
					PostalCode:   domain.FormatPostcode(addr.Postcode),
					CountryCode:  "GB",
				},
			},
		}},
		ApplicationContext: ApplicationContext{
			ShippingPreference: "SET_PROVIDED_ADDRESS",
			Locale:             "en-GB",
			BrandName:          w.brandName,
			UserAction:         "PAY_NOW",
		},
	}
}

// OnApprove turns a successful provider capture into the local order record
// and submits it.
func (w *WalletAdapter) OnApprove(ctx context.Context, capture ProviderCapture, req Request) (*domain.Order, error) {
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		items = append(items, domain.OrderItem{
			Name:     line.Name,
			Price:    line.Price,
			Quantity: line.Quantity,
			Image:    line.Image,
		})
	}

	addr := req.Shipping
	addr.Postcode = domain.FormatPostcode(addr.Postcode)
	addr.Country = "GB"

	order, err := w.gateway.Create(ctx, domain.Order{
		Items:           items,
		TotalAmount:     req.Total,
		ShippingAddress: addr,
		PaymentMethod:   w.Method(),
		PaymentID:       capture.ID,
		PaymentStatus:   domain.PaymentStatus(strings.ToLower(capture.Status)),
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (w *WalletAdapter) Pay(ctx context.Context, req Request) (*domain.Order, error) {
	providerOrderID, err := w.provider.CreateOrder(ctx, w.BuildRequest(req.Total, req.Shipping))
	if err != nil {
		return nil, w.providerError("create provider order", err)
	}

	capture, err := w.provider.CaptureOrder(ctx, providerOrderID)
	if err != nil {
		return nil, w.providerError("capture payment", err)
	}

	w.logger.Info("payment captured", "payment_id", capture.ID, "status", capture.Status)
	return w.OnApprove(ctx, *capture, req)
}

func (w *WalletAdapter) providerError(op string, err error) error {
	w.logger.Error("wallet provider error", "op", op, "error", err)
	if errors.Is(err, ErrCancelled) {
		return fmt.Errorf("%w: %s", ErrCancelled, msgCancelled)
	}
	return fmt.Errorf("%s", msgFailed)
}
