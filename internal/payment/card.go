package payment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ququlondon/storefront/internal/api"
	"github.com/ququlondon/storefront/internal/domain"
)

// CardDetails are the raw card-form fields. Number and Expiry may carry the
// display formatting; it is stripped before transmission.
type CardDetails struct {
	Number     string
	Expiry     string
	CVV        string
	HolderName string
}

// FormatCardNumber groups the digits of a card number in fours for display.
// Non-digits are dropped; input with no usable digits is returned unchanged.
func FormatCardNumber(value string) string {
	var digits strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if d == "" {
		return value
	}
	if len(d) > 16 {
		d = d[:16]
	}
	var parts []string
	for i := 0; i < len(d); i += 4 {
		end := i + 4
		if end > len(d) {
			end = len(d)
		}
		parts = append(parts, d[i:end])
	}
	return strings.Join(parts, " ")
}

// FormatExpiry inserts the MM/YY slash after the month digits.
func FormatExpiry(value string) string {
	var digits strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) < 2 {
		return d
	}
	if len(d) > 4 {
		d = d[:4]
	}
	return d[:2] + "/" + d[2:]
}

// CardAdapter submits an order-creation call followed by a process-payment
// call against the API's card endpoints. No card content is validated
// locally; see the package comment.
type CardAdapter struct {
	client *api.Client
	logger *slog.Logger
}

func NewCardAdapter(client *api.Client, logger *slog.Logger) *CardAdapter {
	return &CardAdapter{client: client, logger: logger}
}

func (c *CardAdapter) Method() string { return "lloyds_bank" }

type cardOrderRequest struct {
	Amount         string      `json:"amount"`
	Currency       string      `json:"currency"`
	PaymentMethod  string      `json:"paymentMethod"`
	IdempotencyKey string      `json:"idempotencyKey"`
	CardDetails    cardPayload `json:"cardDetails"`
}

type cardPayload struct {
	Number string `json:"number"`
	Expiry string `json:"expiry"`
	CVV    string `json:"cvv"`
	Name   string `json:"name"`
}

func (c *CardAdapter) Pay(ctx context.Context, req Request) (*domain.Order, error) {
	if req.Card == nil {
		return nil, fmt.Errorf("card details required")
	}
	if req.Total <= 0 {
		return nil, fmt.Errorf("invalid order amount, please check your cart")
	}

	var created struct {
		ID string `json:"id"`
	}
	err := c.client.Post(ctx, "/api/orders/create", cardOrderRequest{
		Amount:         fmt.Sprintf("%.2f", req.Total),
		Currency:       "GBP",
		PaymentMethod:  c.Method(),
		IdempotencyKey: uuid.New().String(),
		CardDetails: cardPayload{
			Number: strings.ReplaceAll(req.Card.Number, " ", ""),
			Expiry: req.Card.Expiry,
			CVV:    req.Card.CVV,
			Name:   req.Card.HolderName,
		},
	}, &created)
	if err != nil {
		return nil, fmt.Errorf("%s", api.Message(err, msgFailed))
	}

	var result struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	err = c.client.Post(ctx, "/api/orders/process-payment", map[string]string{
		"orderId": created.ID,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("%s", api.Message(err, msgFailed))
	}

	if result.Status != "success" {
		msg := result.Message
		if msg == "" {
			msg = msgFailed
		}
		c.logger.Error("card payment declined", "order_id", created.ID, "status", result.Status)
		return nil, fmt.Errorf("%s", msg)
	}

	c.logger.Info("card payment processed", "order_id", created.ID)
	return &domain.Order{
		ID:            created.ID,
		TotalAmount:   req.Total,
		PaymentMethod: c.Method(),
		PaymentStatus: domain.PaymentStatusCompleted,
	}, nil
}
