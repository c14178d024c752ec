package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ququlondon/storefront/internal/cart"
	"github.com/ququlondon/storefront/internal/domain"
)

var checkoutTracer = otel.Tracer("payment/checkout")

// Checkout orchestrates a payment attempt: it gates on the preconditions,
// runs the chosen adapter, and clears the cart on success. Adding a provider
// means adding an Adapter, not touching this code.
type Checkout struct {
	cart   *cart.Store
	logger *slog.Logger

	mu         sync.Mutex
	processing bool
	lastErr    string
}

func NewCheckout(cartStore *cart.Store, logger *slog.Logger) *Checkout {
	return &Checkout{cart: cartStore, logger: logger}
}

// Precheck reports whether the payment control may be offered at all: the
// cart must be non-empty and the shipping form fully valid. An invalid
// precondition blocks payment entirely rather than failing at submission.
func (c *Checkout) Precheck(addr domain.ShippingAddress) error {
	if c.cart.ItemCount() == 0 {
		return fmt.Errorf("your cart is empty, please add items before proceeding to payment")
	}
	if err := addr.Validate(); err != nil {
		return fmt.Errorf("please fill in all delivery information: %w", err)
	}
	return nil
}

// Pay runs one attempt with the given adapter. Any stale error is cleared at
// the start; the attempt's outcome becomes the new Err value.
func (c *Checkout) Pay(ctx context.Context, adapter Adapter, shipping domain.ShippingAddress, card *CardDetails) (*domain.Order, error) {
	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return nil, fmt.Errorf("a payment is already in progress")
	}
	c.processing = true
	c.lastErr = ""
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.processing = false
		c.mu.Unlock()
	}()

	ctx, span := checkoutTracer.Start(ctx, "pay "+adapter.Method())
	defer span.End()
	span.SetAttributes(attribute.String("payment.method", adapter.Method()))

	if err := c.Precheck(shipping); err != nil {
		c.setErr(err.Error())
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	req := Request{
		Items:    c.cart.Items(),
		Total:    c.cart.TotalPrice(),
		Shipping: shipping,
		Card:     card,
	}
	span.SetAttributes(attribute.Float64("payment.amount", req.Total))

	order, err := adapter.Pay(ctx, req)
	if err != nil {
		c.setErr(err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrCancelled) {
			c.logger.Info("payment cancelled by user", "method", adapter.Method())
		}
		return nil, err
	}

	c.cart.Clear()
	c.logger.Info("checkout complete", "method", adapter.Method(), "order_id", order.ID)
	return order, nil
}

func (c *Checkout) Processing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processing
}

// Err returns the last attempt's user-facing failure message, if any.
func (c *Checkout) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Checkout) setErr(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = msg
}
