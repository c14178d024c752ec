// Package orders fetches and creates orders against the REST API. It keeps a
// single loading flag and a single last-error value, not per-order state, and
// never mutates an order locally: status changes are server-driven.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ququlondon/storefront/internal/api"
	"github.com/ququlondon/storefront/internal/domain"
)

// ErrLoginRequired marks failures caused by a missing or rejected session,
// as opposed to generic retryable ones.
var ErrLoginRequired = errors.New("login required")

type Gateway struct {
	client *api.Client
	logger *slog.Logger

	mu      sync.Mutex
	orders  []domain.Order
	active  *domain.Order
	loading bool
	lastErr string
}

func NewGateway(client *api.Client, logger *slog.Logger) *Gateway {
	return &Gateway{client: client, logger: logger}
}

// ListMine fetches the caller's orders.
func (g *Gateway) ListMine(ctx context.Context) ([]domain.Order, error) {
	g.begin()
	var list []domain.Order
	err := g.client.Get(ctx, "/api/orders/my-orders", &list)
	if err != nil {
		return nil, g.fail(err, "Please log in to view your orders", "Could not fetch orders. Please try again.")
	}
	g.mu.Lock()
	g.orders = list
	g.loading = false
	g.mu.Unlock()
	return list, nil
}

// Create posts a fully-formed order and stores the API's returned record as
// the active order.
func (g *Gateway) Create(ctx context.Context, payload domain.Order) (*domain.Order, error) {
	g.begin()
	var created domain.Order
	err := g.client.Post(ctx, "/api/orders", payload, &created)
	if err != nil {
		return nil, g.fail(err, "Please log in to create an order", "Could not create order. Please try again.")
	}
	g.setActive(created)
	g.logger.Info("order created", "order_id", created.ID, "total", created.TotalAmount)
	return &created, nil
}

// GetByID fetches a single order for detail views.
func (g *Gateway) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	g.begin()
	var order domain.Order
	err := g.client.Get(ctx, "/api/orders/"+orderID, &order)
	if err != nil {
		return nil, g.fail(err, "Please log in to view order details", "Could not fetch order details.")
	}
	g.setActive(order)
	return &order, nil
}

// CapturePayment records a payment result against an existing order.
func (g *Gateway) CapturePayment(ctx context.Context, orderID string, details map[string]any) (*domain.Order, error) {
	g.begin()
	var order domain.Order
	err := g.client.Put(ctx, "/api/orders/"+orderID+"/payment", details, &order)
	if err != nil {
		return nil, g.fail(err, "Please log in to complete payment", "Payment failed. Please try again.")
	}
	g.setActive(order)
	return &order, nil
}

// Orders returns the last fetched order list.
func (g *Gateway) Orders() []domain.Order {
	g.mu.Lock()
	defer g.mu.Unlock()
	list := make([]domain.Order, len(g.orders))
	copy(list, g.orders)
	return list
}

// Active returns the most recently created or fetched order.
func (g *Gateway) Active() *domain.Order {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active == nil {
		return nil
	}
	o := *g.active
	return &o
}

func (g *Gateway) Loading() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loading
}

// Err returns the last failure as a user-facing message.
func (g *Gateway) Err() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

func (g *Gateway) begin() {
	g.mu.Lock()
	g.loading = true
	g.lastErr = ""
	g.mu.Unlock()
}

func (g *Gateway) setActive(order domain.Order) {
	g.mu.Lock()
	g.active = &order
	g.loading = false
	g.mu.Unlock()
}

// fail converts err into the user-facing taxonomy: auth responses map to the
// login message and ErrLoginRequired, everything else to the generic
// retryable message.
func (g *Gateway) fail(err error, loginMsg, genericMsg string) error {
	var msg string
	var out error
	if api.IsAuthError(err) {
		msg = loginMsg
		out = fmt.Errorf("%w: %s", ErrLoginRequired, msg)
	} else {
		msg = api.Message(err, genericMsg)
		out = fmt.Errorf("%s", msg)
	}

	g.mu.Lock()
	g.loading = false
	g.lastErr = msg
	g.mu.Unlock()
	g.logger.Error("order request failed", "error", err)
	return out
}
