// Package payment converts the cart and shipping details into
// provider-specific payment requests. Two mutually exclusive adapters exist
// behind one capability interface: an external wallet and a card-form stub.
//
// The card adapter is deliberately demo-grade: it formats card fields for
// display and ships them to the API as-is, with no tokenization or content
// validation. Real card handling belongs to a PCI-compliant provider, never
// to this code.
package payment

import (
	"context"
	"errors"

	"github.com/ququlondon/storefront/internal/domain"
)

// ErrCancelled marks a payment abandoned by the user at the provider, as
// opposed to one the provider rejected. No order is submitted in either case.
var ErrCancelled = errors.New("payment cancelled")

const (
	msgCancelled = "Payment cancelled"
	msgFailed    = "Payment failed. Please try again."
)

// Request is everything an adapter needs for one attempt. Card holds the
// raw form fields and is only read by the card adapter.
type Request struct {
	Items    []domain.CartItem
	Total    float64
	Shipping domain.ShippingAddress
	Card     *CardDetails
}

// Adapter is one payment strategy. On success it returns the authoritative
// order record; on failure no order exists anywhere.
type Adapter interface {
	Method() string
	Pay(ctx context.Context, req Request) (*domain.Order, error)
}
