// Package cart holds the shopping cart. In-memory state is authoritative;
// persisted storage mirrors it best-effort after every mutation and is only
// read back at startup.
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/ququlondon/storefront/internal/domain"
	"github.com/ququlondon/storefront/internal/notify"
	"github.com/ququlondon/storefront/internal/storage"
)

type EventKind string

const (
	EventItemAdded   EventKind = "item-added"
	EventItemRemoved EventKind = "item-removed"
	EventItemUpdated EventKind = "item-updated"
	EventCleared     EventKind = "cleared"
)

// Event describes a single cart change: which line was touched and by how
// much the quantity moved.
type Event struct {
	Kind      EventKind
	ProductID string
	Delta     int
}

type Store struct {
	store    storage.Store
	notifier notify.Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	items   []domain.CartItem
	nextSub int
	subs    map[int]func(Event)
}

// NewStore rehydrates the cart from storage. Corrupt or missing data
// degrades to an empty cart.
func NewStore(store storage.Store, notifier notify.Notifier, logger *slog.Logger) *Store {
	s := &Store{
		store:    store,
		notifier: notifier,
		logger:   logger,
		subs:     make(map[int]func(Event)),
	}
	var items []domain.CartItem
	if storage.ReadJSON(context.Background(), store, storage.KeyCart, &items) {
		s.items = items
	}
	return s
}

// Subscribe registers fn for cart events and returns an unsubscribe func.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// AddItem merges product into the cart. Adding an id already present sums
// quantities on the existing line and leaves its other fields alone. A
// product without an id is ignored.
func (s *Store) AddItem(product domain.Product, quantity int) {
	if product.ID == "" || quantity < 1 {
		return
	}

	s.mu.Lock()
	merged := false
	for i := range s.items {
		if s.items[i].ProductID == product.ID {
			s.items[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		s.items = append(s.items, domain.CartItem{
			ProductID:   product.ID,
			Name:        product.Name,
			Price:       product.Price,
			Quantity:    quantity,
			Image:       product.Image,
			Description: product.Description,
		})
	}
	s.persistLocked()
	s.mu.Unlock()

	if merged {
		s.notifier.Notify(fmt.Sprintf("+%d %s", quantity, product.Name))
	} else {
		s.notifier.Notify(fmt.Sprintf("Added %s", product.Name))
	}
	s.emit(Event{Kind: EventItemAdded, ProductID: product.ID, Delta: quantity})
}

// RemoveItem drops the line for productID, if present.
func (s *Store) RemoveItem(productID string) {
	s.mu.Lock()
	name, removed := "", 0
	kept := s.items[:0]
	for _, item := range s.items {
		if item.ProductID == productID {
			name, removed = item.Name, item.Quantity
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	if removed > 0 {
		s.persistLocked()
	}
	s.mu.Unlock()

	if removed > 0 {
		s.notifier.Notify(fmt.Sprintf("Removed %s", name))
		s.emit(Event{Kind: EventItemRemoved, ProductID: productID, Delta: -removed})
	}
}

// SetQuantity replaces a line's quantity. Anything below 1 removes the line.
func (s *Store) SetQuantity(productID string, quantity int) {
	if quantity < 1 {
		s.RemoveItem(productID)
		return
	}

	s.mu.Lock()
	name, delta := "", 0
	for i := range s.items {
		if s.items[i].ProductID == productID {
			name = s.items[i].Name
			delta = quantity - s.items[i].Quantity
			s.items[i].Quantity = quantity
			break
		}
	}
	if name != "" {
		s.persistLocked()
	}
	s.mu.Unlock()

	if name != "" {
		s.notifier.Notify(fmt.Sprintf("Updated %s", name))
		s.emit(Event{Kind: EventItemUpdated, ProductID: productID, Delta: delta})
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.persistLocked()
	s.mu.Unlock()

	s.notifier.Notify("Cart cleared")
	s.emit(Event{Kind: EventCleared})
}

// Items returns a copy of the cart lines.
func (s *Store) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.CartItem, len(s.items))
	copy(items, s.items)
	return items
}

// TotalPrice sums price*quantity across lines, rounded to 2 decimal places.
func (s *Store) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, item := range s.items {
		total += item.Price * float64(item.Quantity)
	}
	return math.Round(total*100) / 100
}

// ItemCount sums quantities across lines.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int
	for _, item := range s.items {
		count += item.Quantity
	}
	return count
}

// persistLocked mirrors the cart to storage. A write failure is logged and
// otherwise ignored; it never rolls back the in-memory mutation.
func (s *Store) persistLocked() {
	items := s.items
	if items == nil {
		items = []domain.CartItem{}
	}
	if err := storage.WriteJSON(context.Background(), s.store, storage.KeyCart, items); err != nil {
		s.logger.Warn("failed to persist cart", "error", err)
	}
}

func (s *Store) emit(ev Event) {
	s.mu.Lock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}
