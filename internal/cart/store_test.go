package cart

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ququlondon/storefront/internal/domain"
	"github.com/ququlondon/storefront/internal/notify"
	"github.com/ququlondon/storefront/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return store
}

type notifyRecorder struct {
	mu       sync.Mutex
	messages []string
}

func (n *notifyRecorder) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *notifyRecorder) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.messages) == 0 {
		return ""
	}
	return n.messages[len(n.messages)-1]
}

var testProduct = domain.Product{
	ID:    "p1",
	Name:  "Oud Noir",
	Price: 19.98,
	Image: "oud-noir.jpg",
}

func TestAddItem(t *testing.T) {
	t.Run("adding the same product twice merges quantities", func(t *testing.T) {
		s := NewStore(testStore(t), notify.Discard, testLogger())

		s.AddItem(testProduct, 1)
		changed := testProduct
		changed.Image = "other.jpg"
		s.AddItem(changed, 2)

		items := s.Items()
		if len(items) != 1 {
			t.Fatalf("expected one line item, got %d", len(items))
		}
		if items[0].Quantity != 3 {
			t.Errorf("expected quantity 3, got %d", items[0].Quantity)
		}
		if items[0].Name != "Oud Noir" || items[0].Image != "oud-noir.jpg" {
			t.Errorf("merge must not overwrite existing line fields: %+v", items[0])
		}
	})

	t.Run("ignores a product without an id", func(t *testing.T) {
		s := NewStore(testStore(t), notify.Discard, testLogger())
		s.AddItem(domain.Product{Name: "ghost"}, 1)
		if len(s.Items()) != 0 {
			t.Error("expected cart to stay empty")
		}
	})

	t.Run("notifies with the product name and delta", func(t *testing.T) {
		rec := &notifyRecorder{}
		s := NewStore(testStore(t), rec, testLogger())

		s.AddItem(testProduct, 1)
		if got := rec.last(); got != "Added Oud Noir" {
			t.Errorf("unexpected notification %q", got)
		}

		s.AddItem(testProduct, 2)
		if got := rec.last(); got != "+2 Oud Noir" {
			t.Errorf("unexpected notification %q", got)
		}
	})
}

func TestSetQuantity(t *testing.T) {
	t.Run("zero removes the line", func(t *testing.T) {
		s := NewStore(testStore(t), notify.Discard, testLogger())
		s.AddItem(testProduct, 3)

		before := s.ItemCount()
		s.SetQuantity("p1", 0)

		if len(s.Items()) != 0 {
			t.Error("expected line to be removed")
		}
		if got := before - s.ItemCount(); got != 3 {
			t.Errorf("expected count to drop by 3, dropped by %d", got)
		}
	})

	t.Run("replaces the quantity", func(t *testing.T) {
		s := NewStore(testStore(t), notify.Discard, testLogger())
		s.AddItem(testProduct, 1)
		s.SetQuantity("p1", 5)
		if s.ItemCount() != 5 {
			t.Errorf("expected count 5, got %d", s.ItemCount())
		}
	})

	t.Run("unknown product is a no-op", func(t *testing.T) {
		rec := &notifyRecorder{}
		s := NewStore(testStore(t), rec, testLogger())
		s.SetQuantity("missing", 2)
		if rec.last() != "" {
			t.Errorf("unexpected notification %q", rec.last())
		}
	})
}

func TestRemoveItem(t *testing.T) {
	rec := &notifyRecorder{}
	s := NewStore(testStore(t), rec, testLogger())
	s.AddItem(testProduct, 2)

	s.RemoveItem("p1")

	if len(s.Items()) != 0 {
		t.Error("expected empty cart")
	}
	if got := rec.last(); got != "Removed Oud Noir" {
		t.Errorf("unexpected notification %q", got)
	}
}

func TestTotals(t *testing.T) {
	s := NewStore(testStore(t), notify.Discard, testLogger())
	s.AddItem(domain.Product{ID: "a", Name: "A", Price: 19.98}, 2)
	s.AddItem(domain.Product{ID: "b", Name: "B", Price: 7.99}, 1)

	if got := s.TotalPrice(); got != 47.95 {
		t.Errorf("expected total 47.95, got %v", got)
	}
	if got := s.ItemCount(); got != 3 {
		t.Errorf("expected count 3, got %d", got)
	}
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()

	t.Run("mutations survive a restart", func(t *testing.T) {
		store := testStore(t)
		s := NewStore(store, notify.Discard, testLogger())
		s.AddItem(testProduct, 2)

		reloaded := NewStore(store, notify.Discard, testLogger())
		items := reloaded.Items()
		if len(items) != 1 || items[0].Quantity != 2 {
			t.Errorf("unexpected rehydrated cart: %+v", items)
		}
	})

	t.Run("clear persists an empty collection", func(t *testing.T) {
		store := testStore(t)
		s := NewStore(store, notify.Discard, testLogger())
		s.AddItem(testProduct, 1)
		s.Clear()

		var persisted []domain.CartItem
		if !storage.ReadJSON(ctx, store, storage.KeyCart, &persisted) {
			t.Fatal("expected cart key to be present")
		}
		if len(persisted) != 0 {
			t.Errorf("expected empty persisted cart, got %+v", persisted)
		}
	})

	t.Run("corrupt persisted cart degrades to empty", func(t *testing.T) {
		store := testStore(t)
		_ = store.Put(ctx, storage.KeyCart, []byte(`{"definitely":"not a cart"`))

		s := NewStore(store, notify.Discard, testLogger())
		if len(s.Items()) != 0 {
			t.Error("expected empty cart")
		}
	})
}

// failingStore rejects every write so tests can prove mutations stick anyway.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (failingStore) Put(context.Context, string, []byte) error {
	return fmt.Errorf("disk full")
}
func (failingStore) Delete(context.Context, string) error { return nil }

func TestStorageFailureDoesNotRollBack(t *testing.T) {
	s := NewStore(failingStore{}, notify.Discard, testLogger())
	s.AddItem(testProduct, 2)

	if s.ItemCount() != 2 {
		t.Error("in-memory state must survive a storage write failure")
	}
}
