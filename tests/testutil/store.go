package testutil

import (
	"context"
	"testing"

	"github.com/nhle/orderbell/internal/model"
	"github.com/nhle/orderbell/internal/store"
)

// NewTestStore opens an in-memory order store with the schema applied and
// closes it when the test ends.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})
	return s
}

// SampleOrder returns an unsaved two-line order.
func SampleOrder() *model.Order {
	return &model.Order{
		CustomerName:  "Grace Hopper",
		CustomerEmail: "grace@example.com",
		Total:         "17.40",
		ItemCount:     3,
		Items: []model.OrderItem{
			{SKU: "MILK-1L", Name: "Milk 1L", Quantity: 2, UnitPrice: "1.20"},
			{SKU: "BREAD", Name: "Sourdough", Quantity: 1, UnitPrice: "15.00"},
		},
	}
}

// SeedOrder saves SampleOrder into s and returns it with its id filled in.
func SeedOrder(t *testing.T, s store.Store) *model.Order {
	t.Helper()

	o := SampleOrder()
	if err := s.CreateOrder(context.Background(), o); err != nil {
		t.Fatalf("seeding order: %v", err)
	}
	return o
}
