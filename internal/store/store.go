package store

import (
	"context"

	"github.com/nhle/orderbell/internal/model"
)

// OrderFilter controls filtering and pagination for order listings.
type OrderFilter struct {
	Status  *model.OrderStatus
	RiderID *string
	Limit   int
	Offset  int
}

// Store defines the persistence interface for storefront orders.
type Store interface {
	// CreateOrder inserts the order and its items in one transaction and
	// fills in ID, Number, Status and timestamps on success.
	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]model.Order, error)

	// AssignRider sets the rider and moves the order to OrderAssigned.
	AssignRider(ctx context.Context, id int64, riderID string) (*model.Order, error)
}
