package model

import "time"

// OrderNumberBase offsets the customer-facing order number from the row id.
const OrderNumberBase = 10000

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPlaced     OrderStatus = "placed"
	OrderAssigned   OrderStatus = "assigned"
	OrderDelivering OrderStatus = "delivering"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// Order is a committed storefront order.
type Order struct {
	ID            int64       `db:"id" json:"id"`
	Number        int64       `db:"number" json:"number"`
	CustomerName  string      `db:"customer_name" json:"customerName"`
	CustomerEmail string      `db:"customer_email" json:"customerEmail,omitempty"`
	Total         string      `db:"total" json:"total"`
	ItemCount     int         `db:"item_count" json:"itemCount"`
	Status        OrderStatus `db:"status" json:"status"`
	RiderID       *string     `db:"rider_id" json:"riderId,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updatedAt"`

	Items []OrderItem `db:"-" json:"items,omitempty"`
}

// OrderItem is a single line of an order.
type OrderItem struct {
	OrderID   int64  `db:"order_id" json:"-"`
	SKU       string `db:"sku" json:"sku"`
	Name      string `db:"name" json:"name"`
	Quantity  int    `db:"quantity" json:"quantity"`
	UnitPrice string `db:"unit_price" json:"unitPrice"`
}
