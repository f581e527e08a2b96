// Package order places storefront orders and announces them to staff.
//
// An order is committed to the store before anything is published; a publish
// failure is logged and never undoes or fails the placement.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/nhle/orderbell/internal/bus"
	"github.com/nhle/orderbell/internal/config"
	"github.com/nhle/orderbell/internal/model"
	"github.com/nhle/orderbell/internal/pkg/id"
	"github.com/nhle/orderbell/internal/pkg/validate"
	"github.com/nhle/orderbell/internal/store"
)

// Repository is the subset of store.Store the service needs.
type Repository interface {
	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	ListOrders(ctx context.Context, filter store.OrderFilter) ([]model.Order, error)
	AssignRider(ctx context.Context, id int64, riderID string) (*model.Order, error)
}

// Publisher sends room-addressed messages to every hub.
type Publisher interface {
	Publish(ctx context.Context, msg bus.Message) error
}

// ItemRequest is one line of a PlaceRequest.
type ItemRequest struct {
	SKU       string `json:"sku" validate:"required,max=64"`
	Name      string `json:"name" validate:"required,max=200"`
	Quantity  int    `json:"quantity" validate:"gte=1,lte=999"`
	UnitPrice string `json:"unitPrice" validate:"required,money"`
}

// PlaceRequest is the body of POST /v1/orders.
type PlaceRequest struct {
	CustomerName  string        `json:"customerName" validate:"required,max=120"`
	CustomerEmail string        `json:"customerEmail" validate:"omitempty,email"`
	Items         []ItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
}

// AssignRequest is the body of PUT /v1/orders/{id}/rider.
type AssignRequest struct {
	RiderID string `json:"riderId" validate:"required,max=64"`
}

// Policy decides when an order event is flagged high priority.
type Policy struct {
	HighValueCents int64
	BulkItemCount  int
}

// PolicyFrom parses the orders section of the server config.
func PolicyFrom(cfg config.Orders) (Policy, error) {
	p := Policy{BulkItemCount: cfg.BulkItemCount}
	if cfg.HighValueTotal != "" {
		c, err := ParseCents(cfg.HighValueTotal)
		if err != nil {
			return Policy{}, fmt.Errorf("orders.high_value_total: %w", err)
		}
		p.HighValueCents = c
	}
	return p, nil
}

// Priority returns PriorityHigh when either threshold is met. A zero
// threshold is disabled.
func (p Policy) Priority(totalCents int64, itemCount int) string {
	if p.HighValueCents > 0 && totalCents >= p.HighValueCents {
		return model.PriorityHigh
	}
	if p.BulkItemCount > 0 && itemCount >= p.BulkItemCount {
		return model.PriorityHigh
	}
	return model.PriorityNormal
}

// Service implements order placement and rider assignment.
type Service struct {
	repo   Repository
	pub    Publisher
	policy Policy

	now   func() time.Time
	newID func(time.Time) string
}

// NewService creates a Service. pub may be nil, in which case nothing is
// announced.
func NewService(repo Repository, pub Publisher, policy Policy) *Service {
	return &Service{
		repo:   repo,
		pub:    pub,
		policy: policy,
		now:    time.Now,
		newID:  id.NewAt,
	}
}

// Place validates req, commits the order and announces it to the admins room.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*model.Order, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
	}

	var (
		totalCents int64
		itemCount  int
		seen       = make(map[string]struct{}, len(req.Items))
		items      = make([]model.OrderItem, 0, len(req.Items))
	)
	for _, it := range req.Items {
		if _, dup := seen[it.SKU]; dup {
			return nil, fmt.Errorf("%w: duplicate sku %q", model.ErrBadRequest, it.SKU)
		}
		seen[it.SKU] = struct{}{}

		price, err := ParseCents(it.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		totalCents += price * int64(it.Quantity)
		itemCount += it.Quantity

		items = append(items, model.OrderItem{
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: FormatCents(price),
		})
	}

	o := &model.Order{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Total:         FormatCents(totalCents),
		ItemCount:     itemCount,
		Items:         items,
	}
	if err := s.repo.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("placing order: %w", err)
	}

	ev := s.event(o, totalCents, fmt.Sprintf("New order #%d from %s", o.Number, o.CustomerName))
	s.announce(ctx, model.EnvelopeOrderCreated, []string{model.RoomAdmins}, ev)
	return o, nil
}

// Get returns an order. Riders may only see orders assigned to them.
func (s *Service) Get(ctx context.Context, orderID int64, viewer Viewer) (*model.Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if viewer.Role == model.RoleRider && (o.RiderID == nil || *o.RiderID != viewer.UserID) {
		// don't reveal that the order exists
		return nil, model.ErrNotFound
	}
	return o, nil
}

// List returns orders newest first. Riders only see their own.
func (s *Service) List(ctx context.Context, filter store.OrderFilter, viewer Viewer) ([]model.Order, error) {
	if viewer.Role == model.RoleRider {
		rider := viewer.UserID
		filter.RiderID = &rider
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.repo.ListOrders(ctx, filter)
}

// AssignRider assigns a rider and announces it to the rider and the admins.
func (s *Service) AssignRider(ctx context.Context, orderID int64, req AssignRequest) (*model.Order, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
	}

	o, err := s.repo.AssignRider(ctx, orderID, req.RiderID)
	if err != nil {
		return nil, fmt.Errorf("assigning rider: %w", err)
	}

	cents, _ := ParseCents(o.Total)
	ev := s.event(o, cents, fmt.Sprintf("Order #%d assigned to rider %s", o.Number, req.RiderID))
	s.announce(ctx, model.EnvelopeOrderAssigned, []string{model.RiderRoom(req.RiderID), model.RoomAdmins}, ev)
	return o, nil
}

// Viewer identifies who is reading orders.
type Viewer struct {
	UserID string
	Role   string
}

func (s *Service) event(o *model.Order, totalCents int64, message string) model.OrderEvent {
	at := s.now().UTC()
	return model.OrderEvent{
		ID:            s.newID(at),
		OrderID:       o.ID,
		OrderNumber:   o.Number,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		Total:         o.Total,
		ItemCount:     o.ItemCount,
		Timestamp:     at,
		Message:       message,
		Priority:      s.policy.Priority(totalCents, o.ItemCount),
	}
}

// announce publishes ev. Errors are logged only: the order is already
// committed.
func (s *Service) announce(ctx context.Context, typ string, rooms []string, ev model.OrderEvent) {
	if s.pub == nil {
		return
	}
	env, err := model.NewEnvelope(typ, ev)
	if err != nil {
		zlog.Logger.Error().Err(err).Int64("order_id", ev.OrderID).Msg("failed to build order event")
		return
	}
	if err := s.pub.Publish(ctx, bus.Message{Rooms: rooms, Envelope: env}); err != nil {
		zlog.Logger.Error().Err(err).
			Int64("order_id", ev.OrderID).
			Str("type", typ).
			Strs("rooms", rooms).
			Msg("failed to publish order event")
		return
	}
	zlog.Logger.Info().Str("event_id", ev.ID).Int64("order", ev.OrderNumber).Str("type", typ).Msg("order event published")
}
