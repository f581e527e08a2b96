package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nhle/orderbell/internal/bus"
	"github.com/nhle/orderbell/internal/model"
	"github.com/nhle/orderbell/internal/store"
)

// --- mocks ---

type mockRepo struct{ mock.Mock }

func (m *mockRepo) CreateOrder(ctx context.Context, o *model.Order) error {
	return m.Called(ctx, o).Error(0)
}
func (m *mockRepo) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	args := m.Called(ctx, id)
	if o, _ := args.Get(0).(*model.Order); o != nil {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockRepo) ListOrders(ctx context.Context, filter store.OrderFilter) ([]model.Order, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]model.Order), args.Error(1)
}
func (m *mockRepo) AssignRider(ctx context.Context, id int64, riderID string) (*model.Order, error) {
	args := m.Called(ctx, id, riderID)
	if o, _ := args.Get(0).(*model.Order); o != nil {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, msg bus.Message) error {
	return m.Called(ctx, msg).Error(0)
}

// --- helpers ---

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestService(repo Repository, pub Publisher, policy Policy) *Service {
	s := NewService(repo, pub, policy)
	s.now = func() time.Time { return fixedNow }
	s.newID = func(time.Time) string { return "ev-1" }
	return s
}

func validRequest() PlaceRequest {
	return PlaceRequest{
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		Items: []ItemRequest{
			{SKU: "milk-1l", Name: "Milk 1L", Quantity: 2, UnitPrice: "1.99"},
			{SKU: "bread", Name: "Sourdough", Quantity: 1, UnitPrice: "3.5"},
		},
	}
}

// commitAs simulates the store assigning id and number on commit.
func commitAs(id int64) func(mock.Arguments) {
	return func(args mock.Arguments) {
		o := args.Get(1).(*model.Order)
		o.ID = id
		o.Number = model.OrderNumberBase + id
		o.Status = model.OrderPlaced
	}
}

func decodeEvent(t *testing.T, msg bus.Message) model.OrderEvent {
	t.Helper()
	var ev model.OrderEvent
	require.NoError(t, msg.Envelope.Decode(&ev))
	return ev
}

// --- Place ---

func TestPlace_CommitsThenPublishes(t *testing.T) {
	repo := new(mockRepo)
	pub := new(mockPublisher)

	var order []string
	repo.On("CreateOrder", mock.Anything, mock.AnythingOfType("*model.Order")).
		Run(func(args mock.Arguments) {
			order = append(order, "commit")
			commitAs(1)(args)
		}).Return(nil)

	var published bus.Message
	pub.On("Publish", mock.Anything, mock.AnythingOfType("bus.Message")).
		Run(func(args mock.Arguments) {
			order = append(order, "publish")
			published = args.Get(1).(bus.Message)
		}).Return(nil)

	s := newTestService(repo, pub, Policy{HighValueCents: 10000, BulkItemCount: 20})
	o, err := s.Place(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"commit", "publish"}, order)
	assert.Equal(t, "7.48", o.Total)
	assert.Equal(t, 3, o.ItemCount)
	assert.Equal(t, "3.50", o.Items[1].UnitPrice)

	assert.Equal(t, []string{model.RoomAdmins}, published.Rooms)
	assert.Equal(t, model.EnvelopeOrderCreated, published.Envelope.Type)

	ev := decodeEvent(t, published)
	assert.Equal(t, "ev-1", ev.ID)
	assert.Equal(t, int64(1), ev.OrderID)
	assert.Equal(t, int64(10001), ev.OrderNumber)
	assert.Equal(t, "Ada", ev.CustomerName)
	assert.Equal(t, "ada@example.com", ev.CustomerEmail)
	assert.Equal(t, "7.48", ev.Total)
	assert.Equal(t, 3, ev.ItemCount)
	assert.True(t, fixedNow.Equal(ev.Timestamp))
	assert.Equal(t, "New order #10001 from Ada", ev.Message)
	assert.Equal(t, model.PriorityNormal, ev.Priority)

	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestPlace_HighPriority(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		want   string
	}{
		{"value threshold", Policy{HighValueCents: 748}, model.PriorityHigh},
		{"bulk threshold", Policy{BulkItemCount: 3}, model.PriorityHigh},
		{"below both", Policy{HighValueCents: 749, BulkItemCount: 4}, model.PriorityNormal},
		{"disabled", Policy{}, model.PriorityNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockRepo)
			pub := new(mockPublisher)
			repo.On("CreateOrder", mock.Anything, mock.Anything).Run(commitAs(2)).Return(nil)

			var got bus.Message
			pub.On("Publish", mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) { got = args.Get(1).(bus.Message) }).
				Return(nil)

			_, err := newTestService(repo, pub, tt.policy).Place(context.Background(), validRequest())
			require.NoError(t, err)
			assert.Equal(t, tt.want, decodeEvent(t, got).Priority)
		})
	}
}

func TestPlace_ValidationFailsBeforeStore(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PlaceRequest)
	}{
		{"no customer", func(r *PlaceRequest) { r.CustomerName = "" }},
		{"bad email", func(r *PlaceRequest) { r.CustomerEmail = "not-an-email" }},
		{"no items", func(r *PlaceRequest) { r.Items = nil }},
		{"zero quantity", func(r *PlaceRequest) { r.Items[0].Quantity = 0 }},
		{"bad price", func(r *PlaceRequest) { r.Items[0].UnitPrice = "1.999" }},
		{"duplicate sku", func(r *PlaceRequest) { r.Items[1].SKU = r.Items[0].SKU }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockRepo)
			pub := new(mockPublisher)
			req := validRequest()
			tt.mutate(&req)

			_, err := newTestService(repo, pub, Policy{}).Place(context.Background(), req)
			assert.ErrorIs(t, err, model.ErrBadRequest)
			repo.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
			pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		})
	}
}

func TestPlace_StoreErrorPublishesNothing(t *testing.T) {
	repo := new(mockRepo)
	pub := new(mockPublisher)
	repo.On("CreateOrder", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := newTestService(repo, pub, Policy{}).Place(context.Background(), validRequest())
	assert.ErrorContains(t, err, "disk full")
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestPlace_PublishErrorDoesNotFailOrder(t *testing.T) {
	repo := new(mockRepo)
	pub := new(mockPublisher)
	repo.On("CreateOrder", mock.Anything, mock.Anything).Run(commitAs(3)).Return(nil)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	o, err := newTestService(repo, pub, Policy{}).Place(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(3), o.ID)
	pub.AssertExpectations(t)
}

func TestPlace_NilPublisher(t *testing.T) {
	repo := new(mockRepo)
	repo.On("CreateOrder", mock.Anything, mock.Anything).Run(commitAs(4)).Return(nil)

	o, err := newTestService(repo, nil, Policy{}).Place(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(10004), o.Number)
}

// --- Get / List ---

func TestGet_RiderSeesOnlyOwnOrders(t *testing.T) {
	rider := "r1"
	repo := new(mockRepo)
	repo.On("GetOrder", mock.Anything, int64(1)).Return(&model.Order{ID: 1, RiderID: &rider}, nil)
	repo.On("GetOrder", mock.Anything, int64(2)).Return(&model.Order{ID: 2}, nil)
	repo.On("GetOrder", mock.Anything, int64(3)).Return(nil, model.ErrNotFound)

	s := newTestService(repo, nil, Policy{})
	ctx := context.Background()

	o, err := s.Get(ctx, 1, Viewer{UserID: "r1", Role: model.RoleRider})
	require.NoError(t, err)
	assert.Equal(t, int64(1), o.ID)

	_, err = s.Get(ctx, 1, Viewer{UserID: "r2", Role: model.RoleRider})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = s.Get(ctx, 2, Viewer{UserID: "r1", Role: model.RoleRider})
	assert.ErrorIs(t, err, model.ErrNotFound)

	o, err = s.Get(ctx, 2, Viewer{UserID: "a1", Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, int64(2), o.ID)

	_, err = s.Get(ctx, 3, Viewer{UserID: "a1", Role: model.RoleAdmin})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestList_ForcesRiderFilterAndLimit(t *testing.T) {
	repo := new(mockRepo)
	repo.On("ListOrders", mock.Anything, mock.MatchedBy(func(f store.OrderFilter) bool {
		return f.RiderID != nil && *f.RiderID == "r1" && f.Limit == 50
	})).Return([]model.Order{{ID: 9}}, nil)

	orders, err := newTestService(repo, nil, Policy{}).List(context.Background(),
		store.OrderFilter{Limit: 1000}, Viewer{UserID: "r1", Role: model.RoleRider})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	repo.AssertExpectations(t)
}

// --- AssignRider ---

func TestAssignRider_NotifiesRiderAndAdmins(t *testing.T) {
	rider := "r9"
	repo := new(mockRepo)
	pub := new(mockPublisher)
	repo.On("AssignRider", mock.Anything, int64(5), "r9").Return(&model.Order{
		ID: 5, Number: 10005, CustomerName: "Bo", Total: "150.00", ItemCount: 2,
		Status: model.OrderAssigned, RiderID: &rider,
	}, nil)

	var got bus.Message
	pub.On("Publish", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(bus.Message) }).
		Return(nil)

	o, err := newTestService(repo, pub, Policy{HighValueCents: 10000}).
		AssignRider(context.Background(), 5, AssignRequest{RiderID: "r9"})
	require.NoError(t, err)
	assert.Equal(t, model.OrderAssigned, o.Status)

	assert.Equal(t, []string{"rider:r9", model.RoomAdmins}, got.Rooms)
	assert.Equal(t, model.EnvelopeOrderAssigned, got.Envelope.Type)
	ev := decodeEvent(t, got)
	assert.Equal(t, int64(10005), ev.OrderNumber)
	assert.Equal(t, model.PriorityHigh, ev.Priority)
	assert.Contains(t, ev.Message, "#10005")
}

func TestAssignRider_Errors(t *testing.T) {
	repo := new(mockRepo)
	pub := new(mockPublisher)
	repo.On("AssignRider", mock.Anything, int64(7), "r1").Return(nil, model.ErrNotFound)

	s := newTestService(repo, pub, Policy{})

	_, err := s.AssignRider(context.Background(), 7, AssignRequest{})
	assert.ErrorIs(t, err, model.ErrBadRequest)

	_, err = s.AssignRider(context.Background(), 7, AssignRequest{RiderID: "r1"})
	assert.ErrorIs(t, err, model.ErrNotFound)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestPolicyFrom(t *testing.T) {
	p, err := PolicyFrom(configOrders("100.00", 20))
	require.NoError(t, err)
	assert.Equal(t, Policy{HighValueCents: 10000, BulkItemCount: 20}, p)

	_, err = PolicyFrom(configOrders("lots", 0))
	assert.Error(t, err)
}
