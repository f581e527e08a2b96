package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nhle/orderbell/internal/model"
	"github.com/nhle/orderbell/internal/order"
	"github.com/nhle/orderbell/internal/store"
	"github.com/nhle/orderbell/internal/transport/http/middleware"
)

// OrderService is what the order endpoints need from the order package.
type OrderService interface {
	Place(ctx context.Context, req order.PlaceRequest) (*model.Order, error)
	Get(ctx context.Context, orderID int64, viewer order.Viewer) (*model.Order, error)
	List(ctx context.Context, filter store.OrderFilter, viewer order.Viewer) ([]model.Order, error)
	AssignRider(ctx context.Context, orderID int64, req order.AssignRequest) (*model.Order, error)
}

// OrderHandler handles /v1/orders.
type OrderHandler struct {
	svc OrderService
}

func NewOrderHandler(svc OrderService) *OrderHandler { return &OrderHandler{svc: svc} }

// Place is public: the storefront checkout calls it.
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	var req order.PlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	o, err := h.svc.Place(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	viewer, ok := viewerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	o, err := h.svc.Get(r.Context(), id, viewer)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	viewer, ok := viewerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := r.URL.Query()
	filter := store.OrderFilter{}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if s := q.Get("status"); s != "" {
		st := model.OrderStatus(s)
		filter.Status = &st
	}

	orders, err := h.svc.List(r.Context(), filter, viewer)
	if err != nil {
		httpError(w, err)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, OrdersEnvelope{Data: orders, Limit: filter.Limit, Offset: filter.Offset})
}

func (h *OrderHandler) AssignRider(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req order.AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	o, err := h.svc.AssignRider(r.Context(), id, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func viewerFrom(r *http.Request) (order.Viewer, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return order.Viewer{}, false
	}
	return order.Viewer{UserID: claims.UserID, Role: claims.Role}, true
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return id, true
}
