package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"sellora-core/internal/middleware"
	"sellora-core/internal/order"
	"sellora-core/internal/user"

	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	orders order.Service
	users  user.Service
}

func NewHandlers(orders order.Service, users user.Service) *Handlers {
	return &Handlers{orders: orders, users: users}
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	token, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	cmd, err := req.toCommand(id.UserID)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	o, intent, err := h.orders.Checkout(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		Order:  toOrderResponse(o),
		Intent: toIntentResponse(intent),
	})
}

func (h *Handlers) DirectPurchase(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())

	var req directPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	o, err := h.orders.DirectPurchase(r.Context(), order.DirectPurchaseCommand{
		BuyerID:   id.UserID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())

	var filter order.OrderFilterInput
	if s := r.URL.Query().Get("status"); s != "" {
		status := order.OrderStatus(s)
		filter.Status = &status
	}
	if from := r.URL.Query().Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.DateFrom = &t
		}
	}
	if to := r.URL.Query().Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.DateTo = &t
		}
	}

	limit := queryInt32(r, "limit", 20)
	page := queryInt32(r, "page", 1)

	orders, err := h.orders.ListOrdersForBuyer(r.Context(), id.UserID, &filter, nil, limit, page)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	orderID := chi.URLParam(r, "id")

	o, err := h.orders.GetOrderForBuyer(r.Context(), id.UserID, id.IsAdmin(), orderID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handlers) Accept(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

func (h *Handlers) Decline(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *Handlers) decide(w http.ResponseWriter, r *http.Request, accept bool) {
	id, _ := middleware.IdentityFrom(r.Context())
	if !id.IsSeller() {
		writeJSONError(w, "seller identity required", http.StatusForbidden)
		return
	}

	o, err := h.orders.Decide(r.Context(), order.SellerDecisionCommand{
		OrderID:  chi.URLParam(r, "id"),
		SellerID: *id.SellerID,
		Accept:   accept,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handlers) Ship(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	if !id.IsSeller() {
		writeJSONError(w, "seller identity required", http.StatusForbidden)
		return
	}

	var req shipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	o, err := h.orders.Ship(r.Context(), order.ShipOrderCommand{
		OrderID:        chi.URLParam(r, "id"),
		SellerID:       *id.SellerID,
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handlers) AddTrackingUpdate(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	if !id.IsSeller() {
		writeJSONError(w, "seller identity required", http.StatusForbidden)
		return
	}

	var req trackingUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	o, err := h.orders.AddTrackingUpdate(r.Context(), order.TrackingUpdateCommand{
		OrderID:     chi.URLParam(r, "id"),
		SellerID:    *id.SellerID,
		Status:      req.Status,
		Location:    req.Location,
		Description: req.Description,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handlers) Cancel(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())

	o, err := h.orders.Cancel(r.Context(), order.CancelOrderCommand{
		OrderID: chi.URLParam(r, "id"),
		BuyerID: id.UserID,
		IsAdmin: id.IsAdmin(),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handlers) TrackByOrderID(w http.ResponseWriter, r *http.Request) {
	view, err := h.orders.PublicTrackingByOrderID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) TrackByNumber(w http.ResponseWriter, r *http.Request) {
	view, err := h.orders.PublicTrackingByNumber(r.Context(), chi.URLParam(r, "trackingNumber"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func queryInt32(r *http.Request, key string, fallback int32) int32 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || n <= 0 {
		return fallback
	}
	return int32(n)
}
