package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sellora-core/internal/middleware"
	"sellora-core/internal/order"
	"sellora-core/internal/payment"
	"sellora-core/internal/user"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubOrderService overrides only what a given test exercises.
type stubOrderService struct {
	order.Service

	checkout func(ctx context.Context, cmd order.CreateCheckoutCommand) (*order.Order, *payment.Intent, error)
	decide   func(ctx context.Context, cmd order.SellerDecisionCommand) (*order.Order, error)
	get      func(ctx context.Context, buyerID uint, isAdmin bool, orderID string) (*order.Order, error)
	cancel   func(ctx context.Context, cmd order.CancelOrderCommand) (*order.Order, error)
	track    func(ctx context.Context, trackingNumber string) (*order.TrackingView, error)
}

func (s *stubOrderService) Checkout(ctx context.Context, cmd order.CreateCheckoutCommand) (*order.Order, *payment.Intent, error) {
	return s.checkout(ctx, cmd)
}

func (s *stubOrderService) Decide(ctx context.Context, cmd order.SellerDecisionCommand) (*order.Order, error) {
	return s.decide(ctx, cmd)
}

func (s *stubOrderService) GetOrderForBuyer(ctx context.Context, buyerID uint, isAdmin bool, orderID string) (*order.Order, error) {
	return s.get(ctx, buyerID, isAdmin, orderID)
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd order.CancelOrderCommand) (*order.Order, error) {
	return s.cancel(ctx, cmd)
}

func (s *stubOrderService) PublicTrackingByNumber(ctx context.Context, trackingNumber string) (*order.TrackingView, error) {
	return s.track(ctx, trackingNumber)
}

// testRouter wires the handlers behind chi with a fixed caller identity so
// URL params resolve the same way they do in production.
func testRouter(h *Handlers, id middleware.Identity) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithIdentity(req.Context(), id)))
		})
	})
	r.Post("/checkout", h.Checkout)
	r.Get("/orders/{id}", h.GetOrder)
	r.Post("/orders/{id}/accept", h.Accept)
	r.Post("/orders/{id}/cancel", h.Cancel)
	r.Get("/track/{trackingNumber}", h.TrackByNumber)
	return r
}

func buyerIdentity() middleware.Identity {
	return middleware.Identity{UserID: 7, Email: "buyer@example.com", Role: user.RoleBuyer}
}

func TestCheckoutHandler(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		ext := "ext-1"
		svc := &stubOrderService{
			checkout: func(_ context.Context, cmd order.CreateCheckoutCommand) (*order.Order, *payment.Intent, error) {
				assert.Equal(t, uint(7), cmd.BuyerID)
				assert.EqualValues(t, 10000, cmd.Total)
				require.Len(t, cmd.Items, 1)
				assert.EqualValues(t, 5000, cmd.Items[0].Price)

				o := &order.Order{
					ID:              "order-1",
					BuyerID:         7,
					Status:          order.StatusPending,
					Currency:        "USD",
					Total:           10000,
					ExternalOrderID: &ext,
				}
				intent := &payment.Intent{ID: "ext-1", Amount: 10000, Currency: "USD", Receipt: "RCPT-1"}
				return o, intent, nil
			},
		}
		router := testRouter(NewHandlers(svc, nil), buyerIdentity())

		body := `{
			"currency": "USD",
			"totalAmount": "100.00",
			"items": [{"productId": "prod-1", "sellerId": "seller-1", "quantity": 2, "price": "50.00"}]
		}`
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)

		var resp struct {
			Order struct {
				ID          string `json:"id"`
				Status      string `json:"status"`
				TotalAmount string `json:"totalAmount"`
			} `json:"order"`
			Intent struct {
				IntentID string `json:"intentId"`
				Amount   string `json:"amount"`
			} `json:"intent"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "order-1", resp.Order.ID)
		assert.Equal(t, "PENDING", resp.Order.Status)
		assert.Equal(t, "100.00", resp.Order.TotalAmount)
		assert.Equal(t, "ext-1", resp.Intent.IntentID)
		assert.Equal(t, "100.00", resp.Intent.Amount)
	})

	t.Run("MalformedAmount", func(t *testing.T) {
		svc := &stubOrderService{
			checkout: func(context.Context, order.CreateCheckoutCommand) (*order.Order, *payment.Intent, error) {
				t.Fatal("service must not be called")
				return nil, nil, nil
			},
		}
		router := testRouter(NewHandlers(svc, nil), buyerIdentity())

		body := `{"currency": "USD", "totalAmount": "abc", "items": []}`
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ValidationErrorMapsTo400", func(t *testing.T) {
		svc := &stubOrderService{
			checkout: func(_ context.Context, cmd order.CreateCheckoutCommand) (*order.Order, *payment.Intent, error) {
				return nil, nil, cmd.Validate()
			},
		}
		router := testRouter(NewHandlers(svc, nil), buyerIdentity())

		// total does not match the single line item
		body := `{
			"currency": "USD",
			"totalAmount": "99.99",
			"items": [{"productId": "prod-1", "sellerId": "seller-1", "quantity": 2, "price": "50.00"}]
		}`
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetOrderHandler_NotFound(t *testing.T) {
	svc := &stubOrderService{
		get: func(_ context.Context, buyerID uint, isAdmin bool, orderID string) (*order.Order, error) {
			assert.Equal(t, "order-9", orderID)
			return nil, order.ErrOrderNotFound
		},
	}
	router := testRouter(NewHandlers(svc, nil), buyerIdentity())

	req := httptest.NewRequest(http.MethodGet, "/orders/order-9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAcceptHandler_RequiresSellerIdentity(t *testing.T) {
	svc := &stubOrderService{
		decide: func(context.Context, order.SellerDecisionCommand) (*order.Order, error) {
			t.Fatal("service must not be called for non-sellers")
			return nil, nil
		},
	}
	router := testRouter(NewHandlers(svc, nil), buyerIdentity())

	req := httptest.NewRequest(http.MethodPost, "/orders/order-1/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAcceptHandler_SellerPath(t *testing.T) {
	sellerID := "seller-1"
	id := middleware.Identity{UserID: 9, Role: user.RoleSeller, SellerID: &sellerID}

	svc := &stubOrderService{
		decide: func(_ context.Context, cmd order.SellerDecisionCommand) (*order.Order, error) {
			assert.Equal(t, "order-1", cmd.OrderID)
			assert.Equal(t, "seller-1", cmd.SellerID)
			assert.True(t, cmd.Accept)
			return &order.Order{ID: "order-1", Status: order.StatusAccepted}, nil
		},
	}
	router := testRouter(NewHandlers(svc, nil), id)

	req := httptest.NewRequest(http.MethodPost, "/orders/order-1/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status     string `json:"status"`
		IsAccepted *bool  `json:"isAccepted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ACCEPTED", resp.Status)
	require.NotNil(t, resp.IsAccepted)
	assert.True(t, *resp.IsAccepted)
}

func TestCancelHandler_ConflictMapsTo409(t *testing.T) {
	svc := &stubOrderService{
		cancel: func(context.Context, order.CancelOrderCommand) (*order.Order, error) {
			return nil, order.ErrInvalidTransition
		},
	}
	router := testRouter(NewHandlers(svc, nil), buyerIdentity())

	req := httptest.NewRequest(http.MethodPost, "/orders/order-1/cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTrackByNumberHandler(t *testing.T) {
	trk := "TRK1"
	svc := &stubOrderService{
		track: func(_ context.Context, trackingNumber string) (*order.TrackingView, error) {
			assert.Equal(t, "TRK1", trackingNumber)
			return &order.TrackingView{
				OrderID:        "order-1",
				Status:         order.StatusShipped,
				TrackingNumber: &trk,
			}, nil
		},
	}
	router := testRouter(NewHandlers(svc, nil), middleware.Identity{})

	req := httptest.NewRequest(http.MethodGet, "/track/TRK1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var view order.TrackingView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "order-1", view.OrderID)
	assert.Equal(t, order.StatusShipped, view.Status)
}
