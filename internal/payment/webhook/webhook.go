package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"sellora-core/internal/logger"
	"sellora-core/internal/order"
	"sellora-core/internal/payment"

	"go.uber.org/zap"
)

// Payload is what the gateway posts on payment capture. The endpoint is
// unauthenticated; trust comes from the HMAC signature alone.
type Payload struct {
	ExternalOrderID   string `json:"externalOrderId"`
	ExternalPaymentID string `json:"externalPaymentId"`
	Signature         string `json:"signature"`
}

type Handler struct {
	orderSvc order.Service
}

func NewHandler(orderSvc order.Service) *Handler {
	return &Handler{orderSvc: orderSvc}
}

// ServeHTTP processes one confirmation delivery. The gateway delivers
// at-least-once, so the handler is safe to call concurrently and a replay of
// an already-processed payload answers 200 without re-mutating anything.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	_, err = h.orderSvc.ConfirmPayment(r.Context(), order.ConfirmPaymentCommand{
		ExternalOrderID:   payload.ExternalOrderID,
		ExternalPaymentID: payload.ExternalPaymentID,
		Signature:         payload.Signature,
	})

	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))

	case errors.Is(err, payment.ErrInvalidSignature):
		http.Error(w, "invalid signature", http.StatusUnauthorized)

	case errors.Is(err, order.ErrOrderNotFound):
		http.Error(w, "order not found", http.StatusNotFound)

	case errors.Is(err, order.ErrConflict):
		// racing delivery; the gateway will redeliver
		http.Error(w, "conflict, retry", http.StatusConflict)

	case order.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)

	default:
		log.Error("failed to process payment confirmation", zap.Error(err))
		http.Error(w, "failed to process confirmation", http.StatusInternalServerError)
	}
}
