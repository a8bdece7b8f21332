package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"sellora-core/internal/logger"
	"sellora-core/internal/order"
	"sellora-core/internal/payment"
	"sellora-core/internal/product"
	"sellora-core/internal/user"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Expected
// outcomes keep their message; anything unexpected becomes an opaque 500 so
// internals never leak.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case order.IsValidation(err):
		writeJSONError(w, err.Error(), http.StatusBadRequest)

	case errors.Is(err, user.ErrInvalidCredentials),
		errors.Is(err, payment.ErrInvalidSignature):
		writeJSONError(w, err.Error(), http.StatusUnauthorized)

	case errors.Is(err, order.ErrForbidden):
		writeJSONError(w, "forbidden", http.StatusForbidden)

	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, product.ErrProductNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)

	case errors.Is(err, product.ErrOutOfStock),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrConflict):
		writeJSONError(w, err.Error(), http.StatusConflict)

	case errors.Is(err, payment.ErrUpstream):
		writeJSONError(w, "payment gateway unavailable, retry later", http.StatusBadGateway)

	default:
		logger.FromCtx(r.Context()).Error("unhandled error", zap.Error(err))
		writeJSONError(w, "internal error", http.StatusInternalServerError)
	}
}
