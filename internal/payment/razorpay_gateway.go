package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sellora-core/internal/logger"
	"sellora-core/internal/money"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.razorpay.com"

type razorpayGateway struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
	backoff    time.Duration
}

type GatewayOption func(*razorpayGateway)

// WithBaseURL points the adapter at a different host, used by tests.
func WithBaseURL(url string) GatewayOption {
	return func(g *razorpayGateway) { g.baseURL = url }
}

func WithBackoff(d time.Duration) GatewayOption {
	return func(g *razorpayGateway) { g.backoff = d }
}

func NewRazorpayGateway(keyID, keySecret string, opts ...GatewayOption) Gateway {
	if keyID == "" || keySecret == "" {
		logger.L().Warn("payment gateway credentials are empty")
	}

	g := &razorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		backoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type gatewayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

func (g *razorpayGateway) CreateIntent(ctx context.Context, amount money.Amount, currency, receipt string) (*Intent, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("receipt", receipt),
		zap.Int64("amount", int64(amount)),
		zap.String("currency", currency),
	)

	body := map[string]any{
		"amount":   int64(amount),
		"currency": currency,
		"receipt":  receipt,
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	log.Info("creating payment intent")

	respBody, err := g.do(ctx, http.MethodPost, "/v1/orders", jsonBody)
	if err != nil {
		log.Error("payment intent creation failed", zap.Error(err))
		return nil, err
	}

	var res gatewayOrderResponse
	if err := json.Unmarshal(respBody, &res); err != nil {
		log.Error("failed decoding gateway response", zap.Error(err))
		return nil, fmt.Errorf("%w: malformed response: %v", ErrUpstream, err)
	}

	log.Info("payment intent created",
		zap.String("intent_id", res.ID),
		zap.String("status", res.Status),
	)

	return &Intent{
		ID:       res.ID,
		Amount:   money.Amount(res.Amount),
		Currency: res.Currency,
		Receipt:  res.Receipt,
		Status:   res.Status,
	}, nil
}

func (g *razorpayGateway) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	respBody, err := g.do(ctx, http.MethodGet, "/v1/orders/"+intentID, nil)
	if err != nil {
		return nil, err
	}

	var res gatewayOrderResponse
	if err := json.Unmarshal(respBody, &res); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrUpstream, err)
	}

	return &Intent{
		ID:       res.ID,
		Amount:   money.Amount(res.Amount),
		Currency: res.Currency,
		Receipt:  res.Receipt,
		Status:   res.Status,
	}, nil
}

func (g *razorpayGateway) CancelIntent(ctx context.Context, intentID string) error {
	log := logger.FromCtx(ctx).With(zap.String("intent_id", intentID))

	_, err := g.do(ctx, http.MethodPost, "/v1/orders/"+intentID+"/cancel", nil)
	if err != nil {
		log.Error("failed to cancel payment intent", zap.Error(err))
		return err
	}

	log.Info("payment intent cancelled")
	return nil
}

// do runs one request with a single retry on transport errors and 5xx
// responses. 4xx responses are the gateway rejecting the request and are
// never retried.
func (g *razorpayGateway) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.backoff):
			}
		}

		respBody, retryable, err := g.once(ctx, method, path, body)
		if err == nil {
			return respBody, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}

	return nil, lastErr
}

func (g *razorpayGateway) once(ctx context.Context, method, path string, body []byte) ([]byte, bool, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, false, err
	}

	req.SetBasicAuth(g.keyID, g.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: reading response: %v", ErrUpstream, err)
	}

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, false, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	return respBody, false, nil
}
