package payment

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"sellora-core/internal/money"
)

// ErrUpstream wraps any gateway-side failure: unreachable, timed out, or a
// non-2xx response that survived the retry.
var ErrUpstream = errors.New("payment gateway error")

type Gateway interface {
	// CreateIntent registers a pending charge for amount minor units. The
	// receipt token ties the intent back to one local checkout attempt.
	CreateIntent(ctx context.Context, amount money.Amount, currency, receipt string) (*Intent, error)
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
}

// NewReceiptToken builds a unique receipt for one checkout attempt:
// timestamp for operator legibility plus cryptographic randomness so retried
// requests never collide.
func NewReceiptToken() string {
	now := time.Now().UTC()
	datePart := now.Format("20060102-150405")

	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		n = big.NewInt(now.UnixNano() % 1_000_000)
	}

	return fmt.Sprintf("RCPT-%s-%06d", datePart, n.Int64())
}
