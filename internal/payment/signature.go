package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var ErrInvalidSignature = errors.New("invalid payment signature")

// SignConfirmation computes the hex HMAC-SHA256 the gateway attaches to a
// payment confirmation: the key is the shared webhook secret, the message is
// "<externalOrderID>|<externalPaymentID>".
func SignConfirmation(secret, externalOrderID, externalPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(externalOrderID + "|" + externalPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyConfirmation recomputes the signature and compares in constant time.
// This is a security boundary: hmac.Equal never short-circuits on the first
// differing byte.
func VerifyConfirmation(secret, externalOrderID, externalPaymentID, signature string) error {
	expected := SignConfirmation(secret, externalOrderID, externalPaymentID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
