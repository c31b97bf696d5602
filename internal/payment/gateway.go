// internal/payment/gateway.go

// Package payment wraps the external payment gateway behind a small
// capability interface so the real client and the in-memory test
// variant are swappable at composition time.
package payment

import "errors"

// ErrInvalidSignature is returned by VerifySignature when the signature
// does not match the order/payment pair.
var ErrInvalidSignature = errors.New("invalid payment signature")

// Gateway is the integration contract with the payment provider.
// Amounts travel in the gateway's minor units (paise for INR).
type Gateway interface {
	// CreateOrder registers a capture-on-authorization order for the
	// given amount and returns the gateway's order id.
	CreateOrder(amountMinorUnits int64, currency string) (string, error)

	// VerifySignature checks the signature the client received after
	// completing payment. Returns ErrInvalidSignature on mismatch.
	VerifySignature(orderID, paymentID, signature string) error
}
