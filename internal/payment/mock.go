// internal/payment/mock.go
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// MockOrder records one order created against the mock gateway.
type MockOrder struct {
	ID               string
	AmountMinorUnits int64
	Currency         string
}

// MockGateway is the in-memory Gateway used in development and tests.
// It mimics Razorpay's signature scheme: HMAC-SHA256 over
// "orderID|paymentID" with the configured secret.
type MockGateway struct {
	mu     sync.Mutex
	secret string
	seq    int
	orders []MockOrder

	// FailCreate makes CreateOrder fail, for exercising the
	// all-or-nothing checkout path.
	FailCreate bool
}

func NewMockGateway(secret string) *MockGateway {
	return &MockGateway{secret: secret}
}

func (g *MockGateway) CreateOrder(amountMinorUnits int64, currency string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FailCreate {
		return "", fmt.Errorf("mock gateway: order creation refused")
	}

	g.seq++
	order := MockOrder{
		ID:               fmt.Sprintf("order_mock_%06d", g.seq),
		AmountMinorUnits: amountMinorUnits,
		Currency:         currency,
	}
	g.orders = append(g.orders, order)
	return order.ID, nil
}

func (g *MockGateway) VerifySignature(orderID, paymentID, signature string) error {
	if signature != g.Sign(orderID, paymentID) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign produces the signature VerifySignature expects, the way the
// gateway's checkout widget would.
func (g *MockGateway) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(g.secret))
	fmt.Fprintf(mac, "%s|%s", orderID, paymentID)
	return hex.EncodeToString(mac.Sum(nil))
}

// Orders returns a copy of every order created so far.
func (g *MockGateway) Orders() []MockOrder {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]MockOrder, len(g.orders))
	copy(out, g.orders)
	return out
}
