// internal/payment/razorpay.go
package payment

import (
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	razorpayutils "github.com/razorpay/razorpay-go/utils"

	"github.com/printforge/printforge-backend/internal/config"
)

// RazorpayGateway is the production Gateway backed by the Razorpay
// Orders API.
type RazorpayGateway struct {
	client *razorpay.Client
	secret string
}

func NewRazorpayGateway(cfg config.PaymentConfig) *RazorpayGateway {
	return &RazorpayGateway{
		client: razorpay.NewClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret),
		secret: cfg.RazorpayKeySecret,
	}
}

func (g *RazorpayGateway) CreateOrder(amountMinorUnits int64, currency string) (string, error) {
	data := map[string]interface{}{
		"amount":          amountMinorUnits,
		"currency":        currency,
		"payment_capture": 1,
	}

	order, err := g.client.Order.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create gateway order: %w", err)
	}

	id, ok := order["id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("gateway order response missing id")
	}

	return id, nil
}

func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) error {
	params := map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}

	if !razorpayutils.VerifyPaymentSignature(params, signature, g.secret) {
		return ErrInvalidSignature
	}

	return nil
}
