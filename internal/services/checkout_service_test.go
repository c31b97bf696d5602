// internal/services/checkout_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printforge/printforge-backend/internal/models"
	"github.com/printforge/printforge-backend/internal/payment"
)

func TestCheckoutCart(t *testing.T) {
	db := newTestDB(t)
	gateway := payment.NewMockGateway("test-secret")
	notifier := &fakeNotifier{}
	svc := NewCheckoutService(db, gateway, notifier, newTestConfig())

	seller := seedUser(t, db, models.RoleSeller)
	buyer := seedUser(t, db, models.RoleBuyer)
	benchy := seedListing(t, db, seller.ID, 100.00)
	vase := seedListing(t, db, seller.ID, 50.00)

	result, err := svc.CheckoutCart(buyer.ID, &CartCheckoutRequest{Items: []CartItem{
		{ListingID: benchy.ID, Quantity: 2},
		{ListingID: vase.ID, Quantity: 1},
	}})
	require.NoError(t, err)

	assert.Equal(t, 250.00, result.Amount)
	assert.Equal(t, "INR", result.Currency)
	assert.NotEmpty(t, result.GatewayOrderID)

	// One gateway order for the whole batch, charged in minor units.
	created := gateway.Orders()
	require.Len(t, created, 1)
	assert.Equal(t, int64(25000), created[0].AmountMinorUnits)

	// One order row per cart line, all pending payment.
	var orders []models.Order
	require.NoError(t, db.Find(&orders, "gateway_order_id = ?", result.GatewayOrderID).Error)
	require.Len(t, orders, 2)
	for _, order := range orders {
		assert.Equal(t, models.StatusOrderPlaced, order.Status)
		assert.Equal(t, buyer.ID, order.BuyerID)
		assert.Nil(t, order.GatewayPaymentID)
	}

	// Exactly one transaction for the batch.
	var txns []models.Transaction
	require.NoError(t, db.Find(&txns, "gateway_order_id = ?", result.GatewayOrderID).Error)
	require.Len(t, txns, 1)
	assert.Equal(t, 250.00, txns[0].Amount)
	assert.Equal(t, models.TransactionStatusCreated, txns[0].Status)
}

func TestCheckoutCartEmpty(t *testing.T) {
	db := newTestDB(t)
	svc := NewCheckoutService(db, payment.NewMockGateway("s"), &fakeNotifier{}, newTestConfig())
	buyer := seedUser(t, db, models.RoleBuyer)

	_, err := svc.CheckoutCart(buyer.ID, &CartCheckoutRequest{})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutCartUnavailableListingAbortsBatch(t *testing.T) {
	db := newTestDB(t)
	gateway := payment.NewMockGateway("s")
	svc := NewCheckoutService(db, gateway, &fakeNotifier{}, newTestConfig())

	seller := seedUser(t, db, models.RoleSeller)
	buyer := seedUser(t, db, models.RoleBuyer)
	good := seedListing(t, db, seller.ID, 100.00)
	unapproved := seedListing(t, db, seller.ID, 50.00)
	require.NoError(t, db.Model(unapproved).Update("is_approved", false).Error)

	_, err := svc.CheckoutCart(buyer.ID, &CartCheckoutRequest{Items: []CartItem{
		{ListingID: good.ID, Quantity: 1},
		{ListingID: unapproved.ID, Quantity: 1},
	}})
	assert.ErrorIs(t, err, ErrListingUnavailable)

	// Nothing was persisted and the gateway was never called.
	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, gateway.Orders())
}

func TestCheckoutCartGatewayFailurePersistsNothing(t *testing.T) {
	db := newTestDB(t)
	gateway := payment.NewMockGateway("s")
	gateway.FailCreate = true
	svc := NewCheckoutService(db, gateway, &fakeNotifier{}, newTestConfig())

	seller := seedUser(t, db, models.RoleSeller)
	buyer := seedUser(t, db, models.RoleBuyer)
	listing := seedListing(t, db, seller.ID, 100.00)

	_, err := svc.CheckoutCart(buyer.ID, &CartCheckoutRequest{Items: []CartItem{
		{ListingID: listing.ID, Quantity: 1},
	}})
	assert.ErrorIs(t, err, ErrExternalService)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCheckoutCustomPrint(t *testing.T) {
	db := newTestDB(t)
	gateway := payment.NewMockGateway("s")
	svc := NewCheckoutService(db, gateway, &fakeNotifier{}, newTestConfig())
	buyer := seedUser(t, db, models.RoleBuyer)

	// 100 cm3 of ABS: base 600, margin 120, royalty 60 -> 780.
	result, err := svc.CheckoutCustomPrint(buyer.ID, &CustomPrintRequest{
		MeshKey:   "custom/widget.stl",
		Material:  models.MaterialABS,
		VolumeCm3: 100,
		Quantity:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, 780.00, result.Amount)

	var order models.Order
	require.NoError(t, db.First(&order, "gateway_order_id = ?", result.GatewayOrderID).Error)
	assert.Equal(t, models.CustomPrintSellerID, order.SellerID)
	assert.Equal(t, models.CustomPrintListingRef, order.ListingRef)
	assert.Equal(t, models.StatusOrderPlaced, order.Status)
}

func TestCheckoutCustomPrintValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewCheckoutService(db, payment.NewMockGateway("s"), &fakeNotifier{}, newTestConfig())
	buyer := seedUser(t, db, models.RoleBuyer)

	_, err := svc.CheckoutCustomPrint(buyer.ID, &CustomPrintRequest{
		MeshKey: "custom/widget.stl", Material: "Wood", VolumeCm3: 10, Quantity: 1,
	})
	assert.ErrorIs(t, err, ErrInvalidMaterial)

	_, err = svc.CheckoutCustomPrint(buyer.ID, &CustomPrintRequest{
		MeshKey: "custom/widget.stl", Material: models.MaterialPLA, VolumeCm3: -3, Quantity: 1,
	})
	assert.ErrorIs(t, err, ErrInvalidVolume)
}

func TestVerifyPayment(t *testing.T) {
	db := newTestDB(t)
	gateway := payment.NewMockGateway("test-secret")
	notifier := &fakeNotifier{}
	svc := NewCheckoutService(db, gateway, notifier, newTestConfig())

	seller := seedUser(t, db, models.RoleSeller)
	buyer := seedUser(t, db, models.RoleBuyer)
	benchy := seedListing(t, db, seller.ID, 100.00)
	vase := seedListing(t, db, seller.ID, 50.00)

	result, err := svc.CheckoutCart(buyer.ID, &CartCheckoutRequest{Items: []CartItem{
		{ListingID: benchy.ID, Quantity: 1},
		{ListingID: vase.ID, Quantity: 1},
	}})
	require.NoError(t, err)

	paymentID := "pay_000001"
	signature := gateway.Sign(result.GatewayOrderID, paymentID)
	require.NoError(t, svc.VerifyPayment(result.GatewayOrderID, paymentID, signature))

	// Every order of the batch advanced and carries the payment id.
	var orders []models.Order
	require.NoError(t, db.Find(&orders, "gateway_order_id = ?", result.GatewayOrderID).Error)
	require.Len(t, orders, 2)
	for _, order := range orders {
		assert.Equal(t, models.StatusPrinting, order.Status)
		require.NotNil(t, order.GatewayPaymentID)
		assert.Equal(t, paymentID, *order.GatewayPaymentID)
	}

	var txn models.Transaction
	require.NoError(t, db.First(&txn, "gateway_order_id = ?", result.GatewayOrderID).Error)
	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)

	// One confirmation to the buyer, one notice to the seller.
	assert.Equal(t, []string{buyer.Email}, notifier.confirmations)
	assert.Equal(t, []string{seller.Email}, notifier.sellerNotices)
}

func TestVerifyPaymentIdempotent(t *testing.T) {
	db := newTestDB(t)
	gateway := payment.NewMockGateway("test-secret")
	notifier := &fakeNotifier{}
	svc := NewCheckoutService(db, gateway, notifier, newTestConfig())

	seller := seedUser(t, db, models.RoleSeller)
	buyer := seedUser(t, db, models.RoleBuyer)
	listing := seedListing(t, db, seller.ID, 100.00)

	result, err := svc.CheckoutCart(buyer.ID, &CartCheckoutRequest{Items: []CartItem{
		{ListingID: listing.ID, Quantity: 1},
	}})
	require.NoError(t, err)

	paymentID := "pay_000002"
	signature := gateway.Sign(result.GatewayOrderID, paymentID)
	require.NoError(t, svc.VerifyPayment(result.GatewayOrderID, paymentID, signature))
	require.NoError(t, svc.VerifyPayment(result.GatewayOrderID, paymentID, signature))

	// The second call changed nothing and sent no more mail.
	assert.Len(t, notifier.confirmations, 1)
	assert.Len(t, notifier.sellerNotices, 1)
}

// A verification that loses the conditional update to a concurrent one
// must not mail anyone. Completing the transaction out-of-band between
// checkout and verify is the loser's exact view of the row.
func TestVerifyPaymentLostRaceSendsNoMail(t *testing.T) {
	db := newTestDB(t)
	gateway := payment.NewMockGateway("test-secret")
	notifier := &fakeNotifier{}
	svc := NewCheckoutService(db, gateway, notifier, newTestConfig())

	seller := seedUser(t, db, models.RoleSeller)
	buyer := seedUser(t, db, models.RoleBuyer)
	listing := seedListing(t, db, seller.ID, 100.00)

	result, err := svc.CheckoutCart(buyer.ID, &CartCheckoutRequest{Items: []CartItem{
		{ListingID: listing.ID, Quantity: 1},
	}})
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Transaction{}).
		Where("gateway_order_id = ?", result.GatewayOrderID).
		Updates(map[string]interface{}{
			"gateway_payment_id": "pay_rival",
			"status":             models.TransactionStatusCompleted,
		}).Error)

	paymentID := "pay_000002"
	signature := gateway.Sign(result.GatewayOrderID, paymentID)
	require.NoError(t, svc.VerifyPayment(result.GatewayOrderID, paymentID, signature))

	assert.Empty(t, notifier.confirmations)
	assert.Empty(t, notifier.sellerNotices)

	var txn models.Transaction
	require.NoError(t, db.First(&txn, "gateway_order_id = ?", result.GatewayOrderID).Error)
	require.NotNil(t, txn.GatewayPaymentID)
	assert.Equal(t, "pay_rival", *txn.GatewayPaymentID)
}

func TestVerifyPaymentBadSignature(t *testing.T) {
	db := newTestDB(t)
	gateway := payment.NewMockGateway("test-secret")
	svc := NewCheckoutService(db, gateway, &fakeNotifier{}, newTestConfig())

	seller := seedUser(t, db, models.RoleSeller)
	buyer := seedUser(t, db, models.RoleBuyer)
	listing := seedListing(t, db, seller.ID, 100.00)

	result, err := svc.CheckoutCart(buyer.ID, &CartCheckoutRequest{Items: []CartItem{
		{ListingID: listing.ID, Quantity: 1},
	}})
	require.NoError(t, err)

	err = svc.VerifyPayment(result.GatewayOrderID, "pay_000003", "forged")
	assert.ErrorIs(t, err, ErrPaymentVerification)

	// Orders stay pending.
	var order models.Order
	require.NoError(t, db.First(&order, "gateway_order_id = ?", result.GatewayOrderID).Error)
	assert.Equal(t, models.StatusOrderPlaced, order.Status)
}

func TestVerifyPaymentUnknownOrder(t *testing.T) {
	db := newTestDB(t)
	gateway := payment.NewMockGateway("test-secret")
	svc := NewCheckoutService(db, gateway, &fakeNotifier{}, newTestConfig())

	signature := gateway.Sign("order_mock_999999", "pay_x")
	err := svc.VerifyPayment("order_mock_999999", "pay_x", signature)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestVerifyPaymentEmailFailureSwallowed(t *testing.T) {
	db := newTestDB(t)
	gateway := payment.NewMockGateway("test-secret")
	notifier := &fakeNotifier{failAll: true}
	svc := NewCheckoutService(db, gateway, notifier, newTestConfig())

	seller := seedUser(t, db, models.RoleSeller)
	buyer := seedUser(t, db, models.RoleBuyer)
	listing := seedListing(t, db, seller.ID, 100.00)

	result, err := svc.CheckoutCart(buyer.ID, &CartCheckoutRequest{Items: []CartItem{
		{ListingID: listing.ID, Quantity: 1},
	}})
	require.NoError(t, err)

	paymentID := "pay_000004"
	signature := gateway.Sign(result.GatewayOrderID, paymentID)
	require.NoError(t, svc.VerifyPayment(result.GatewayOrderID, paymentID, signature))
}
