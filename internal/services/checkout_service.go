// internal/services/checkout_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/internal/config"
	"github.com/printforge/printforge-backend/internal/database"
	"github.com/printforge/printforge-backend/internal/models"
	"github.com/printforge/printforge-backend/internal/payment"
	"github.com/printforge/printforge-backend/internal/pricing"
	"github.com/printforge/printforge-backend/internal/utils"
)

// CheckoutService turns a cart (or a one-off custom print) into one
// gateway transaction plus N order records, and reconciles the
// gateway's confirmation back onto them.
type CheckoutService struct {
	db       *gorm.DB
	gateway  payment.Gateway
	notifier Notifier
	config   *config.Config
}

type CartItem struct {
	ListingID uuid.UUID `json:"listing_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type CartCheckoutRequest struct {
	Items []CartItem `json:"items" validate:"dive"`
}

type CustomPrintRequest struct {
	MeshKey   string          `json:"mesh_key" validate:"required"`
	Material  models.Material `json:"material" validate:"required"`
	VolumeCm3 float64         `json:"volume_cm3" validate:"required"`
	Quantity  int             `json:"quantity" validate:"required,min=1"`
}

// CheckoutResult is what the client needs to complete payment with the
// gateway's widget.
type CheckoutResult struct {
	GatewayOrderID string  `json:"gateway_order_id"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
}

func NewCheckoutService(db *gorm.DB, gateway payment.Gateway, notifier Notifier, cfg *config.Config) *CheckoutService {
	return &CheckoutService{
		db:       db,
		gateway:  gateway,
		notifier: notifier,
		config:   cfg,
	}
}

// CheckoutCart builds one pending order per cart line, opens a single
// gateway order for the batch total and persists everything
// all-or-nothing. Availability is re-checked here, immediately before
// charge computation; the price used is whatever the listing carries
// right now (snapshot semantics, by the time the buyer pays the listing
// may already cost something else).
func (s *CheckoutService) CheckoutCart(buyerID uuid.UUID, req *CartCheckoutRequest) (*CheckoutResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	orders := make([]*models.Order, 0, len(req.Items))
	total := 0.0

	for _, item := range req.Items {
		var listing models.Listing
		if err := s.db.First(&listing, "id = ?", item.ListingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrListingNotFound, item.ListingID)
			}
			return nil, fmt.Errorf("failed to fetch listing: %w", err)
		}

		if !listing.Purchasable() {
			return nil, fmt.Errorf("%w: %s", ErrListingUnavailable, listing.Name)
		}

		lineAmount := listing.FinalPrice * float64(item.Quantity)
		total += lineAmount

		orders = append(orders, &models.Order{
			BuyerID:     buyerID,
			SellerID:    listing.SellerID,
			ListingRef:  listing.ID.String(),
			ProductName: listing.Name,
			Quantity:    item.Quantity,
			TotalAmount: lineAmount,
			Status:      models.StatusOrderPlaced,
		})
	}

	return s.settle(orders, total)
}

// CheckoutCustomPrint prices a buyer-uploaded mesh with the default
// royalty and produces a single order against the sentinel
// custom-print seller.
func (s *CheckoutService) CheckoutCustomPrint(buyerID uuid.UUID, req *CustomPrintRequest) (*CheckoutResult, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if !models.ValidMaterial(req.Material) {
		return nil, ErrInvalidMaterial
	}
	if req.VolumeCm3 <= 0 {
		return nil, ErrInvalidVolume
	}

	quote := pricing.Calculate(req.VolumeCm3, req.Material, pricing.DefaultRoyaltyPercent)
	total := quote.FinalPrice * float64(req.Quantity)

	order := &models.Order{
		BuyerID:     buyerID,
		SellerID:    models.CustomPrintSellerID,
		ListingRef:  models.CustomPrintListingRef,
		ProductName: fmt.Sprintf("Custom print - %s", req.Material),
		Quantity:    req.Quantity,
		TotalAmount: total,
		Status:      models.StatusOrderPlaced,
	}

	return s.settle([]*models.Order{order}, total)
}

// settle is the common continuation: one gateway order for the batch
// total, then N orders + 1 transaction persisted atomically. The
// gateway call happens before (and outside) the database transaction;
// its failure leaves nothing behind.
func (s *CheckoutService) settle(orders []*models.Order, total float64) (*CheckoutResult, error) {
	// Truncate, not round, any fractional minor-unit remainder.
	amountMinorUnits := int64(total * 100)

	gatewayOrderID, err := s.gateway.CreateOrder(amountMinorUnits, s.config.Payment.Currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		for _, order := range orders {
			order.GatewayOrderID = gatewayOrderID
			if err := tx.Create(order).Error; err != nil {
				return fmt.Errorf("failed to create order: %w", err)
			}
		}

		txn := &models.Transaction{
			OrderID:        orders[0].ID,
			GatewayOrderID: gatewayOrderID,
			Amount:         total,
			Currency:       s.config.Payment.Currency,
			Status:         models.TransactionStatusCreated,
		}
		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &CheckoutResult{
		GatewayOrderID: gatewayOrderID,
		Amount:         total,
		Currency:       s.config.Payment.Currency,
	}, nil
}

// VerifyPayment validates the gateway signature and, exactly once per
// batch, stamps the payment id on every order of the batch, advances
// them to the configured post-payment state and completes the
// transaction. Re-verifying an already-completed batch succeeds without
// touching anything. Emails go out once per affected buyer and seller;
// their failure never fails the verification.
func (s *CheckoutService) VerifyPayment(gatewayOrderID, paymentID, signature string) error {
	if err := s.gateway.VerifySignature(gatewayOrderID, paymentID, signature); err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentVerification, err)
	}

	var txn models.Transaction
	if err := s.db.First(&txn, "gateway_order_id = ?", gatewayOrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("failed to fetch transaction: %w", err)
	}

	// The conditional update below is the idempotency guard: the batch
	// advances exactly once, whoever overlaps. Only the caller whose
	// update lands gets to send mail.
	won := false
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		result := tx.Model(&models.Transaction{}).
			Where("gateway_order_id = ? AND status = ?", gatewayOrderID, models.TransactionStatusCreated).
			Updates(map[string]interface{}{
				"gateway_payment_id": paymentID,
				"status":             models.TransactionStatusCompleted,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to complete transaction: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// Already completed, or a concurrent verification got there
			// first. Either way the batch is settled.
			return nil
		}
		won = true

		if err := tx.Model(&models.Order{}).
			Where("gateway_order_id = ?", gatewayOrderID).
			Updates(map[string]interface{}{
				"gateway_payment_id": paymentID,
				"status":             s.config.Payment.PostPaymentStatus,
			}).Error; err != nil {
			return fmt.Errorf("failed to update orders: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	if won {
		s.notifyBatch(gatewayOrderID)
	}
	return nil
}

// notifyBatch emails each distinct buyer and seller of the batch once.
// Failures are logged and swallowed.
func (s *CheckoutService) notifyBatch(gatewayOrderID string) {
	var orders []models.Order
	if err := s.db.Find(&orders, "gateway_order_id = ?", gatewayOrderID).Error; err != nil {
		logrus.WithError(err).WithField("gateway_order_id", gatewayOrderID).
			Error("Failed to load batch for notification")
		return
	}

	buyerOrders := make(map[uuid.UUID]*OrderSummary)
	sellerOrders := make(map[uuid.UUID]*OrderSummary)
	for _, order := range orders {
		accumulate(buyerOrders, order.BuyerID, order)
		if order.SellerID != models.CustomPrintSellerID {
			accumulate(sellerOrders, order.SellerID, order)
		}
	}

	for buyerID, summary := range buyerOrders {
		user, err := s.lookupUser(buyerID)
		if err != nil {
			logrus.WithError(err).WithField("user_id", buyerID).Warn("Buyer not found for notification")
			continue
		}
		if err := s.notifier.SendOrderConfirmation(user.Email, user.Name, *summary); err != nil {
			logrus.WithError(err).WithField("email", user.Email).Warn("Failed to send order confirmation")
		}
	}

	for sellerID, summary := range sellerOrders {
		user, err := s.lookupUser(sellerID)
		if err != nil {
			logrus.WithError(err).WithField("user_id", sellerID).Warn("Seller not found for notification")
			continue
		}
		if err := s.notifier.SendNewOrderToSeller(user.Email, user.Name, *summary); err != nil {
			logrus.WithError(err).WithField("email", user.Email).Warn("Failed to send seller notification")
		}
	}
}

// accumulate folds one order into a party's single batch summary.
func accumulate(m map[uuid.UUID]*OrderSummary, id uuid.UUID, order models.Order) {
	if existing, ok := m[id]; ok {
		existing.TotalAmount += order.TotalAmount
		existing.Quantity += order.Quantity
		return
	}
	m[id] = &OrderSummary{
		OrderID:     order.ID.String(),
		ProductName: order.ProductName,
		Quantity:    order.Quantity,
		TotalAmount: order.TotalAmount,
		Status:      order.Status,
	}
}

func (s *CheckoutService) lookupUser(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
