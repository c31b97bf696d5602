// internal/services/fulfillment_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/internal/models"
	"github.com/printforge/printforge-backend/internal/utils"
)

// FulfillmentService tracks orders through the print pipeline:
// Order placed -> Printing -> Post-processing -> Shipped -> Delivered.
type FulfillmentService struct {
	db       *gorm.DB
	notifier Notifier
}

func NewFulfillmentService(db *gorm.DB, notifier Notifier) *FulfillmentService {
	return &FulfillmentService{db: db, notifier: notifier}
}

// UpdateStatus advances an order one step along the pipeline. The
// target must be one of the five states and the immediate successor of
// the order's current state; the lifecycle never skips or reverses. The
// write is compare-and-set on the current status, so two admins racing
// on one order cannot double-advance it. The buyer gets a status email;
// its failure does not fail the update.
func (s *FulfillmentService) UpdateStatus(orderID uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	if !models.ValidOrderStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var order models.Order
	if err := s.db.First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to fetch order: %w", err)
	}

	if models.StatusRank(status) != models.StatusRank(order.Status)+1 {
		return nil, fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, order.Status, status)
	}

	result := s.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, order.Status).
		Update("status", status)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update order status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Another admin moved the order first.
		return nil, ErrConcurrentUpdate
	}

	order.Status = status
	s.notifyStatusChange(&order)
	return &order, nil
}

// GetOrder enforces visibility: buyers and sellers see their own
// orders, admins see everything.
func (s *FulfillmentService) GetOrder(orderID uuid.UUID, requesterID uuid.UUID, role models.UserRole) (*models.Order, error) {
	var order models.Order
	if err := s.db.First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to fetch order: %w", err)
	}

	if role != models.RoleAdmin && order.BuyerID != requesterID && order.SellerID != requesterID {
		return nil, ErrNotAuthorized
	}
	return &order, nil
}

// ListBuyerOrders returns the buyer's own orders, newest first.
func (s *FulfillmentService) ListBuyerOrders(buyerID uuid.UUID, params utils.PaginationParams) ([]models.Order, int64, error) {
	return s.listOrders(s.db.Where("buyer_id = ?", buyerID), params)
}

// ListSellerOrders returns orders placed against the seller's listings.
func (s *FulfillmentService) ListSellerOrders(sellerID uuid.UUID, params utils.PaginationParams) ([]models.Order, int64, error) {
	return s.listOrders(s.db.Where("seller_id = ?", sellerID), params)
}

// ListAllOrders is the admin view, optionally filtered by status.
func (s *FulfillmentService) ListAllOrders(status models.OrderStatus, params utils.PaginationParams) ([]models.Order, int64, error) {
	query := s.db.Model(&models.Order{})
	if status != "" {
		if !models.ValidOrderStatus(status) {
			return nil, 0, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		}
		query = query.Where("status = ?", status)
	}
	return s.listOrders(query, params)
}

func (s *FulfillmentService) listOrders(query *gorm.DB, params utils.PaginationParams) ([]models.Order, int64, error) {
	var total int64
	if err := query.Model(&models.Order{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []models.Order
	query = query.Order("created_at DESC")
	query = utils.ApplyPagination(query, params)
	if err := query.Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

func (s *FulfillmentService) notifyStatusChange(order *models.Order) {
	var buyer models.User
	if err := s.db.First(&buyer, "id = ?", order.BuyerID).Error; err != nil {
		logrus.WithError(err).WithField("user_id", order.BuyerID).Warn("Buyer not found for status notification")
		return
	}

	summary := OrderSummary{
		OrderID:     order.ID.String(),
		ProductName: order.ProductName,
		Quantity:    order.Quantity,
		TotalAmount: order.TotalAmount,
		Status:      order.Status,
	}
	if err := s.notifier.SendStatusUpdate(buyer.Email, buyer.Name, summary, order.Status); err != nil {
		logrus.WithError(err).WithField("email", buyer.Email).Warn("Failed to send status update")
	}
}
