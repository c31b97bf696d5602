// internal/models/order.go
package models

import (
	"github.com/google/uuid"
)

// Order is one cart line. TotalAmount is a snapshot of
// listing.FinalPrice × Quantity taken at order creation; later listing
// price changes never alter it. Several orders from one checkout share
// a GatewayOrderID (the batch) but each carries exactly one
// listing/seller pair.
type Order struct {
	BaseModel
	BuyerID     uuid.UUID `json:"buyer_id" gorm:"type:uuid;not null;index"`
	SellerID    uuid.UUID `json:"seller_id" gorm:"type:uuid;not null;index"`
	ListingRef  string    `json:"listing_ref" gorm:"size:64;not null"`
	ProductName string    `json:"product_name" gorm:"size:255;not null"`
	Quantity    int       `json:"quantity" gorm:"not null"`
	TotalAmount float64   `json:"total_amount" gorm:"type:decimal(10,2);not null"`

	Status           OrderStatus `json:"status" gorm:"type:varchar(20);not null;default:'Order placed';index"`
	GatewayOrderID   string      `json:"gateway_order_id" gorm:"size:64;index"`
	GatewayPaymentID *string     `json:"gateway_payment_id" gorm:"size:64"`

	// Relationships
	Buyer User `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
}

// Transaction records one checkout batch: one row per gateway order id,
// however many Order rows the batch produced. OrderID points at the
// batch's representative (first) order.
type Transaction struct {
	BaseModel
	OrderID          uuid.UUID         `json:"order_id" gorm:"type:uuid;not null;index"`
	GatewayOrderID   string            `json:"gateway_order_id" gorm:"size:64;not null;uniqueIndex"`
	GatewayPaymentID *string           `json:"gateway_payment_id" gorm:"size:64"`
	Amount           float64           `json:"amount" gorm:"type:decimal(10,2);not null"`
	Currency         string            `json:"currency" gorm:"size:8;not null;default:'INR'"`
	Status           TransactionStatus `json:"status" gorm:"type:varchar(20);not null;default:'created';index"`
}
