// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields. Rows carrying extra columns from older
// revisions are read without error: GORM only scans declared fields.
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns ids in the application so the models work the
// same on Postgres and the sqlite test driver.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// StringList stores an ordered list of strings as a JSON column so the
// same model works on Postgres and the sqlite test driver.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type %T for StringList", value)
	}
}

// Enums
type UserRole string

const (
	RoleBuyer  UserRole = "buyer"
	RoleSeller UserRole = "seller"
	RoleAdmin  UserRole = "admin"
)

type Material string

const (
	MaterialPLA   Material = "PLA"
	MaterialABS   Material = "ABS"
	MaterialResin Material = "Resin"
)

func ValidMaterial(m Material) bool {
	switch m {
	case MaterialPLA, MaterialABS, MaterialResin:
		return true
	}
	return false
}

// OrderStatus is the fulfillment lifecycle. Strictly ordered; Delivered
// is terminal.
type OrderStatus string

const (
	StatusOrderPlaced    OrderStatus = "Order placed"
	StatusPrinting       OrderStatus = "Printing"
	StatusPostProcessing OrderStatus = "Post-processing"
	StatusShipped        OrderStatus = "Shipped"
	StatusDelivered      OrderStatus = "Delivered"
)

// OrderStatuses lists the fulfillment states in lifecycle order.
var OrderStatuses = []OrderStatus{
	StatusOrderPlaced,
	StatusPrinting,
	StatusPostProcessing,
	StatusShipped,
	StatusDelivered,
}

func ValidOrderStatus(s OrderStatus) bool {
	return StatusRank(s) >= 0
}

// StatusRank is the state's position in the lifecycle, -1 for unknown
// states. Delivered ranks last and is terminal.
func StatusRank(s OrderStatus) int {
	for i, v := range OrderStatuses {
		if v == s {
			return i
		}
	}
	return -1
}

type TransactionStatus string

const (
	TransactionStatusCreated   TransactionStatus = "created"
	TransactionStatusCompleted TransactionStatus = "completed"
)

// CustomPrintSellerID is the sentinel seller for ad-hoc print jobs not
// tied to a listing.
var CustomPrintSellerID = uuid.Nil

// CustomPrintListingRef marks orders priced from a buyer-uploaded mesh.
const CustomPrintListingRef = "custom"
