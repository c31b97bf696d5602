// internal/models/listing.go
package models

import (
	"github.com/google/uuid"
)

// Listing is a seller's sellable 3D-printable item. The pricing fields
// are derived from volume, material and royalty percent and are
// recomputed whenever any of those change; they are never hand-edited.
// FinalPrice == BaseCost + PlatformMargin + CreatorRoyalty holds at all
// times. A listing is purchasable only when IsPublished && IsApproved.
type Listing struct {
	BaseModel
	SellerID    uuid.UUID  `json:"seller_id" gorm:"type:uuid;not null;index"`
	Name        string     `json:"name" gorm:"size:255;not null"`
	Description string     `json:"description" gorm:"type:text"`
	Category    string     `json:"category" gorm:"size:100;index"`
	Material    Material   `json:"material" gorm:"type:varchar(10);not null"`
	STLFileKey  string     `json:"stl_file_key" gorm:"size:255;not null"`
	Images      StringList `json:"images" gorm:"type:jsonb"`

	VolumeCm3             float64 `json:"volume_cm3" gorm:"type:decimal(12,2);not null"`
	BaseCost              float64 `json:"base_cost" gorm:"type:decimal(10,2);not null"`
	PlatformMargin        float64 `json:"platform_margin" gorm:"type:decimal(10,2);not null"`
	CreatorRoyaltyPercent float64 `json:"creator_royalty_percent" gorm:"type:decimal(5,2);not null;default:10"`
	CreatorRoyalty        float64 `json:"creator_royalty" gorm:"type:decimal(10,2);not null"`
	FinalPrice            float64 `json:"final_price" gorm:"type:decimal(10,2);not null"`

	IsPublished bool `json:"is_published" gorm:"default:false;index"`
	IsApproved  bool `json:"is_approved" gorm:"default:false;index"`

	AvgRating   float64 `json:"avg_rating" gorm:"type:decimal(3,2);default:0"`
	ReviewCount int64   `json:"review_count" gorm:"default:0"`

	// Relationships
	Seller  User     `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
	Reviews []Review `json:"reviews,omitempty" gorm:"foreignKey:ListingID"`
}

// Purchasable reports whether the listing may appear in a cart.
func (l *Listing) Purchasable() bool {
	return l.IsPublished && l.IsApproved
}
