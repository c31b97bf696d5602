// internal/models/review.go
package models

import (
	"github.com/google/uuid"
)

// Review is a buyer's rating of a listing, one per (listing, buyer).
// Listing.AvgRating and Listing.ReviewCount are derived and recomputed
// from this table on every insert and delete, never incremented in
// place.
type Review struct {
	BaseModel
	ListingID uuid.UUID `json:"listing_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_reviews_listing_buyer"`
	BuyerID   uuid.UUID `json:"buyer_id" gorm:"type:uuid;not null;uniqueIndex:idx_reviews_listing_buyer"`
	BuyerName string    `json:"buyer_name" gorm:"size:255;not null"`
	Rating    int       `json:"rating" gorm:"not null"`
	Comment   string    `json:"comment" gorm:"type:text"`
}
