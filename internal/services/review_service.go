// internal/services/review_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/internal/database"
	"github.com/printforge/printforge-backend/internal/models"
	"github.com/printforge/printforge-backend/internal/utils"
)

// ReviewService manages buyer reviews and keeps each listing's rating
// aggregates consistent with its review rows.
type ReviewService struct {
	db *gorm.DB
}

type AddReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

func NewReviewService(db *gorm.DB) *ReviewService {
	return &ReviewService{db: db}
}

// AddReview records one review per buyer per listing and recomputes the
// listing's aggregates in the same transaction. The buyer's display
// name is snapshotted so later profile edits don't rewrite history.
func (s *ReviewService) AddReview(listingID, buyerID uuid.UUID, buyerName string, req *AddReviewRequest) (*models.Review, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, ErrInvalidRating
	}

	var listing models.Listing
	if err := s.db.First(&listing, "id = ?", listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}
	if !listing.Purchasable() {
		return nil, ErrListingUnavailable
	}

	var count int64
	if err := s.db.Model(&models.Review{}).
		Where("listing_id = ? AND buyer_id = ?", listingID, buyerID).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing review: %w", err)
	}
	if count > 0 {
		return nil, ErrDuplicateReview
	}

	review := &models.Review{
		ListingID: listingID,
		BuyerID:   buyerID,
		BuyerName: buyerName,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(review).Error; err != nil {
			return fmt.Errorf("failed to create review: %w", err)
		}
		return s.recomputeAggregates(tx, listingID)
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// DeleteReview removes a review. Only its author or an admin may do so.
func (s *ReviewService) DeleteReview(reviewID, requesterID uuid.UUID, role models.UserRole) error {
	var review models.Review
	if err := s.db.First(&review, "id = ?", reviewID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReviewNotFound
		}
		return fmt.Errorf("failed to fetch review: %w", err)
	}

	if role != models.RoleAdmin && review.BuyerID != requesterID {
		return ErrNotAuthorized
	}

	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Delete(&review).Error; err != nil {
			return fmt.Errorf("failed to delete review: %w", err)
		}
		return s.recomputeAggregates(tx, review.ListingID)
	})
}

// ListForListing returns a listing's reviews, newest first.
func (s *ReviewService) ListForListing(listingID uuid.UUID, params utils.PaginationParams) ([]models.Review, int64, error) {
	query := s.db.Model(&models.Review{}).Where("listing_id = ?", listingID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}

	var reviews []models.Review
	query = query.Order("created_at DESC")
	query = utils.ApplyPagination(query, params)
	if err := query.Find(&reviews).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, total, nil
}

// recomputeAggregates rebuilds avg_rating and review_count from the
// review rows rather than adjusting incrementally. A listing with no
// reviews goes back to 0 / 0.
func (s *ReviewService) recomputeAggregates(tx *gorm.DB, listingID uuid.UUID) error {
	var stats struct {
		Avg   float64
		Count int64
	}
	if err := tx.Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS count").
		Where("listing_id = ?", listingID).
		Scan(&stats).Error; err != nil {
		return fmt.Errorf("failed to aggregate reviews: %w", err)
	}

	if err := tx.Model(&models.Listing{}).
		Where("id = ?", listingID).
		Updates(map[string]interface{}{
			"avg_rating":   stats.Avg,
			"review_count": stats.Count,
		}).Error; err != nil {
		return fmt.Errorf("failed to update listing aggregates: %w", err)
	}
	return nil
}
