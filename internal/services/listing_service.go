// internal/services/listing_service.go
package services

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/internal/geometry"
	"github.com/printforge/printforge-backend/internal/models"
	"github.com/printforge/printforge-backend/internal/pricing"
	"github.com/printforge/printforge-backend/internal/utils"
)

const stlDownloadTTL = time.Hour

// Seller edits are fetch-then-conditional-write on updated_at; a lost
// write re-reads fresh state and tries again this many times before
// giving up with ErrConcurrentUpdate.
const editRetries = 3

// ListingService is the listing ledger: seller CRUD, derived pricing
// and admin moderation over sellable items.
type ListingService struct {
	db    *gorm.DB
	blobs BlobStore
}

type CreateListingRequest struct {
	Name           string          `form:"name" validate:"required,min=3,max=255"`
	Description    string          `form:"description" validate:"required"`
	Category       string          `form:"category" validate:"required,max=100"`
	Material       models.Material `form:"material" validate:"required"`
	RoyaltyPercent *float64        `form:"royalty_percent"`
}

type UpdateListingRequest struct {
	Name           string          `json:"name,omitempty" validate:"omitempty,min=3,max=255"`
	Description    string          `json:"description,omitempty"`
	Category       string          `json:"category,omitempty" validate:"omitempty,max=100"`
	Material       models.Material `json:"material,omitempty"`
	RoyaltyPercent *float64        `json:"royalty_percent,omitempty"`
}

type ListingSearchParams struct {
	utils.PaginationParams
	Material models.Material
	SellerID *uuid.UUID
}

func NewListingService(db *gorm.DB, blobs BlobStore) *ListingService {
	return &ListingService{db: db, blobs: blobs}
}

// CreateListing turns an uploaded mesh into a priced, unpublished
// listing: extract volume, price it, store the mesh, persist. The mesh
// never reaches the pricing step when it fails to parse.
func (s *ListingService) CreateListing(sellerID uuid.UUID, req *CreateListingRequest, meshBytes []byte) (*models.Listing, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if !models.ValidMaterial(req.Material) {
		return nil, ErrInvalidMaterial
	}

	royalty := pricing.DefaultRoyaltyPercent
	if req.RoyaltyPercent != nil {
		royalty = *req.RoyaltyPercent
	}
	if royalty < 0 || royalty > pricing.MaxRoyaltyPercent {
		return nil, ErrInvalidRoyalty
	}

	volume, err := geometry.ExtractVolume(meshBytes)
	if err != nil {
		return nil, err
	}

	quote := pricing.Calculate(volume, req.Material, royalty)

	fileKey := fmt.Sprintf("stl/%s.stl", uuid.New())
	if _, err := s.blobs.Upload(meshBytes, fileKey, "application/vnd.ms-pki.stl"); err != nil {
		return nil, err
	}

	listing := &models.Listing{
		SellerID:    sellerID,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Material:    req.Material,
		STLFileKey:  fileKey,
		Images:      models.StringList{},
	}
	applyQuote(listing, quote)

	if err := s.db.Create(listing).Error; err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	return listing, nil
}

// UploadImage stores a product photo and appends its URL to the
// listing's image list (first image is the primary one).
func (s *ListingService) UploadImage(listingID, sellerID uuid.UUID, data []byte, filename, contentType string) (string, error) {
	listing, err := s.ownedListing(listingID, sellerID)
	if err != nil {
		return "", err
	}

	ext := filepath.Ext(filename)
	key := fmt.Sprintf("images/%s%s", uuid.New(), ext)

	url, err := s.blobs.Upload(data, key, contentType)
	if err != nil {
		return "", err
	}

	// Append under the updated_at guard so a concurrent upload cannot
	// drop the other's image.
	for attempt := 0; attempt < editRetries; attempt++ {
		images := append(listing.Images, url)
		result := s.db.Model(&models.Listing{}).
			Where("id = ? AND updated_at = ?", listing.ID, listing.UpdatedAt).
			Update("images", images)
		if result.Error != nil {
			return "", fmt.Errorf("failed to attach image: %w", result.Error)
		}
		if result.RowsAffected > 0 {
			return url, nil
		}

		if listing, err = s.ownedListing(listingID, sellerID); err != nil {
			return "", err
		}
	}

	return "", ErrConcurrentUpdate
}

// TogglePublish flips the seller's publish switch and returns the new
// value. Approval is untouched; both must hold before a sale.
func (s *ListingService) TogglePublish(listingID, sellerID uuid.UUID) (bool, error) {
	listing, err := s.ownedListing(listingID, sellerID)
	if err != nil {
		return false, err
	}

	published := !listing.IsPublished
	if err := s.db.Model(&models.Listing{}).
		Where("id = ?", listing.ID).
		Update("is_published", published).Error; err != nil {
		return false, fmt.Errorf("failed to update publish state: %w", err)
	}

	return published, nil
}

// UpdateListing edits descriptive fields. A material or royalty change
// reprices the listing from its stored volume; the pricing fields are
// never accepted from the request. The write is conditional on the
// fetched updated_at, so concurrent seller edits merge instead of
// silently overwriting each other.
func (s *ListingService) UpdateListing(listingID, sellerID uuid.UUID, req *UpdateListingRequest) (*models.Listing, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if req.Material != "" && !models.ValidMaterial(req.Material) {
		return nil, ErrInvalidMaterial
	}
	if req.RoyaltyPercent != nil && (*req.RoyaltyPercent < 0 || *req.RoyaltyPercent > pricing.MaxRoyaltyPercent) {
		return nil, ErrInvalidRoyalty
	}

	for attempt := 0; attempt < editRetries; attempt++ {
		listing, err := s.ownedListing(listingID, sellerID)
		if err != nil {
			return nil, err
		}
		fetchedAt := listing.UpdatedAt

		if req.Name != "" {
			listing.Name = req.Name
		}
		if req.Description != "" {
			listing.Description = req.Description
		}
		if req.Category != "" {
			listing.Category = req.Category
		}

		reprice := false
		if req.Material != "" && req.Material != listing.Material {
			listing.Material = req.Material
			reprice = true
		}
		if req.RoyaltyPercent != nil && *req.RoyaltyPercent != listing.CreatorRoyaltyPercent {
			listing.CreatorRoyaltyPercent = *req.RoyaltyPercent
			reprice = true
		}
		if reprice {
			applyQuote(listing, pricing.Calculate(listing.VolumeCm3, listing.Material, listing.CreatorRoyaltyPercent))
		}

		result := s.db.Model(&models.Listing{}).
			Where("id = ? AND updated_at = ?", listing.ID, fetchedAt).
			Updates(map[string]interface{}{
				"name":                    listing.Name,
				"description":             listing.Description,
				"category":                listing.Category,
				"material":                listing.Material,
				"creator_royalty_percent": listing.CreatorRoyaltyPercent,
				"base_cost":               listing.BaseCost,
				"platform_margin":         listing.PlatformMargin,
				"creator_royalty":         listing.CreatorRoyalty,
				"final_price":             listing.FinalPrice,
			})
		if result.Error != nil {
			return nil, fmt.Errorf("failed to update listing: %w", result.Error)
		}
		if result.RowsAffected > 0 {
			return listing, nil
		}
	}

	return nil, ErrConcurrentUpdate
}

// Browse lists purchasable (published and approved) listings with
// optional search text and category/material/seller filters.
func (s *ListingService) Browse(params ListingSearchParams) ([]models.Listing, int64, error) {
	query := s.db.Model(&models.Listing{}).
		Where("is_published = ? AND is_approved = ?", true, true)

	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		query = query.Where("name LIKE ? OR description LIKE ?", pattern, pattern)
	}
	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.Material != "" {
		query = query.Where("material = ?", params.Material)
	}
	if params.SellerID != nil {
		query = query.Where("seller_id = ?", *params.SellerID)
	}

	return s.page(query, params.PaginationParams)
}

// GetListing fetches one listing with a presigned STL download URL.
func (s *ListingService) GetListing(id uuid.UUID) (*models.Listing, string, error) {
	var listing models.Listing
	if err := s.db.First(&listing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrListingNotFound
		}
		return nil, "", fmt.Errorf("failed to fetch listing: %w", err)
	}

	stlURL, err := s.blobs.PresignDownload(listing.STLFileKey, stlDownloadTTL)
	if err != nil {
		logrus.WithError(err).WithField("listing_id", id).Warn("Failed to presign STL download")
		stlURL = ""
	}

	return &listing, stlURL, nil
}

// SellerListings lists everything a seller owns, any state.
func (s *ListingService) SellerListings(sellerID uuid.UUID, params utils.PaginationParams) ([]models.Listing, int64, error) {
	query := s.db.Model(&models.Listing{}).Where("seller_id = ?", sellerID)
	return s.page(query, params)
}

// PendingApproval lists the admin moderation queue.
func (s *ListingService) PendingApproval(params utils.PaginationParams) ([]models.Listing, int64, error) {
	query := s.db.Model(&models.Listing{}).Where("is_approved = ?", false)
	return s.page(query, params)
}

// SetApproval is the admin moderation decision.
func (s *ListingService) SetApproval(listingID uuid.UUID, approved bool) error {
	result := s.db.Model(&models.Listing{}).
		Where("id = ?", listingID).
		Update("is_approved", approved)
	if result.Error != nil {
		return fmt.Errorf("failed to update approval: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrListingNotFound
	}
	return nil
}

// ModerationDelete removes a listing and its blobs. Blob deletion is
// best effort; the record goes regardless.
func (s *ListingService) ModerationDelete(listingID uuid.UUID) error {
	var listing models.Listing
	if err := s.db.First(&listing, "id = ?", listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrListingNotFound
		}
		return fmt.Errorf("failed to fetch listing: %w", err)
	}

	if err := s.blobs.Delete(listing.STLFileKey); err != nil {
		logrus.WithError(err).WithField("key", listing.STLFileKey).Warn("Failed to delete mesh blob")
	}

	if err := s.db.Delete(&models.Listing{}, "id = ?", listingID).Error; err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}

	return nil
}

func (s *ListingService) ownedListing(listingID, sellerID uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.First(&listing, "id = ? AND seller_id = ?", listingID, sellerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}
	return &listing, nil
}

func (s *ListingService) page(query *gorm.DB, params utils.PaginationParams) ([]models.Listing, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "final_price", "avg_rating"})
	query = utils.ApplyPagination(query, params)

	var listings []models.Listing
	if err := query.Find(&listings).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch listings: %w", err)
	}

	return listings, total, nil
}

func applyQuote(listing *models.Listing, quote pricing.Quote) {
	listing.VolumeCm3 = quote.VolumeCm3
	listing.BaseCost = quote.BaseCost
	listing.PlatformMargin = quote.PlatformMargin
	listing.CreatorRoyaltyPercent = quote.CreatorRoyaltyPercent
	listing.CreatorRoyalty = quote.CreatorRoyalty
	listing.FinalPrice = quote.FinalPrice
}
