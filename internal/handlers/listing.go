// internal/handlers/listing.go
package handlers

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/internal/models"
	"github.com/printforge/printforge-backend/internal/services"
	"github.com/printforge/printforge-backend/internal/utils"
)

type ListingHandler struct {
	listingService *services.ListingService
}

func NewListingHandler(listingService *services.ListingService) *ListingHandler {
	return &ListingHandler{listingService: listingService}
}

// GET /listings
func (h *ListingHandler) GetListings(c *gin.Context) {
	params := services.ListingSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}
	if material := c.Query("material"); material != "" {
		params.Material = models.Material(material)
	}

	listings, total, err := h.listingService.Browse(params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(listings, total, params.PaginationParams)
	utils.PaginatedResponse(c, result)
}

// GET /listings/:id
func (h *ListingHandler) GetListing(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return
	}

	listing, stlURL, err := h.listingService.GetListing(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"listing": listing,
		"stl_url": stlURL,
	})
}

// POST /listings (multipart: metadata fields + "stl" mesh file)
func (h *ListingHandler) CreateListing(c *gin.Context) {
	sellerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateListingRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	meshBytes, ok := readUpload(c, "stl")
	if !ok {
		return
	}

	listing, err := h.listingService.CreateListing(sellerID, &req, meshBytes)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"listing": listing})
}

// PUT /listings/:id
func (h *ListingHandler) UpdateListing(c *gin.Context) {
	sellerID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return
	}

	var req services.UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	listing, err := h.listingService.UpdateListing(id, sellerID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"listing": listing})
}

// POST /listings/:id/images (multipart: "image" file)
func (h *ListingHandler) UploadImage(c *gin.Context) {
	sellerID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		utils.BadRequestResponse(c, "No image uploaded", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		utils.BadRequestResponse(c, "Failed to read image", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		utils.BadRequestResponse(c, "Failed to read image", nil)
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	url, err := h.listingService.UploadImage(id, sellerID, data, fileHeader.Filename, contentType)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"url": url})
}

// PATCH /listings/:id/publish
func (h *ListingHandler) TogglePublish(c *gin.Context) {
	sellerID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return
	}

	published, err := h.listingService.TogglePublish(id, sellerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"is_published": published})
}

// GET /seller/listings
func (h *ListingHandler) GetMyListings(c *gin.Context) {
	sellerID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	listings, total, err := h.listingService.SellerListings(sellerID, params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(listings, total, params)
	utils.PaginatedResponse(c, result)
}

// readUpload pulls a single multipart file's bytes out of the request.
func readUpload(c *gin.Context, field string) ([]byte, bool) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		utils.BadRequestResponse(c, "Missing "+field+" file", nil)
		return nil, false
	}
	file, err := fileHeader.Open()
	if err != nil {
		utils.BadRequestResponse(c, "Failed to read "+field+" file", nil)
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		utils.BadRequestResponse(c, "Failed to read "+field+" file", nil)
		return nil, false
	}
	return data, true
}
