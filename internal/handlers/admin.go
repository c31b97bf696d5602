// internal/handlers/admin.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/internal/models"
	"github.com/printforge/printforge-backend/internal/services"
	"github.com/printforge/printforge-backend/internal/utils"
)

type AdminHandler struct {
	listingService     *services.ListingService
	fulfillmentService *services.FulfillmentService
}

func NewAdminHandler(listingService *services.ListingService, fulfillmentService *services.FulfillmentService) *AdminHandler {
	return &AdminHandler{
		listingService:     listingService,
		fulfillmentService: fulfillmentService,
	}
}

// GET /admin/listings/pending
func (h *AdminHandler) GetPendingListings(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	listings, total, err := h.listingService.PendingApproval(params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(listings, total, params)
	utils.PaginatedResponse(c, result)
}

// PATCH /admin/listings/:id/approval
func (h *AdminHandler) SetListingApproval(c *gin.Context) {
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return
	}

	var req struct {
		Approved *bool `json:"approved" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Approved == nil {
		utils.BadRequestResponse(c, "Invalid input", nil)
		return
	}

	if err := h.listingService.SetApproval(listingID, *req.Approved); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"approved": *req.Approved})
}

// DELETE /admin/listings/:id
func (h *AdminHandler) DeleteListing(c *gin.Context) {
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return
	}

	if err := h.listingService.ModerationDelete(listingID); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"deleted": true})
}

// GET /admin/orders
func (h *AdminHandler) GetAllOrders(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	status := models.OrderStatus(c.Query("status"))

	orders, total, err := h.fulfillmentService.ListAllOrders(status, params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(orders, total, params)
	utils.PaginatedResponse(c, result)
}

// PATCH /admin/orders/:id/status
func (h *AdminHandler) UpdateOrderStatus(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid order ID", nil)
		return
	}

	var req struct {
		Status models.OrderStatus `json:"status" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	order, err := h.fulfillmentService.UpdateStatus(orderID, req.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"order": order})
}
