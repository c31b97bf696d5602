// internal/handlers/order.go
package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/internal/geometry"
	"github.com/printforge/printforge-backend/internal/models"
	"github.com/printforge/printforge-backend/internal/services"
	"github.com/printforge/printforge-backend/internal/utils"
)

type OrderHandler struct {
	checkoutService    *services.CheckoutService
	fulfillmentService *services.FulfillmentService
	blobs              services.BlobStore
}

func NewOrderHandler(checkoutService *services.CheckoutService, fulfillmentService *services.FulfillmentService, blobs services.BlobStore) *OrderHandler {
	return &OrderHandler{
		checkoutService:    checkoutService,
		fulfillmentService: fulfillmentService,
		blobs:              blobs,
	}
}

// POST /checkout/cart
func (h *OrderHandler) CheckoutCart(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CartCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	result, err := h.checkoutService.CheckoutCart(buyerID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, result)
}

// POST /checkout/custom-print (multipart: "stl" mesh + material + quantity)
func (h *OrderHandler) CheckoutCustomPrint(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var form struct {
		Material models.Material `form:"material" validate:"required"`
		Quantity int             `form:"quantity" validate:"required,min=1"`
	}
	if err := c.ShouldBind(&form); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&form)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	meshBytes, ok := readUpload(c, "stl")
	if !ok {
		return
	}

	volume, err := geometry.ExtractVolume(meshBytes)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	meshKey := fmt.Sprintf("custom/%s.stl", uuid.New().String())
	if _, err := h.blobs.Upload(meshBytes, meshKey, "model/stl"); err != nil {
		respondServiceError(c, err)
		return
	}

	result, err := h.checkoutService.CheckoutCustomPrint(buyerID, &services.CustomPrintRequest{
		MeshKey:   meshKey,
		Material:  form.Material,
		VolumeCm3: volume,
		Quantity:  form.Quantity,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, result)
}

// POST /checkout/verify
func (h *OrderHandler) VerifyPayment(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	var req struct {
		GatewayOrderID   string `json:"gateway_order_id" validate:"required"`
		GatewayPaymentID string `json:"gateway_payment_id" validate:"required"`
		Signature        string `json:"signature" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	if err := h.checkoutService.VerifyPayment(req.GatewayOrderID, req.GatewayPaymentID, req.Signature); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"verified": true})
}

// GET /orders
func (h *OrderHandler) GetMyOrders(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	orders, total, err := h.fulfillmentService.ListBuyerOrders(buyerID, params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(orders, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /seller/orders
func (h *OrderHandler) GetSellerOrders(c *gin.Context) {
	sellerID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	orders, total, err := h.fulfillmentService.ListSellerOrders(sellerID, params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(orders, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	requesterID, ok := currentUserID(c)
	if !ok {
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid order ID", nil)
		return
	}

	roleStr, _ := utils.GetUserRoleFromContext(c)
	order, err := h.fulfillmentService.GetOrder(orderID, requesterID, models.UserRole(roleStr))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"order": order})
}
