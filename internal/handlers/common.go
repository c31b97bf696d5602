// internal/handlers/common.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/internal/geometry"
	"github.com/printforge/printforge-backend/internal/services"
	"github.com/printforge/printforge-backend/internal/utils"
)

// currentUserID parses the authenticated user's id out of the gin
// context. Responds 401 itself when absent or malformed.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return uuid.Nil, false
	}
	return userID, true
}

// respondServiceError maps service sentinel errors onto HTTP responses.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrListingNotFound):
		utils.NotFoundResponse(c, "Listing")
	case errors.Is(err, services.ErrOrderNotFound):
		utils.NotFoundResponse(c, "Order")
	case errors.Is(err, services.ErrReviewNotFound):
		utils.NotFoundResponse(c, "Review")
	case errors.Is(err, services.ErrNotAuthorized):
		utils.ForbiddenResponse(c, "")
	case errors.Is(err, services.ErrDuplicateReview),
		errors.Is(err, services.ErrConcurrentUpdate):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, services.ErrListingUnavailable),
		errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrInvalidMaterial),
		errors.Is(err, services.ErrInvalidRoyalty),
		errors.Is(err, services.ErrInvalidVolume),
		errors.Is(err, services.ErrInvalidRating),
		errors.Is(err, geometry.ErrMalformedMesh):
		utils.BadRequestResponse(c, err.Error(), nil)
	case errors.Is(err, services.ErrPaymentVerification):
		utils.UnprocessableResponse(c, err.Error())
	case errors.Is(err, services.ErrExternalService):
		utils.ErrorResponse(c, 502, "UPSTREAM_ERROR", err.Error(), nil)
	default:
		utils.InternalErrorResponse(c, err.Error())
	}
}
