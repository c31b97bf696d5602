// internal/services/errors.go
package services

import "errors"

// Sentinel errors the handlers translate into API responses. Gateway
// and blob-store failures are wrapped around ErrExternalService so the
// caller can tell retryable infrastructure trouble from a rejected
// request.
var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrListingNotFound     = errors.New("listing not found")
	ErrListingUnavailable  = errors.New("listing is not available for purchase")
	ErrOrderNotFound       = errors.New("order not found")
	ErrReviewNotFound      = errors.New("review not found")
	ErrInvalidStatus       = errors.New("invalid order status")
	ErrInvalidTransition   = errors.New("order status can only advance to the next state")
	ErrInvalidMaterial     = errors.New("invalid material")
	ErrInvalidRoyalty      = errors.New("royalty percent must be between 0 and 50")
	ErrInvalidVolume       = errors.New("volume must be greater than zero")
	ErrInvalidRating       = errors.New("rating must be between 1 and 5")
	ErrDuplicateReview     = errors.New("listing already reviewed by this buyer")
	ErrNotAuthorized       = errors.New("not authorized")
	ErrConcurrentUpdate    = errors.New("modified concurrently, retry the request")
	ErrPaymentVerification = errors.New("payment verification failed")
	ErrExternalService     = errors.New("external service failure")
)
