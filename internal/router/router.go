// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/internal/config"
	"github.com/printforge/printforge-backend/internal/handlers"
	"github.com/printforge/printforge-backend/internal/middleware"
	"github.com/printforge/printforge-backend/internal/payment"
	"github.com/printforge/printforge-backend/internal/services"
	"github.com/printforge/printforge-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize storage")
	}
	notificationService := services.NewNotificationService(cfg)
	gateway := selectGateway(cfg)

	listingService := services.NewListingService(db, storageService)
	checkoutService := services.NewCheckoutService(db, gateway, notificationService, cfg)
	fulfillmentService := services.NewFulfillmentService(db, notificationService)
	reviewService := services.NewReviewService(db)

	// Initialize handlers
	listingHandler := handlers.NewListingHandler(listingService)
	orderHandler := handlers.NewOrderHandler(checkoutService, fulfillmentService, storageService)
	reviewHandler := handlers.NewReviewHandler(reviewService)
	adminHandler := handlers.NewAdminHandler(listingService, fulfillmentService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.Frontend.BaseURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Listing routes
		listings := v1.Group("/listings")
		{
			listings.GET("", middleware.OptionalAuth(), listingHandler.GetListings)
			listings.GET("/:id", middleware.OptionalAuth(), listingHandler.GetListing)
			listings.GET("/:id/reviews", reviewHandler.GetReviews)

			// Seller routes
			protected := listings.Group("")
			protected.Use(middleware.AuthRequired(), middleware.SellerRequired())
			{
				protected.POST("", middleware.UploadRateLimit(), listingHandler.CreateListing)
				protected.PUT("/:id", listingHandler.UpdateListing)
				protected.POST("/:id/images", middleware.UploadRateLimit(), listingHandler.UploadImage)
				protected.PATCH("/:id/publish", listingHandler.TogglePublish)
			}

			// Buyer routes
			listings.POST("/:id/reviews", middleware.AuthRequired(), reviewHandler.AddReview)
		}

		// Review routes
		reviews := v1.Group("/reviews")
		reviews.Use(middleware.AuthRequired())
		{
			reviews.DELETE("/:id", reviewHandler.DeleteReview)
		}

		// Checkout routes
		checkout := v1.Group("/checkout")
		checkout.Use(middleware.AuthRequired())
		{
			checkout.POST("/cart", middleware.CheckoutRateLimit(), orderHandler.CheckoutCart)
			checkout.POST("/custom-print", middleware.CheckoutRateLimit(), orderHandler.CheckoutCustomPrint)
			checkout.POST("/verify", orderHandler.VerifyPayment)
		}

		// Order routes
		orders := v1.Group("/orders")
		orders.Use(middleware.AuthRequired())
		{
			orders.GET("", orderHandler.GetMyOrders)
			orders.GET("/:id", orderHandler.GetOrder)
		}

		// Seller routes
		seller := v1.Group("/seller")
		seller.Use(middleware.AuthRequired(), middleware.SellerRequired())
		{
			seller.GET("/listings", listingHandler.GetMyListings)
			seller.GET("/orders", orderHandler.GetSellerOrders)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/listings/pending", adminHandler.GetPendingListings)
			admin.PATCH("/listings/:id/approval", adminHandler.SetListingApproval)
			admin.DELETE("/listings/:id", adminHandler.DeleteListing)
			admin.GET("/orders", adminHandler.GetAllOrders)
			admin.PATCH("/orders/:id/status", adminHandler.UpdateOrderStatus)
		}
	}

	// Static file serving (for development)
	if cfg.Environment == "development" {
		r.Static("/uploads", "./uploads")
	}

	return r
}

// selectGateway picks the payment backend. Anything but "razorpay"
// gets the in-process mock, which is what tests and local development
// run against.
func selectGateway(cfg *config.Config) payment.Gateway {
	if cfg.Payment.Provider == "razorpay" {
		return payment.NewRazorpayGateway(cfg.Payment)
	}
	logrus.Warn("Payment provider is not razorpay, using mock gateway")
	return payment.NewMockGateway(cfg.Payment.RazorpayKeySecret)
}
