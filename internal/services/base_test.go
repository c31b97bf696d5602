// internal/services/base_test.go
package services

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/printforge/printforge-backend/internal/config"
	"github.com/printforge/printforge-backend/internal/models"
	"github.com/printforge/printforge-backend/internal/pricing"
	"github.com/printforge/printforge-backend/internal/utils"
)

func defaultPagination() utils.PaginationParams {
	return utils.PaginationParams{Page: 1, Limit: 20, Sort: "created_at", Order: "desc"}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Named in-memory database so every test gets its own store; the
	// anonymous ::memory: form with cache=shared is one database
	// process-wide.
	db, err := gorm.Open(sqlite.Open("file:"+uuid.New().String()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Listing{},
		&models.Order{},
		&models.Transaction{},
		&models.Review{},
	))
	return db
}

func TestNewTestDBIsolation(t *testing.T) {
	first := newTestDB(t)
	seedUser(t, first, models.RoleBuyer)

	second := newTestDB(t)
	var count int64
	require.NoError(t, second.Model(&models.User{}).Count(&count).Error)
	require.Zero(t, count, "a fresh test database must not see rows from another")
}

func newTestConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Payment: config.PaymentConfig{
			Provider:          "mock",
			Currency:          "INR",
			PostPaymentStatus: models.StatusPrinting,
		},
		Frontend: config.FrontendConfig{BaseURL: "http://localhost:3000"},
	}
}

// fakeNotifier records sent mail instead of sending it.
type fakeNotifier struct {
	mu            sync.Mutex
	confirmations []string
	sellerNotices []string
	statusUpdates []string
	failAll       bool
}

func (f *fakeNotifier) SendOrderConfirmation(buyerEmail, buyerName string, order OrderSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return ErrExternalService
	}
	f.confirmations = append(f.confirmations, buyerEmail)
	return nil
}

func (f *fakeNotifier) SendNewOrderToSeller(sellerEmail, sellerName string, order OrderSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return ErrExternalService
	}
	f.sellerNotices = append(f.sellerNotices, sellerEmail)
	return nil
}

func (f *fakeNotifier) SendStatusUpdate(buyerEmail, buyerName string, order OrderSummary, newStatus models.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return ErrExternalService
	}
	f.statusUpdates = append(f.statusUpdates, buyerEmail+":"+string(newStatus))
	return nil
}

// fakeBlobStore keeps uploads in memory.
type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (f *fakeBlobStore) Upload(data []byte, key, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return "https://files.test/" + key, nil
}

func (f *fakeBlobStore) PresignDownload(key string, expiration time.Duration) (string, error) {
	return "https://files.test/" + key + "?signed", nil
}

func (f *fakeBlobStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func seedUser(t *testing.T, db *gorm.DB, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		Email: uuid.New().String()[:8] + "@test.io",
		Name:  "Test " + string(role),
		Role:  role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedListing(t *testing.T, db *gorm.DB, sellerID uuid.UUID, price float64) *models.Listing {
	t.Helper()
	quote := pricing.Calculate(100, models.MaterialPLA, pricing.DefaultRoyaltyPercent)
	listing := &models.Listing{
		SellerID:              sellerID,
		Name:                  "Benchy",
		Description:           "Calibration boat",
		Category:              "calibration",
		Material:              models.MaterialPLA,
		STLFileKey:            "stl/benchy.stl",
		VolumeCm3:             100,
		BaseCost:              quote.BaseCost,
		PlatformMargin:        quote.PlatformMargin,
		CreatorRoyaltyPercent: pricing.DefaultRoyaltyPercent,
		CreatorRoyalty:        quote.CreatorRoyalty,
		FinalPrice:            price,
		IsPublished:           true,
		IsApproved:            true,
	}
	require.NoError(t, db.Create(listing).Error)
	return listing
}
