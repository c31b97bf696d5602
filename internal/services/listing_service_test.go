// internal/services/listing_service_test.go
package services

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/internal/geometry"
	"github.com/printforge/printforge-backend/internal/models"
	"github.com/printforge/printforge-backend/internal/utils"
)

// cubeMesh emits a binary STL of a cube with edge length s millimeters.
func cubeMesh(s float32) []byte {
	a := [3]float32{0, 0, 0}
	b := [3]float32{s, 0, 0}
	c := [3]float32{s, s, 0}
	d := [3]float32{0, s, 0}
	e := [3]float32{0, 0, s}
	f := [3]float32{s, 0, s}
	g := [3]float32{s, s, s}
	h := [3]float32{0, s, s}

	tris := [][3][3]float32{
		{a, c, b}, {a, d, c},
		{e, f, g}, {e, g, h},
		{a, b, f}, {a, f, e},
		{b, c, g}, {b, g, f},
		{c, d, h}, {c, h, g},
		{d, a, e}, {d, e, h},
	}

	var buf bytes.Buffer
	buf.Write(make([]byte, 80))
	binary.Write(&buf, binary.LittleEndian, uint32(len(tris)))
	for _, t := range tris {
		binary.Write(&buf, binary.LittleEndian, [3]float32{0, 0, 0})
		for _, v := range t {
			binary.Write(&buf, binary.LittleEndian, v)
		}
		binary.Write(&buf, binary.LittleEndian, uint16(0))
	}
	return buf.Bytes()
}

func TestCreateListing(t *testing.T) {
	db := newTestDB(t)
	blobs := newFakeBlobStore()
	svc := NewListingService(db, blobs)
	seller := seedUser(t, db, models.RoleSeller)

	// 100mm cube = 1000 cm³ of PLA at default royalty:
	// base 5000, margin 1000, royalty 500 -> 6500.
	listing, err := svc.CreateListing(seller.ID, &CreateListingRequest{
		Name:        "Giant cube",
		Description: "A big calibration cube",
		Category:    "calibration",
		Material:    models.MaterialPLA,
	}, cubeMesh(100))
	require.NoError(t, err)

	assert.Equal(t, 1000.0, listing.VolumeCm3)
	assert.Equal(t, 5000.0, listing.BaseCost)
	assert.Equal(t, 1000.0, listing.PlatformMargin)
	assert.Equal(t, 500.0, listing.CreatorRoyalty)
	assert.Equal(t, 6500.0, listing.FinalPrice)

	// New listings start unpublished and unapproved.
	assert.False(t, listing.IsPublished)
	assert.False(t, listing.IsApproved)

	// The mesh landed in blob storage under the recorded key.
	assert.Contains(t, blobs.objects, listing.STLFileKey)
}

func TestCreateListingCustomRoyalty(t *testing.T) {
	db := newTestDB(t)
	svc := NewListingService(db, newFakeBlobStore())
	seller := seedUser(t, db, models.RoleSeller)

	royalty := 50.0
	listing, err := svc.CreateListing(seller.ID, &CreateListingRequest{
		Name:           "Cube",
		Description:    "d",
		Category:       "c",
		Material:       models.MaterialPLA,
		RoyaltyPercent: &royalty,
	}, cubeMesh(100))
	require.NoError(t, err)
	assert.Equal(t, 2500.0, listing.CreatorRoyalty)

	tooHigh := 51.0
	_, err = svc.CreateListing(seller.ID, &CreateListingRequest{
		Name: "Cube", Description: "d", Category: "c",
		Material: models.MaterialPLA, RoyaltyPercent: &tooHigh,
	}, cubeMesh(100))
	assert.ErrorIs(t, err, ErrInvalidRoyalty)
}

func TestCreateListingRejectsBadMesh(t *testing.T) {
	db := newTestDB(t)
	blobs := newFakeBlobStore()
	svc := NewListingService(db, blobs)
	seller := seedUser(t, db, models.RoleSeller)

	_, err := svc.CreateListing(seller.ID, &CreateListingRequest{
		Name: "Broken", Description: "d", Category: "c", Material: models.MaterialPLA,
	}, []byte("this is not an stl"))
	assert.ErrorIs(t, err, geometry.ErrMalformedMesh)

	// Nothing stored, nothing uploaded.
	var count int64
	require.NoError(t, db.Model(&models.Listing{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, blobs.objects)
}

func TestUpdateListingReprices(t *testing.T) {
	db := newTestDB(t)
	svc := NewListingService(db, newFakeBlobStore())
	seller := seedUser(t, db, models.RoleSeller)

	listing, err := svc.CreateListing(seller.ID, &CreateListingRequest{
		Name: "Cube", Description: "d", Category: "c", Material: models.MaterialPLA,
	}, cubeMesh(100))
	require.NoError(t, err)

	// PLA -> Resin: rate 5 -> 8 over the stored 1000 cm³.
	updated, err := svc.UpdateListing(listing.ID, seller.ID, &UpdateListingRequest{
		Material: models.MaterialResin,
	})
	require.NoError(t, err)
	assert.Equal(t, 8000.0, updated.BaseCost)
	assert.Equal(t, 10400.0, updated.FinalPrice)
	assert.Equal(t, 1000.0, updated.VolumeCm3)

	// Descriptive edits alone leave the price untouched.
	updated, err = svc.UpdateListing(listing.ID, seller.ID, &UpdateListingRequest{
		Name: "Renamed cube",
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed cube", updated.Name)
	assert.Equal(t, 10400.0, updated.FinalPrice)
}

func TestUpdateListingOwnership(t *testing.T) {
	db := newTestDB(t)
	svc := NewListingService(db, newFakeBlobStore())
	seller := seedUser(t, db, models.RoleSeller)
	other := seedUser(t, db, models.RoleSeller)
	listing := seedListing(t, db, seller.ID, 100.00)

	_, err := svc.UpdateListing(listing.ID, other.ID, &UpdateListingRequest{Name: "Stolen"})
	assert.ErrorIs(t, err, ErrListingNotFound)

	_, err = svc.TogglePublish(listing.ID, other.ID)
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestTogglePublish(t *testing.T) {
	db := newTestDB(t)
	svc := NewListingService(db, newFakeBlobStore())
	seller := seedUser(t, db, models.RoleSeller)
	listing := seedListing(t, db, seller.ID, 100.00)

	published, err := svc.TogglePublish(listing.ID, seller.ID)
	require.NoError(t, err)
	assert.False(t, published)

	published, err = svc.TogglePublish(listing.ID, seller.ID)
	require.NoError(t, err)
	assert.True(t, published)
}

func TestBrowseShowsOnlyPurchasable(t *testing.T) {
	db := newTestDB(t)
	svc := NewListingService(db, newFakeBlobStore())
	seller := seedUser(t, db, models.RoleSeller)

	visible := seedListing(t, db, seller.ID, 100.00)
	hidden := seedListing(t, db, seller.ID, 50.00)
	require.NoError(t, db.Model(hidden).Update("is_published", false).Error)
	unapproved := seedListing(t, db, seller.ID, 75.00)
	require.NoError(t, db.Model(unapproved).Update("is_approved", false).Error)

	listings, total, err := svc.Browse(ListingSearchParams{PaginationParams: defaultPagination()})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, listings, 1)
	assert.Equal(t, visible.ID, listings[0].ID)
}

func TestBrowseSearchMatchesNameAndDescription(t *testing.T) {
	db := newTestDB(t)
	svc := NewListingService(db, newFakeBlobStore())
	seller := seedUser(t, db, models.RoleSeller)

	boat := seedListing(t, db, seller.ID, 100.00)
	dragon := seedListing(t, db, seller.ID, 50.00)
	require.NoError(t, db.Model(dragon).Updates(map[string]interface{}{
		"name":        "Dragon figurine",
		"description": "Articulated print-in-place",
	}).Error)

	listings, total, err := svc.Browse(ListingSearchParams{PaginationParams: utils.PaginationParams{
		Page: 1, Limit: 20, Sort: "created_at", Order: "desc", Search: "Dragon",
	}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, listings, 1)
	assert.Equal(t, dragon.ID, listings[0].ID)

	// Description text matches too.
	listings, total, err = svc.Browse(ListingSearchParams{PaginationParams: utils.PaginationParams{
		Page: 1, Limit: 20, Sort: "created_at", Order: "desc", Search: "boat",
	}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, listings, 1)
	assert.Equal(t, boat.ID, listings[0].ID)
}

// rivalWrite slips one out-of-band update between a service's fetch and
// its guarded write by hooking the update pipeline.
func rivalWrite(t *testing.T, db *gorm.DB, write func()) {
	t.Helper()
	fired := false
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("rival_write", func(*gorm.DB) {
		if fired {
			return
		}
		fired = true
		write()
	}))
}

func TestUpdateListingConcurrentEditNotLost(t *testing.T) {
	db := newTestDB(t)
	svc := NewListingService(db, newFakeBlobStore())
	seller := seedUser(t, db, models.RoleSeller)
	listing := seedListing(t, db, seller.ID, 100.00)

	rivalWrite(t, db, func() {
		require.NoError(t, db.Model(&models.Listing{}).
			Where("id = ?", listing.ID).
			Update("description", "Rival edit").Error)
	})

	updated, err := svc.UpdateListing(listing.ID, seller.ID, &UpdateListingRequest{Name: "Benchy XL"})
	require.NoError(t, err)
	assert.Equal(t, "Benchy XL", updated.Name)

	// Both edits survive: the guarded write lost the first round,
	// re-read and retried on top of the rival's change.
	var stored models.Listing
	require.NoError(t, db.First(&stored, "id = ?", listing.ID).Error)
	assert.Equal(t, "Benchy XL", stored.Name)
	assert.Equal(t, "Rival edit", stored.Description)
}

func TestUploadImageConcurrentAppendNotLost(t *testing.T) {
	db := newTestDB(t)
	svc := NewListingService(db, newFakeBlobStore())
	seller := seedUser(t, db, models.RoleSeller)
	listing := seedListing(t, db, seller.ID, 100.00)

	rivalWrite(t, db, func() {
		require.NoError(t, db.Model(&models.Listing{}).
			Where("id = ?", listing.ID).
			Update("images", models.StringList{"https://files.test/rival.png"}).Error)
	})

	url, err := svc.UploadImage(listing.ID, seller.ID, []byte("png bytes"), "mine.png", "image/png")
	require.NoError(t, err)

	var stored models.Listing
	require.NoError(t, db.First(&stored, "id = ?", listing.ID).Error)
	assert.Equal(t, models.StringList{"https://files.test/rival.png", url}, stored.Images)
}

func TestGetListingPresignsSTL(t *testing.T) {
	db := newTestDB(t)
	svc := NewListingService(db, newFakeBlobStore())
	seller := seedUser(t, db, models.RoleSeller)
	listing := seedListing(t, db, seller.ID, 100.00)

	got, stlURL, err := svc.GetListing(listing.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.ID, got.ID)
	assert.Contains(t, stlURL, listing.STLFileKey)

	_, _, err = svc.GetListing(uuid.New())
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestModeration(t *testing.T) {
	db := newTestDB(t)
	blobs := newFakeBlobStore()
	svc := NewListingService(db, blobs)
	seller := seedUser(t, db, models.RoleSeller)

	listing, err := svc.CreateListing(seller.ID, &CreateListingRequest{
		Name: "Cube", Description: "d", Category: "c", Material: models.MaterialPLA,
	}, cubeMesh(10))
	require.NoError(t, err)

	// It shows up in the queue until approved.
	pending, total, err := svc.PendingApproval(defaultPagination())
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, pending, 1)

	require.NoError(t, svc.SetApproval(listing.ID, true))
	_, total, err = svc.PendingApproval(defaultPagination())
	require.NoError(t, err)
	assert.Zero(t, total)

	assert.ErrorIs(t, svc.SetApproval(uuid.New(), true), ErrListingNotFound)

	// Moderation delete takes the record and the mesh with it.
	require.NoError(t, svc.ModerationDelete(listing.ID))
	assert.NotContains(t, blobs.objects, listing.STLFileKey)
	assert.ErrorIs(t, svc.ModerationDelete(listing.ID), ErrListingNotFound)
}
