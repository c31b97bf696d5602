// internal/pricing/pricing.go

// Package pricing derives a displayed price from extracted mesh volume
// and business rules. Pure functions, no side effects.
package pricing

import (
	"math"

	"github.com/printforge/printforge-backend/internal/models"
)

// Per-cm³ fabrication rates in currency units.
var materialRates = map[models.Material]float64{
	models.MaterialPLA:   5,
	models.MaterialABS:   6,
	models.MaterialResin: 8,
}

// PlatformMarginRate is the fixed platform cut on base cost.
const PlatformMarginRate = 0.20

// DefaultRoyaltyPercent applies when the seller has not chosen one.
const DefaultRoyaltyPercent = 10.0

// MaxRoyaltyPercent bounds seller-chosen royalty. Enforced by callers,
// not here.
const MaxRoyaltyPercent = 50.0

// Quote is the full price breakdown for one listing or custom print.
type Quote struct {
	VolumeCm3             float64         `json:"volume_cm3"`
	Material              models.Material `json:"material"`
	RatePerCm3            float64         `json:"rate_per_cm3"`
	BaseCost              float64         `json:"base_cost"`
	PlatformMargin        float64         `json:"platform_margin"`
	CreatorRoyaltyPercent float64         `json:"creator_royalty_percent"`
	CreatorRoyalty        float64         `json:"creator_royalty"`
	FinalPrice            float64         `json:"final_price"`
}

// Rate returns the per-cm³ rate for a material. Unknown materials fall
// back to the PLA rate; that is the documented policy, not an error.
func Rate(material models.Material) float64 {
	if rate, ok := materialRates[material]; ok {
		return rate
	}
	return materialRates[models.MaterialPLA]
}

// Calculate prices a volume. royaltyPercent must already be validated
// to [0, MaxRoyaltyPercent] by the caller; no clamping happens here.
// Monetary outputs are rounded to two decimals, volume passes through
// untouched.
func Calculate(volumeCm3 float64, material models.Material, royaltyPercent float64) Quote {
	rate := Rate(material)
	baseCost := round2(volumeCm3 * rate)
	margin := round2(baseCost * PlatformMarginRate)
	royalty := round2(baseCost * royaltyPercent / 100)

	return Quote{
		VolumeCm3:             volumeCm3,
		Material:              material,
		RatePerCm3:            rate,
		BaseCost:              baseCost,
		PlatformMargin:        margin,
		CreatorRoyaltyPercent: royaltyPercent,
		CreatorRoyalty:        royalty,
		FinalPrice:            round2(baseCost + margin + royalty),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
