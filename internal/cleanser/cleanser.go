// cleanser.go - Normalization, cross-validation and confidence scoring
// of merged provider output

package cleanser

import (
	"math"
	"strings"

	"github.com/bosocmputer/receipt_vision_ocr/internal/ai"
	"github.com/bosocmputer/receipt_vision_ocr/internal/common"
	"github.com/bosocmputer/receipt_vision_ocr/internal/receipt"
)

// amountTolerance is the allowed drift between stated and computed sums,
// in currency units.
const amountTolerance = 0.01

// Confidence adjustments applied on top of the provider's own estimate
const (
	bonusVendor      = 10.0
	bonusDate        = 10.0
	bonusLineItems   = 10.0
	bonusConsistency = 10.0
	penaltyPerError  = 15.0
)

// Cleanser normalizes untrusted provider output into the result payload
type Cleanser struct {
	fallbackCurrency string
}

// New creates a cleanser. fallbackCurrency is the ISO code used when the
// receipt's currency cannot be recognized.
func New(fallbackCurrency string) *Cleanser {
	return &Cleanser{fallbackCurrency: fallbackCurrency}
}

// Cleanse normalizes a merged extraction, runs the cross-checks and
// computes the final confidence score. Validation problems become
// warnings or errors on the result, never a failed call.
func (c *Cleanser) Cleanse(raw *ai.RawExtraction, reqCtx *common.RequestContext) *receipt.ExtractionResult {
	result := &receipt.ExtractionResult{
		Vendor:   strings.TrimSpace(raw.Vendor),
		Currency: NormalizeCurrency(raw.Currency, c.fallbackCurrency),
		Type:     normalizeType(raw.Type),
		Category: MapCategory(raw.Category, raw.Vendor),
		Total:    round2(raw.Total.Float()),
		Subtotal: round2(raw.Subtotal.Float()),
		Tax:      round2(raw.Tax.Float()),
		Discount: round2(raw.Discount.Float()),
	}

	date, dateOK := NormalizeDate(raw.Date)
	result.Date = date

	result.LineItems = make([]receipt.LineItem, 0, len(raw.LineItems))
	for _, item := range raw.LineItems {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		li := receipt.LineItem{Name: name, Quantity: item.Quantity}
		if li.Quantity == 0 {
			li.Quantity = 1
		}
		if item.UnitPrice != nil {
			v := round2(item.UnitPrice.Float())
			li.UnitPrice = &v
		}
		if item.TotalPrice != nil {
			v := round2(item.TotalPrice.Float())
			li.TotalPrice = &v
		}
		result.LineItems = append(result.LineItems, li)
	}

	consistent := c.validate(raw, result, dateOK)
	result.Confidence = c.score(raw.Confidence, result, dateOK, consistent)

	if reqCtx != nil {
		reqCtx.LogInfo("📊 Cleanse summary:")
		reqCtx.LogInfo("  ├─ Vendor: %q, Date: %q, Currency: %s, Category: %s", result.Vendor, result.Date, result.Currency, result.Category)
		reqCtx.LogInfo("  ├─ Total: %.2f, Items: %d, Warnings: %d, Errors: %d", result.Total, len(result.LineItems), len(result.Warnings), len(result.Errors))
		reqCtx.LogInfo("  └─ Confidence: %.0f (provider estimate %.0f)", result.Confidence, raw.Confidence)
	}

	return result
}

// validate runs the cross-checks and appends warnings/errors in place.
// Returns whether the stated amounts are internally consistent.
func (c *Cleanser) validate(raw *ai.RawExtraction, result *receipt.ExtractionResult, dateOK bool) bool {
	consistent := true

	if result.Vendor == "" {
		result.Warnings = append(result.Warnings, "vendor is missing")
	}
	if !dateOK {
		result.Warnings = append(result.Warnings, "date is missing or unparsable")
	}

	if raw.Subtotal != nil {
		itemSum := 0.0
		priced := 0
		for _, item := range result.LineItems {
			if item.TotalPrice != nil {
				itemSum += *item.TotalPrice
				priced++
			}
		}
		if priced > 0 && math.Abs(itemSum-result.Subtotal) > amountTolerance {
			result.Warnings = append(result.Warnings, "line items do not sum to subtotal")
			consistent = false
		}
	}

	if raw.Total != nil && raw.Subtotal != nil {
		computed := result.Subtotal + result.Tax - result.Discount
		if math.Abs(computed-result.Total) > amountTolerance {
			result.Warnings = append(result.Warnings, "subtotal + tax - discount does not match total")
			consistent = false
		}
	}

	if raw.Total == nil {
		result.Errors = append(result.Errors, "total is missing")
	} else if result.Total <= 0 {
		result.Errors = append(result.Errors, "total must be positive")
	}
	if raw.Tax != nil && result.Tax < 0 {
		result.Errors = append(result.Errors, "tax cannot be negative")
	}

	return consistent
}

// score computes the final 0-100 confidence from the provider's estimate
func (c *Cleanser) score(providerEstimate float64, result *receipt.ExtractionResult, dateOK, consistent bool) float64 {
	score := clamp(providerEstimate, 0, 100)

	if result.Vendor != "" {
		score += bonusVendor
	}
	if dateOK {
		score += bonusDate
	}
	if len(result.LineItems) > 0 {
		score += bonusLineItems
	}
	if consistent {
		score += bonusConsistency
	}
	score -= penaltyPerError * float64(len(result.Errors))

	return clamp(math.Round(score), 0, 100)
}

func normalizeType(t string) string {
	if strings.EqualFold(strings.TrimSpace(t), "income") {
		return "income"
	}
	return "expense"
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
