package cleanser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bosocmputer/receipt_vision_ocr/internal/ai"
)

func amount(v float64) *ai.FlexAmount {
	f := ai.FlexAmount(v)
	return &f
}

func cleanRaw() *ai.RawExtraction {
	return &ai.RawExtraction{
		Vendor:     "Corner Mart",
		Date:       "12/03/2025",
		Subtotal:   amount(10.00),
		Tax:        amount(0.80),
		Total:      amount(10.80),
		Currency:   "$",
		Type:       "expense",
		Category:   "groceries",
		Confidence: 60,
		LineItems: []ai.RawLineItem{
			{Name: "Milk 2L", Quantity: 1, TotalPrice: amount(4.00)},
			{Name: "Bread", Quantity: 2, TotalPrice: amount(6.00)},
		},
	}
}

func TestCleanseHappyPath(t *testing.T) {
	result := New("USD").Cleanse(cleanRaw(), nil)

	assert.Equal(t, "Corner Mart", result.Vendor)
	assert.Equal(t, "2025-03-12", result.Date)
	assert.Equal(t, "USD", result.Currency)
	assert.Equal(t, "groceries", result.Category)
	assert.Empty(t, result.Warnings)
	assert.Empty(t, result.Errors)

	// 60 base + vendor + date + items + consistency
	assert.Equal(t, 100.0, result.Confidence)
}

func TestCleanseSubtotalMismatchIsWarning(t *testing.T) {
	raw := cleanRaw()
	// Items sum to 9.98 against a stated subtotal of 10.00
	raw.LineItems[1].TotalPrice = amount(5.98)

	result := New("USD").Cleanse(raw, nil)

	assert.Contains(t, result.Warnings, "line items do not sum to subtotal")
	assert.Empty(t, result.Errors, "a sum mismatch is a warning, never an error")
}

func TestCleanseWithinToleranceIsClean(t *testing.T) {
	raw := cleanRaw()
	raw.LineItems[1].TotalPrice = amount(6.01)
	raw.Subtotal = amount(10.01)
	raw.Total = amount(10.81)

	result := New("USD").Cleanse(raw, nil)
	assert.Empty(t, result.Warnings)
}

func TestCleanseTotalCrossCheck(t *testing.T) {
	raw := cleanRaw()
	raw.Total = amount(12.00)

	result := New("USD").Cleanse(raw, nil)
	assert.Contains(t, result.Warnings, "subtotal + tax - discount does not match total")
}

func TestCleanseDiscountBalancesTotal(t *testing.T) {
	raw := cleanRaw()
	raw.Discount = amount(2.00)
	raw.Total = amount(8.80)

	result := New("USD").Cleanse(raw, nil)
	assert.NotContains(t, result.Warnings, "subtotal + tax - discount does not match total")
}

func TestCleanseErrors(t *testing.T) {
	raw := cleanRaw()
	raw.Total = amount(0)
	raw.Tax = amount(-1.50)

	result := New("USD").Cleanse(raw, nil)

	assert.Contains(t, result.Errors, "total must be positive")
	assert.Contains(t, result.Errors, "tax cannot be negative")
}

func TestCleanseMissingTotalIsError(t *testing.T) {
	// Provider returned no amounts at all and the rescue recovered nothing
	raw := cleanRaw()
	raw.Total = nil
	raw.Subtotal = nil
	raw.Tax = nil

	result := New("USD").Cleanse(raw, nil)

	assert.Contains(t, result.Errors, "total is missing")
	// 60 base + vendor + date + items + consistency - one error penalty
	assert.Equal(t, 85.0, result.Confidence)
}

func TestCleanseMissingFieldsWarn(t *testing.T) {
	raw := cleanRaw()
	raw.Vendor = ""
	raw.Date = "sometime last week"

	result := New("USD").Cleanse(raw, nil)

	assert.Contains(t, result.Warnings, "vendor is missing")
	assert.Contains(t, result.Warnings, "date is missing or unparsable")
	assert.Empty(t, result.Date)
}

func TestCleanseConfidenceClampAndPenalty(t *testing.T) {
	raw := cleanRaw()
	raw.Confidence = 20
	raw.Vendor = ""
	raw.Date = ""
	raw.Total = amount(0)   // error
	raw.Tax = amount(-0.50) // error

	result := New("USD").Cleanse(raw, nil)

	// 20 base + items(10) + consistency fails on total cross-check... compute:
	// subtotal(10.00)+tax(-0.50)-0 = 9.50 vs total 0 -> inconsistency warning
	// 20 + 10 (items) - 30 (two errors) = 0
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestCleanseDropsNamelessItemsAndDefaultsQuantity(t *testing.T) {
	raw := cleanRaw()
	raw.LineItems = append(raw.LineItems, ai.RawLineItem{Name: "   "})
	raw.LineItems = append(raw.LineItems, ai.RawLineItem{Name: "Eggs", Quantity: 0, TotalPrice: amount(3.20)})

	result := New("USD").Cleanse(raw, nil)

	require.Len(t, result.LineItems, 3)
	assert.Equal(t, "Eggs", result.LineItems[2].Name)
	assert.Equal(t, 1.0, result.LineItems[2].Quantity)
}

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"$", "USD"},
		{"£", "GBP"},
		{"€", "EUR"},
		{"฿", "THB"},
		{"gbp", "GBP"},
		{"USD", "USD"},
		{"£ ", "GBP"},
		{"", "THB"},
		{"doubloons", "THB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCurrency(tt.in, "THB"), "input %q", tt.in)
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"2025-03-12", "2025-03-12", true},
		{"12/03/2025", "2025-03-12", true},
		{"12.03.2025", "2025-03-12", true},
		{"12 Mar 2025", "2025-03-12", true},
		{"March 12, 2025", "2025-03-12", true},
		{"2025-03-12 14:33:05", "2025-03-12", true},
		{"yesterday", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := NormalizeDate(tt.in)
		assert.Equal(t, tt.wantOK, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestMapCategory(t *testing.T) {
	assert.Equal(t, "groceries", MapCategory("groceries", ""))
	assert.Equal(t, "groceries", MapCategory("Groceries", "Anything"))
	assert.Equal(t, "dining", MapCategory("italian restaurant", ""))
	assert.Equal(t, "groceries", MapCategory("", "City Supermarket"))
	assert.Equal(t, "fuel", MapCategory("", "Shell Station 42"))
	assert.Equal(t, "other", MapCategory("miscellany", "Acme Corp"))
}
