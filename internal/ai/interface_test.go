package ai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexAmountUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"plain number", `12.5`, 12.5},
		{"integer", `42`, 42},
		{"negative", `-3.20`, -3.20},
		{"dollar string", `"$1,299.50"`, 1299.50},
		{"pound string", `"£12.99"`, 12.99},
		{"plain string", `"7.80"`, 7.80},
		{"unparsable string", `"free"`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexAmount
			require.NoError(t, json.Unmarshal([]byte(tt.in), &f))
			assert.InDelta(t, tt.want, float64(f), 0.0001)
		})
	}
}

func TestFlexAmountNullStaysNil(t *testing.T) {
	var payload struct {
		Total *FlexAmount `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"total": null}`), &payload))
	assert.Nil(t, payload.Total)

	require.NoError(t, json.Unmarshal([]byte(`{"total": 0}`), &payload))
	require.NotNil(t, payload.Total)
	assert.Equal(t, 0.0, payload.Total.Float())
}

func TestParseAmount(t *testing.T) {
	v, ok := ParseAmount("฿1,234.56")
	require.True(t, ok)
	assert.InDelta(t, 1234.56, v, 0.0001)

	v, ok = ParseAmount("-15.00 EUR")
	require.True(t, ok)
	assert.InDelta(t, -15.00, v, 0.0001)

	_, ok = ParseAmount("no digits here")
	assert.False(t, ok)
}

func TestRawExtractionDecodesProviderPayload(t *testing.T) {
	payload := `{
		"vendor": "Corner Mart",
		"date": "12/03/2025",
		"subtotal": "10.00",
		"tax": 0.80,
		"total": "$10.80",
		"currency": "$",
		"type": "expense",
		"confidence": 88,
		"line_items": [
			{"name": "Milk 2L", "quantity": 1, "unit_price": 2.50, "total_price": 2.50},
			{"name": "Bread", "quantity": 2, "unit_price": null, "total_price": "3.00"}
		]
	}`

	var raw RawExtraction
	require.NoError(t, json.Unmarshal([]byte(payload), &raw))

	assert.Equal(t, "Corner Mart", raw.Vendor)
	assert.InDelta(t, 10.80, raw.Total.Float(), 0.0001)
	assert.Nil(t, raw.Discount)
	require.Len(t, raw.LineItems, 2)
	assert.Nil(t, raw.LineItems[1].UnitPrice)
	assert.InDelta(t, 3.00, raw.LineItems[1].TotalPrice.Float(), 0.0001)
}
