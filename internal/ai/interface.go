// interface.go - Vision provider interface for supporting multiple AI providers

package ai

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/bosocmputer/receipt_vision_ocr/internal/common"
	"github.com/bosocmputer/receipt_vision_ocr/internal/processor"
)

// SchemaKind selects which extraction schema a provider call requests.
// Only the first segment of a receipt carries header fields; later
// segments ask for line items only, and the rescue pass asks for a tiny
// totals-only payload.
type SchemaKind int

const (
	SchemaFull SchemaKind = iota
	SchemaItemsOnly
	SchemaRescue
)

// VisionProvider is the interface all extraction providers implement.
// Extract must not panic on malformed upstream output: it returns a
// *ProviderError instead so the orchestrator can count it as a provider
// failure without crashing the pipeline.
type VisionProvider interface {
	Extract(ctx context.Context, segment processor.ImageSegment, schema SchemaKind, reqCtx *common.RequestContext) (*RawExtraction, *common.TokenUsage, error)
	Name() string
}

// RawLineItem is one item as the provider reported it, untrusted
type RawLineItem struct {
	Name       string      `json:"name"`
	Quantity   float64     `json:"quantity"`
	UnitPrice  *FlexAmount `json:"unit_price"`
	TotalPrice *FlexAmount `json:"total_price"`
}

// RawExtraction is the provider's raw structured output before cleansing.
// All fields are untrusted input; numeric fields are pointers so "absent"
// and "zero" stay distinguishable for the rescue pass.
type RawExtraction struct {
	Vendor     string        `json:"vendor"`
	Date       string        `json:"date"`
	Subtotal   *FlexAmount   `json:"subtotal"`
	Tax        *FlexAmount   `json:"tax"`
	Discount   *FlexAmount   `json:"discount"`
	Total      *FlexAmount   `json:"total"`
	Currency   string        `json:"currency"`
	Type       string        `json:"type"`
	Category   string        `json:"category"`
	Confidence float64       `json:"confidence"`
	LineItems  []RawLineItem `json:"line_items"`
	ItemCount  *int          `json:"item_count"`
}

// FlexAmount unmarshals from a JSON number or a monetary string such as
// "$1,299.50". Providers are inconsistent about which they send.
type FlexAmount float64

func (f *FlexAmount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*f = FlexAmount(v)
		return nil
	}

	// String form: strip quotes and parse the first numeric token
	s = strings.Trim(s, `"`)
	if v, ok := ParseAmount(s); ok {
		*f = FlexAmount(v)
		return nil
	}

	// Unparsable amounts become zero rather than failing the whole payload
	*f = 0
	return nil
}

// Float returns the amount or 0 for nil
func (f *FlexAmount) Float() float64 {
	if f == nil {
		return 0
	}
	return float64(*f)
}

var amountPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// ParseAmount extracts the first numeric token from a monetary string,
// tolerating currency symbols and thousands separators.
func ParseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	match := amountPattern.FindString(s)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
