// receipt.go - Request and result payloads shared across the pipeline

package receipt

// ExtractionRequest carries one uploaded receipt image through the
// orchestrator. Immutable once created; owned by the caller.
type ExtractionRequest struct {
	Image             []byte
	Filename          string
	PreferredProvider string
	HighFidelity      bool
}

// LineItem is one purchased item on the receipt
type LineItem struct {
	Name       string   `json:"name"`
	Quantity   float64  `json:"quantity"`
	UnitPrice  *float64 `json:"unit_price,omitempty"`
	TotalPrice *float64 `json:"total_price,omitempty"`
}

// Metadata describes how the result was produced
type Metadata struct {
	ProviderUsed       string   `json:"provider_used"`
	AttemptedProviders []string `json:"attempted_providers"`
	ElapsedMs          int64    `json:"elapsed_ms"`
	CostEstimateUSD    float64  `json:"cost_estimate_usd"`
	SegmentCount       int      `json:"segment_count"`
	TotalTokens        int      `json:"total_tokens"`
	CacheHit           bool     `json:"cache_hit"`
	FallbackUsed       bool     `json:"fallback_used"`
}

// ExtractionResult is the cleansed, validated output returned to callers.
// Never mutated after the orchestrator returns it.
type ExtractionResult struct {
	Vendor     string     `json:"vendor"`
	Date       string     `json:"date"` // normalized YYYY-MM-DD, empty if unparsable
	Total      float64    `json:"total"`
	Subtotal   float64    `json:"subtotal"`
	Tax        float64    `json:"tax"`
	Discount   float64    `json:"discount"`
	Currency   string     `json:"currency"`
	Type       string     `json:"type"` // "expense" or "income"
	Category   string     `json:"category"`
	LineItems  []LineItem `json:"line_items"`
	Confidence float64    `json:"confidence"` // 0-100
	Warnings   []string   `json:"warnings"`
	Errors     []string   `json:"errors"`
	Metadata   Metadata   `json:"metadata"`
}
