// merge.go - Segment merging and continuation-line fusion

package orchestrator

import (
	"math"
	"unicode"

	"github.com/bosocmputer/receipt_vision_ocr/internal/ai"
)

// mergeSegments combines per-segment extractions strictly by segment
// index. Header fields come from segment 0 alone; line items are
// concatenated in segment order and then fused.
func mergeSegments(parts []*ai.RawExtraction) *ai.RawExtraction {
	merged := *parts[0]

	var items []ai.RawLineItem
	for _, part := range parts {
		if part == nil {
			continue
		}
		items = append(items, part.LineItems...)
	}
	merged.LineItems = fuseContinuationLines(items)

	return &merged
}

// fuseContinuationLines joins an item that is a wrapped name fragment
// with the item that follows it. A fragment has no total price and its
// name does not end in a digit; fusion concatenates the names directly
// since the wrap point splits mid-word.
func fuseContinuationLines(items []ai.RawLineItem) []ai.RawLineItem {
	if len(items) < 2 {
		return items
	}

	out := make([]ai.RawLineItem, 0, len(items))
	for i := 0; i < len(items); i++ {
		cur := items[i]

		if cur.TotalPrice == nil && !endsWithDigit(cur.Name) && i+1 < len(items) {
			next := items[i+1]
			cur.Name += next.Name
			cur.UnitPrice = next.UnitPrice
			cur.TotalPrice = next.TotalPrice
			if cur.Quantity == 0 {
				cur.Quantity = next.Quantity
			}
			i++
		}

		out = append(out, cur)
	}
	return out
}

func endsWithDigit(s string) bool {
	runes := []rune(s)
	if len(runes) == 0 {
		return false
	}
	return unicode.IsDigit(runes[len(runes)-1])
}

// needsRescue reports whether the merged extraction is missing totals or
// fails the item-sum cross-check, warranting one cheap follow-up call.
func needsRescue(raw *ai.RawExtraction) bool {
	if raw.Total == nil || raw.Tax == nil {
		return true
	}

	if raw.Subtotal != nil {
		sum := 0.0
		priced := 0
		for _, item := range raw.LineItems {
			if item.TotalPrice != nil {
				sum += item.TotalPrice.Float()
				priced++
			}
		}
		if priced > 0 && math.Abs(sum-raw.Subtotal.Float()) > 0.01 {
			return true
		}
	}

	return false
}

// applyRescue fills missing fields from the rescue response, never
// overwriting values already present.
func applyRescue(raw, rescued *ai.RawExtraction) {
	if rescued == nil {
		return
	}
	if raw.Total == nil && rescued.Total != nil {
		raw.Total = rescued.Total
	}
	if raw.Tax == nil && rescued.Tax != nil {
		raw.Tax = rescued.Tax
	}
	if raw.ItemCount == nil && rescued.ItemCount != nil {
		raw.ItemCount = rescued.ItemCount
	}
}
