// prompts.go - Extraction prompts shared by all providers

package ai

import (
	"fmt"

	"github.com/bosocmputer/receipt_vision_ocr/internal/processor"
)

const fullSchemaShape = `{
  "vendor": "store or merchant name as printed",
  "date": "transaction date as printed",
  "subtotal": 0.0,
  "tax": 0.0,
  "discount": 0.0,
  "total": 0.0,
  "currency": "currency symbol or ISO code as printed",
  "type": "expense or income",
  "category": "best-guess spending category, e.g. groceries or dining",
  "confidence": 0,
  "line_items": [
    {"name": "item name", "quantity": 1, "unit_price": 0.0, "total_price": 0.0}
  ]
}`

const itemsOnlyShape = `{
  "line_items": [
    {"name": "item name", "quantity": 1, "unit_price": 0.0, "total_price": 0.0}
  ]
}`

const rescueShape = `{
  "total": 0.0,
  "tax": 0.0,
  "item_count": 0
}`

// PromptFor builds the instruction text for a schema kind. The detail
// hint nudges providers to spend more effort on hard (dark/flat) photos.
func PromptFor(schema SchemaKind, detail processor.DetailLevel) string {
	effort := "Read the receipt quickly; it is a clear photo."
	if detail == processor.DetailHigh {
		effort = "The photo is dark or low-contrast. Read carefully, character by character, before answering."
	}

	switch schema {
	case SchemaItemsOnly:
		return fmt.Sprintf(`You are reading one vertical slice of a shop receipt. %s
Extract ONLY the purchased line items visible in this slice.
Ignore any header, totals, or footer text.
If an item's price is cut off at the slice edge, still include the item with total_price set to null.
Respond with JSON only, exactly this shape:
%s`, effort, itemsOnlyShape)

	case SchemaRescue:
		return fmt.Sprintf(`You are reading the bottom slice of a shop receipt.
Find ONLY the grand total, the tax amount, and how many purchased items the receipt lists.
Use null for anything not visible.
Respond with JSON only, exactly this shape:
%s`, rescueShape)

	default:
		return fmt.Sprintf(`You are reading a photographed shop receipt. %s
Extract the merchant, transaction date, amounts, and every purchased line item.
Numbers must be plain decimals without currency symbols. Use null for fields not on the receipt.
"confidence" is your own 0-100 estimate of how reliably you read this receipt.
Respond with JSON only, exactly this shape:
%s`, effort, fullSchemaShape)
	}
}
