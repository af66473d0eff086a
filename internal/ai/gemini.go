// gemini.go - Gemini vision provider (primary)

package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/bosocmputer/receipt_vision_ocr/internal/common"
	"github.com/bosocmputer/receipt_vision_ocr/internal/processor"
)

// GeminiProvider implements VisionProvider using the Gemini API with a
// JSON response schema, so malformed output is rare but still handled.
type GeminiProvider struct {
	apiKey           string
	modelName        string
	inputPricePerM   float64
	outputPricePerM  float64
	maxRetryAttempts int
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(apiKey, modelName string, inputPricePerM, outputPricePerM float64) *GeminiProvider {
	return &GeminiProvider{
		apiKey:           apiKey,
		modelName:        modelName,
		inputPricePerM:   inputPricePerM,
		outputPricePerM:  outputPricePerM,
		maxRetryAttempts: 2,
	}
}

// Name returns "gemini"
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Extract sends one prepared segment to Gemini and decodes the response
// into a RawExtraction. The caller-supplied ctx carries the per-call
// timeout; timeouts and API failures come back as *ProviderError.
func (p *GeminiProvider) Extract(ctx context.Context, segment processor.ImageSegment, schema SchemaKind, reqCtx *common.RequestContext) (*RawExtraction, *common.TokenUsage, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return nil, nil, categorizeError(p.Name(), fmt.Errorf("failed to create Gemini client: %w", err))
	}
	defer client.Close()

	model := client.GenerativeModel(p.modelName)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: ptr(int32(8192)),
		Temperature:     ptr(float32(0.1)),
	}
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = genaiSchemaFor(schema)

	prompt := PromptFor(schema, segment.Detail)

	resp, err := p.generateWithRetry(ctx, model,
		genai.Text(prompt),
		genai.Blob{
			MIMEType: segment.MIMEType,
			Data:     segment.Data,
		},
		reqCtx,
	)
	if err != nil {
		return nil, nil, categorizeError(p.Name(), err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, nil, newParseError(p.Name(), fmt.Errorf("empty response from Gemini API"))
	}

	var jsonResponse string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			jsonResponse = string(text)
			break
		}
	}
	if jsonResponse == "" {
		return nil, nil, newParseError(p.Name(), fmt.Errorf("no text part in Gemini response"))
	}

	var result RawExtraction
	if err := json.Unmarshal([]byte(jsonResponse), &result); err != nil {
		return nil, nil, newParseError(p.Name(), err)
	}

	if resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		reqCtx.LogWarning("Gemini response truncated (MAX_TOKENS), segment %d may be incomplete", segment.Index)
	}

	var usage *common.TokenUsage
	if resp.UsageMetadata != nil {
		u := common.CalculateTokenCost(
			int(resp.UsageMetadata.PromptTokenCount),
			int(resp.UsageMetadata.CandidatesTokenCount),
			p.inputPricePerM,
			p.outputPricePerM,
		)
		usage = &u
	}

	return &result, usage, nil
}

// generateWithRetry retries transient failures with a short backoff,
// always bounded by the caller's ctx.
func (p *GeminiProvider) generateWithRetry(ctx context.Context, model *genai.GenerativeModel, prompt, image genai.Part, reqCtx *common.RequestContext) (*genai.GenerateContentResponse, error) {
	var lastErr *ProviderError

	for attempt := 1; attempt <= p.maxRetryAttempts; attempt++ {
		resp, err := model.GenerateContent(ctx, prompt, image)
		if err == nil {
			if attempt > 1 {
				reqCtx.LogInfo("✅ Gemini retry succeeded on attempt %d", attempt)
			}
			return resp, nil
		}

		lastErr = categorizeError(p.Name(), err)
		reqCtx.LogError("Gemini call failed (attempt %d/%d): %s", attempt, p.maxRetryAttempts, lastErr.Error())

		if !lastErr.Retryable || attempt >= p.maxRetryAttempts {
			break
		}

		delay := time.Duration(attempt) * time.Second
		select {
		case <-ctx.Done():
			return nil, categorizeError(p.Name(), ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

// genaiSchemaFor builds the response schema the model is constrained to
func genaiSchemaFor(schema SchemaKind) *genai.Schema {
	lineItems := &genai.Schema{
		Type:        genai.TypeArray,
		Description: "Purchased items in printed order",
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"name":        {Type: genai.TypeString},
				"quantity":    {Type: genai.TypeNumber},
				"unit_price":  {Type: genai.TypeNumber, Nullable: true},
				"total_price": {Type: genai.TypeNumber, Nullable: true},
			},
			Required: []string{"name"},
		},
	}

	switch schema {
	case SchemaItemsOnly:
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"line_items": lineItems,
			},
			Required: []string{"line_items"},
		}

	case SchemaRescue:
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"total":      {Type: genai.TypeNumber, Nullable: true},
				"tax":        {Type: genai.TypeNumber, Nullable: true},
				"item_count": {Type: genai.TypeInteger, Nullable: true},
			},
		}

	default:
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"vendor":     {Type: genai.TypeString},
				"date":       {Type: genai.TypeString, Description: "Transaction date as printed"},
				"subtotal":   {Type: genai.TypeNumber, Nullable: true},
				"tax":        {Type: genai.TypeNumber, Nullable: true},
				"discount":   {Type: genai.TypeNumber, Nullable: true},
				"total":      {Type: genai.TypeNumber, Nullable: true},
				"currency":   {Type: genai.TypeString},
				"type":       {Type: genai.TypeString, Description: "expense or income"},
				"category":   {Type: genai.TypeString, Description: "Best-guess spending category"},
				"confidence": {Type: genai.TypeNumber, Description: "Self-estimated read reliability, 0-100"},
				"line_items": lineItems,
			},
			Required: []string{"vendor", "line_items"},
		}
	}
}

func ptr[T any](v T) *T {
	return &v
}
