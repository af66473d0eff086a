package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bosocmputer/receipt_vision_ocr/internal/common"
	"github.com/bosocmputer/receipt_vision_ocr/internal/processor"
)

func testSegment() processor.ImageSegment {
	return processor.ImageSegment{
		Data:     []byte{0xFF, 0xD8, 0xFF},
		MIMEType: "image/jpeg",
		Index:    0,
		Detail:   processor.DetailLow,
	}
}

func newTestMistral(t *testing.T, handler http.HandlerFunc) *MistralProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewMistralProvider("test-key", "pixtral-12b-2409", 0.15, 0.15)
	p.endpoint = srv.URL
	return p
}

func TestMistralExtractParsesResponse(t *testing.T) {
	p := newTestMistral(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req mistralChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		resp := mistralChatResponse{
			Choices: []mistralChatChoice{{FinishReason: "stop"}},
			Usage:   mistralUsage{PromptTokens: 1000, CompletionTokens: 200, TotalTokens: 1200},
		}
		resp.Choices[0].Message.Content = "```json\n" + `{"vendor":"Corner Mart","total":9.99,"currency":"$","line_items":[{"name":"Milk","quantity":1,"total_price":9.99}]}` + "\n```"
		json.NewEncoder(w).Encode(resp)
	})

	raw, usage, err := p.Extract(context.Background(), testSegment(), SchemaFull, common.NewRequestContext("receipt.jpg"))
	require.NoError(t, err)

	assert.Equal(t, "Corner Mart", raw.Vendor)
	require.Len(t, raw.LineItems, 1)
	assert.InDelta(t, 9.99, raw.Total.Float(), 0.0001)

	require.NotNil(t, usage)
	assert.Equal(t, 1200, usage.TotalTokens)
	assert.Greater(t, usage.CostUSD, 0.0)
}

func TestMistralExtractMapsAPIErrors(t *testing.T) {
	p := newTestMistral(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(mistralErrorResponse{Message: "rate limit exceeded"})
	})

	_, _, err := p.Extract(context.Background(), testSegment(), SchemaFull, common.NewRequestContext("receipt.jpg"))
	require.Error(t, err)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "mistral", pe.Provider)
	assert.Equal(t, 429, pe.StatusCode)
	assert.True(t, pe.Retryable)
}

func TestMistralExtractMalformedJSONIsParseError(t *testing.T) {
	p := newTestMistral(t, func(w http.ResponseWriter, r *http.Request) {
		resp := mistralChatResponse{Choices: []mistralChatChoice{{}}}
		resp.Choices[0].Message.Content = "sorry, I could not read this receipt"
		json.NewEncoder(w).Encode(resp)
	})

	_, _, err := p.Extract(context.Background(), testSegment(), SchemaFull, common.NewRequestContext("receipt.jpg"))

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindParse, pe.Kind)
	assert.False(t, pe.Retryable)
}

func TestStripMarkdownFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripMarkdownFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripMarkdownFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripMarkdownFences(`{"a":1}`))
}
