// mistral.go - Mistral vision provider (fallback)

package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bosocmputer/receipt_vision_ocr/internal/common"
	"github.com/bosocmputer/receipt_vision_ocr/internal/processor"
)

const mistralChatEndpoint = "https://api.mistral.ai/v1/chat/completions"

// MistralProvider implements VisionProvider using the Mistral chat
// completions API with a vision-capable model.
type MistralProvider struct {
	apiKey          string
	modelName       string
	endpoint        string
	client          *http.Client
	inputPricePerM  float64
	outputPricePerM float64
}

// NewMistralProvider creates a new Mistral provider
func NewMistralProvider(apiKey, modelName string, inputPricePerM, outputPricePerM float64) *MistralProvider {
	return &MistralProvider{
		apiKey:          apiKey,
		modelName:       modelName,
		endpoint:        mistralChatEndpoint,
		client:          &http.Client{},
		inputPricePerM:  inputPricePerM,
		outputPricePerM: outputPricePerM,
	}
}

// Name returns "mistral"
func (m *MistralProvider) Name() string {
	return "mistral"
}

// Mistral chat API request/response structures
type mistralContentPart struct {
	Type     string `json:"type"`                // "text" or "image_url"
	Text     string `json:"text,omitempty"`      // for type="text"
	ImageURL string `json:"image_url,omitempty"` // base64 data URL for type="image_url"
}

type mistralMessage struct {
	Role    string               `json:"role"`
	Content []mistralContentPart `json:"content"`
}

type mistralResponseFormat struct {
	Type string `json:"type"` // "json_object"
}

type mistralChatRequest struct {
	Model          string                `json:"model"`
	Messages       []mistralMessage      `json:"messages"`
	Temperature    float64               `json:"temperature"`
	MaxTokens      int                   `json:"max_tokens"`
	ResponseFormat mistralResponseFormat `json:"response_format"`
}

type mistralChatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type mistralUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type mistralChatResponse struct {
	Model   string              `json:"model"`
	Choices []mistralChatChoice `json:"choices"`
	Usage   mistralUsage        `json:"usage"`
}

type mistralErrorResponse struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Extract sends one prepared segment to Mistral and decodes the JSON
// answer into a RawExtraction.
func (m *MistralProvider) Extract(ctx context.Context, segment processor.ImageSegment, schema SchemaKind, reqCtx *common.RequestContext) (*RawExtraction, *common.TokenUsage, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s",
		segment.MIMEType, base64.StdEncoding.EncodeToString(segment.Data))

	request := mistralChatRequest{
		Model: m.modelName,
		Messages: []mistralMessage{
			{
				Role: "user",
				Content: []mistralContentPart{
					{Type: "text", Text: PromptFor(schema, segment.Detail)},
					{Type: "image_url", ImageURL: dataURL},
				},
			},
		},
		Temperature:    0.1,
		MaxTokens:      8192,
		ResponseFormat: mistralResponseFormat{Type: "json_object"},
	}

	response, err := m.callChatAPI(ctx, request)
	if err != nil {
		return nil, nil, categorizeError(m.Name(), err)
	}

	if len(response.Choices) == 0 {
		return nil, nil, newParseError(m.Name(), fmt.Errorf("no choices in Mistral response"))
	}

	content := stripMarkdownFences(response.Choices[0].Message.Content)

	var result RawExtraction
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, nil, newParseError(m.Name(), err)
	}

	if response.Choices[0].FinishReason == "length" {
		reqCtx.LogWarning("Mistral response truncated (length), segment %d may be incomplete", segment.Index)
	}

	usage := common.CalculateTokenCost(
		response.Usage.PromptTokens,
		response.Usage.CompletionTokens,
		m.inputPricePerM,
		m.outputPricePerM,
	)

	return &result, &usage, nil
}

// callChatAPI makes the HTTP request to the Mistral chat completions API
func (m *MistralProvider) callChatAPI(ctx context.Context, request mistralChatRequest) (*mistralChatResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", m.endpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", m.apiKey))

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp mistralErrorResponse
		message := string(body)
		if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
			message = errResp.Message
		}
		return nil, &ProviderError{
			Provider:   m.Name(),
			Kind:       KindUpstream,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("mistral API error (%d): %s", resp.StatusCode, message),
			Retryable:  resp.StatusCode == 429 || resp.StatusCode >= 500,
		}
	}

	var response mistralChatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &response, nil
}

// stripMarkdownFences removes ```json fences some models wrap JSON in
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
