// factory.go - Vision provider factory for creating provider instances

package ai

import (
	"fmt"
	"log"

	"github.com/bosocmputer/receipt_vision_ocr/configs"
)

// CreateProvider creates a single vision provider by name
func CreateProvider(name string) (VisionProvider, error) {
	switch name {
	case "gemini":
		if configs.GEMINI_API_KEY == "" {
			return nil, fmt.Errorf("provider gemini requires GEMINI_API_KEY")
		}
		log.Printf("🔵 Creating Gemini vision provider")
		return NewGeminiProvider(
			configs.GEMINI_API_KEY,
			configs.GEMINI_MODEL_NAME,
			configs.GEMINI_INPUT_PRICE_PER_MILLION,
			configs.GEMINI_OUTPUT_PRICE_PER_MILLION,
		), nil

	case "mistral":
		if configs.MISTRAL_API_KEY == "" {
			return nil, fmt.Errorf("provider mistral requires MISTRAL_API_KEY")
		}
		log.Printf("🔷 Creating Mistral vision provider")
		return NewMistralProvider(
			configs.MISTRAL_API_KEY,
			configs.MISTRAL_MODEL_NAME,
			configs.MISTRAL_INPUT_PRICE_PER_MILLION,
			configs.MISTRAL_OUTPUT_PRICE_PER_MILLION,
		), nil

	default:
		return nil, fmt.Errorf("unsupported vision provider: %s (supported: gemini, mistral)", name)
	}
}

// BuildProviders creates the configured primary plus fallback providers.
// Returns the registry keyed by provider name and the configured attempt
// order. Misconfigured fallbacks are skipped with a warning; a
// misconfigured primary is an error.
func BuildProviders() (map[string]VisionProvider, []string, error) {
	providers := make(map[string]VisionProvider)
	var order []string

	primary, err := CreateProvider(configs.PRIMARY_PROVIDER)
	if err != nil {
		return nil, nil, fmt.Errorf("primary provider: %w", err)
	}
	providers[primary.Name()] = primary
	order = append(order, primary.Name())

	for _, name := range configs.FALLBACK_PROVIDERS {
		if _, exists := providers[name]; exists {
			continue
		}
		p, err := CreateProvider(name)
		if err != nil {
			log.Printf("⚠️  Skipping fallback provider %s: %v", name, err)
			continue
		}
		providers[p.Name()] = p
		order = append(order, p.Name())
		log.Printf("✅ Fallback provider configured: %s", p.Name())
	}

	return providers, order, nil
}
