// config.go - Configuration loaded from environment variables

package configs

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	// Provider selection
	PRIMARY_PROVIDER   string
	FALLBACK_PROVIDERS []string

	// Gemini configuration
	GEMINI_API_KEY    string
	GEMINI_MODEL_NAME string

	// Mistral configuration
	MISTRAL_API_KEY    string
	MISTRAL_MODEL_NAME string

	// Pricing configuration (per 1M tokens in USD)
	GEMINI_INPUT_PRICE_PER_MILLION   float64
	GEMINI_OUTPUT_PRICE_PER_MILLION  float64
	MISTRAL_INPUT_PRICE_PER_MILLION  float64
	MISTRAL_OUTPUT_PRICE_PER_MILLION float64

	// Circuit breaker settings
	BREAKER_FAILURE_THRESHOLD    int
	BREAKER_RECOVERY_WINDOW_SECS int

	// Rate limit settings (requests per 60s window)
	RATE_LIMIT_PER_PROVIDER int
	RATE_LIMIT_GLOBAL       int
	ENABLE_RATE_LIMITING    bool

	// Result cache settings
	ENABLE_RESULT_CACHE      bool
	CACHE_BACKEND            string // "memory" or "redis"
	CACHE_TTL_SECS           int
	CACHE_MAX_ENTRIES        int
	CACHE_PROVIDER_NAMESPACE bool
	REDIS_ADDR               string
	REDIS_PASSWORD           string

	// Image preprocessing settings
	ENABLE_IMAGE_PREPROCESSING bool
	MAX_IMAGE_DIMENSION        int
	MAX_TILE_COUNT             int
	MAX_TILE_EDGE              int

	// Timeout settings
	DEFAULT_TIMEOUT_SECS int
	COMPLEX_TIMEOUT_SECS int

	// Concurrency settings
	MAX_CONCURRENT_EXTRACTIONS int

	// Currency fallback when the provider returns none
	FALLBACK_CURRENCY string

	// Server configuration
	PORT            string
	ALLOWED_ORIGINS string

	// MongoDB configuration (usage stats persistence, optional)
	MONGO_URI           string
	MONGO_DB_NAME       string
	ENABLE_USAGE_SAVING bool
)

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	PRIMARY_PROVIDER = getEnv("PRIMARY_PROVIDER", "gemini")
	FALLBACK_PROVIDERS = splitCSV(getEnv("FALLBACK_PROVIDERS", "mistral"))

	GEMINI_API_KEY = getEnv("GEMINI_API_KEY", "")
	GEMINI_MODEL_NAME = getEnv("GEMINI_MODEL_NAME", "gemini-2.5-flash")
	MISTRAL_API_KEY = getEnv("MISTRAL_API_KEY", "")
	MISTRAL_MODEL_NAME = getEnv("MISTRAL_MODEL_NAME", "pixtral-12b-2409")

	if GEMINI_API_KEY == "" && MISTRAL_API_KEY == "" {
		log.Fatal("At least one of GEMINI_API_KEY or MISTRAL_API_KEY is required")
	}

	GEMINI_INPUT_PRICE_PER_MILLION = getEnvFloat("GEMINI_INPUT_PRICE_PER_MILLION", 0.10)
	GEMINI_OUTPUT_PRICE_PER_MILLION = getEnvFloat("GEMINI_OUTPUT_PRICE_PER_MILLION", 0.40)
	MISTRAL_INPUT_PRICE_PER_MILLION = getEnvFloat("MISTRAL_INPUT_PRICE_PER_MILLION", 0.15)
	MISTRAL_OUTPUT_PRICE_PER_MILLION = getEnvFloat("MISTRAL_OUTPUT_PRICE_PER_MILLION", 0.15)

	BREAKER_FAILURE_THRESHOLD = getEnvInt("BREAKER_FAILURE_THRESHOLD", 5)
	BREAKER_RECOVERY_WINDOW_SECS = getEnvInt("BREAKER_RECOVERY_WINDOW_SECS", 300)

	RATE_LIMIT_PER_PROVIDER = getEnvInt("RATE_LIMIT_PER_PROVIDER", 15)
	RATE_LIMIT_GLOBAL = getEnvInt("RATE_LIMIT_GLOBAL", 60)
	ENABLE_RATE_LIMITING = getEnvBool("ENABLE_RATE_LIMITING", true)

	ENABLE_RESULT_CACHE = getEnvBool("ENABLE_RESULT_CACHE", true)
	CACHE_BACKEND = getEnv("CACHE_BACKEND", "memory")
	CACHE_TTL_SECS = getEnvInt("CACHE_TTL_SECS", 3600)
	CACHE_MAX_ENTRIES = getEnvInt("CACHE_MAX_ENTRIES", 1000)
	CACHE_PROVIDER_NAMESPACE = getEnvBool("CACHE_PROVIDER_NAMESPACE", false)
	REDIS_ADDR = getEnv("REDIS_ADDR", "localhost:6379")
	REDIS_PASSWORD = getEnv("REDIS_PASSWORD", "")

	ENABLE_IMAGE_PREPROCESSING = getEnvBool("ENABLE_IMAGE_PREPROCESSING", true)
	MAX_IMAGE_DIMENSION = getEnvInt("MAX_IMAGE_DIMENSION", 2000)
	MAX_TILE_COUNT = getEnvInt("MAX_TILE_COUNT", 4)
	MAX_TILE_EDGE = getEnvInt("MAX_TILE_EDGE", 1400)

	DEFAULT_TIMEOUT_SECS = getEnvInt("DEFAULT_TIMEOUT_SECS", 60)
	COMPLEX_TIMEOUT_SECS = getEnvInt("COMPLEX_TIMEOUT_SECS", 150)

	MAX_CONCURRENT_EXTRACTIONS = getEnvInt("MAX_CONCURRENT_EXTRACTIONS", 8)

	FALLBACK_CURRENCY = getEnv("FALLBACK_CURRENCY", "USD")

	PORT = getEnv("PORT", "8080")
	ALLOWED_ORIGINS = getEnv("ALLOWED_ORIGINS", "*")

	MONGO_URI = getEnv("MONGO_URI", "")
	MONGO_DB_NAME = getEnv("MONGO_DB_NAME", "receipt_vision")
	ENABLE_USAGE_SAVING = getEnvBool("ENABLE_USAGE_SAVING", false)

	log.Println("✓ Configuration loaded successfully")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
