// main.go - The entry point and router setup.

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bosocmputer/receipt_vision_ocr/configs"
	"github.com/bosocmputer/receipt_vision_ocr/internal/ai"
	"github.com/bosocmputer/receipt_vision_ocr/internal/api"
	"github.com/bosocmputer/receipt_vision_ocr/internal/cleanser"
	"github.com/bosocmputer/receipt_vision_ocr/internal/health"
	"github.com/bosocmputer/receipt_vision_ocr/internal/metrics"
	"github.com/bosocmputer/receipt_vision_ocr/internal/orchestrator"
	"github.com/bosocmputer/receipt_vision_ocr/internal/processor"
	"github.com/bosocmputer/receipt_vision_ocr/internal/ratelimit"
	"github.com/bosocmputer/receipt_vision_ocr/internal/storage"
)

func main() {
	// Step 0: Load configuration from environment variables
	configs.LoadConfig()

	if ginMode := os.Getenv("GIN_MODE"); ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Step 1: Build the vision providers (primary + fallbacks)
	providers, order, err := ai.BuildProviders()
	if err != nil {
		log.Fatalf("Failed to build providers: %v", err)
	}

	// Step 2: Shared pipeline state
	healthTracker := health.NewTracker(
		configs.BREAKER_FAILURE_THRESHOLD,
		time.Duration(configs.BREAKER_RECOVERY_WINDOW_SECS)*time.Second,
	)
	gate := ratelimit.NewRateGate(
		configs.RATE_LIMIT_PER_PROVIDER,
		configs.RATE_LIMIT_GLOBAL,
		configs.ENABLE_RATE_LIMITING,
	)
	usage := metrics.NewUsageTracker()

	cacheTTL := time.Duration(configs.CACHE_TTL_SECS) * time.Second
	var cache storage.ResultCache
	switch configs.CACHE_BACKEND {
	case "redis":
		redisCache, err := storage.NewRedisCache(context.Background(), configs.REDIS_ADDR, configs.REDIS_PASSWORD, cacheTTL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()
		cache = redisCache
		log.Printf("🗄️  Result cache backend: redis (%s)", configs.REDIS_ADDR)
	default:
		cache = storage.NewMemoryCache(cacheTTL, configs.CACHE_MAX_ENTRIES)
		log.Printf("🗄️  Result cache backend: memory (max %d entries)", configs.CACHE_MAX_ENTRIES)
	}

	// Step 3: Optional async usage persistence to MongoDB
	if configs.ENABLE_USAGE_SAVING {
		connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err := storage.NewUsageStore(connectCtx, configs.MONGO_URI, configs.MONGO_DB_NAME)
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer store.Close(context.Background())

		flusher := metrics.NewFlusher(store, 1, 16)
		go flusher.RunPeriodic(usage, time.Minute)
		defer flusher.Close()
	}

	// Step 4: Wire the orchestrator
	orch := orchestrator.New(
		providers, order, healthTracker, gate, cache, usage,
		cleanser.New(configs.FALLBACK_CURRENCY),
		orchestrator.Options{
			Preprocess: processor.Options{
				Enabled:      configs.ENABLE_IMAGE_PREPROCESSING,
				MaxDimension: configs.MAX_IMAGE_DIMENSION,
				MaxTileCount: configs.MAX_TILE_COUNT,
				MaxTileEdge:  configs.MAX_TILE_EDGE,
			},
			DefaultTimeout:  time.Duration(configs.DEFAULT_TIMEOUT_SECS) * time.Second,
			ComplexTimeout:  time.Duration(configs.COMPLEX_TIMEOUT_SECS) * time.Second,
			CacheEnabled:    configs.ENABLE_RESULT_CACHE,
			CacheByProvider: configs.CACHE_PROVIDER_NAMESPACE,
			MaxConcurrent:   int64(configs.MAX_CONCURRENT_EXTRACTIONS),
		},
	)

	handler := api.NewHandler(orch, usage)

	// Step 5: Initialize the Gin router
	router := gin.Default()

	// CORS middleware - configure allowed origins for production
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", configs.ALLOWED_ORIGINS)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Root endpoint for SSL verification
	router.GET("/", func(c *gin.Context) {
		c.String(200, "ok")
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "receipt-vision-ocr",
			"version": "1.0.0",
		})
	})

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	router.POST("/api/v1/extract-receipt", handler.ExtractReceipt)
	router.GET("/api/v1/usage", handler.UsageStats)

	// Step 6: HTTP server with timeouts
	srv := &http.Server{
		Addr:           ":" + configs.PORT,
		Handler:        router,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   3 * time.Minute, // Allow up to 3 minutes for provider processing
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Starting server on :%s", configs.PORT)
		log.Println("API Endpoints:")
		log.Println("  POST /api/v1/extract-receipt")
		log.Println("  GET  /api/v1/usage")
		log.Println("  GET  /metrics")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
