// handlers.go - HTTP handlers for receipt extraction and usage stats

package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bosocmputer/receipt_vision_ocr/internal/metrics"
	"github.com/bosocmputer/receipt_vision_ocr/internal/orchestrator"
	"github.com/bosocmputer/receipt_vision_ocr/internal/receipt"
)

// MaxUploadBytes bounds the accepted image payload
const MaxUploadBytes = 15 << 20

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// Handler carries the wired pipeline components
type Handler struct {
	Orchestrator *orchestrator.Orchestrator
	Usage        *metrics.UsageTracker
}

// NewHandler creates the API handler set
func NewHandler(orch *orchestrator.Orchestrator, usage *metrics.UsageTracker) *Handler {
	return &Handler{Orchestrator: orch, Usage: usage}
}

// ExtractReceipt handles POST /api/v1/extract-receipt: multipart image
// upload in the "file" field, optional "provider" and "high_fidelity"
// form fields.
func (h *Handler) ExtractReceipt(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "missing 'file' upload field",
		})
		return
	}

	if fileHeader.Size > MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"status": "error",
			"error":  "file too large",
		})
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "unsupported file type: " + ext,
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "failed to open upload",
		})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "failed to read upload",
		})
		return
	}

	req := &receipt.ExtractionRequest{
		Image:             imageData,
		Filename:          fileHeader.Filename,
		PreferredProvider: c.PostForm("provider"),
		HighFidelity:      c.PostForm("high_fidelity") == "true",
	}

	result, err := h.Orchestrator.Extract(c.Request.Context(), req)
	if err != nil {
		h.writeExtractionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"result": result,
	})
}

// writeExtractionError maps pipeline failures onto HTTP statuses
func (h *Handler) writeExtractionError(c *gin.Context, err error) {
	var limited *orchestrator.RateLimitedError
	if errors.As(err, &limited) {
		c.Header("Retry-After", limited.RetryAfter.Round(time.Second).String())
		c.JSON(http.StatusTooManyRequests, gin.H{
			"status":           "error",
			"error":            "rate limit exceeded, try later",
			"retry_after_secs": int(limited.RetryAfter.Seconds()) + 1,
		})
		return
	}

	var exhausted *orchestrator.ExhaustionError
	if errors.As(err, &exhausted) {
		c.JSON(http.StatusBadGateway, gin.H{
			"status":   "error",
			"error":    "all providers unavailable or failed",
			"attempts": exhausted.Attempts,
		})
		return
	}

	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"status": "error",
		"error":  err.Error(),
	})
}

// UsageStats handles GET /api/v1/usage: per-provider per-day counters
func (h *Handler) UsageStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"stats":  h.Usage.Snapshot(),
	})
}
