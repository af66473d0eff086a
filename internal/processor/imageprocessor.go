// imageprocessor.go - Image normalization, tiling and lighting analysis

package processor

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// LightingState classifies the exposure of the receipt photo
type LightingState string

const (
	LightingOverExposed  LightingState = "over-exposed"
	LightingUnderExposed LightingState = "under-exposed"
	LightingLowContrast  LightingState = "low-contrast"
	LightingNormal       LightingState = "normal"
)

// DetailLevel is the per-call quality hint passed to providers
type DetailLevel string

const (
	DetailHigh DetailLevel = "high"
	DetailLow  DetailLevel = "low"
)

// ImageSegment is one prepared tile ready for a provider call.
// Segments are ordered; segment index 0 alone carries the header schema
// (vendor/date/totals), all segments carry the line-item schema.
type ImageSegment struct {
	Data     []byte
	MIMEType string
	Index    int
	OffsetY  int
	Lighting LightingState
	Detail   DetailLevel
}

// Prepared is the full preprocessing output for one request. Hash is the
// content hash of the prepared (not raw) bytes, so identical inputs hash
// identically regardless of which provider is later chosen.
type Prepared struct {
	Segments []ImageSegment
	Hash     string
	Lighting LightingState
	Detail   DetailLevel
}

// Options bounds the preprocessing work
type Options struct {
	Enabled      bool
	MaxDimension int // long-edge cap for the normalized image
	MaxTileCount int
	MaxTileEdge  int // max tile height in pixels before splitting further
}

// DefaultOptions mirrors the configuration defaults
func DefaultOptions() Options {
	return Options{
		Enabled:      true,
		MaxDimension: 2000,
		MaxTileCount: 4,
		MaxTileEdge:  1400,
	}
}

const (
	// Aspect ratio (height/width) above which a receipt is tiled
	tallAspectRatio = 2.5
	// Vertical overlap between adjacent tiles, as a fraction of tile height
	tileOverlap = 0.12
	jpegQuality = 90
)

// Prepare decodes, normalizes, and (for tall receipts) tiles the image.
// The output is deterministic for identical input bytes.
func Prepare(raw []byte, opts Options) (*Prepared, error) {
	if !opts.Enabled {
		hash := contentHash(raw)
		seg := ImageSegment{
			Data:     raw,
			MIMEType: "image/jpeg",
			Index:    0,
			Lighting: LightingNormal,
			Detail:   DetailLow,
		}
		return &Prepared{Segments: []ImageSegment{seg}, Hash: hash, Lighting: LightingNormal, Detail: DetailLow}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	// Single color model first so the hash never depends on the source encoding
	img = imaging.Grayscale(img)

	// Resize long edge to the configured maximum (cost/latency control)
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if opts.MaxDimension > 0 && (width > opts.MaxDimension || height > opts.MaxDimension) {
		if width > height {
			img = imaging.Resize(img, opts.MaxDimension, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, opts.MaxDimension, imaging.Lanczos)
		}
	}

	prepared, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}
	hash := contentHash(prepared)

	lighting := analyzeLighting(img)
	detail := DetailLow
	if lighting == LightingUnderExposed || lighting == LightingLowContrast {
		// Harder images get the expensive high-detail provider mode
		detail = DetailHigh
	}

	segments, err := buildSegments(img, prepared, opts, lighting, detail)
	if err != nil {
		return nil, err
	}

	return &Prepared{
		Segments: segments,
		Hash:     hash,
		Lighting: lighting,
		Detail:   detail,
	}, nil
}

// buildSegments splits tall receipts into overlapping vertical tiles,
// bounded by opts.MaxTileCount. Short receipts stay whole.
func buildSegments(img image.Image, prepared []byte, opts Options, lighting LightingState, detail DetailLevel) ([]ImageSegment, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	aspect := float64(height) / float64(width)
	if aspect < tallAspectRatio || opts.MaxTileCount <= 1 {
		return []ImageSegment{{
			Data:     prepared,
			MIMEType: "image/jpeg",
			Index:    0,
			OffsetY:  0,
			Lighting: lighting,
			Detail:   detail,
		}}, nil
	}

	tileCount := int(math.Ceil(float64(height) / float64(opts.MaxTileEdge)))
	if tileCount > opts.MaxTileCount {
		tileCount = opts.MaxTileCount
	}
	if tileCount < 2 {
		tileCount = 2
	}

	tileHeight := int(math.Ceil(float64(height) / float64(tileCount)))
	overlap := int(float64(tileHeight) * tileOverlap)

	segments := make([]ImageSegment, 0, tileCount)
	for i := 0; i < tileCount; i++ {
		top := i*tileHeight - overlap
		if top < 0 {
			top = 0
		}
		bottom := (i + 1) * tileHeight
		if bottom > height {
			bottom = height
		}

		tile := imaging.Crop(img, image.Rect(0, top, width, bottom))
		data, err := encodeJPEG(tile)
		if err != nil {
			return nil, err
		}

		segments = append(segments, ImageSegment{
			Data:     data,
			MIMEType: "image/jpeg",
			Index:    i,
			OffsetY:  top,
			Lighting: lighting,
			Detail:   detail,
		})
	}

	return segments, nil
}

// analyzeLighting downsamples to a small grayscale thumbnail and measures
// mean brightness and standard deviation. Deterministic and provider-agnostic.
func analyzeLighting(img image.Image) LightingState {
	thumb := imaging.Resize(img, 64, 0, imaging.NearestNeighbor)
	bounds := thumb.Bounds()

	var sum, sumSq float64
	count := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := thumb.At(x, y).RGBA()
			brightness := (float64(r>>8) + float64(g>>8) + float64(b>>8)) / 3.0
			sum += brightness
			sumSq += brightness * brightness
			count++
		}
	}

	if count == 0 {
		return LightingNormal
	}

	mean := sum / float64(count)
	variance := sumSq/float64(count) - mean*mean
	if variance < 0 {
		variance = 0
	}
	stdev := math.Sqrt(variance)

	switch {
	case mean > 210:
		return LightingOverExposed
	case mean < 40:
		return LightingUnderExposed
	case stdev < 20:
		return LightingLowContrast
	default:
		return LightingNormal
	}
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode processed image: %w", err)
	}
	return buf.Bytes(), nil
}

// contentHash is sha256 over the prepared bytes, truncated to 32 hex chars
func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:32]
}
