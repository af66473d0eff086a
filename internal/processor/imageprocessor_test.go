package processor

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngBytes renders a synthetic receipt-shaped image
func pngBytes(t *testing.T, width, height int, fill func(x, y int) color.Color) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill(x, y))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func noisyFill(seed int64) func(x, y int) color.Color {
	rng := rand.New(rand.NewSource(seed))
	return func(x, y int) color.Color {
		v := uint8(rng.Intn(256))
		return color.RGBA{v, v, v, 255}
	}
}

func TestPrepareIsDeterministic(t *testing.T) {
	raw := pngBytes(t, 400, 600, noisyFill(42))
	opts := DefaultOptions()

	first, err := Prepare(raw, opts)
	require.NoError(t, err)
	second, err := Prepare(raw, opts)
	require.NoError(t, err)

	assert.Equal(t, first.Hash, second.Hash, "identical raw bytes must yield identical cache keys")
	require.Equal(t, len(first.Segments), len(second.Segments))
	for i := range first.Segments {
		assert.Equal(t, first.Segments[i].Data, second.Segments[i].Data, "segment %d bytes must match", i)
	}
	assert.Len(t, first.Hash, 32)
}

func TestPrepareShortReceiptSingleSegment(t *testing.T) {
	raw := pngBytes(t, 400, 600, noisyFill(7))

	prep, err := Prepare(raw, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, prep.Segments, 1)
	assert.Equal(t, 0, prep.Segments[0].Index)
	assert.Equal(t, 0, prep.Segments[0].OffsetY)
}

func TestPrepareTallReceiptIsTiled(t *testing.T) {
	// 400x3200 gives aspect 8.0, well past the tall threshold
	raw := pngBytes(t, 400, 3200, noisyFill(7))
	opts := DefaultOptions()

	prep, err := Prepare(raw, opts)
	require.NoError(t, err)

	require.Greater(t, len(prep.Segments), 1, "tall receipt must be tiled")
	assert.LessOrEqual(t, len(prep.Segments), opts.MaxTileCount)

	// Segments are ordered with monotonically increasing offsets
	for i := 1; i < len(prep.Segments); i++ {
		assert.Equal(t, i, prep.Segments[i].Index)
		assert.Greater(t, prep.Segments[i].OffsetY, prep.Segments[i-1].OffsetY)
	}

	// Overlap: each tile after the first starts above the previous nominal boundary
	assert.Equal(t, 0, prep.Segments[0].OffsetY)
}

func TestPrepareRespectsMaxTileCount(t *testing.T) {
	raw := pngBytes(t, 300, 9000, noisyFill(11))
	opts := DefaultOptions()
	opts.MaxTileCount = 3
	// Force more nominal tiles than the cap allows
	opts.MaxTileEdge = 500

	prep, err := Prepare(raw, opts)
	require.NoError(t, err)
	assert.Len(t, prep.Segments, 3)
}

func TestPrepareRejectsGarbage(t *testing.T) {
	_, err := Prepare([]byte("not an image"), DefaultOptions())
	assert.Error(t, err)
}

func grayImage(width, height int, value uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{value, value, value, 255})
		}
	}
	return img
}

func TestAnalyzeLighting(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
		want LightingState
	}{
		{"over-exposed", grayImage(200, 200, 245), LightingOverExposed},
		{"under-exposed", grayImage(200, 200, 20), LightingUnderExposed},
		{"low-contrast mid-gray", grayImage(200, 200, 128), LightingLowContrast},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, analyzeLighting(tt.img))
		})
	}
}

func TestAnalyzeLightingNormal(t *testing.T) {
	// Half dark, half light: mid mean with large stdev
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			v := uint8(60)
			if x >= 100 {
				v = 190
			}
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	assert.Equal(t, LightingNormal, analyzeLighting(img))
}

func TestDetailLevelFollowsLighting(t *testing.T) {
	// A flat mid-gray image classifies low-contrast, which requests high detail
	raw := pngBytes(t, 400, 600, func(x, y int) color.Color {
		return color.RGBA{128, 128, 128, 255}
	})

	prep, err := Prepare(raw, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, LightingLowContrast, prep.Lighting)
	assert.Equal(t, DetailHigh, prep.Detail)
	assert.Equal(t, DetailHigh, prep.Segments[0].Detail)
}
