package processor

import (
	"image"
	"image/color"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/pockethour/image-sentinel/internal/imagex"
	"github.com/stretchr/testify/require"
)

// writeNoise writes a w×h random opaque image to dir/name and returns its path.
func writeNoise(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(w*h + len(name))))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255})
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, imagex.EncodeFile(path, img))
	return path
}
