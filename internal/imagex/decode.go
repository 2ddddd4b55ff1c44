// Package imagex wraps image container codecs and the small raster helpers
// shared by the watermark engine and the forensic analyzer.
package imagex

import (
	"fmt"
	"image"
	"io"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/pockethour/image-sentinel/internal/common"
)

// Decode reads an image from r, returning the decoded image and the detected
// format name ("png", "jpeg", "webp", ...). Any failure wraps
// common.ErrImageRead.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", common.ErrImageRead, err)
	}
	return img, format, nil
}

// DecodeConfig reads only the dimensions and format of an image.
func DecodeConfig(r io.Reader) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return image.Config{}, "", fmt.Errorf("%w: %v", common.ErrImageRead, err)
	}
	return cfg, format, nil
}

// DecodeFile opens and decodes the image stored at path.
func DecodeFile(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", common.ErrImageRead, err)
	}
	defer f.Close()

	return Decode(f)
}
