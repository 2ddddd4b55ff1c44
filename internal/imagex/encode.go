package imagex

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// PreviewQuality is the JPEG quality used for human-viewable previews.
const PreviewQuality = 85

var losslessExt = map[string]string{
	".png":  "png",
	".bmp":  "bmp",
	".tif":  "tiff",
	".tiff": "tiff",
}

// FormatForPath maps a file extension to an encoder name. Unknown extensions
// map to "png".
func FormatForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := losslessExt[ext]; ok {
		return f
	}
	if ext == ".jpg" || ext == ".jpeg" {
		return "jpeg"
	}
	return "png"
}

// IsLossless reports whether the encoder name preserves every pixel bit.
func IsLossless(format string) bool {
	switch format {
	case "png", "bmp", "tiff":
		return true
	default:
		return false
	}
}

// LosslessPath returns path unchanged when its extension names a lossless
// container, and otherwise the same path with a ".png" extension.
func LosslessPath(path string) string {
	ext := filepath.Ext(path)
	if _, ok := losslessExt[strings.ToLower(ext)]; ok {
		return path
	}
	return strings.TrimSuffix(path, ext) + ".png"
}

// Extension returns the canonical file extension for an encoder name.
func Extension(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "bmp":
		return ".bmp"
	case "tiff":
		return ".tiff"
	case "gif":
		return ".gif"
	case "webp":
		return ".webp"
	default:
		return ".png"
	}
}

// Encode writes img to w using the named encoder.
func Encode(w io.Writer, format string, img image.Image) error {
	switch format {
	case "png":
		return png.Encode(w, img)
	case "bmp":
		return bmp.Encode(w, img)
	case "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: PreviewQuality})
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// EncodeFile writes img to path, choosing the encoder from the extension.
// Parent directories are created as needed.
func EncodeFile(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := Encode(f, FormatForPath(path), img); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
