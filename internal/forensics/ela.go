// Package forensics implements error-level analysis: an image is re-encoded
// as JPEG, the amplified difference against the original becomes an
// intensity map, and the mean intensity is classified into a risk level.
//
// The result is a heuristic signal about prior lossy edits, not proof of
// tampering.
package forensics

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"github.com/pockethour/image-sentinel/internal/imagex"
	"gonum.org/v1/gonum/stat"
)

const (
	// Quality is the JPEG quality used for the reference recompression.
	Quality = 90

	// Gain amplifies the per-channel difference before clamping to 255.
	Gain = 15

	highThreshold   = 15.0
	mediumThreshold = 8.0

	originalWeight = 0.6
	heatmapWeight  = 0.4

	// Algorithm labels evidence produced by this analyzer.
	Algorithm = "ela-q90-v1"

	// Disclaimer is shown next to every report.
	Disclaimer = "Error-level analysis highlights recompression artifacts. It is a heuristic indicator, not proof of manipulation."
)

// RiskLevel buckets the anomaly intensity.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Report is the scalar outcome of an analysis.
type Report struct {
	Score            int
	RiskLevel        RiskLevel
	AnomalyIntensity float64
}

// Result bundles the report with the rendered overlay.
type Result struct {
	Overlay *image.RGBA
	Report  Report
}

// Classify maps a mean amplified difference to a fixed score and risk level.
func Classify(intensity float64) Report {
	r := Report{AnomalyIntensity: intensity}
	switch {
	case intensity > highThreshold:
		r.Score, r.RiskLevel = 45, RiskHigh
	case intensity > mediumThreshold:
		r.Score, r.RiskLevel = 72, RiskMedium
	default:
		r.Score, r.RiskLevel = 96, RiskLow
	}
	return r
}

// Analyze runs error-level analysis over img.
func Analyze(img image.Image) (*Result, error) {
	src := imagex.ToRGBA(img)

	recompressed, err := recompress(src)
	if err != nil {
		return nil, err
	}

	intensity := IntensityMap(src, recompressed)
	mean := 0.0
	if len(intensity) > 0 {
		mean = stat.Mean(intensity, nil)
	}

	return &Result{
		Overlay: Overlay(src, intensity),
		Report:  Classify(mean),
	}, nil
}

func recompress(src *image.RGBA) (*image.RGBA, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, fmt.Errorf("recompress: %w", err)
	}
	out, err := jpeg.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decode recompressed: %w", err)
	}
	return imagex.ToRGBA(out), nil
}

// IntensityMap returns, per pixel in row-major order, the BT.601 luma of the
// amplified and clamped channel differences between a and b. Both images must
// share bounds.
func IntensityMap(a, b *image.RGBA) []float64 {
	bounds := a.Bounds()
	out := make([]float64, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			pa := a.Pix[a.PixOffset(x, y):]
			pb := b.Pix[b.PixOffset(x, y):]
			r := amplify(pa[0], pb[0])
			g := amplify(pa[1], pb[1])
			bl := amplify(pa[2], pb[2])
			out = append(out, 0.299*r+0.587*g+0.114*bl)
		}
	}
	return out
}

func amplify(a, b uint8) float64 {
	d := math.Abs(float64(a)-float64(b)) * Gain
	return math.Min(d, 255)
}

// Overlay renders intensity with the JET colormap and blends it over src.
func Overlay(src *image.RGBA, intensity []float64) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	w := b.Dx()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := (y-b.Min.Y)*w + (x - b.Min.X)
			hr, hg, hb := jet(intensity[i] / 255)
			so := src.PixOffset(x, y)
			do := dst.PixOffset(x, y)
			dst.Pix[do+0] = blend(src.Pix[so+0], hr)
			dst.Pix[do+1] = blend(src.Pix[so+1], hg)
			dst.Pix[do+2] = blend(src.Pix[so+2], hb)
			dst.Pix[do+3] = 255
		}
	}
	return dst
}

func blend(orig, heat uint8) uint8 {
	v := originalWeight*float64(orig) + heatmapWeight*float64(heat)
	return uint8(math.Round(math.Min(v, 255)))
}

// jet maps v in [0,1] to the JET colormap: blue, cyan, yellow, red.
func jet(v float64) (r, g, b uint8) {
	v = math.Max(0, math.Min(1, v))
	ch := func(center float64) uint8 {
		c := 1.5 - math.Abs(4*v-center)
		c = math.Max(0, math.Min(1, c))
		return uint8(math.Round(c * 255))
	}
	return ch(3), ch(2), ch(1)
}
