// Package watermark embeds and extracts short text payloads in the least
// significant bit of the blue channel, one bit per pixel in row-major order.
//
// Every payload is prefixed with MagicHeader before encoding; extraction only
// trusts sequences that carry it.
package watermark

import (
	"fmt"
	"image"
	"strings"

	"github.com/pockethour/image-sentinel/internal/bitcodec"
	"github.com/pockethour/image-sentinel/internal/common"
	"github.com/pockethour/image-sentinel/internal/imagex"
)

const (
	// MagicHeader is prepended to every embedded payload.
	MagicHeader = "SNL1"

	// Algorithm labels evidence produced by this engine.
	Algorithm = "lsb-blue-v1"

	// MaxPayload is the longest user payload that fits next to the header.
	MaxPayload = bitcodec.MaxLength - len(MagicHeader)

	// Confidence levels reported by Extract.
	ConfidenceMatch    = 0.99
	ConfidenceMismatch = 0.1
	ConfidenceNone     = 0.0

	// channel is the byte offset of blue inside an NRGBA pixel.
	channel = 2

	// PreviewMaxSide bounds the preview's longest edge.
	PreviewMaxSide = 1024
)

// Evidence describes a successful embedding.
type Evidence struct {
	EmbeddedText string
	Algorithm    string
}

// EmbedResult holds the outputs of Embed.
type EmbedResult struct {
	// Marked is the lossless carrier. It must only be written with a
	// lossless encoder.
	Marked *image.NRGBA

	// Preview is a downscaled, captioned copy safe to show before payment.
	Preview *image.RGBA

	Evidence Evidence
}

// Extraction is the outcome of Extract. Found is true only when the magic
// header matched.
type Extraction struct {
	Found      bool
	Text       string
	Confidence float64
}

// Capacity returns the longest user payload a carrier of the given bounds can
// hold, or 0 if it cannot hold any.
func Capacity(bounds image.Rectangle) int {
	pixels := bounds.Dx() * bounds.Dy()
	n := (pixels-bitcodec.LengthBits)/8 - len(MagicHeader)
	if n < 0 {
		return 0
	}
	return min(n, MaxPayload)
}

// Embed writes payload into a copy of img. The source image is never modified.
func Embed(img image.Image, payload string) (*EmbedResult, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: payload length %d exceeds %d", common.ErrInvalidPayload, len(payload), MaxPayload)
	}
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", common.ErrInvalidPayload)
	}

	seq, err := bitcodec.Encode(MagicHeader + payload)
	if err != nil {
		return nil, err
	}

	marked := imagex.ToNRGBA(img)
	b := marked.Bounds()
	if pixels := b.Dx() * b.Dy(); seq.Len() > pixels {
		return nil, fmt.Errorf("%w: need %d bits, carrier has %d pixels", common.ErrCapacityExceeded, seq.Len(), pixels)
	}

	i := 0
	n := seq.Len()
	for y := b.Min.Y; y < b.Max.Y && i < n; y++ {
		for x := b.Min.X; x < b.Max.X && i < n; x++ {
			off := marked.PixOffset(x, y) + channel
			v := marked.Pix[off] &^ 1
			if seq.Bit(i) {
				v |= 1
			}
			marked.Pix[off] = v
			i++
		}
	}

	return &EmbedResult{
		Marked:   marked,
		Preview:  preview(marked, payload),
		Evidence: Evidence{EmbeddedText: payload, Algorithm: Algorithm},
	}, nil
}

func preview(marked image.Image, payload string) *image.RGBA {
	p := imagex.Thumbnail(marked, PreviewMaxSide)
	imagex.Banner(p, "WATERMARKED: "+truncate(payload, 48))
	return p
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// readBits collects count LSBs starting at pixel index start.
func readBits(img *image.NRGBA, start, count int) []bool {
	b := img.Bounds()
	w := b.Dx()
	out := make([]bool, count)
	for i := range out {
		p := start + i
		x, y := b.Min.X+p%w, b.Min.Y+p/w
		out[i] = img.Pix[img.PixOffset(x, y)+channel]&1 == 1
	}
	return out
}

// Extract reads a payload from img.
//
// An empty or truncated sequence yields Found=false with ConfidenceNone; a
// readable sequence without the magic header yields Found=false with
// ConfidenceMismatch.
func Extract(img image.Image) Extraction {
	carrier := imagex.ToNRGBA(img)
	b := carrier.Bounds()
	pixels := b.Dx() * b.Dy()
	if pixels < bitcodec.LengthBits {
		return Extraction{Confidence: ConfidenceNone}
	}

	prefix := readBits(carrier, 0, bitcodec.LengthBits)
	l, _ := bitcodec.DeclaredLength(bitcodec.FromBools(prefix))
	total := bitcodec.BitCount(l)
	if l == 0 || total > pixels {
		return Extraction{Confidence: ConfidenceNone}
	}

	text, conf := bitcodec.Decode(bitcodec.FromBools(readBits(carrier, 0, total)))
	if conf == 0 {
		return Extraction{Confidence: ConfidenceNone}
	}

	if !strings.HasPrefix(text, MagicHeader) {
		return Extraction{Confidence: ConfidenceMismatch}
	}

	return Extraction{
		Found:      true,
		Text:       strings.TrimPrefix(text, MagicHeader),
		Confidence: ConfidenceMatch,
	}
}
