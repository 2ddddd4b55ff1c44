package imagex

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ToNRGBA returns a mutable non-premultiplied copy of src, rebased so its
// bounds start at the origin.
func ToNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// ToRGBA returns a mutable premultiplied copy of src rebased to the origin.
func ToRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// Thumbnail scales src down so its longest side is at most maxSide. Smaller
// images are copied unchanged.
func Thumbnail(src image.Image, maxSide int) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return ToRGBA(src)
	}

	if w >= h {
		h = max(1, h*maxSide/w)
		w = maxSide
	} else {
		w = max(1, w*maxSide/h)
		h = maxSide
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// bannerShade is the band colour painted behind captions (black, ~60% alpha).
var bannerShade = color.NRGBA{A: 150}

// Banner paints a semi-transparent band along the bottom edge of dst and
// writes caption over it in white.
func Banner(dst *image.RGBA, caption string) {
	b := dst.Bounds()
	face := basicfont.Face7x13
	height := face.Metrics().Height.Ceil() + 12
	if height > b.Dy() {
		height = b.Dy()
	}

	band := image.Rect(b.Min.X, b.Max.Y-height, b.Max.X, b.Max.Y)
	draw.Draw(dst, band, image.NewUniform(bannerShade), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
	}
	width := d.MeasureString(caption).Ceil()
	x := b.Min.X + 6
	if width+12 < b.Dx() {
		x = b.Min.X + (b.Dx()-width)/2
	}
	baseline := band.Max.Y - (height-face.Metrics().Ascent.Ceil())/2
	d.Dot = fixed.P(x, baseline)
	d.DrawString(caption)
}
