/**
 * Color segmentation for ad creatives
 *
 * Ad platforms render headlines and sitelinks in link blue and descriptions
 * in mid gray. Masking each color class onto a white canvas lets OCR read
 * the roles separately.
 */

package processor

import (
	"image"
	"image/color"
	"image/draw"
)

// TextMask is a per-pixel membership grid for one color class
type TextMask struct {
	Rect image.Rectangle
	bits []bool
}

func newTextMask(r image.Rectangle) *TextMask {
	return &TextMask{Rect: r, bits: make([]bool, r.Dx()*r.Dy())}
}

func (m *TextMask) index(x, y int) int {
	return (y-m.Rect.Min.Y)*m.Rect.Dx() + (x - m.Rect.Min.X)
}

// At reports whether the pixel at (x, y) belongs to the class
func (m *TextMask) At(x, y int) bool {
	if !(image.Point{X: x, Y: y}).In(m.Rect) {
		return false
	}
	return m.bits[m.index(x, y)]
}

func (m *TextMask) set(x, y int) {
	m.bits[m.index(x, y)] = true
}

// Count is the number of pixels in the class
func (m *TextMask) Count() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

// IsLinkBlue matches saturated blue text plus the anti-aliased edges of the
// canonical link blue
func IsLinkBlue(r, g, b int) bool {
	dominant := b > r+30 && b > g+30 && b > 80
	canonical := b > 120 && r < 100 && g < 100
	return dominant || canonical
}

// IsBodyGray matches desaturated mid-brightness pixels
func IsBodyGray(r, g, b int) bool {
	maxDiff := max(absInt(r-g), absInt(g-b), absInt(r-b))
	avg := float64(r+g+b) / 3
	return maxDiff < 30 && avg > 50 && avg < 180
}

// Segment classifies every pixel into the blue and gray masks. Alpha is
// dropped, not composited.
func Segment(img image.Image) (blue, gray *TextMask) {
	bounds := img.Bounds()
	blue = newTextMask(bounds)
	gray = newTextMask(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b := rgbAt(img, x, y)
			if IsLinkBlue(r, g, b) {
				blue.set(x, y)
			}
			if IsBodyGray(r, g, b) {
				gray.set(x, y)
			}
		}
	}
	return blue, gray
}

// Compose copies masked pixels onto a white canvas of the same size
func Compose(img image.Image, mask *TextMask) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, image.White, image.Point{}, draw.Src)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if !mask.At(x, y) {
				continue
			}
			r, g, b := rgbAt(img, x, y)
			out.SetRGBA(x, y, color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255})
		}
	}
	return out
}

func rgbAt(img image.Image, x, y int) (int, int, int) {
	switch src := img.(type) {
	case *image.RGBA:
		// premultiplied, so only opaque pixels can be read directly
		if i := src.PixOffset(x, y); src.Pix[i+3] == 0xff {
			return int(src.Pix[i]), int(src.Pix[i+1]), int(src.Pix[i+2])
		}
	case *image.NRGBA:
		i := src.PixOffset(x, y)
		return int(src.Pix[i]), int(src.Pix[i+1]), int(src.Pix[i+2])
	}
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return int(c.R), int(c.G), int(c.B)
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
