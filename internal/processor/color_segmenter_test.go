package processor

import (
	"image"
	"image/color"
	"testing"
)

func TestIsLinkBlue(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b int
		want    bool
	}{
		{"canonical link blue", 26, 13, 171, true},
		{"google blue", 26, 115, 232, true},
		{"anti-aliased edge", 90, 90, 125, true},
		{"white", 255, 255, 255, false},
		{"black", 0, 0, 0, false},
		{"gray", 112, 117, 122, false},
		{"dark blue under brightness floor", 10, 10, 70, false},
		{"purple", 140, 60, 200, true},
		{"red", 200, 30, 30, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLinkBlue(tt.r, tt.g, tt.b); got != tt.want {
				t.Errorf("IsLinkBlue(%d, %d, %d) = %v, want %v", tt.r, tt.g, tt.b, got, tt.want)
			}
		})
	}
}

func TestIsBodyGray(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b int
		want    bool
	}{
		{"description gray", 112, 117, 122, true},
		{"dark gray", 77, 81, 86, true},
		{"white", 255, 255, 255, false},
		{"black", 0, 0, 0, false},
		{"light gray above range", 190, 190, 190, false},
		{"link blue", 26, 13, 171, false},
		{"tinted", 120, 150, 120, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBodyGray(tt.r, tt.g, tt.b); got != tt.want {
				t.Errorf("IsBodyGray(%d, %d, %d) = %v, want %v", tt.r, tt.g, tt.b, got, tt.want)
			}
		})
	}
}

var (
	linkBlue = color.RGBA{R: 26, G: 13, B: 171, A: 255}
	bodyGray = color.RGBA{R: 112, G: 117, B: 122, A: 255}
)

// adImage is white with a blue band on top and a gray band below
func adImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
			switch {
			case y < 2 && x < 6:
				c = linkBlue
			case y >= 3 && y < 5:
				c = bodyGray
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestSegment(t *testing.T) {
	blue, gray := Segment(adImage())

	if blue.Count() != 12 {
		t.Errorf("blue count = %d, want 12", blue.Count())
	}
	if gray.Count() != 16 {
		t.Errorf("gray count = %d, want 16", gray.Count())
	}
	if !blue.At(0, 0) || blue.At(7, 0) || blue.At(0, 3) {
		t.Error("blue mask misclassified pixels")
	}
	if !gray.At(7, 4) || gray.At(0, 0) || gray.At(0, 5) {
		t.Error("gray mask misclassified pixels")
	}
	if blue.At(-1, 0) || blue.At(100, 100) {
		t.Error("out of bounds lookup should be false")
	}
}

func TestSegmentNonZeroOrigin(t *testing.T) {
	full := adImage()
	sub := full.SubImage(image.Rect(2, 1, 8, 5)).(*image.RGBA)

	blue, _ := Segment(sub)
	if !blue.At(2, 1) {
		t.Error("sub-image origin pixel should be blue")
	}
	if blue.Count() != 4 {
		t.Errorf("blue count = %d, want 4", blue.Count())
	}
}

func TestCompose(t *testing.T) {
	img := adImage()
	blue, _ := Segment(img)
	out := Compose(img, blue)

	if out.Bounds() != img.Bounds() {
		t.Fatalf("bounds = %v, want %v", out.Bounds(), img.Bounds())
	}
	if got := out.RGBAAt(1, 1); got != linkBlue {
		t.Errorf("masked pixel = %v, want %v", got, linkBlue)
	}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	if got := out.RGBAAt(1, 4); got != white {
		t.Errorf("unmasked gray pixel = %v, want white", got)
	}
}

func TestSegmentNRGBAAndPaletted(t *testing.T) {
	nrgba := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	nrgba.SetNRGBA(0, 0, color.NRGBA{R: 26, G: 13, B: 171, A: 255})
	nrgba.SetNRGBA(1, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	if blue, _ := Segment(nrgba); blue.Count() != 1 {
		t.Errorf("NRGBA blue count = %d, want 1", blue.Count())
	}

	pal := image.NewPaletted(image.Rect(0, 0, 2, 1), color.Palette{color.White, bodyGray})
	pal.SetColorIndex(1, 0, 1)
	if _, gray := Segment(pal); gray.Count() != 1 {
		t.Errorf("paletted gray count = %d, want 1", gray.Count())
	}
}
