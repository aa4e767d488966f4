package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/color/palette"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecode_CanonicalRGBAcrossColorModels(t *testing.T) {
	// Sources in different color models must all land in the same packed
	// RGB representation.
	red := color.NRGBA{R: 255, A: 255}

	rgba := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			rgba.SetNRGBA(x, y, red)
		}
	}

	paletted := image.NewPaletted(image.Rect(0, 0, 2, 2), palette.Plan9)
	idx := uint8(paletted.Palette.Index(red))
	for i := range paletted.Pix {
		paletted.Pix[i] = idx
	}
	pr, pg, pb, _ := paletted.Palette[idx].RGBA()

	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	for i := range gray.Pix {
		gray.Pix[i] = 128
	}

	tests := []struct {
		name    string
		src     image.Image
		r, g, b uint8
	}{
		{"rgba with alpha", rgba, 255, 0, 0},
		{"paletted", paletted, uint8(pr >> 8), uint8(pg >> 8), uint8(pb >> 8)},
		{"grayscale", gray, 128, 128, 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Decode(encodePNG(t, tt.src))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if img.Width != 2 || img.Height != 2 {
				t.Fatalf("dimensions = %dx%d, want 2x2", img.Width, img.Height)
			}
			if len(img.Pix) != 2*2*3 {
				t.Fatalf("len(Pix) = %d, want %d", len(img.Pix), 2*2*3)
			}
			r, g, b := img.At(0, 0)
			if r != tt.r || g != tt.g || b != tt.b {
				t.Errorf("At(0,0) = (%d,%d,%d), want (%d,%d,%d)", r, g, b, tt.r, tt.g, tt.b)
			}
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty payload", nil},
		{"not an image", []byte("definitely not an image")},
		{"truncated png", encodePNG(t, image.NewGray(image.Rect(0, 0, 4, 4)))[:10]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); err == nil {
				t.Error("Decode succeeded, want error")
			}
		})
	}
}

func TestCrop(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	src.SetNRGBA(2, 1, color.NRGBA{G: 255, A: 255})
	img := FromImage(src)

	crop := img.Crop(1, 1, 3, 3)
	if crop.Width != 2 || crop.Height != 2 {
		t.Fatalf("crop dimensions = %dx%d, want 2x2", crop.Width, crop.Height)
	}
	if _, g, _ := crop.At(1, 0); g != 255 {
		t.Errorf("crop At(1,0) green = %d, want 255", g)
	}

	// Out-of-bounds coordinates clamp rather than panic.
	clamped := img.Crop(-5, -5, 100, 100)
	if clamped.Width != 4 || clamped.Height != 4 {
		t.Errorf("clamped crop = %dx%d, want 4x4", clamped.Width, clamped.Height)
	}

	empty := img.Crop(3, 3, 1, 1)
	if empty.Width != 0 || empty.Height != 0 {
		t.Errorf("inverted crop = %dx%d, want 0x0", empty.Width, empty.Height)
	}
}

func TestToRGBA_RoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(2, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img := FromImage(src)

	rgba := img.ToRGBA()
	r, g, b, a := rgba.At(2, 1).RGBA()
	if uint8(r>>8) != 10 || uint8(g>>8) != 20 || uint8(b>>8) != 30 || uint8(a>>8) != 255 {
		t.Errorf("ToRGBA At(2,1) = (%d,%d,%d,%d), want (10,20,30,255)",
			r>>8, g>>8, b>>8, a>>8)
	}
}
