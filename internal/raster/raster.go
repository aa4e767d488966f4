// Package raster decodes uploaded image bytes into a canonical in-memory
// representation. Whatever the source encoding or color model (grayscale,
// palette, alpha, YCbCr), the output is always a packed RGB buffer, so the
// engine adapters never have to reason about channel order.
package raster

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is a decoded raster with a fixed RGB channel order, 3 bytes per
// pixel, row-major. It is owned by a single request and never shared.
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}

// Decode converts raw image bytes into an RGB raster. Supported encodings:
// jpeg, png, gif, bmp, tiff, webp.
func Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	img := FromImage(src)
	if img.Width == 0 || img.Height == 0 {
		return nil, fmt.Errorf("decoded %s image has zero dimensions", format)
	}
	return img, nil
}

// FromImage converts any image.Image into the canonical RGB raster.
func FromImage(src image.Image) *Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pix := make([]uint8, w*h*3)

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := src.At(x, y).RGBA()
			pix[i] = uint8(r >> 8)
			pix[i+1] = uint8(g >> 8)
			pix[i+2] = uint8(b >> 8)
			i += 3
		}
	}

	return &Image{Width: w, Height: h, Pix: pix}
}

// At returns the RGB value at (x, y). Out-of-range coordinates return black.
func (m *Image) At(x, y int) (r, g, b uint8) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0, 0, 0
	}
	i := (y*m.Width + x) * 3
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

// Crop returns a copy of the region [x0,x1) x [y0,y1), clamped to the
// image bounds. An empty intersection yields a 0x0 raster.
func (m *Image) Crop(x0, y0, x1, y1 int) *Image {
	x0 = clamp(x0, 0, m.Width)
	x1 = clamp(x1, 0, m.Width)
	y0 = clamp(y0, 0, m.Height)
	y1 = clamp(y1, 0, m.Height)
	if x1 <= x0 || y1 <= y0 {
		return &Image{Width: 0, Height: 0, Pix: nil}
	}

	w, h := x1-x0, y1-y0
	pix := make([]uint8, w*h*3)
	for y := 0; y < h; y++ {
		src := ((y+y0)*m.Width + x0) * 3
		copy(pix[y*w*3:(y+1)*w*3], m.Pix[src:src+w*3])
	}
	return &Image{Width: w, Height: h, Pix: pix}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ToRGBA rebuilds a standard library image from the raster, for adapters
// whose native API wants an image.Image rather than a raw buffer.
func (m *Image) ToRGBA() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		si := y * m.Width * 3
		di := y * out.Stride
		for x := 0; x < m.Width; x++ {
			out.Pix[di] = m.Pix[si]
			out.Pix[di+1] = m.Pix[si+1]
			out.Pix[di+2] = m.Pix[si+2]
			out.Pix[di+3] = 0xff
			si += 3
			di += 4
		}
	}
	return out
}
