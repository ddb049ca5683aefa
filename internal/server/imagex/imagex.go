// Package imagex holds the small raster helpers shared by the removal client,
// the bulk processor and the mask editor.
package imagex

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"strconv"
	"strings"

	_ "image/jpeg"

	"github.com/dmitrijs2005/cutout/internal/common"
	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeWebP = "image/webp"
)

// MaxPixels bounds the area of any image Decode will allocate.
const MaxPixels = 36_000_000

// DetectMime sniffs data and returns one of the accepted image types.
func DetectMime(data []byte) (string, error) {
	ct := http.DetectContentType(data)
	switch ct {
	case MimePNG, MimeJPEG, MimeWebP:
		return ct, nil
	}
	return "", fmt.Errorf("%w: unsupported image type %q", common.ErrorValidation, ct)
}

// Decode decodes a PNG, JPEG or WebP image. Images whose header declares
// more than MaxPixels are rejected before any pixel buffer is allocated.
func Decode(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", common.ErrorValidation)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: image is %dx%d, over the %d pixel limit",
			common.ErrorValidation, cfg.Width, cfg.Height, MaxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// ToNRGBA returns a copy of img as *image.NRGBA anchored at (0,0).
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// ResizeWithinMax shrinks img so that its longest side is at most maxSize.
// Smaller images and maxSize <= 0 return img unchanged.
func ResizeWithinMax(img *image.NRGBA, maxSize int) *image.NRGBA {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	longest := max(w, h)

	if maxSize <= 0 || longest <= maxSize {
		return img
	}

	scale := float64(maxSize) / float64(longest)
	newW := max(1, int(float64(w)*scale))
	newH := max(1, int(float64(h)*scale))

	return ToNRGBA(resize.Resize(uint(newW), uint(newH), img, resize.Lanczos3))
}

// ScaleTo draws img onto a w x h canvas. Same-size input is copied exactly.
func ScaleTo(img image.Image, w, h int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return ToNRGBA(img)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseBackground parses "transparent" (or "") and "#RRGGBB".
// ok is false for transparent.
func ParseBackground(s string) (c color.NRGBA, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "transparent") {
		return color.NRGBA{}, false, nil
	}
	if len(s) != 7 || s[0] != '#' {
		return color.NRGBA{}, false, fmt.Errorf("%w: bad colour %q", common.ErrorValidation, s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.NRGBA{}, false, fmt.Errorf("%w: bad colour %q", common.ErrorValidation, s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, true, nil
}

// FillBackground composites img over a solid colour.
func FillBackground(img image.Image, c color.NRGBA) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}
