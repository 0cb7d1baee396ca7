// Package imagetool prepares uploaded profile pictures: a square crop,
// a bounded downscale, and JPEG re-encoding into the base64 data-URL
// form the Users records store.
package imagetool

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // register decoders for common upload formats
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/buildbyprohor/studio-api/internal/domain"
)

// MaxOutputSize bounds the longest edge of the encoded result.
const MaxOutputSize = 256

const jpegQuality = 85

// CropRect selects the source region to keep, in source pixels.
type CropRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CenteredSquare returns the largest centered square crop for an image
// of the given dimensions, at 90% of the short edge.
func CenteredSquare(width, height int) CropRect {
	short := width
	if height < short {
		short = height
	}
	side := short * 90 / 100
	return CropRect{
		X:      (width - side) / 2,
		Y:      (height - side) / 2,
		Width:  side,
		Height: side,
	}
}

// Dimensions reports the pixel size of an uploaded image, accepting
// the same raw-bytes or data-URL input as CropToDataURL.
func Dimensions(input []byte) (width, height int, err error) {
	if isDataURL(input) {
		decoded, err := decodeDataURL(input)
		if err != nil {
			return 0, 0, err
		}
		input = decoded
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		return 0, 0, &domain.ErrValidation{Field: "image", Message: "unsupported or corrupt image data"}
	}
	return cfg.Width, cfg.Height, nil
}

// CropToDataURL decodes an uploaded image (raw bytes or a data URL),
// applies the crop, downscales to at most MaxOutputSize, and returns a
// JPEG data URL suitable for the picBase64 profile field.
func CropToDataURL(input []byte, crop CropRect) (string, error) {
	if isDataURL(input) {
		decoded, err := decodeDataURL(input)
		if err != nil {
			return "", err
		}
		input = decoded
	}

	src, _, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		return "", &domain.ErrValidation{Field: "image", Message: "unsupported or corrupt image data"}
	}

	bounds := src.Bounds()
	region := image.Rect(
		bounds.Min.X+crop.X,
		bounds.Min.Y+crop.Y,
		bounds.Min.X+crop.X+crop.Width,
		bounds.Min.Y+crop.Y+crop.Height,
	).Intersect(bounds)
	if region.Empty() {
		return "", &domain.ErrValidation{Field: "crop", Message: "crop region is outside the image"}
	}

	out := scale(src, region)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// scale copies region out of src into an RGBA image no larger than
// MaxOutputSize on its longest edge, using nearest-neighbor sampling.
func scale(src image.Image, region image.Rectangle) *image.RGBA {
	w, h := region.Dx(), region.Dy()
	outW, outH := w, h
	if longest := max(w, h); longest > MaxOutputSize {
		outW = w * MaxOutputSize / longest
		outH = h * MaxOutputSize / longest
	}
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	if outW == w && outH == h {
		draw.Draw(dst, dst.Bounds(), src, region.Min, draw.Src)
		return dst
	}

	for y := 0; y < outH; y++ {
		srcY := region.Min.Y + y*h/outH
		for x := 0; x < outW; x++ {
			srcX := region.Min.X + x*w/outW
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}
	return dst
}

func isDataURL(b []byte) bool {
	return bytes.HasPrefix(b, []byte("data:"))
}

func decodeDataURL(b []byte) ([]byte, error) {
	s := string(b)
	i := strings.Index(s, ",")
	if i < 0 || !strings.Contains(s[:i], "base64") {
		return nil, &domain.ErrValidation{Field: "image", Message: "malformed data URL"}
	}
	decoded, err := base64.StdEncoding.DecodeString(s[i+1:])
	if err != nil {
		return nil, &domain.ErrValidation{Field: "image", Message: "invalid base64 image data"}
	}
	return decoded, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
