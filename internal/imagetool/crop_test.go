package imagetool

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/buildbyprohor/studio-api/internal/domain"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return buf.Bytes()
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	return img
}

func decodeDataURLJPEG(t *testing.T, dataURL string) image.Image {
	t.Helper()
	const prefix = "data:image/jpeg;base64,"
	if !strings.HasPrefix(dataURL, prefix) {
		t.Fatalf("expected jpeg data URL, got %.40s", dataURL)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, prefix))
	if err != nil {
		t.Fatalf("invalid base64: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("invalid jpeg: %v", err)
	}
	return img
}

func TestCropToDataURL_SquareOutput(t *testing.T) {
	input := encodePNG(t, testImage(100, 100))

	out, err := CropToDataURL(input, CropRect{X: 10, Y: 10, Width: 50, Height: 50})
	if err != nil {
		t.Fatalf("crop failed: %v", err)
	}

	img := decodeDataURLJPEG(t, out)
	b := img.Bounds()
	if b.Dx() != 50 || b.Dy() != 50 {
		t.Errorf("expected 50x50 output, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestCropToDataURL_DownscalesLargeCrops(t *testing.T) {
	input := encodePNG(t, testImage(1024, 1024))

	out, err := CropToDataURL(input, CropRect{X: 0, Y: 0, Width: 1024, Height: 1024})
	if err != nil {
		t.Fatalf("crop failed: %v", err)
	}

	img := decodeDataURLJPEG(t, out)
	b := img.Bounds()
	if b.Dx() != MaxOutputSize || b.Dy() != MaxOutputSize {
		t.Errorf("expected %dx%d output, got %dx%d", MaxOutputSize, MaxOutputSize, b.Dx(), b.Dy())
	}
}

func TestCropToDataURL_AcceptsDataURLInput(t *testing.T) {
	raw := encodePNG(t, testImage(64, 64))
	dataURL := []byte("data:image/png;base64," + base64.StdEncoding.EncodeToString(raw))

	out, err := CropToDataURL(dataURL, CropRect{X: 0, Y: 0, Width: 64, Height: 64})
	if err != nil {
		t.Fatalf("crop failed: %v", err)
	}
	if !strings.HasPrefix(out, "data:image/jpeg;base64,") {
		t.Errorf("expected jpeg data URL, got %.40s", out)
	}
}

func TestCropToDataURL_RejectsGarbage(t *testing.T) {
	_, err := CropToDataURL([]byte("not an image"), CropRect{Width: 10, Height: 10})

	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCropToDataURL_RejectsOutOfBoundsCrop(t *testing.T) {
	input := encodePNG(t, testImage(32, 32))

	_, err := CropToDataURL(input, CropRect{X: 100, Y: 100, Width: 10, Height: 10})
	if err == nil {
		t.Fatal("expected error for crop outside the image")
	}
}

func TestCenteredSquare(t *testing.T) {
	r := CenteredSquare(200, 100)
	if r.Width != r.Height {
		t.Errorf("expected square crop, got %dx%d", r.Width, r.Height)
	}
	if r.Width != 90 {
		t.Errorf("expected 90%% of short edge, got %d", r.Width)
	}
	if r.X != 55 || r.Y != 5 {
		t.Errorf("expected centered origin, got (%d,%d)", r.X, r.Y)
	}
}
