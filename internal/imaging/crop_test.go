package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestCrop(t *testing.T) {
	img := quadrants(100, 100)

	result, err := Crop(img, 0, 0, 50, 50, 1.0)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if result.Width != 50 || result.Height != 50 {
		t.Errorf("dimensions: got %dx%d, want 50x50", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}

	decoded, err := DecodeBase64("crop", result.ImageBase64)
	if err != nil {
		t.Fatalf("crop output does not decode: %v", err)
	}
	if !sameRGB(decoded.At(49, 49), color.RGBA{255, 0, 0, 255}) {
		t.Errorf("top-left quadrant crop should be red, got %v", decoded.At(49, 49))
	}
}

func TestCrop_OriginIsZero(t *testing.T) {
	img := quadrants(100, 100)

	result, err := Crop(img, 60, 10, 90, 30, 1.0)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if result.Image.Bounds() != image.Rect(0, 0, 30, 20) {
		t.Errorf("bounds: got %v, want (0,0)-(30,20)", result.Image.Bounds())
	}
	if !sameRGB(result.Image.At(0, 0), color.RGBA{0, 255, 0, 255}) {
		t.Errorf("top-right crop should be green, got %v", result.Image.At(0, 0))
	}
}

func TestCrop_Scale(t *testing.T) {
	img := solid(100, 100, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		name         string
		x2, y2       int
		scale        float64
		wantW, wantH int
	}{
		{"up", 50, 50, 2.0, 100, 100},
		{"down", 100, 100, 0.5, 50, 50},
		{"ignored zero", 40, 20, 0, 40, 20},
		{"ignored negative", 40, 20, -1, 40, 20},
		{"tiny", 4, 4, 0.01, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Crop(img, 0, 0, tt.x2, tt.y2, tt.scale)
			if err != nil {
				t.Fatalf("Crop failed: %v", err)
			}
			if result.Width != tt.wantW || result.Height != tt.wantH {
				t.Errorf("dimensions: got %dx%d, want %dx%d", result.Width, result.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestCrop_InvalidRegion(t *testing.T) {
	img := solid(100, 100, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		name           string
		x1, y1, x2, y2 int
	}{
		{"x1 negative", -1, 0, 50, 50},
		{"y1 negative", 0, -1, 50, 50},
		{"x2 too large", 0, 0, 101, 50},
		{"y2 too large", 0, 0, 50, 101},
		{"x1 equals x2", 10, 0, 10, 50},
		{"inverted", 50, 50, 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Crop(img, tt.x1, tt.y1, tt.x2, tt.y2, 1.0); err == nil {
				t.Error("Crop should fail")
			}
		})
	}
}
