package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func TestDecode_PNG(t *testing.T) {
	img, err := Decode("scene", pngBytes(t, quadrants(40, 30)))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 30 {
		t.Errorf("dimensions: got %v, want 40x30", img.Bounds())
	}
	if !sameRGB(img.At(35, 25), color.White) {
		t.Errorf("bottom-right pixel: got %v, want white", img.At(35, 25))
	}
}

func TestDecode_ExtraFormats(t *testing.T) {
	src := quadrants(16, 16)

	var bmpBuf, tiffBuf bytes.Buffer
	if err := bmp.Encode(&bmpBuf, src); err != nil {
		t.Fatalf("bmp encode: %v", err)
	}
	if err := tiff.Encode(&tiffBuf, src, nil); err != nil {
		t.Fatalf("tiff encode: %v", err)
	}

	for name, data := range map[string][]byte{"bmp": bmpBuf.Bytes(), "tiff": tiffBuf.Bytes()} {
		t.Run(name, func(t *testing.T) {
			img, err := Decode(name, data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !sameRGB(img.At(2, 2), color.RGBA{255, 0, 0, 255}) {
				t.Errorf("top-left pixel: got %v, want red", img.At(2, 2))
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not an image")},
		{"truncated png", pngBytes(t, quadrants(20, 20))[:30]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode("template", tt.data)
			var decErr *ImageDecodeError
			if !errors.As(err, &decErr) {
				t.Fatalf("expected *ImageDecodeError, got %T (%v)", err, err)
			}
			if decErr.Source != "template" {
				t.Errorf("Source: got %q, want template", decErr.Source)
			}
			if !strings.Contains(err.Error(), "template") {
				t.Errorf("error message should name the source: %v", err)
			}
		})
	}
}

func TestDecodeBase64(t *testing.T) {
	raw := pngBytes(t, solid(8, 6, color.RGBA{10, 20, 30, 255}))
	encoded := base64.StdEncoding.EncodeToString(raw)

	inputs := map[string]string{
		"plain":      encoded,
		"data url":   "data:image/png;base64," + encoded,
		"whitespace": "  " + encoded + "\n",
		"no padding": strings.TrimRight(encoded, "="),
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			img, err := DecodeBase64("scene", in)
			if err != nil {
				t.Fatalf("DecodeBase64 failed: %v", err)
			}
			if img.Bounds() != image.Rect(0, 0, 8, 6) {
				t.Errorf("bounds: got %v", img.Bounds())
			}
		})
	}
}

func TestDecodeBase64_Invalid(t *testing.T) {
	for _, in := range []string{"***", "data:image/png;base64", ""} {
		_, err := DecodeBase64("scene", in)
		var decErr *ImageDecodeError
		if !errors.As(err, &decErr) {
			t.Errorf("DecodeBase64(%q): expected *ImageDecodeError, got %v", in, err)
		}
	}
}

func TestEncodePNGBase64_RoundTrip(t *testing.T) {
	src := quadrants(12, 12)
	s, err := EncodePNGBase64(src)
	if err != nil {
		t.Fatalf("EncodePNGBase64 failed: %v", err)
	}
	img, err := DecodeBase64("roundtrip", s)
	if err != nil {
		t.Fatalf("DecodeBase64 failed: %v", err)
	}
	for _, p := range []image.Point{{1, 1}, {10, 1}, {1, 10}, {10, 10}} {
		if !sameRGB(img.At(p.X, p.Y), src.At(p.X, p.Y)) {
			t.Errorf("pixel %v: got %v, want %v", p, img.At(p.X, p.Y), src.At(p.X, p.Y))
		}
	}
}
