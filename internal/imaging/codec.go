package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ImageDecodeError reports an input that could not be turned into an image.
//
// Source names the input ("scene", "template" or a file path) so transports
// can tell the caller which of several images was bad.
type ImageDecodeError struct {
	Source string
	Err    error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
}

func (e *ImageDecodeError) Unwrap() error { return e.Err }

// Decode decodes an encoded image (PNG, JPEG, GIF, BMP, TIFF or WebP).
//
// EXIF orientation is applied so the returned pixels are in display order.
// Errors are *ImageDecodeError with the given source.
func Decode(source string, data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, &ImageDecodeError{Source: source, Err: fmt.Errorf("no image data")}
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &ImageDecodeError{Source: source, Err: err}
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, &ImageDecodeError{Source: source, Err: fmt.Errorf("empty image")}
	}
	return img, nil
}

// DecodeBase64 decodes a base64 string and then the image inside it.
//
// A data URL prefix such as "data:image/png;base64," is stripped first.
// Surrounding whitespace is ignored.
func DecodeBase64(source, s string) (image.Image, error) {
	data, err := decodeBase64String(s)
	if err != nil {
		return nil, &ImageDecodeError{Source: source, Err: err}
	}
	return Decode(source, data)
}

func decodeBase64String(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, fmt.Errorf("malformed data URL")
		}
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Some clients strip padding.
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	return data, nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePNGBase64 encodes img as PNG and returns it base64 encoded.
func EncodePNGBase64(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// SavePNG encodes img as PNG and writes it to path.
func SavePNG(path string, img image.Image) error {
	data, err := EncodePNG(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}
