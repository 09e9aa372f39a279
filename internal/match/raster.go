package match

import (
	"image"

	"github.com/disintegration/imaging"
)

// Channels is the fixed channel depth of a Raster (R, G, B).
const Channels = 3

// Raster is an immutable three-channel floating point image.
//
// Pix holds interleaved R, G, B samples in the 0..255 range, row-major, so the
// sample for channel c of pixel (x, y) lives at Pix[(y*W+x)*Channels+c].
// Stages that derive new images (pyramid levels, edge maps) allocate a new
// Raster rather than modifying an existing one.
type Raster struct {
	W, H int
	Pix  []float32
}

// NewRaster allocates a zeroed raster of the given size. Negative dimensions
// are treated as zero.
func NewRaster(w, h int) *Raster {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Raster{W: w, H: h, Pix: make([]float32, w*h*Channels)}
}

// FromImage converts any image.Image into a Raster.
//
// The image is normalized to non-premultiplied RGBA first so that color
// values are read the way an image decoder reports them; alpha is dropped.
func FromImage(img image.Image) *Raster {
	if img == nil {
		return NewRaster(0, 0)
	}
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	r := NewRaster(b.Dx(), b.Dy())
	for y := 0; y < r.H; y++ {
		src := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+r.W*4]
		dst := r.Pix[y*r.W*Channels : (y+1)*r.W*Channels]
		for x := 0; x < r.W; x++ {
			dst[x*Channels] = float32(src[x*4])
			dst[x*Channels+1] = float32(src[x*4+1])
			dst[x*Channels+2] = float32(src[x*4+2])
		}
	}
	return r
}

// Empty reports whether the raster has zero area.
func (r *Raster) Empty() bool {
	return r == nil || r.W <= 0 || r.H <= 0
}

// At returns channel c of pixel (x, y). Coordinates are not bounds checked.
func (r *Raster) At(x, y, c int) float32 {
	return r.Pix[(y*r.W+x)*Channels+c]
}

// Fits reports whether a template of size t fits inside r on both axes.
func (r *Raster) Fits(t *Raster) bool {
	if r.Empty() || t.Empty() {
		return false
	}
	return t.W <= r.W && t.H <= r.H
}

// ToImage converts the raster back to an 8-bit NRGBA image, rounding and
// clamping each sample. It is used for debug output and annotation.
func (r *Raster) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, r.W, r.H))
	for y := 0; y < r.H; y++ {
		for x := 0; x < r.W; x++ {
			off := y*img.Stride + x*4
			for c := 0; c < Channels; c++ {
				img.Pix[off+c] = toByte(r.At(x, y, c))
			}
			img.Pix[off+3] = 255
		}
	}
	return img
}

func toByte(v float32) uint8 {
	v += 0.5
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
