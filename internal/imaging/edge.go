package imaging

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
)

// EdgeMap runs Canny-style edge detection on img and returns a binary
// grayscale map: 255 on edges, 0 elsewhere. The map has the same size as
// img with its origin at (0,0).
//
// Searching edge maps instead of raw pixels ("canny mode") makes matching
// insensitive to fills and gradients, at the cost of needing templates with
// real structure.
//
// # Algorithm
//
//  1. Grayscale luminance, scaled to [0,1].
//  2. Gaussian blur (sigma ≈ 1.4), clamped borders.
//  3. Sobel gradients; magnitude sqrt(Gx² + Gy²), direction atan2(Gy, Gx).
//  4. Non-maximum suppression along the gradient direction.
//  5. Hysteresis: magnitudes >= high/255 are edges, magnitudes >= low/255
//     are edges when an 8-neighbor is a strong edge.
//
// Typical thresholds are low=50, high=150.
func EdgeMap(img image.Image, low, high int) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}

	mag, dir := sobel(smooth(img), w, h)
	thin := suppressNonMax(mag, dir, w, h)

	lowT := float64(low) / 255.0
	highT := float64(high) / 255.0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := thin[y*w+x]
			if v >= highT || (v >= lowT && hasStrongNeighbor(thin, w, h, x, y, highT)) {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// blurRadius is the bild Gaussian radius; the kernel is 3 taps with
// sigma = sqrt(2*radius).
const blurRadius = 1.0

// smooth returns the blurred luminance of img in [0,1], row-major.
func smooth(img image.Image) []float64 {
	blurred := blur.Gaussian(effect.Grayscale(img), blurRadius)
	b := blurred.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := blurred.Pix[y*blurred.Stride:]
		for x := 0; x < w; x++ {
			out[y*w+x] = float64(row[x*4]) / 255.0
		}
	}
	return out
}

func sobel(src []float64, w, h int) (mag, dir []float64) {
	at := func(x, y int) float64 {
		return src[clamp(y, 0, h-1)*w+clamp(x, 0, w-1)]
	}
	mag = make([]float64, len(src))
	dir = make([]float64, len(src))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			mag[y*w+x] = math.Hypot(gx, gy)
			dir[y*w+x] = math.Atan2(gy, gx)
		}
	}
	return mag, dir
}

// suppressNonMax keeps magnitudes that are local maxima across the edge.
// The one-pixel border is always zero.
func suppressNonMax(mag, dir []float64, w, h int) []float64 {
	out := make([]float64, len(mag))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			dx, dy := directionStep(dir[i])
			m := mag[i]
			if m >= mag[(y+dy)*w+x+dx] && m >= mag[(y-dy)*w+x-dx] {
				out[i] = m
			}
		}
	}
	return out
}

// directionStep quantizes a gradient angle to one of four neighbor offsets.
func directionStep(angle float64) (dx, dy int) {
	a := math.Abs(angle)
	switch {
	case a < math.Pi/8 || a >= 7*math.Pi/8:
		return 1, 0
	case a >= 3*math.Pi/8 && a < 5*math.Pi/8:
		return 0, 1
	case (angle > 0) == (a < math.Pi/2):
		return 1, 1
	default:
		return 1, -1
	}
}

func hasStrongNeighbor(mag []float64, w, h, x, y int, strong float64) bool {
	for ky := -1; ky <= 1; ky++ {
		for kx := -1; kx <= 1; kx++ {
			if mag[clamp(y+ky, 0, h-1)*w+clamp(x+kx, 0, w-1)] >= strong {
				return true
			}
		}
	}
	return false
}

func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
