package match

// pyrKernel is the 5-tap binomial approximation of a Gaussian used for each
// axis of the 2x downsampling step. The taps sum to 16, so the separable 5x5
// kernel sums to 256.
var pyrKernel = [5]float32{1, 4, 6, 4, 1}

// BuildPyramid returns exactly levels rasters. Index 0 is r itself (shared,
// not copied); index k is PyrDown applied k times. A levels value below one
// is treated as one, and one above MaxLevels as MaxLevels.
//
// Levels are generated even when they collapse to 1x1; callers decide which
// levels are usable for a given template.
func BuildPyramid(r *Raster, levels int) []*Raster {
	levels = clampLevels(levels)
	pyramid := make([]*Raster, 0, levels)
	pyramid = append(pyramid, r)
	for i := 1; i < levels; i++ {
		r = PyrDown(r)
		pyramid = append(pyramid, r)
	}
	return pyramid
}

// LevelDims returns the width and height of each level BuildPyramid would
// produce for a w x h raster, without building it.
func LevelDims(w, h, levels int) [][2]int {
	levels = clampLevels(levels)
	dims := make([][2]int, levels)
	for i := range dims {
		dims[i] = [2]int{w, h}
		if w <= 0 || h <= 0 {
			w, h = 0, 0
		} else {
			w, h = (w+1)/2, (h+1)/2
		}
	}
	return dims
}

func clampLevels(levels int) int {
	return max(1, min(levels, MaxLevels))
}

// PyrDown blurs src with a 5x5 Gaussian and drops every other row and
// column.
//
// The output size is ((W+1)/2, (H+1)/2) using integer division, so odd
// dimensions round up: a 17x10 raster becomes 9x5 and a 1x1 raster stays 1x1.
// Output pixel (x, y) is centered on source pixel (2x, 2y); samples outside
// the source are mirrored without repeating the edge pixel (reflect-101).
func PyrDown(src *Raster) *Raster {
	if src.Empty() {
		return NewRaster(0, 0)
	}
	dw, dh := (src.W+1)/2, (src.H+1)/2

	// Horizontal pass: decimate columns, keep every row.
	tmp := make([]float32, dw*src.H*Channels)
	for y := 0; y < src.H; y++ {
		row := src.Pix[y*src.W*Channels : (y+1)*src.W*Channels]
		out := tmp[y*dw*Channels : (y+1)*dw*Channels]
		for x := 0; x < dw; x++ {
			var acc [Channels]float32
			for k := -2; k <= 2; k++ {
				sx := reflect101(2*x+k, src.W)
				w := pyrKernel[k+2]
				for c := 0; c < Channels; c++ {
					acc[c] += w * row[sx*Channels+c]
				}
			}
			for c := 0; c < Channels; c++ {
				out[x*Channels+c] = acc[c] / 16
			}
		}
	}

	// Vertical pass over the column-decimated buffer.
	dst := NewRaster(dw, dh)
	for y := 0; y < dh; y++ {
		out := dst.Pix[y*dw*Channels : (y+1)*dw*Channels]
		for k := -2; k <= 2; k++ {
			sy := reflect101(2*y+k, src.H)
			w := pyrKernel[k+2]
			row := tmp[sy*dw*Channels : (sy+1)*dw*Channels]
			for i := range out {
				out[i] += w * row[i]
			}
		}
		for i := range out {
			out[i] /= 16
		}
	}
	return dst
}

// reflect101 maps an out-of-range index into [0, n) by mirroring around the
// edge pixels without duplicating them: -1 -> 1, n -> n-2.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - i - 2
		}
	}
	return i
}
