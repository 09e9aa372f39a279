//go:build gocv

// Package cvmatch provides an OpenCV backed match.Matcher.
//
// Importing the package registers it under the name "opencv". It requires
// building with -tags gocv and an installed OpenCV.
package cvmatch

import (
	"fmt"
	"math"

	"gocv.io/x/gocv"

	"github.com/ironsheep/image-search-mcp/internal/match"
)

// Name is the registry name of the OpenCV matcher.
const Name = "opencv"

func init() {
	match.RegisterMatcher(Name, func() match.Matcher { return Matcher{} })
}

// Matcher scores with cv::matchTemplate in TM_CCOEFF_NORMED mode.
//
// OpenCV leaves flat templates undefined; those scores come back as NaN or
// Inf and are reported as 0, so solid-color templates are better served by
// match.CCoeffNormed.
type Matcher struct{}

// Match implements match.Matcher.
func (Matcher) Match(img, tmpl *match.Raster) (*match.ScoreSurface, error) {
	if img.Empty() || tmpl.Empty() {
		return nil, match.ErrEmptyRaster
	}
	if !img.Fits(tmpl) {
		return nil, fmt.Errorf("%w: template %dx%d, image %dx%d",
			match.ErrTemplateTooLarge, tmpl.W, tmpl.H, img.W, img.H)
	}

	imgMat, err := toMat(img)
	if err != nil {
		return nil, err
	}
	defer imgMat.Close()
	tmplMat, err := toMat(tmpl)
	if err != nil {
		return nil, err
	}
	defer tmplMat.Close()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(imgMat, tmplMat, &result, gocv.TmCcoeffNormed, mask)
	rows, cols := img.H-tmpl.H+1, img.W-tmpl.W+1
	if result.Empty() || result.Rows() != rows || result.Cols() != cols {
		return nil, fmt.Errorf("cvmatch: unexpected result %dx%d, want %dx%d",
			result.Cols(), result.Rows(), cols, rows)
	}

	surface := match.NewScoreSurface(rows, cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := float64(result.GetFloatAt(y, x))
			switch {
			case math.IsNaN(v) || math.IsInf(v, 0):
				v = 0
			case v > 1:
				v = 1
			case v < -1:
				v = -1
			}
			surface.Set(y, x, v)
		}
	}
	return surface, nil
}

// toMat copies r into a CV_32FC3 Mat. Channel order does not matter for
// correlation as long as both inputs agree.
func toMat(r *match.Raster) (gocv.Mat, error) {
	m := gocv.NewMatWithSize(r.H, r.W, gocv.MatTypeCV32FC3)
	data, err := m.DataPtrFloat32()
	if err != nil {
		m.Close()
		return gocv.Mat{}, fmt.Errorf("cvmatch: %w", err)
	}
	copy(data, r.Pix)
	return m, nil
}
