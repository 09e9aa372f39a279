package match

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrEmptyRaster is returned when a matcher receives a zero-area input.
	ErrEmptyRaster = errors.New("match: empty raster")

	// ErrTemplateTooLarge is returned when the template does not fit inside
	// the image on both axes.
	ErrTemplateTooLarge = errors.New("match: template larger than image")
)

// Matcher scores how well a template aligns at every offset of an image of
// the same scale.
//
// Implementations must return a surface with (image.H - template.H + 1) rows
// and (image.W - template.W + 1) columns, where the cell at (row, col) scores
// the window whose top-left corner is (col, row). Scores are bounded reals;
// higher is better.
type Matcher interface {
	Match(img, tmpl *Raster) (*ScoreSurface, error)
}

// ScoreSurface is the dense score grid produced by a Matcher for one
// (image level, template level) pair.
type ScoreSurface struct {
	*mat.Dense
}

// NewScoreSurface allocates a zeroed surface. rows and cols must be positive.
func NewScoreSurface(rows, cols int) *ScoreSurface {
	return &ScoreSurface{Dense: mat.NewDense(rows, cols, nil)}
}

// Rows returns the number of candidate y offsets.
func (s *ScoreSurface) Rows() int {
	r, _ := s.Dims()
	return r
}

// Cols returns the number of candidate x offsets.
func (s *ScoreSurface) Cols() int {
	_, c := s.Dims()
	return c
}

// checkInputs validates a matcher's inputs and returns the surface size.
func checkInputs(img, tmpl *Raster) (rows, cols int, err error) {
	if img.Empty() || tmpl.Empty() {
		return 0, 0, ErrEmptyRaster
	}
	if !img.Fits(tmpl) {
		return 0, 0, fmt.Errorf("%w: template %dx%d, image %dx%d",
			ErrTemplateTooLarge, tmpl.W, tmpl.H, img.W, img.H)
	}
	return img.H - tmpl.H + 1, img.W - tmpl.W + 1, nil
}

// flatVariance is the per-sample variance (on the 0..255 scale) below which
// a window or template is treated as a single solid color.
const flatVariance = 1e-3

// flatMeanTolerance is how far apart, in gray levels, the channel means of a
// flat window and a flat template may be while still counting as equal.
const flatMeanTolerance = 0.5

// CCoeffNormed is the default Matcher. It computes the mean-subtracted
// normalized cross-correlation over all three channels:
//
//	R(x,y) = Σ T'(x',y') I'(x+x',y+y') / sqrt(Σ T'² · Σ I'²)
//
// where T' and I' are the template and window with their per-channel means
// removed and the sums run over every pixel and channel. R lies in [-1, 1].
//
// Window sums and sums of squares come from summed-area tables, so only the
// cross term costs O(template area) per offset.
//
// Degenerate inputs get defined scores instead of a division by zero:
//   - a flat (solid color) template scores 1 where the window is flat with the
//     same channel means, and 0 everywhere else;
//   - a flat window scores 0 against a textured template.
type CCoeffNormed struct{}

// Match implements Matcher.
func (CCoeffNormed) Match(img, tmpl *Raster) (*ScoreSurface, error) {
	rows, cols, err := checkInputs(img, tmpl)
	if err != nil {
		return nil, err
	}

	tp := precomputeTemplate(tmpl)
	ii := buildIntegrals(img)
	n := float64(tmpl.W * tmpl.H)
	samples := n * Channels

	surface := NewScoreSurface(rows, cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			var winEnergy float64
			var means [Channels]float64
			for c := 0; c < Channels; c++ {
				sum := ii.sum(c, x, y, tmpl.W, tmpl.H)
				sumSq := ii.sumSq(c, x, y, tmpl.W, tmpl.H)
				means[c] = sum / n
				winEnergy += sumSq - sum*sum/n
			}
			flatWindow := winEnergy/samples <= flatVariance

			var score float64
			switch {
			case tp.flat:
				if flatWindow && sameMeans(means, tp.means) {
					score = 1
				}
			case flatWindow:
				score = 0
			default:
				score = crossTerm(img, tp, x, y) / math.Sqrt(winEnergy*tp.energy)
			}
			surface.Set(y, x, clampScore(score))
		}
	}
	return surface, nil
}

// templatePrecomp caches the zero-mean template samples and their energy.
type templatePrecomp struct {
	w, h   int
	zm     []float64 // template samples minus their channel mean
	means  [Channels]float64
	energy float64 // Σ zm²
	flat   bool
}

func precomputeTemplate(t *Raster) *templatePrecomp {
	n := float64(t.W * t.H)
	tp := &templatePrecomp{w: t.W, h: t.H, zm: make([]float64, len(t.Pix))}
	for i, v := range t.Pix {
		tp.means[i%Channels] += float64(v)
	}
	for c := range tp.means {
		tp.means[c] /= n
	}
	for i, v := range t.Pix {
		d := float64(v) - tp.means[i%Channels]
		tp.zm[i] = d
		tp.energy += d * d
	}
	tp.flat = tp.energy/(n*Channels) <= flatVariance
	return tp
}

// crossTerm returns Σ I(x+x', y+y') · T'(x', y') over the window at (x, y).
// Because T' has zero mean per channel this equals Σ I'·T'.
func crossTerm(img *Raster, tp *templatePrecomp, x, y int) float64 {
	rowLen := tp.w * Channels
	var acc float64
	for ty := 0; ty < tp.h; ty++ {
		start := ((y+ty)*img.W + x) * Channels
		win := img.Pix[start : start+rowLen]
		tr := tp.zm[ty*rowLen : (ty+1)*rowLen]
		for i, t := range tr {
			acc += float64(win[i]) * t
		}
	}
	return acc
}

func sameMeans(a, b [Channels]float64) bool {
	for c := 0; c < Channels; c++ {
		if math.Abs(a[c]-b[c]) > flatMeanTolerance {
			return false
		}
	}
	return true
}

func clampScore(s float64) float64 {
	switch {
	case math.IsNaN(s):
		return 0
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}

// integrals holds per-channel summed-area tables of an image and of its
// squared samples. Tables carry a zero row and column at the top-left so a
// window sum needs no bounds checks.
type integrals struct {
	stride int // W + 1
	sums   [Channels][]float64
	sq     [Channels][]float64
}

func buildIntegrals(r *Raster) *integrals {
	stride := r.W + 1
	ii := &integrals{stride: stride}
	for c := 0; c < Channels; c++ {
		ii.sums[c] = make([]float64, stride*(r.H+1))
		ii.sq[c] = make([]float64, stride*(r.H+1))
	}
	for y := 0; y < r.H; y++ {
		var rowSum, rowSq [Channels]float64
		for x := 0; x < r.W; x++ {
			off := (y+1)*stride + x + 1
			up := y*stride + x + 1
			for c := 0; c < Channels; c++ {
				v := float64(r.At(x, y, c))
				rowSum[c] += v
				rowSq[c] += v * v
				ii.sums[c][off] = ii.sums[c][up] + rowSum[c]
				ii.sq[c][off] = ii.sq[c][up] + rowSq[c]
			}
		}
	}
	return ii
}

func (ii *integrals) sum(c, x, y, w, h int) float64 {
	return rect(ii.sums[c], ii.stride, x, y, w, h)
}

func (ii *integrals) sumSq(c, x, y, w, h int) float64 {
	return rect(ii.sq[c], ii.stride, x, y, w, h)
}

func rect(t []float64, stride, x, y, w, h int) float64 {
	return t[(y+h)*stride+x+w] - t[y*stride+x+w] - t[(y+h)*stride+x] + t[y*stride+x]
}

var (
	matchersMu sync.RWMutex
	matchers   = map[string]func() Matcher{
		"ncc": func() Matcher { return CCoeffNormed{} },
	}
)

// RegisterMatcher makes a Matcher implementation selectable by name. It is
// intended to be called from init functions of optional backends.
func RegisterMatcher(name string, factory func() Matcher) {
	matchersMu.Lock()
	defer matchersMu.Unlock()
	matchers[name] = factory
}

// NewMatcher returns the registered Matcher for name. An empty name selects
// the built-in "ncc" matcher.
func NewMatcher(name string) (Matcher, error) {
	if name == "" {
		name = "ncc"
	}
	matchersMu.RLock()
	factory, ok := matchers[name]
	matchersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("match: unknown matcher %q (available: %v)", name, MatcherNames())
	}
	return factory(), nil
}

// MatcherNames lists the registered matcher names in sorted order.
func MatcherNames() []string {
	matchersMu.RLock()
	defer matchersMu.RUnlock()
	names := make([]string, 0, len(matchers))
	for name := range matchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
