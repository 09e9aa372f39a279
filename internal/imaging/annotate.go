package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ErrInvalidColor is returned by Annotate for a malformed outline color.
var ErrInvalidColor = errors.New("invalid color")

// Mark is one rectangle to draw on an annotated image.
type Mark struct {
	Rect       image.Rectangle
	Confidence float64
}

// AnnotateOptions controls Annotate.
type AnnotateOptions struct {
	// Color is a "#RRGGBB" or "#RRGGBBAA" outline color. When empty, each
	// mark is colored by confidence on a red (low) to green (high) ramp.
	Color string

	// Thickness is the outline width in pixels; values below one draw one
	// pixel.
	Thickness int

	// Labels draws the confidence, two decimals, above each rectangle.
	Labels bool
}

// Annotate returns a copy of img with each mark outlined. Marks partly
// outside the image are clipped; img itself is not modified.
func Annotate(img image.Image, marks []Mark, opts AnnotateOptions) (*image.RGBA, error) {
	bounds := img.Bounds()
	result := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(result, result.Bounds(), img, bounds.Min, draw.Src)

	var fixed *color.RGBA
	if opts.Color != "" {
		c, err := parseHexColor(opts.Color)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidColor, opts.Color, err)
		}
		fixed = &c
	}
	thickness := max(1, opts.Thickness)

	labelFg := color.RGBA{255, 255, 255, 255}
	for _, m := range marks {
		c := ConfidenceColor(m.Confidence)
		if fixed != nil {
			c = *fixed
		}
		drawRect(result, m.Rect, thickness, c)
		if opts.Labels {
			label := strconv.FormatFloat(m.Confidence, 'f', 2, 64)
			drawLabel(result, m.Rect.Min.X, m.Rect.Min.Y-8, label, labelFg, c)
		}
	}
	return result, nil
}

var (
	lowConfidence  = colorful.Color{R: 0.85, G: 0.1, B: 0.1}
	highConfidence = colorful.Color{R: 0.1, G: 0.8, B: 0.2}
)

// ConfidenceColor maps a confidence in [0,1] onto a red to green ramp,
// blended in HCL space. Values outside the range are clamped.
func ConfidenceColor(confidence float64) color.RGBA {
	t := confidence
	switch {
	case math.IsNaN(t) || t < 0:
		t = 0
	case t > 1:
		t = 1
	}
	r, g, b := lowConfidence.BlendHcl(highConfidence, t).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// parseHexColor parses "#RRGGBB" or "#RRGGBBAA". The leading '#' is
// optional.
func parseHexColor(hex string) (color.RGBA, error) {
	hex = strings.TrimPrefix(hex, "#")
	var a uint8 = 255
	switch len(hex) {
	case 6:
	case 8:
		v, err := strconv.ParseUint(hex[6:], 16, 8)
		if err != nil {
			return color.RGBA{}, err
		}
		a = uint8(v)
		hex = hex[:6]
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}

	c, err := colorful.Hex("#" + hex)
	if err != nil {
		return color.RGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}

func drawRect(img *image.RGBA, r image.Rectangle, thickness int, c color.RGBA) {
	bounds := img.Bounds()
	for i := 0; i < thickness; i++ {
		outer := image.Rect(r.Min.X+i, r.Min.Y+i, r.Max.X-i, r.Max.Y-i)
		if outer.Empty() {
			return
		}
		edges := []image.Rectangle{
			image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, outer.Min.Y+1),
			image.Rect(outer.Min.X, outer.Max.Y-1, outer.Max.X, outer.Max.Y),
			image.Rect(outer.Min.X, outer.Min.Y, outer.Min.X+1, outer.Max.Y),
			image.Rect(outer.Max.X-1, outer.Min.Y, outer.Max.X, outer.Max.Y),
		}
		for _, e := range edges {
			draw.Draw(img, e.Intersect(bounds), &image.Uniform{C: c}, image.Point{}, draw.Over)
		}
	}
}

// glyphs is a 3x5 pixel font covering the characters used in labels.
var glyphs = map[rune][]string{
	'0': {"111", "101", "101", "101", "111"},
	'1': {"010", "110", "010", "010", "111"},
	'2': {"111", "001", "111", "100", "111"},
	'3': {"111", "001", "111", "001", "111"},
	'4': {"101", "101", "111", "001", "001"},
	'5': {"111", "100", "111", "001", "111"},
	'6': {"111", "100", "111", "101", "111"},
	'7': {"111", "001", "001", "001", "001"},
	'8': {"111", "101", "111", "101", "111"},
	'9': {"111", "101", "111", "001", "111"},
	',': {"000", "000", "000", "010", "010"},
	'.': {"000", "000", "000", "000", "010"},
	'-': {"000", "000", "111", "000", "000"},
}

// drawLabel draws text with its top-left corner at (x, y) on a filled
// background. A label that would start above the image is moved inside it.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	const charWidth, labelHeight = 4, 7

	bounds := img.Bounds()
	if y < bounds.Min.Y+1 {
		y = bounds.Min.Y + 1
	}
	bgRect := image.Rect(x-1, y-1, x+len(text)*charWidth, y+labelHeight-1)
	draw.Draw(img, bgRect.Intersect(bounds), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	cx := x
	for _, ch := range text {
		for row, line := range glyphs[ch] {
			for col, pixel := range line {
				p := image.Pt(cx+col, y+row)
				if pixel == '1' && p.In(bounds) {
					img.SetRGBA(p.X, p.Y, fg)
				}
			}
		}
		cx += charWidth
	}
}
