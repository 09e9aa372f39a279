package match

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/anthonynsimon/bild/noise"
)

// solidImage returns a w x h image filled with c.
func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

// noiseImage returns w x h of uniform color noise.
func noiseImage(w, h int) *image.RGBA {
	return noise.Generate(w, h, &noise.Options{NoiseFn: noise.Uniform, Monochrome: false})
}

// paste copies src into dst with its top-left corner at (x, y).
func paste(dst draw.Image, src image.Image, x, y int) {
	b := src.Bounds()
	draw.Draw(dst, image.Rect(x, y, x+b.Dx(), y+b.Dy()), src, b.Min, draw.Src)
}

// twoSquaresScene is a 200x200 black scene with 20x20 white squares at
// (50,50) and (150,150).
func twoSquaresScene() (*Raster, *Raster) {
	white := color.RGBA{255, 255, 255, 255}
	scene := solidImage(200, 200, color.RGBA{0, 0, 0, 255})
	square := solidImage(20, 20, white)
	paste(scene, square, 50, 50)
	paste(scene, square, 150, 150)
	return FromImage(scene), FromImage(square)
}

// requireResultNear fails unless got contains a result within tol pixels of
// (x, y).
func requireResultNear(t *testing.T, got []Result, x, y, tol int) {
	t.Helper()
	for _, r := range got {
		if abs(r.X()-x) <= tol && abs(r.Y()-y) <= tol {
			return
		}
	}
	t.Fatalf("no result within %dpx of (%d,%d): %+v", tol, x, y, got)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
