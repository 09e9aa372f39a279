package match

import "fmt"

// Candidate is a threshold-passing offset projected back to level-0
// coordinates. Level records which pyramid level produced it.
type Candidate struct {
	X, Y       int
	Confidence float64
	Level      int
}

// SearchStats summarizes one Search call.
type SearchStats struct {
	LevelsSearched int
	LevelsSkipped  int
}

// Search runs m over matching pyramid levels of scene and template and
// returns every cell scoring at least threshold, in level-0 coordinates.
//
// levels is clamped to [1, MaxLevels]. Levels are visited from the coarsest
// (levels-1) to the finest (0). Every
// level where the template fits is scored; there is no early exit on a
// coarse hit. A level is skipped when the template is wider or taller than
// the scene at that level. A local offset (px, py) at level k maps to
// (px<<k, py<<k).
//
// The returned slice may be empty and may contain the same physical match
// found at several levels; see Suppress.
func Search(scene, template *Raster, threshold float64, levels int, m Matcher) ([]Candidate, error) {
	c, _, err := search(scene, template, threshold, levels, m)
	return c, err
}

func search(scene, template *Raster, threshold float64, levels int, m Matcher) ([]Candidate, SearchStats, error) {
	var stats SearchStats
	if scene.Empty() || template.Empty() {
		return nil, stats, nil
	}
	levels = clampLevels(levels)

	scenePyr := BuildPyramid(scene, levels)
	tmplPyr := BuildPyramid(template, levels)

	var candidates []Candidate
	for level := levels - 1; level >= 0; level-- {
		img, tmpl := scenePyr[level], tmplPyr[level]
		if !img.Fits(tmpl) {
			stats.LevelsSkipped++
			continue
		}

		surface, err := m.Match(img, tmpl)
		if err != nil {
			return nil, stats, fmt.Errorf("match level %d (%dx%d in %dx%d): %w",
				level, tmpl.W, tmpl.H, img.W, img.H, err)
		}
		stats.LevelsSearched++

		rows, cols := surface.Dims()
		for py := 0; py < rows; py++ {
			for px := 0; px < cols; px++ {
				score := surface.At(py, px)
				if score >= threshold {
					candidates = append(candidates, Candidate{
						X:          px << level,
						Y:          py << level,
						Confidence: score,
						Level:      level,
					})
				}
			}
		}

		// Release the level buffers once scored.
		scenePyr[level], tmplPyr[level] = nil, nil
	}
	return candidates, stats, nil
}
