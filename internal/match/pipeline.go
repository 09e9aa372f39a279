package match

import "math"

const (
	// DefaultThreshold is the minimum score for a candidate.
	DefaultThreshold = 0.8

	// DefaultLevels is the default pyramid length.
	DefaultLevels = 4

	// MaxLevels caps the pyramid length. Sixteen halvings take a 65536
	// pixel side down to one pixel.
	MaxLevels = 16
)

// Options configures Find.
type Options struct {
	// Threshold is the minimum matcher score. It is not range checked.
	Threshold float64

	// Levels is the pyramid length; values below one select DefaultLevels
	// and values above MaxLevels are capped at MaxLevels.
	Levels int

	// IoUThreshold is the suppression overlap, clamped to [0, 1]. NaN selects
	// DefaultIoUThreshold.
	IoUThreshold float64

	// Matcher scores a single level; nil selects CCoeffNormed.
	Matcher Matcher
}

// DefaultOptions returns the settings the search uses when a caller gives
// none.
func DefaultOptions() Options {
	return Options{
		Threshold:    DefaultThreshold,
		Levels:       DefaultLevels,
		IoUThreshold: DefaultIoUThreshold,
		Matcher:      CCoeffNormed{},
	}
}

func (o Options) normalize() Options {
	if o.Matcher == nil {
		o.Matcher = CCoeffNormed{}
	}
	if o.Levels < 1 {
		o.Levels = DefaultLevels
	}
	o.Levels = min(o.Levels, MaxLevels)
	switch {
	case math.IsNaN(o.IoUThreshold):
		o.IoUThreshold = DefaultIoUThreshold
	case o.IoUThreshold < 0:
		o.IoUThreshold = 0
	case o.IoUThreshold > 1:
		o.IoUThreshold = 1
	}
	return o
}

// Stats describes the work done by one FindWithStats call.
type Stats struct {
	SearchStats
	Candidates int
	Matches    int
	Boxes      []Box
}

// Find locates template in scene and returns one Result per physical match,
// highest confidence first. The slice is empty (not nil) when nothing
// matches.
func Find(scene, template *Raster, opts Options) ([]Result, error) {
	results, _, err := FindWithStats(scene, template, opts)
	return results, err
}

// FindWithStats is Find plus a summary of the search, including the level-0
// boxes behind each result.
func FindWithStats(scene, template *Raster, opts Options) ([]Result, Stats, error) {
	opts = opts.normalize()

	candidates, ss, err := search(scene, template, opts.Threshold, opts.Levels, opts.Matcher)
	stats := Stats{SearchStats: ss, Candidates: len(candidates)}
	if err != nil {
		return nil, stats, err
	}
	if len(candidates) == 0 {
		return []Result{}, stats, nil
	}

	tw, th := template.W, template.H
	boxes := make([]Box, len(candidates))
	confidences := make([]float64, len(candidates))
	for i, c := range candidates {
		boxes[i] = BoxFor(c, tw, th)
		confidences[i] = c.Confidence
	}

	keep := Suppress(boxes, confidences, opts.IoUThreshold)
	kept := make([]Box, len(keep))
	keptConf := make([]float64, len(keep))
	for i, idx := range keep {
		kept[i] = boxes[idx]
		keptConf[i] = confidences[idx]
	}

	results := Project(kept, keptConf, tw, th)
	stats.Matches = len(results)
	stats.Boxes = kept
	return results, stats, nil
}
