package match

// Result is one externally reported match: the center of the matched box and
// its confidence.
//
// Point is float64 to keep the {"point":[x,y]} wire shape; centers are
// always whole numbers.
type Result struct {
	Point      [2]float64 `json:"point"`
	Confidence float64    `json:"confidence"`
}

// X returns the center x coordinate.
func (r Result) X() int { return int(r.Point[0]) }

// Y returns the center y coordinate.
func (r Result) Y() int { return int(r.Point[1]) }

// Project converts surviving boxes into center points using the level-0
// template size: (X1 + tw/2, Y1 + th/2), with integer floor division for the
// half extents. Every box yields exactly one Result.
func Project(boxes []Box, confidences []float64, tw, th int) []Result {
	n := min(len(boxes), len(confidences))
	results := make([]Result, 0, n)
	for i := 0; i < n; i++ {
		b := boxes[i]
		results = append(results, Result{
			Point:      [2]float64{float64(b.X1 + tw/2), float64(b.Y1 + th/2)},
			Confidence: confidences[i],
		})
	}
	return results
}

// BoxFor returns the level-0 box of a candidate for a template of size tw x th.
func BoxFor(c Candidate, tw, th int) Box {
	return Box{X1: c.X, Y1: c.Y, X2: c.X + tw, Y2: c.Y + th}
}
