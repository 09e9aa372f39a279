package match

import (
	"math"
	"sort"
)

// DefaultIoUThreshold is the overlap at or above which two boxes are treated
// as the same physical match.
const DefaultIoUThreshold = 0.5

// iouEpsilon keeps IoU finite when both boxes have zero area.
const iouEpsilon = 1e-6

// Box is an axis-aligned rectangle in level-0 pixel space. (X1, Y1) is the
// top-left corner; X2 and Y2 are exclusive.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Area returns the box area, or 0 for inverted boxes.
func (b Box) Area() float64 {
	w, h := b.X2-b.X1, b.Y2-b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return float64(w) * float64(h)
}

// IoU returns the intersection-over-union of a and b:
//
//	inter / (area(a) + area(b) - inter + 1e-6)
//
// The intersection is clamped to zero on each axis, so disjoint boxes give 0.
func IoU(a, b Box) float64 {
	w := math.Max(0, float64(min(a.X2, b.X2)-max(a.X1, b.X1)))
	h := math.Max(0, float64(min(a.Y2, b.Y2)-max(a.Y1, b.Y1)))
	inter := w * h
	return inter / (a.Area() + b.Area() - inter + iouEpsilon)
}

// Suppress performs greedy non-maximum suppression and returns the indices
// of the boxes to keep, highest confidence first.
//
// # Algorithm
//
//  1. Order indices by confidence, descending.
//  2. Take the first remaining index and keep it.
//  3. Drop every remaining index whose IoU with the kept box is >= iouThreshold.
//  4. Repeat from 2 until nothing remains.
//
// Exact confidence ties are broken by the smaller Y1, then the smaller X1,
// then the smaller input index, so the output is deterministic. NaN
// confidences are ordered last. The result is greedy, not a globally optimal
// clustering.
//
// Only the first min(len(boxes), len(confidences)) entries are considered.
func Suppress(boxes []Box, confidences []float64, iouThreshold float64) []int {
	n := min(len(boxes), len(confidences))
	if n == 0 {
		return nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		ca, cb := confidences[ia], confidences[ib]
		if na, nb := math.IsNaN(ca), math.IsNaN(cb); na || nb {
			return !na && nb
		}
		if ca != cb {
			return ca > cb
		}
		if boxes[ia].Y1 != boxes[ib].Y1 {
			return boxes[ia].Y1 < boxes[ib].Y1
		}
		if boxes[ia].X1 != boxes[ib].X1 {
			return boxes[ia].X1 < boxes[ib].X1
		}
		return ia < ib
	})

	var keep []int
	for len(order) > 0 {
		current := order[0]
		keep = append(keep, current)

		rest := order[:0]
		for _, idx := range order[1:] {
			if IoU(boxes[current], boxes[idx]) < iouThreshold {
				rest = append(rest, idx)
			}
		}
		order = rest
	}
	return keep
}
