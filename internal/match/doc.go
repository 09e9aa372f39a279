// Package match finds occurrences of a template image inside a scene image.
//
// The search is multi-scale: both images are reduced into Gaussian pyramids,
// a correlation Matcher scores every eligible level from coarse to fine, hits
// above a threshold are mapped back to full-resolution coordinates, and
// overlapping detections are collapsed by greedy non-maximum suppression.
//
// # Pipeline
//
//  1. BuildPyramid: level k is the input halved k times (ceiling division).
//  2. Search: one ScoreSurface per level, candidates with score >= threshold.
//  3. Suppress: confidence-ordered greedy NMS over level-0 boxes.
//  4. Project: box top-left plus half the template size, floor division.
//
// Find wires the four steps together with Options.
//
// # Coordinate System
//
// Coordinates are 0-based with the origin at the top-left. A candidate found
// at offset (px, py) of level k is reported at (px*2^k, py*2^k). Boxes always
// have the level-0 template size, whatever level produced them.
//
// # Concurrency
//
// A call to Find allocates all of its state and shares nothing, so separate
// calls may run on separate goroutines. A single call is sequential.
package match
