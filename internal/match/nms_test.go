package match

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIoU(t *testing.T) {
	a := Box{0, 0, 10, 10}
	tests := []struct {
		name string
		b    Box
		want float64
	}{
		{"identical", Box{0, 0, 10, 10}, 1},
		{"half shifted", Box{5, 0, 15, 10}, 50.0 / 150.0},
		{"touching edge", Box{10, 0, 20, 10}, 0},
		{"disjoint", Box{50, 50, 60, 60}, 0},
		{"contained", Box{2, 2, 7, 7}, 25.0 / 100.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, IoU(a, tt.b), 1e-6)
			assert.InDelta(t, tt.want, IoU(tt.b, a), 1e-6, "IoU must be symmetric")
		})
	}
}

func TestIoU_ZeroAreaBoxes(t *testing.T) {
	z := Box{3, 3, 3, 3}
	v := IoU(z, z)
	assert.False(t, math.IsNaN(v))
	assert.Equal(t, 0.0, v)
}

func TestSuppress_Empty(t *testing.T) {
	assert.Empty(t, Suppress(nil, nil, 0.5))
	assert.Empty(t, Suppress([]Box{{0, 0, 1, 1}}, nil, 0.5))
}

func TestSuppress_ClusterCollapse(t *testing.T) {
	boxes := []Box{
		{10, 10, 30, 30},
		{11, 10, 31, 30},
		{10, 12, 30, 32},
		{12, 11, 32, 31},
		{9, 9, 29, 29},
	}
	confidences := []float64{0.81, 0.95, 0.87, 0.90, 0.83}

	keep := Suppress(boxes, confidences, 0.5)
	assert.Equal(t, []int{1}, keep)
}

func TestSuppress_DisjointPreservation(t *testing.T) {
	var boxes []Box
	var confidences []float64
	for i := 0; i < 6; i++ {
		boxes = append(boxes, Box{i * 30, 0, i*30 + 20, 20})
		confidences = append(confidences, 0.5+float64(i)*0.07)
	}

	keep := Suppress(boxes, confidences, 0.5)
	require.Len(t, keep, len(boxes))
	sorted := append([]int(nil), keep...)
	sort.Ints(sorted)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, sorted)
	// Keep order follows descending confidence.
	assert.Equal(t, []int{5, 4, 3, 2, 1, 0}, keep)
}

func TestSuppress_Idempotent(t *testing.T) {
	boxes := []Box{
		{0, 0, 20, 20},
		{4, 4, 24, 24},
		{30, 30, 50, 50},
		{33, 30, 53, 50},
		{100, 0, 120, 20},
		{8, 0, 28, 20},
	}
	confidences := []float64{0.9, 0.85, 0.7, 0.95, 0.6, 0.88}

	first := Suppress(boxes, confidences, 0.5)
	keptBoxes := make([]Box, len(first))
	keptConf := make([]float64, len(first))
	for i, idx := range first {
		keptBoxes[i] = boxes[idx]
		keptConf[i] = confidences[idx]
	}

	second := Suppress(keptBoxes, keptConf, 0.5)
	require.Len(t, second, len(first))
	for i, idx := range second {
		assert.Equal(t, keptBoxes[i], keptBoxes[idx], "second pass must keep every box in order")
	}
}

func TestSuppress_ThresholdIsInclusive(t *testing.T) {
	boxes := []Box{{0, 0, 10, 10}, {0, 0, 10, 10}}
	confidences := []float64{0.9, 0.8}

	// IoU of identical boxes is just under 1 because of the epsilon.
	assert.Equal(t, []int{0}, Suppress(boxes, confidences, 0.99))
	assert.Equal(t, []int{0, 1}, Suppress(boxes, confidences, 1))
	assert.Equal(t, []int{0}, Suppress(boxes, confidences, 0))
}

func TestSuppress_TieBreakIsDeterministic(t *testing.T) {
	boxes := []Box{
		{40, 10, 60, 30},
		{0, 10, 20, 30},
		{0, 0, 20, 20},
	}
	confidences := []float64{0.9, 0.9, 0.9}

	// Disjoint enough to keep everything; order is Y1 then X1.
	keep := Suppress(boxes, confidences, 0.9)
	assert.Equal(t, []int{2, 1, 0}, keep)

	// Overlapping pair with equal confidence: the upper-left one survives.
	keep = Suppress([]Box{{2, 0, 22, 20}, {0, 0, 20, 20}}, []float64{0.7, 0.7}, 0.5)
	assert.Equal(t, []int{1}, keep)
}

func TestSuppress_NaNConfidenceLast(t *testing.T) {
	boxes := []Box{{0, 0, 10, 10}, {100, 100, 110, 110}, {200, 0, 210, 10}}
	confidences := []float64{math.NaN(), 0.4, 0.6}
	assert.Equal(t, []int{2, 1, 0}, Suppress(boxes, confidences, 0.5))
}
