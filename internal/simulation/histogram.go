package simulation

import (
	"fmt"
	"math"
)

// Histogram buckets simulated fill days for display.
type Histogram struct {
	BucketDays int            `json:"bucket_days"`
	Counts     []int          `json:"counts"`
	Labels     []string       `json:"labels"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// NewHistogram buckets a sorted sample into at most maxBuckets bins of whole-day width.
func NewHistogram(samples []float64, maxBuckets int) *Histogram {
	if len(samples) == 0 || maxBuckets <= 0 {
		return &Histogram{BucketDays: 1, Counts: []int{}}
	}

	lo := math.Floor(samples[0])
	hi := math.Ceil(samples[len(samples)-1])
	span := int(hi-lo) + 1
	width := (span + maxBuckets - 1) / maxBuckets
	if width < 1 {
		width = 1
	}
	buckets := (span + width - 1) / width

	counts := make([]int, buckets)
	for _, v := range samples {
		idx := int(math.Floor(v)-lo) / width
		if idx >= buckets {
			idx = buckets - 1
		}
		counts[idx]++
	}

	labels := make([]string, buckets)
	for i := range labels {
		labels[i] = fmt.Sprintf("%d", int(lo)+i*width)
	}

	return &Histogram{
		BucketDays: width,
		Counts:     counts,
		Labels:     labels,
		Meta: map[string]any{
			"samples":    len(samples),
			"min_days":   samples[0],
			"max_days":   samples[len(samples)-1],
			"tail_ratio": CalculateTailRatio(samples),
		},
	}
}

// CalculateTailRatio returns P90/P50 of a sorted sample, a spread indicator for the forecast cone.
func CalculateTailRatio(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	p50 := sorted[int(float64(len(sorted))*0.50)]
	idx := int(float64(len(sorted)) * 0.90)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	p90 := sorted[idx]

	if p50 == 0 {
		if p90 > 0 {
			return 10.0 // Symbolic high value when most fills are immediate
		}
		return 1.0
	}
	return p90 / p50
}
