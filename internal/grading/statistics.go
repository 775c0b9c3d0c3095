package grading

import (
	"math"
	"sort"
)

// UngradedPolicy decides which scores count as "not graded" before summarising.
type UngradedPolicy int

const (
	// ExcludeAbsent drops nil scores only; a recorded zero is a real score.
	ExcludeAbsent UngradedPolicy = iota
	// ExcludeNonPositive also drops scores <= 0, matching dashboards that store
	// ungraded work as zero. Real zeros cannot be represented under it.
	ExcludeNonPositive
)

// Statistics describes a filtered set of scores.
type Statistics struct {
	Count      int     `json:"count"`
	TotalCount int     `json:"total_count"`
	Mean       float64 `json:"mean"`
	Median     float64 `json:"median"`
	Mode       float64 `json:"mode"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Q1         float64 `json:"q1"`
	Q3         float64 `json:"q3"`
	StdDev     float64 `json:"std_dev"`
}

// Bin is one histogram bucket.
type Bin struct {
	Start float64 `json:"bin_start"`
	End   float64 `json:"bin_end"`
	Count int     `json:"count"`
}

// FilterGraded returns the graded scores in input order.
func FilterGraded(scores []*float64, policy UngradedPolicy) []float64 {
	out := make([]float64, 0, len(scores))
	for _, s := range scores {
		if s == nil || math.IsNaN(*s) {
			continue
		}
		if policy == ExcludeNonPositive && *s <= 0 {
			continue
		}
		out = append(out, *s)
	}
	return out
}

// Summarize filters scores under policy and describes what remains. It returns
// nil when nothing is left.
func Summarize(scores []*float64, policy UngradedPolicy) *Statistics {
	return Describe(FilterGraded(scores, policy), len(scores))
}

// Describe computes statistics over already filtered values. totalCount is the
// size of the unfiltered input and is reported as-is.
func Describe(values []float64, totalCount int) *Statistics {
	n := len(values)
	if n == 0 {
		return nil
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	variance := 0.0
	for _, v := range sorted {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n)

	var median float64
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}

	return &Statistics{
		Count:      n,
		TotalCount: totalCount,
		Mean:       mean,
		Median:     median,
		Mode:       mode(sorted),
		Min:        sorted[0],
		Max:        sorted[n-1],
		Q1:         sorted[int(math.Floor(float64(n)*0.25))],
		Q3:         sorted[int(math.Floor(float64(n)*0.75))],
		StdDev:     math.Sqrt(variance),
	}
}

// mode scans the distinct values of sorted in ascending order and keeps each
// value whose frequency is at least that of every value seen before it, so
// ties resolve to the largest tied value.
func mode(sorted []float64) float64 {
	best, bestCount := sorted[0], 0
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		if count := j - i; count >= bestCount {
			best, bestCount = sorted[i], count
		}
		i = j
	}
	return best
}

// Histogram buckets values into bins equal-width bins spanning [min, max].
// The maximum value lands in the last bin. When every value is equal a single
// bin holds them all.
func Histogram(values []float64, bins int) []Bin {
	if len(values) == 0 {
		return nil
	}
	if bins < 1 {
		bins = DefaultHistogramBins
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return []Bin{{Start: lo, End: hi, Count: len(values)}}
	}

	size := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Start = lo + float64(i)*size
		out[i].End = lo + float64(i+1)*size
	}
	out[bins-1].End = hi

	for _, v := range values {
		idx := int(math.Floor((v - lo) / size))
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		out[idx].Count++
	}
	return out
}
