package grading

import (
	"fmt"
	"math"
)

// Discrepancy is the absolute gap between the supervisor and moderator scores,
// or nil when either is missing.
func Discrepancy(supervisor, moderator *float64) *float64 {
	if supervisor == nil || moderator == nil {
		return nil
	}
	d := math.Abs(*supervisor - *moderator)
	return &d
}

// FormatDiscrepancy renders d for reports.
func FormatDiscrepancy(d *float64) string {
	if d == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *d)
}
