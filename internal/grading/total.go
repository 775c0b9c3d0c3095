package grading

// Status is the pass/fail outcome of a component or a whole project.
type Status string

const (
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
	StatusPending Status = "PENDING"
)

// StudentTotal aggregates a student's weighted component scores for a semester.
type StudentTotal struct {
	StudentID  string                   `json:"student_id"`
	TotalScore float64                  `json:"total_score"`
	MaxScore   float64                  `json:"max_score"`
	Percentage *float64                 `json:"percentage"`
	Status     Status                   `json:"status"`
	Components []WeightedComponentScore `json:"components"`
}

// ComponentStatus compares the weighted score, as a percentage of the
// component weightage, against threshold. Missing scores and a zero
// weightage are Pending.
func ComponentStatus(weighted *float64, componentWeightage, threshold float64) Status {
	pct, ok := percentageOf(weighted, componentWeightage)
	if !ok {
		return StatusPending
	}
	if pct >= threshold {
		return StatusPass
	}
	return StatusFail
}

// Aggregate sums the weighted scores into a StudentTotal. Components that are
// not fully graded contribute 0 to the total.
//
// The project passes once the aggregate percentage meets threshold. Below it,
// the project stays Pending while any component is still Pending, since the
// missing scores can only raise the total; otherwise it fails.
func Aggregate(studentID string, components []WeightedComponentScore, threshold float64) StudentTotal {
	total := StudentTotal{
		StudentID:  studentID,
		Status:     StatusPending,
		Components: make([]WeightedComponentScore, len(components)),
	}
	copy(total.Components, components)

	pending := false
	for _, c := range components {
		if c.Weighted != nil {
			total.TotalScore += *c.Weighted
		}
		total.MaxScore += c.Weightage
		if c.Status == StatusPending {
			pending = true
		}
	}
	if total.MaxScore <= 0 {
		return total
	}

	pct := total.TotalScore / total.MaxScore * 100
	total.Percentage = &pct
	switch {
	case pct >= threshold:
		total.Status = StatusPass
	case pending:
		total.Status = StatusPending
	default:
		total.Status = StatusFail
	}
	return total
}

// Evaluate scores every component for one student and aggregates the result.
// Components without an entry in scores are treated as ungraded.
func Evaluate(studentID string, components []Component, scores map[string]ComponentScores, policy Policy) StudentTotal {
	weighted := make([]WeightedComponentScore, 0, len(components))
	for _, c := range components {
		weighted = append(weighted, ScoreComponent(c, scores[c.Name], policy))
	}
	return Aggregate(studentID, weighted, policy.PassThreshold)
}

// ByComponent indexes the component scores by component name.
func (t StudentTotal) ByComponent() map[string]WeightedComponentScore {
	out := make(map[string]WeightedComponentScore, len(t.Components))
	for _, c := range t.Components {
		out[c.ComponentName] = c
	}
	return out
}

// Graded reports whether at least one component has a weighted score.
func (t StudentTotal) Graded() bool {
	for _, c := range t.Components {
		if c.Weighted != nil {
			return true
		}
	}
	return false
}
