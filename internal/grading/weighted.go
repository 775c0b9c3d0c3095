package grading

// Component is a named, weighted grading category within a semester.
type Component struct {
	Name      string  `json:"name"`
	Weightage float64 `json:"weightage"`
}

// ComponentScores holds a student's raw scores for one component. A nil
// pointer means the assessor has not graded yet.
type ComponentScores struct {
	Supervisor *float64 `json:"supervisor"`
	Moderator  *float64 `json:"moderator"`
}

// Set stores score under role. Unknown roles are ignored.
func (s *ComponentScores) Set(role Role, score *float64) {
	switch role {
	case RoleSupervisor:
		s.Supervisor = score
	case RoleModerator:
		s.Moderator = score
	}
}

// WeightedComponentScore is the derived, per-component view of a student's grade.
type WeightedComponentScore struct {
	ComponentName   string   `json:"component_name"`
	Weightage       float64  `json:"weightage"`
	SupervisorScore *float64 `json:"supervisor_score"`
	ModeratorScore  *float64 `json:"moderator_score"`
	Weighted        *float64 `json:"weighted"`
	Percentage      *float64 `json:"percentage"`
	Status          Status   `json:"status"`
}

// Weigh blends the two role scores using w. The result is nil unless both
// scores are present.
func Weigh(supervisor, moderator *float64, w RoleWeightage) *float64 {
	if supervisor == nil || moderator == nil {
		return nil
	}
	weighted := *supervisor*(w.Supervisor/100) + *moderator*(w.Moderator/100)
	return &weighted
}

// ScoreComponent weighs scores for c and derives the component status.
func ScoreComponent(c Component, scores ComponentScores, policy Policy) WeightedComponentScore {
	weighted := Weigh(scores.Supervisor, scores.Moderator, policy.Weightage)
	result := WeightedComponentScore{
		ComponentName:   c.Name,
		Weightage:       c.Weightage,
		SupervisorScore: copyScore(scores.Supervisor),
		ModeratorScore:  copyScore(scores.Moderator),
		Weighted:        weighted,
		Status:          ComponentStatus(weighted, c.Weightage, policy.PassThreshold),
	}
	if pct, ok := percentageOf(weighted, c.Weightage); ok {
		result.Percentage = &pct
	}
	return result
}

func percentageOf(weighted *float64, weightage float64) (float64, bool) {
	if weighted == nil || weightage <= 0 {
		return 0, false
	}
	return *weighted / weightage * 100, true
}

func copyScore(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
