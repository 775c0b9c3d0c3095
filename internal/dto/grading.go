package dto

import (
	"time"

	"github.com/noah-isme/fyp-grading-api/internal/grading"
)

// UpdateRoleWeightageRequest replaces the supervisor/moderator split.
type UpdateRoleWeightageRequest struct {
	Supervisor *float64 `json:"supervisor" validate:"required,gte=0,lte=100"`
	Moderator  *float64 `json:"moderator" validate:"required,gte=0,lte=100"`
}

// RoleWeightageResponse is the split in force. Configured is false when no
// rows are stored and the canonical default applies.
type RoleWeightageResponse struct {
	Supervisor float64    `json:"supervisor"`
	Moderator  float64    `json:"moderator"`
	Configured bool       `json:"configured"`
	UpdatedBy  *string    `json:"updated_by,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// Weightage converts the response into engine input.
func (r RoleWeightageResponse) Weightage() grading.RoleWeightage {
	return grading.RoleWeightage{Supervisor: r.Supervisor, Moderator: r.Moderator}
}

// AssessmentComponentRequest creates or updates a component.
type AssessmentComponentRequest struct {
	Name             string   `json:"name" validate:"required,notblank,max=100"`
	WeightagePercent *float64 `json:"weightage_percent" validate:"required,gte=0,lte=100"`
}

// UpsertGradeRequest records one faculty score. FacultyID defaults to the
// caller and may only be set by administrators. A nil Score clears the grade.
type UpsertGradeRequest struct {
	StudentID   string   `json:"student_id" validate:"required"`
	ComponentID string   `json:"component_id" validate:"required"`
	FacultyID   string   `json:"faculty_id,omitempty"`
	Score       *float64 `json:"score" validate:"omitempty,gte=0"`
}

// BulkUpsertGradesRequest records many scores in one transaction.
type BulkUpsertGradesRequest struct {
	Grades []UpsertGradeRequest `json:"grades" validate:"required,min=1,max=500,dive"`
}

// GradeQuery filters GET /grades.
type GradeQuery struct {
	SemesterID  string `form:"semester_id"`
	StudentID   string `form:"student_id"`
	ComponentID string `form:"component_id"`
	FacultyID   string `form:"faculty_id"`
}

// ComponentResult is one component line of a student's result.
type ComponentResult struct {
	ComponentID string `json:"component_id"`
	grading.WeightedComponentScore
	Discrepancy *float64 `json:"discrepancy"`
}

// StudentResult is the aggregated outcome for a student.
type StudentResult struct {
	StudentID    string            `json:"student_id"`
	StudentName  string            `json:"student_name"`
	ProjectID    string            `json:"project_id"`
	ProjectTitle string            `json:"project_title"`
	TotalScore   float64           `json:"total_score"`
	MaxScore     float64           `json:"max_score"`
	Percentage   *float64          `json:"percentage"`
	Status       grading.Status    `json:"status"`
	Graded       bool              `json:"graded"`
	Components   []ComponentResult `json:"components"`
}

// StatusCounts tallies student outcomes.
type StatusCounts struct {
	Pass    int `json:"pass"`
	Fail    int `json:"fail"`
	Pending int `json:"pending"`
}

// Add counts one status.
func (c *StatusCounts) Add(status grading.Status) {
	switch status {
	case grading.StatusPass:
		c.Pass++
	case grading.StatusFail:
		c.Fail++
	default:
		c.Pending++
	}
}

// SemesterResults lists every student of a semester with the policy used.
type SemesterResults struct {
	SemesterID    string                `json:"semester_id"`
	Weightage     grading.RoleWeightage `json:"weightage"`
	PassThreshold float64               `json:"pass_threshold"`
	Components    []ComponentSummary    `json:"components"`
	Results       []StudentResult       `json:"results"`
	Counts        StatusCounts          `json:"counts"`
	GeneratedAt   time.Time             `json:"generated_at"`
}

// ComponentSummary names a component and its weightage.
type ComponentSummary struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	WeightagePercent float64 `json:"weightage_percent"`
}

// ScoreType selects which score a statistics request summarises.
type ScoreType string

const (
	ScoreTypeTotal      ScoreType = "total"
	ScoreTypeWeighted   ScoreType = "weighted"
	ScoreTypeSupervisor ScoreType = "supervisor"
	ScoreTypeModerator  ScoreType = "moderator"
)

// StatisticsQuery filters GET /semesters/:id/statistics. ComponentID is
// required for every score type except total.
type StatisticsQuery struct {
	ScoreType   ScoreType `form:"score_type" validate:"omitempty,oneof=total weighted supervisor moderator"`
	ComponentID string    `form:"component_id"`
	Bins        int       `form:"bins" validate:"omitempty,min=1,max=50"`
}

// StatisticsResponse carries summary statistics and the histogram. Statistics
// is nil when no graded score matched.
type StatisticsResponse struct {
	SemesterID  string              `json:"semester_id"`
	ScoreType   ScoreType           `json:"score_type"`
	ComponentID string              `json:"component_id,omitempty"`
	Statistics  *grading.Statistics `json:"statistics"`
	Histogram   []grading.Bin       `json:"histogram"`
	Message     string              `json:"message,omitempty"`
}
