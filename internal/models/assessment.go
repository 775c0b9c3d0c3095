package models

import "time"

// AssessmentComponent is a named, weighted grading category within a semester.
type AssessmentComponent struct {
	ID               string    `db:"id" json:"id"`
	SemesterID       string    `db:"semester_id" json:"semester_id"`
	Name             string    `db:"name" json:"name"`
	WeightagePercent float64   `db:"weightage_percent" json:"weightage_percent"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// RoleWeightageRow is the persisted weight for one grading role.
type RoleWeightageRow struct {
	Role             string    `db:"role" json:"role"`
	WeightagePercent float64   `db:"weightage_percent" json:"weightage_percent"`
	UpdatedBy        *string   `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// RawGrade is a single score entered by one faculty member for one component.
// A nil Score means the entry exists but has not been graded.
type RawGrade struct {
	ID                    string    `db:"id" json:"id"`
	StudentID             string    `db:"student_id" json:"student_id"`
	AssessmentComponentID string    `db:"assessment_component_id" json:"assessment_component_id"`
	FacultyID             string    `db:"faculty_id" json:"faculty_id"`
	Score                 *float64  `db:"score" json:"score"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// RawGradeFilter scopes raw grade listing.
type RawGradeFilter struct {
	SemesterID  string
	StudentID   string
	ComponentID string
	FacultyID   string
}

// RoleScopedGrade is a raw grade joined with the role its faculty holds on the
// student's project.
type RoleScopedGrade struct {
	StudentID     string   `db:"student_id"`
	ComponentID   string   `db:"assessment_component_id"`
	ComponentName string   `db:"component_name"`
	FacultyID     string   `db:"faculty_id"`
	Role          string   `db:"role"`
	Score         *float64 `db:"score"`
}
