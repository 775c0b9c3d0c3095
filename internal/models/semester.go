package models

import "time"

// Semester is an academic period owning assessment components and project allocations.
type Semester struct {
	ID              string     `db:"id" json:"id"`
	Code            string     `db:"code" json:"code"`
	Name            string     `db:"name" json:"name"`
	StartDate       time.Time  `db:"start_date" json:"start_date"`
	EndDate         time.Time  `db:"end_date" json:"end_date"`
	GradingOpensAt  *time.Time `db:"grading_opens_at" json:"grading_opens_at,omitempty"`
	GradingClosesAt *time.Time `db:"grading_closes_at" json:"grading_closes_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// GradingOpen reports whether grade entry is permitted at now. Missing bounds
// leave that side of the window open.
func (s Semester) GradingOpen(now time.Time) bool {
	if s.GradingOpensAt != nil && now.Before(*s.GradingOpensAt) {
		return false
	}
	if s.GradingClosesAt != nil && now.After(*s.GradingClosesAt) {
		return false
	}
	return true
}

// SemesterStudent is a student allocated to a project in a semester.
type SemesterStudent struct {
	StudentID    string `db:"student_id" json:"student_id"`
	StudentName  string `db:"student_name" json:"student_name"`
	ProjectID    string `db:"project_id" json:"project_id"`
	ProjectTitle string `db:"project_title" json:"project_title"`
}
