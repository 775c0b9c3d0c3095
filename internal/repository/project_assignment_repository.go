package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fyp-grading-api/internal/models"
)

// ProjectAssignmentRepository resolves project allocations: which student
// works on which project, and which faculty supervise or moderate it.
type ProjectAssignmentRepository struct {
	db *sqlx.DB
}

// NewProjectAssignmentRepository constructs the repository.
func NewProjectAssignmentRepository(db *sqlx.DB) *ProjectAssignmentRepository {
	return &ProjectAssignmentRepository{db: db}
}

// FacultyRole returns the role facultyID holds on the student's project for
// the semester. sql.ErrNoRows means the faculty is not assigned.
func (r *ProjectAssignmentRepository) FacultyRole(ctx context.Context, semesterID, studentID, facultyID string) (string, error) {
	const query = `SELECT pf.role FROM project_faculty pf
        JOIN projects p ON p.id = pf.project_id
        WHERE p.semester_id = $1 AND p.student_id = $2 AND pf.faculty_id = $3
        LIMIT 1`
	var role string
	if err := r.db.GetContext(ctx, &role, query, semesterID, studentID, facultyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("find faculty role: %w", err)
	}
	return role, nil
}

// ListStudents returns the students allocated to a project in the semester.
func (r *ProjectAssignmentRepository) ListStudents(ctx context.Context, semesterID string) ([]models.SemesterStudent, error) {
	const query = `SELECT p.student_id, u.full_name AS student_name, p.id AS project_id, p.title AS project_title
        FROM projects p
        JOIN users u ON u.id = p.student_id
        WHERE p.semester_id = $1
        ORDER BY u.full_name, p.student_id`
	var students []models.SemesterStudent
	if err := r.db.SelectContext(ctx, &students, query, semesterID); err != nil {
		return nil, fmt.Errorf("list semester students: %w", err)
	}
	return students, nil
}

// FindStudent returns one student's allocation in the semester.
func (r *ProjectAssignmentRepository) FindStudent(ctx context.Context, semesterID, studentID string) (*models.SemesterStudent, error) {
	const query = `SELECT p.student_id, u.full_name AS student_name, p.id AS project_id, p.title AS project_title
        FROM projects p
        JOIN users u ON u.id = p.student_id
        WHERE p.semester_id = $1 AND p.student_id = $2
        LIMIT 1`
	var student models.SemesterStudent
	if err := r.db.GetContext(ctx, &student, query, semesterID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find semester student: %w", err)
	}
	return &student, nil
}
