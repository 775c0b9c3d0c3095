package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fyp-grading-api/internal/models"
	"github.com/noah-isme/fyp-grading-api/pkg/database"
)

const upsertRawGradeQuery = `INSERT INTO raw_grades (id, student_id, assessment_component_id, faculty_id, score, created_at, updated_at)
        VALUES (:id, :student_id, :assessment_component_id, :faculty_id, :score, :created_at, :updated_at)
        ON CONFLICT (student_id, assessment_component_id, faculty_id)
        DO UPDATE SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at`

// RawGradeRepository persists per-faculty component scores.
type RawGradeRepository struct {
	db *sqlx.DB
}

// NewRawGradeRepository creates a new raw grade repository.
func NewRawGradeRepository(db *sqlx.DB) *RawGradeRepository {
	return &RawGradeRepository{db: db}
}

func stampRawGrade(grade *models.RawGrade, now time.Time) {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now
}

// Upsert inserts or replaces the score a faculty member gave for a component.
func (r *RawGradeRepository) Upsert(ctx context.Context, grade *models.RawGrade) error {
	stampRawGrade(grade, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, upsertRawGradeQuery, grade); err != nil {
		return fmt.Errorf("upsert raw grade: %w", err)
	}
	return nil
}

// BulkUpsert writes all grades atomically.
func (r *RawGradeRepository) BulkUpsert(ctx context.Context, grades []models.RawGrade) error {
	now := time.Now().UTC()
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for i := range grades {
			stampRawGrade(&grades[i], now)
			if _, err := tx.NamedExecContext(ctx, upsertRawGradeQuery, grades[i]); err != nil {
				return fmt.Errorf("bulk upsert raw grade %s/%s: %w", grades[i].StudentID, grades[i].AssessmentComponentID, err)
			}
		}
		return nil
	})
}

// List returns raw grades matching the filter.
func (r *RawGradeRepository) List(ctx context.Context, filter models.RawGradeFilter) ([]models.RawGrade, error) {
	query := `SELECT rg.id, rg.student_id, rg.assessment_component_id, rg.faculty_id, rg.score, rg.created_at, rg.updated_at
        FROM raw_grades rg
        JOIN assessment_components ac ON ac.id = rg.assessment_component_id
        WHERE 1=1`
	var args []interface{}
	if filter.SemesterID != "" {
		query += fmt.Sprintf(" AND ac.semester_id = $%d", len(args)+1)
		args = append(args, filter.SemesterID)
	}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND rg.student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.ComponentID != "" {
		query += fmt.Sprintf(" AND rg.assessment_component_id = $%d", len(args)+1)
		args = append(args, filter.ComponentID)
	}
	if filter.FacultyID != "" {
		query += fmt.Sprintf(" AND rg.faculty_id = $%d", len(args)+1)
		args = append(args, filter.FacultyID)
	}
	query += " ORDER BY rg.student_id, ac.created_at, rg.faculty_id"
	var grades []models.RawGrade
	if err := r.db.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, fmt.Errorf("list raw grades: %w", err)
	}
	return grades, nil
}

// ListRoleScoped returns the semester's raw grades tagged with the role each
// grading faculty holds on the student's project. Grades from faculty no longer
// assigned to the project are left out. An empty studentID returns every student.
func (r *RawGradeRepository) ListRoleScoped(ctx context.Context, semesterID, studentID string) ([]models.RoleScopedGrade, error) {
	query := `SELECT rg.student_id, rg.assessment_component_id, ac.name AS component_name, rg.faculty_id, pf.role, rg.score
        FROM raw_grades rg
        JOIN assessment_components ac ON ac.id = rg.assessment_component_id
        JOIN projects p ON p.student_id = rg.student_id AND p.semester_id = ac.semester_id
        JOIN project_faculty pf ON pf.project_id = p.id AND pf.faculty_id = rg.faculty_id
        WHERE ac.semester_id = $1`
	args := []interface{}{semesterID}
	if studentID != "" {
		query += " AND rg.student_id = $2"
		args = append(args, studentID)
	}
	query += " ORDER BY rg.student_id, ac.created_at, rg.faculty_id"
	var grades []models.RoleScopedGrade
	if err := r.db.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, fmt.Errorf("list role scoped grades: %w", err)
	}
	return grades, nil
}
