package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fyp-grading-api/internal/models"
	"github.com/noah-isme/fyp-grading-api/pkg/database"
)

const assessmentComponentColumns = `id, semester_id, name, weightage_percent, created_at, updated_at`

// AssessmentComponentRepository manages the weighted components of a semester.
type AssessmentComponentRepository struct {
	db *sqlx.DB
}

// NewAssessmentComponentRepository creates a repository instance.
func NewAssessmentComponentRepository(db *sqlx.DB) *AssessmentComponentRepository {
	return &AssessmentComponentRepository{db: db}
}

// ListBySemester returns the components of a semester in creation order.
func (r *AssessmentComponentRepository) ListBySemester(ctx context.Context, semesterID string) ([]models.AssessmentComponent, error) {
	query := `SELECT ` + assessmentComponentColumns + ` FROM assessment_components WHERE semester_id = $1 ORDER BY created_at, name`
	var components []models.AssessmentComponent
	if err := r.db.SelectContext(ctx, &components, query, semesterID); err != nil {
		return nil, fmt.Errorf("list assessment components: %w", err)
	}
	return components, nil
}

// FindByID returns a component by its ID.
func (r *AssessmentComponentRepository) FindByID(ctx context.Context, id string) (*models.AssessmentComponent, error) {
	query := `SELECT ` + assessmentComponentColumns + ` FROM assessment_components WHERE id = $1`
	var component models.AssessmentComponent
	if err := r.db.GetContext(ctx, &component, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find assessment component: %w", err)
	}
	return &component, nil
}

// ExistsByName checks whether a semester already has a component with name.
// Comparison is case-insensitive.
func (r *AssessmentComponentRepository) ExistsByName(ctx context.Context, semesterID, name, excludeID string) (bool, error) {
	query := "SELECT 1 FROM assessment_components WHERE semester_id = $1 AND LOWER(name) = LOWER($2)"
	args := []interface{}{semesterID, name}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check assessment component name: %w", err)
	}
	return true, nil
}

// SumWeightage totals the component weightage of a semester, optionally
// leaving one component out.
func (r *AssessmentComponentRepository) SumWeightage(ctx context.Context, semesterID, excludeID string) (float64, error) {
	query := "SELECT COALESCE(SUM(weightage_percent), 0) FROM assessment_components WHERE semester_id = $1"
	args := []interface{}{semesterID}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var total float64
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("sum assessment component weightage: %w", err)
	}
	return total, nil
}

// Create inserts a new component.
func (r *AssessmentComponentRepository) Create(ctx context.Context, component *models.AssessmentComponent) error {
	if component.ID == "" {
		component.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if component.CreatedAt.IsZero() {
		component.CreatedAt = now
	}
	component.UpdatedAt = now
	const query = `INSERT INTO assessment_components (id, semester_id, name, weightage_percent, created_at, updated_at)
        VALUES (:id, :semester_id, :name, :weightage_percent, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, component); err != nil {
		return fmt.Errorf("create assessment component: %w", err)
	}
	return nil
}

// Update persists the component name and weightage.
func (r *AssessmentComponentRepository) Update(ctx context.Context, component *models.AssessmentComponent) error {
	component.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assessment_components SET name = :name, weightage_percent = :weightage_percent, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, component)
	if err != nil {
		return fmt.Errorf("update assessment component: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a component together with every raw grade recorded against it.
func (r *AssessmentComponentRepository) Delete(ctx context.Context, id string) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM raw_grades WHERE assessment_component_id = $1`, id); err != nil {
			return fmt.Errorf("delete component raw grades: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM assessment_components WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete assessment component: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}
