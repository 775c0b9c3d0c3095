package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fyp-grading-api/internal/models"
	"github.com/noah-isme/fyp-grading-api/pkg/database"
)

// RoleWeightageRepository stores the supervisor/moderator split.
type RoleWeightageRepository struct {
	db *sqlx.DB
}

// NewRoleWeightageRepository constructs the repository.
func NewRoleWeightageRepository(db *sqlx.DB) *RoleWeightageRepository {
	return &RoleWeightageRepository{db: db}
}

// List returns the configured rows ordered by role.
func (r *RoleWeightageRepository) List(ctx context.Context) ([]models.RoleWeightageRow, error) {
	const query = `SELECT role, weightage_percent, updated_by, updated_at FROM role_weightages ORDER BY role`
	var rows []models.RoleWeightageRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list role weightages: %w", err)
	}
	return rows, nil
}

// Upsert writes every row in one transaction so readers never see a split
// that does not sum to 100.
func (r *RoleWeightageRepository) Upsert(ctx context.Context, rows []models.RoleWeightageRow) error {
	now := time.Now().UTC()
	const query = `INSERT INTO role_weightages (role, weightage_percent, updated_by, updated_at)
        VALUES (:role, :weightage_percent, :updated_by, :updated_at)
        ON CONFLICT (role)
        DO UPDATE SET weightage_percent = EXCLUDED.weightage_percent, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for i := range rows {
			rows[i].UpdatedAt = now
			if _, err := tx.NamedExecContext(ctx, query, rows[i]); err != nil {
				return fmt.Errorf("upsert role weightage %s: %w", rows[i].Role, err)
			}
		}
		return nil
	})
}
