package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fyp-grading-api/internal/models"
	"github.com/noah-isme/fyp-grading-api/pkg/database"
)

const userColumnList = `id, email, password_hash, full_name, registration_no, role, active, last_login, created_at, updated_at`

// UserRepository reads accounts for authentication.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail matches the address case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumnList + ` FROM users WHERE LOWER(email) = $1 LIMIT 1`
	return r.findOne(ctx, "find user by email", query, strings.ToLower(strings.TrimSpace(email)))
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumnList + ` FROM users WHERE id = $1 LIMIT 1`
	return r.findOne(ctx, "find user by id", query, id)
}

func (r *UserRepository) findOne(ctx context.Context, op, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// RecordLogin stamps last_login and writes the login audit entry in one
// transaction.
func (r *UserRepository) RecordLogin(ctx context.Context, id string, ts time.Time, entry *models.AuditLog) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`, id, ts); err != nil {
			return fmt.Errorf("update last login: %w", err)
		}
		if entry == nil {
			return nil
		}
		stampAuditLog(entry)
		if _, err := tx.NamedExecContext(ctx, insertAuditLogQuery, entry); err != nil {
			return fmt.Errorf("insert login audit log: %w", err)
		}
		return nil
	})
}
