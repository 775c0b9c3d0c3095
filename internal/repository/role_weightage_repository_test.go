package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fyp-grading-api/internal/models"
)

func TestRoleWeightageRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoleWeightageRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"role", "weightage_percent", "updated_by", "updated_at"}).
		AddRow("MODERATOR", 40.0, "admin-1", now).
		AddRow("SUPERVISOR", 60.0, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT role, weightage_percent, updated_by, updated_at FROM role_weightages ORDER BY role")).
		WillReturnRows(rows)

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.NotNil(t, list[0].UpdatedBy)
	assert.Equal(t, "admin-1", *list[0].UpdatedBy)
	assert.Nil(t, list[1].UpdatedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleWeightageRepositoryUpsertIsTransactional(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoleWeightageRepository(db)

	actor := "admin-1"
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO role_weightages").
		WithArgs("SUPERVISOR", 60.0, actor, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO role_weightages").
		WithArgs("MODERATOR", 40.0, actor, sqlmock.AnyArg()).
		WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	err := repo.Upsert(context.Background(), []models.RoleWeightageRow{
		{Role: "SUPERVISOR", WeightagePercent: 60, UpdatedBy: &actor},
		{Role: "MODERATOR", WeightagePercent: 40, UpdatedBy: &actor},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MODERATOR")
	assert.NoError(t, mock.ExpectationsWereMet())
}
