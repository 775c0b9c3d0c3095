package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fyp-grading-api/internal/dto"
	"github.com/noah-isme/fyp-grading-api/internal/grading"
	"github.com/noah-isme/fyp-grading-api/internal/models"
	appErrors "github.com/noah-isme/fyp-grading-api/pkg/errors"
)

type roleWeightageRepoStub struct {
	rows      []models.RoleWeightageRow
	listErr   error
	upsertErr error
	upserts   int
}

func (r *roleWeightageRepoStub) List(ctx context.Context) ([]models.RoleWeightageRow, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]models.RoleWeightageRow(nil), r.rows...), nil
}

func (r *roleWeightageRepoStub) Upsert(ctx context.Context, rows []models.RoleWeightageRow) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.upserts++
	r.rows = append([]models.RoleWeightageRow(nil), rows...)
	return nil
}

func TestRoleWeightageServiceCurrentFallsBackToDefault(t *testing.T) {
	svc := NewRoleWeightageService(&roleWeightageRepoStub{}, nil, nil, nil, nil, RoleWeightageServiceConfig{Default: grading.DefaultRoleWeightage()})

	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.False(t, current.Configured)
	assert.Equal(t, 70.0, current.Supervisor)
	assert.Equal(t, 30.0, current.Moderator)
}

func TestRoleWeightageServiceCurrentIgnoresPartialRows(t *testing.T) {
	repo := &roleWeightageRepoStub{rows: []models.RoleWeightageRow{{Role: "SUPERVISOR", WeightagePercent: 50}}}
	svc := NewRoleWeightageService(repo, nil, nil, nil, nil, RoleWeightageServiceConfig{})

	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.False(t, current.Configured)
	assert.Equal(t, grading.DefaultRoleWeightage(), current.Weightage())
}

func TestRoleWeightageServiceCurrentUsesStoredRows(t *testing.T) {
	updater := "admin-1"
	later := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	repo := &roleWeightageRepoStub{rows: []models.RoleWeightageRow{
		{Role: "MODERATOR", WeightagePercent: 40, UpdatedBy: &updater, UpdatedAt: later},
		{Role: "SUPERVISOR", WeightagePercent: 60, UpdatedAt: later.Add(-time.Hour)},
	}}
	svc := NewRoleWeightageService(repo, nil, nil, nil, nil, RoleWeightageServiceConfig{})

	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, current.Configured)
	assert.Equal(t, grading.RoleWeightage{Supervisor: 60, Moderator: 40}, current.Weightage())
	require.NotNil(t, current.UpdatedAt)
	assert.Equal(t, later, *current.UpdatedAt)
	assert.Equal(t, &updater, current.UpdatedBy)
}

func TestRoleWeightageServiceInvalidConfiguredDefault(t *testing.T) {
	svc := NewRoleWeightageService(&roleWeightageRepoStub{}, nil, nil, nil, nil, RoleWeightageServiceConfig{Default: grading.RoleWeightage{Supervisor: 90, Moderator: 30}})
	w, err := svc.Weightage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, grading.DefaultRoleWeightage(), w)
}

func TestRoleWeightageServiceUpdate(t *testing.T) {
	repo := &roleWeightageRepoStub{}
	cache := newMemoryCache()
	audit := &auditStub{}
	svc := NewRoleWeightageService(repo, cache, audit, nil, nil, RoleWeightageServiceConfig{})
	fixed := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	resp, err := svc.Update(context.Background(), dto.UpdateRoleWeightageRequest{Supervisor: f64(55), Moderator: f64(45)}, adminClaims())
	require.NoError(t, err)
	assert.True(t, resp.Configured)
	assert.Equal(t, fixed, *resp.UpdatedAt)
	assert.Equal(t, 1, repo.upserts)
	require.Len(t, repo.rows, 2)
	assert.Equal(t, "admin-1", *repo.rows[0].UpdatedBy)
	assert.Equal(t, []string{allGradingPattern()}, cache.invalidated)
	assert.Equal(t, []string{models.AuditActionWeightageUpdate}, audit.actions())

	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, grading.RoleWeightage{Supervisor: 55, Moderator: 45}, current.Weightage())
}

func TestRoleWeightageServiceUpdateRejectsBadSplits(t *testing.T) {
	repo := &roleWeightageRepoStub{}
	svc := NewRoleWeightageService(repo, nil, nil, nil, nil, RoleWeightageServiceConfig{})

	_, err := svc.Update(context.Background(), dto.UpdateRoleWeightageRequest{Supervisor: f64(60), Moderator: f64(30)}, adminClaims())
	assert.Equal(t, appErrors.ErrInvalidWeights.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(context.Background(), dto.UpdateRoleWeightageRequest{Supervisor: f64(120), Moderator: f64(-20)}, adminClaims())
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(context.Background(), dto.UpdateRoleWeightageRequest{Supervisor: f64(100)}, adminClaims())
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Zero(t, repo.upserts)
}

func TestRoleWeightageServiceUpdatePropagatesStoreFailure(t *testing.T) {
	svc := NewRoleWeightageService(&roleWeightageRepoStub{upsertErr: errors.New("db down")}, nil, nil, nil, nil, RoleWeightageServiceConfig{})
	_, err := svc.Update(context.Background(), dto.UpdateRoleWeightageRequest{Supervisor: f64(70), Moderator: f64(30)}, adminClaims())
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
