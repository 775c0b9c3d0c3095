package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fyp-grading-api/internal/dto"
	"github.com/noah-isme/fyp-grading-api/internal/models"
	appErrors "github.com/noah-isme/fyp-grading-api/pkg/errors"
)

func newComponentServiceForTest(components ...models.AssessmentComponent) (*AssessmentComponentService, *componentRepoStub, *memoryCache, *auditStub) {
	repo := newComponentRepoStub(components...)
	cache := newMemoryCache()
	audit := &auditStub{}
	svc := NewAssessmentComponentService(repo, openSemesters("sem-1", "sem-2"), cache, audit, nil, nil)
	return svc, repo, cache, audit
}

func TestAssessmentComponentServiceCreate(t *testing.T) {
	svc, repo, cache, audit := newComponentServiceForTest(
		models.AssessmentComponent{ID: "c1", SemesterID: "sem-1", Name: "Report", WeightagePercent: 40},
	)

	created, err := svc.Create(context.Background(), "sem-1", dto.AssessmentComponentRequest{Name: "  Presentation ", WeightagePercent: f64(60)}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, "Presentation", created.Name)
	assert.Contains(t, repo.components, created.ID)
	assert.Equal(t, []string{semesterPattern("sem-1")}, cache.invalidated)
	assert.Equal(t, []string{models.AuditActionComponentCreate}, audit.actions())
}

func TestAssessmentComponentServiceCreateRejectsDuplicateName(t *testing.T) {
	svc, _, _, _ := newComponentServiceForTest(
		models.AssessmentComponent{ID: "c1", SemesterID: "sem-1", Name: "Report", WeightagePercent: 40},
	)
	_, err := svc.Create(context.Background(), "sem-1", dto.AssessmentComponentRequest{Name: "report", WeightagePercent: f64(10)}, adminClaims())
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), "sem-2", dto.AssessmentComponentRequest{Name: "Report", WeightagePercent: f64(10)}, adminClaims())
	assert.NoError(t, err)
}

func TestAssessmentComponentServiceCreateRejectsOverweight(t *testing.T) {
	svc, _, _, _ := newComponentServiceForTest(
		models.AssessmentComponent{ID: "c1", SemesterID: "sem-1", Name: "Report", WeightagePercent: 70},
	)
	_, err := svc.Create(context.Background(), "sem-1", dto.AssessmentComponentRequest{Name: "Viva", WeightagePercent: f64(31)}, adminClaims())
	assert.Equal(t, appErrors.ErrInvalidWeights.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), "sem-1", dto.AssessmentComponentRequest{Name: "Viva", WeightagePercent: f64(101)}, adminClaims())
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), "sem-1", dto.AssessmentComponentRequest{Name: "Viva", WeightagePercent: f64(30)}, adminClaims())
	assert.NoError(t, err)
}

func TestAssessmentComponentServiceCreateUnknownSemester(t *testing.T) {
	svc, _, _, _ := newComponentServiceForTest()
	_, err := svc.Create(context.Background(), "missing", dto.AssessmentComponentRequest{Name: "Report", WeightagePercent: f64(10)}, adminClaims())
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAssessmentComponentServiceUpdateExcludesItselfFromChecks(t *testing.T) {
	svc, repo, _, audit := newComponentServiceForTest(
		models.AssessmentComponent{ID: "c1", SemesterID: "sem-1", Name: "Report", WeightagePercent: 40},
		models.AssessmentComponent{ID: "c2", SemesterID: "sem-1", Name: "Presentation", WeightagePercent: 60},
	)

	updated, err := svc.Update(context.Background(), "c1", dto.AssessmentComponentRequest{Name: "Report", WeightagePercent: f64(40)}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, 40.0, updated.WeightagePercent)

	_, err = svc.Update(context.Background(), "c1", dto.AssessmentComponentRequest{Name: "Report", WeightagePercent: f64(41)}, adminClaims())
	assert.Equal(t, appErrors.ErrInvalidWeights.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(context.Background(), "c1", dto.AssessmentComponentRequest{Name: "PRESENTATION", WeightagePercent: f64(40)}, adminClaims())
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	assert.Equal(t, "Report", repo.components["c1"].Name)
	assert.Equal(t, []string{models.AuditActionComponentUpdate}, audit.actions())
}

func TestAssessmentComponentServiceDelete(t *testing.T) {
	svc, repo, cache, audit := newComponentServiceForTest(
		models.AssessmentComponent{ID: "c1", SemesterID: "sem-2", Name: "Report", WeightagePercent: 40},
	)
	require.NoError(t, svc.Delete(context.Background(), "c1", adminClaims()))
	assert.Equal(t, []string{"c1"}, repo.deleted)
	assert.Equal(t, []string{semesterPattern("sem-2")}, cache.invalidated)
	assert.Equal(t, []string{models.AuditActionComponentDelete}, audit.actions())

	err := svc.Delete(context.Background(), "c1", adminClaims())
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAssessmentComponentServiceList(t *testing.T) {
	svc, _, _, _ := newComponentServiceForTest(
		models.AssessmentComponent{ID: "c1", SemesterID: "sem-1", Name: "Report", WeightagePercent: 40},
		models.AssessmentComponent{ID: "c2", SemesterID: "sem-2", Name: "Logbook", WeightagePercent: 10},
		models.AssessmentComponent{ID: "c3", SemesterID: "sem-1", Name: "Presentation", WeightagePercent: 60},
	)
	list, err := svc.List(context.Background(), "sem-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Report", list[0].Name)
	assert.Equal(t, "Presentation", list[1].Name)

	_, err = svc.List(context.Background(), "nope")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAssessmentComponentServiceCreateRejectsBlankName(t *testing.T) {
	svc, repo, _, _ := newComponentServiceForTest()
	_, err := svc.Create(context.Background(), "sem-1", dto.AssessmentComponentRequest{Name: "   ", WeightagePercent: f64(10)}, adminClaims())

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "name cannot be blank", appErr.Fields["name"])
	assert.Empty(t, repo.components)
}
