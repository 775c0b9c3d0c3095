package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-grading-api/internal/dto"
	"github.com/noah-isme/fyp-grading-api/internal/grading"
	"github.com/noah-isme/fyp-grading-api/internal/models"
	appErrors "github.com/noah-isme/fyp-grading-api/pkg/errors"
	"github.com/noah-isme/fyp-grading-api/pkg/validation"
)

type rawGradeRepository interface {
	Upsert(ctx context.Context, grade *models.RawGrade) error
	BulkUpsert(ctx context.Context, grades []models.RawGrade) error
	List(ctx context.Context, filter models.RawGradeFilter) ([]models.RawGrade, error)
}

type componentReader interface {
	FindByID(ctx context.Context, id string) (*models.AssessmentComponent, error)
}

type facultyRoleResolver interface {
	FacultyRole(ctx context.Context, semesterID, studentID, facultyID string) (string, error)
}

type gradeMetrics interface {
	RecordGradesWritten(n int)
}

// GradeEntryService records raw scores entered by supervisors and moderators.
type GradeEntryService struct {
	grades      rawGradeRepository
	components  componentReader
	semesters   semesterReader
	assignments facultyRoleResolver
	cache       cacheInvalidator
	metrics     gradeMetrics
	audit       auditLogger
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewGradeEntryService constructs the service.
func NewGradeEntryService(grades rawGradeRepository, components componentReader, semesters semesterReader, assignments facultyRoleResolver, cache cacheInvalidator, metrics gradeMetrics, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *GradeEntryService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeEntryService{
		grades:      grades,
		components:  components,
		semesters:   semesters,
		assignments: assignments,
		cache:       cache,
		metrics:     metrics,
		audit:       audit,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// gradeLookup memoises component and semester reads across a bulk request.
type gradeLookup struct {
	components map[string]*models.AssessmentComponent
	semesters  map[string]*models.Semester
}

func newGradeLookup() *gradeLookup {
	return &gradeLookup{
		components: make(map[string]*models.AssessmentComponent),
		semesters:  make(map[string]*models.Semester),
	}
}

// Upsert records or replaces one score. A nil score clears the grade.
func (s *GradeEntryService) Upsert(ctx context.Context, req dto.UpsertGradeRequest, actor *models.JWTClaims) (*models.RawGrade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid grade payload")
	}
	grade, semesterID, err := s.prepare(ctx, req, actor, newGradeLookup())
	if err != nil {
		return nil, err
	}
	if err := s.grades.Upsert(ctx, grade); err != nil {
		return nil, appErrors.Internal(err, "failed to save grade")
	}

	s.afterWrite(ctx, []string{semesterID}, 1)
	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionGradeUpsert,
		resource:   "raw_grade",
		resourceID: grade.ID,
		newValues:  grade,
		source:     "grade-entry-service",
	})
	return grade, nil
}

// BulkUpsert validates every entry first and then writes them in one
// transaction; a single invalid entry rejects the whole batch.
func (s *GradeEntryService) BulkUpsert(ctx context.Context, req dto.BulkUpsertGradesRequest, actor *models.JWTClaims) ([]models.RawGrade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid bulk grade payload")
	}

	lookup := newGradeLookup()
	seen := make(map[string]int, len(req.Grades))
	grades := make([]models.RawGrade, 0, len(req.Grades))
	semesterSet := make(map[string]struct{})
	for i, item := range req.Grades {
		grade, semesterID, err := s.prepare(ctx, item, actor, lookup)
		if err != nil {
			return nil, annotateEntry(err, i)
		}
		key := grade.StudentID + "|" + grade.AssessmentComponentID + "|" + grade.FacultyID
		if first, dup := seen[key]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("grades[%d] duplicates grades[%d]", i, first))
		}
		seen[key] = i
		semesterSet[semesterID] = struct{}{}
		grades = append(grades, *grade)
	}

	if err := s.grades.BulkUpsert(ctx, grades); err != nil {
		return nil, appErrors.Internal(err, "failed to save grades")
	}

	semesterIDs := make([]string, 0, len(semesterSet))
	for id := range semesterSet {
		semesterIDs = append(semesterIDs, id)
	}
	s.afterWrite(ctx, semesterIDs, len(grades))
	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:    models.AuditActionGradeBulkUpsert,
		resource:  "raw_grade",
		newValues: map[string]interface{}{"count": len(grades), "semesters": semesterIDs},
		source:    "grade-entry-service",
	})
	return grades, nil
}

// List returns raw grades. Faculty only ever see the grades they entered.
func (s *GradeEntryService) List(ctx context.Context, query dto.GradeQuery, actor *models.JWTClaims) ([]models.RawGrade, error) {
	filter := models.RawGradeFilter{
		SemesterID:  strings.TrimSpace(query.SemesterID),
		StudentID:   strings.TrimSpace(query.StudentID),
		ComponentID: strings.TrimSpace(query.ComponentID),
		FacultyID:   strings.TrimSpace(query.FacultyID),
	}
	if actor != nil && actor.Role == models.RoleFaculty {
		if filter.FacultyID != "" && filter.FacultyID != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "faculty may only list their own grades")
		}
		filter.FacultyID = actor.UserID
	}
	grades, err := s.grades.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list grades")
	}
	return grades, nil
}

func (s *GradeEntryService) prepare(ctx context.Context, req dto.UpsertGradeRequest, actor *models.JWTClaims, lookup *gradeLookup) (*models.RawGrade, string, error) {
	if actor == nil {
		return nil, "", appErrors.ErrUnauthorized
	}
	facultyID, err := resolveFaculty(req.FacultyID, actor)
	if err != nil {
		return nil, "", err
	}

	component, err := s.component(ctx, req.ComponentID, lookup)
	if err != nil {
		return nil, "", err
	}
	if req.Score != nil {
		score := *req.Score
		if math.IsNaN(score) || score < 0 || score > component.WeightagePercent {
			return nil, "", appErrors.Clone(appErrors.ErrScoreOutOfRange,
				fmt.Sprintf("score %.2f must be between 0 and %.2f for %s", score, component.WeightagePercent, component.Name))
		}
	}

	if actor.Role != models.RoleAdmin {
		semester, err := s.semester(ctx, component.SemesterID, lookup)
		if err != nil {
			return nil, "", err
		}
		if !semester.GradingOpen(s.now()) {
			return nil, "", appErrors.Clone(appErrors.ErrGradingClosed, fmt.Sprintf("grading window for %s is closed", semester.Name))
		}
	}

	role, err := s.assignments.FacultyRole(ctx, component.SemesterID, req.StudentID, facultyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrForbidden, "faculty is not assigned to this student's project")
		}
		return nil, "", appErrors.Internal(err, "failed to resolve faculty assignment")
	}
	if !grading.Role(role).Valid() {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s cannot enter grades", role))
	}

	return &models.RawGrade{
		StudentID:             req.StudentID,
		AssessmentComponentID: component.ID,
		FacultyID:             facultyID,
		Score:                 req.Score,
	}, component.SemesterID, nil
}

func resolveFaculty(requested string, actor *models.JWTClaims) (string, error) {
	requested = strings.TrimSpace(requested)
	switch actor.Role {
	case models.RoleAdmin:
		if requested == "" {
			return "", appErrors.Clone(appErrors.ErrValidation, "faculty_id is required when an administrator enters grades")
		}
		return requested, nil
	case models.RoleFaculty:
		if requested != "" && requested != actor.UserID {
			return "", appErrors.Clone(appErrors.ErrForbidden, "faculty may only enter their own grades")
		}
		return actor.UserID, nil
	default:
		return "", appErrors.ErrForbidden
	}
}

func (s *GradeEntryService) component(ctx context.Context, id string, lookup *gradeLookup) (*models.AssessmentComponent, error) {
	if c, ok := lookup.components[id]; ok {
		return c, nil
	}
	c, err := s.components.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment component not found")
		}
		return nil, appErrors.Internal(err, "failed to load assessment component")
	}
	lookup.components[id] = c
	return c, nil
}

func (s *GradeEntryService) semester(ctx context.Context, id string, lookup *gradeLookup) (*models.Semester, error) {
	if sem, ok := lookup.semesters[id]; ok {
		return sem, nil
	}
	sem, err := s.semesters.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Internal(err, "failed to load semester")
	}
	lookup.semesters[id] = sem
	return sem, nil
}

func (s *GradeEntryService) afterWrite(ctx context.Context, semesterIDs []string, written int) {
	if s.metrics != nil {
		s.metrics.RecordGradesWritten(written)
	}
	if s.cache == nil {
		return
	}
	for _, id := range semesterIDs {
		_ = s.cache.Invalidate(ctx, semesterPattern(id))
	}
}

// annotateEntry prefixes a domain error with the offending bulk index.
func annotateEntry(err error, index int) error {
	appErr := appErrors.FromError(err)
	return appErrors.Clone(appErr, fmt.Sprintf("grades[%d]: %s", index, appErr.Message))
}
