package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-grading-api/internal/dto"
	"github.com/noah-isme/fyp-grading-api/internal/models"
	appErrors "github.com/noah-isme/fyp-grading-api/pkg/errors"
	"github.com/noah-isme/fyp-grading-api/pkg/validation"
)

const maxSemesterWeightage = 100.0

type assessmentComponentRepository interface {
	ListBySemester(ctx context.Context, semesterID string) ([]models.AssessmentComponent, error)
	FindByID(ctx context.Context, id string) (*models.AssessmentComponent, error)
	ExistsByName(ctx context.Context, semesterID, name, excludeID string) (bool, error)
	SumWeightage(ctx context.Context, semesterID, excludeID string) (float64, error)
	Create(ctx context.Context, component *models.AssessmentComponent) error
	Update(ctx context.Context, component *models.AssessmentComponent) error
	Delete(ctx context.Context, id string) error
}

type semesterReader interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

// AssessmentComponentService manages the weighted components of each semester.
type AssessmentComponentService struct {
	repo      assessmentComponentRepository
	semesters semesterReader
	cache     cacheInvalidator
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssessmentComponentService constructs the service.
func NewAssessmentComponentService(repo assessmentComponentRepository, semesters semesterReader, cache cacheInvalidator, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *AssessmentComponentService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentComponentService{
		repo:      repo,
		semesters: semesters,
		cache:     cache,
		audit:     audit,
		validator: validate,
		logger:    logger,
	}
}

// List returns the components of a semester in creation order.
func (s *AssessmentComponentService) List(ctx context.Context, semesterID string) ([]models.AssessmentComponent, error) {
	if err := s.ensureSemester(ctx, semesterID); err != nil {
		return nil, err
	}
	components, err := s.repo.ListBySemester(ctx, semesterID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list assessment components")
	}
	return components, nil
}

// Get returns a single component.
func (s *AssessmentComponentService) Get(ctx context.Context, id string) (*models.AssessmentComponent, error) {
	component, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment component not found")
		}
		return nil, appErrors.Internal(err, "failed to load assessment component")
	}
	return component, nil
}

// Create adds a component to a semester.
func (s *AssessmentComponentService) Create(ctx context.Context, semesterID string, req dto.AssessmentComponentRequest, actor *models.JWTClaims) (*models.AssessmentComponent, error) {
	name, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSemester(ctx, semesterID); err != nil {
		return nil, err
	}
	if err := s.checkConstraints(ctx, semesterID, name, *req.WeightagePercent, ""); err != nil {
		return nil, err
	}

	component := &models.AssessmentComponent{
		SemesterID:       semesterID,
		Name:             name,
		WeightagePercent: *req.WeightagePercent,
	}
	if err := s.repo.Create(ctx, component); err != nil {
		return nil, appErrors.Internal(err, "failed to create assessment component")
	}

	s.invalidate(ctx, semesterID)
	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionComponentCreate,
		resource:   "assessment_component",
		resourceID: component.ID,
		newValues:  component,
		source:     "assessment-component-service",
	})
	return component, nil
}

// Update renames or reweights a component.
func (s *AssessmentComponentService) Update(ctx context.Context, id string, req dto.AssessmentComponentRequest, actor *models.JWTClaims) (*models.AssessmentComponent, error) {
	name, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkConstraints(ctx, existing.SemesterID, name, *req.WeightagePercent, id); err != nil {
		return nil, err
	}

	previous := *existing
	existing.Name = name
	existing.WeightagePercent = *req.WeightagePercent
	if err := s.repo.Update(ctx, existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment component not found")
		}
		return nil, appErrors.Internal(err, "failed to update assessment component")
	}

	s.invalidate(ctx, existing.SemesterID)
	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionComponentUpdate,
		resource:   "assessment_component",
		resourceID: id,
		oldValues:  previous,
		newValues:  existing,
		source:     "assessment-component-service",
	})
	return existing, nil
}

// Delete removes a component and every raw grade recorded against it.
func (s *AssessmentComponentService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assessment component not found")
		}
		return appErrors.Internal(err, "failed to delete assessment component")
	}

	s.invalidate(ctx, existing.SemesterID)
	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionComponentDelete,
		resource:   "assessment_component",
		resourceID: id,
		oldValues:  existing,
		source:     "assessment-component-service",
	})
	return nil
}

func (s *AssessmentComponentService) validate(req dto.AssessmentComponentRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Invalid(err, "invalid assessment component payload")
	}
	return strings.TrimSpace(req.Name), nil
}

func (s *AssessmentComponentService) checkConstraints(ctx context.Context, semesterID, name string, weightage float64, excludeID string) error {
	exists, err := s.repo.ExistsByName(ctx, semesterID, name, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to check component name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("component %q already exists in this semester", name))
	}

	sum, err := s.repo.SumWeightage(ctx, semesterID, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to sum component weightage")
	}
	if sum+weightage > maxSemesterWeightage+0.001 {
		return appErrors.Clone(appErrors.ErrInvalidWeights, fmt.Sprintf("component weightages would total %.2f, exceeding %.0f", sum+weightage, maxSemesterWeightage))
	}
	return nil
}

func (s *AssessmentComponentService) ensureSemester(ctx context.Context, semesterID string) error {
	if s.semesters == nil {
		return nil
	}
	if _, err := s.semesters.FindByID(ctx, semesterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return appErrors.Internal(err, "failed to load semester")
	}
	return nil
}

func (s *AssessmentComponentService) invalidate(ctx context.Context, semesterID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, semesterPattern(semesterID))
}
