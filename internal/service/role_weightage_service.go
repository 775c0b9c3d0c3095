package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-grading-api/internal/dto"
	"github.com/noah-isme/fyp-grading-api/internal/grading"
	"github.com/noah-isme/fyp-grading-api/internal/models"
	appErrors "github.com/noah-isme/fyp-grading-api/pkg/errors"
	"github.com/noah-isme/fyp-grading-api/pkg/validation"
)

type roleWeightageRepository interface {
	List(ctx context.Context) ([]models.RoleWeightageRow, error)
	Upsert(ctx context.Context, rows []models.RoleWeightageRow) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// RoleWeightageServiceConfig carries the fallback split used until an administrator stores one.
type RoleWeightageServiceConfig struct {
	Default grading.RoleWeightage
}

// RoleWeightageService reads and replaces the global supervisor/moderator split.
type RoleWeightageService struct {
	repo      roleWeightageRepository
	cache     cacheInvalidator
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	fallback  grading.RoleWeightage
	now       func() time.Time
}

// NewRoleWeightageService constructs the service. An invalid configured
// default falls back to the canonical 70/30 split.
func NewRoleWeightageService(repo roleWeightageRepository, cache cacheInvalidator, audit auditLogger, validate *validator.Validate, logger *zap.Logger, cfg RoleWeightageServiceConfig) *RoleWeightageService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback := cfg.Default
	if err := fallback.Validate(); err != nil {
		logger.Warn("configured default role weightage invalid, using canonical split", zap.Error(err))
		fallback = grading.DefaultRoleWeightage()
	}
	return &RoleWeightageService{
		repo:      repo,
		cache:     cache,
		audit:     audit,
		validator: validate,
		logger:    logger,
		fallback:  fallback,
		now:       time.Now,
	}
}

// Current returns the stored split, or the fallback when either role has no row.
func (s *RoleWeightageService) Current(ctx context.Context) (*dto.RoleWeightageResponse, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load role weightages")
	}

	var supervisor, moderator *models.RoleWeightageRow
	for i := range rows {
		switch grading.Role(rows[i].Role) {
		case grading.RoleSupervisor:
			supervisor = &rows[i]
		case grading.RoleModerator:
			moderator = &rows[i]
		}
	}
	if supervisor == nil || moderator == nil {
		return &dto.RoleWeightageResponse{
			Supervisor: s.fallback.Supervisor,
			Moderator:  s.fallback.Moderator,
		}, nil
	}

	resp := &dto.RoleWeightageResponse{
		Supervisor: supervisor.WeightagePercent,
		Moderator:  moderator.WeightagePercent,
		Configured: true,
	}
	latest := supervisor
	if moderator.UpdatedAt.After(supervisor.UpdatedAt) {
		latest = moderator
	}
	updatedAt := latest.UpdatedAt
	resp.UpdatedAt = &updatedAt
	resp.UpdatedBy = latest.UpdatedBy

	if err := resp.Weightage().Validate(); err != nil {
		s.logger.Warn("stored role weightage does not sum to 100", zap.Error(err))
	}
	return resp, nil
}

// Weightage returns only the split for use by calculations.
func (s *RoleWeightageService) Weightage(ctx context.Context) (grading.RoleWeightage, error) {
	current, err := s.Current(ctx)
	if err != nil {
		return grading.RoleWeightage{}, err
	}
	return current.Weightage(), nil
}

// Update validates and stores a new split. Every cached grading payload is
// evicted because results in all semesters depend on it.
func (s *RoleWeightageService) Update(ctx context.Context, req dto.UpdateRoleWeightageRequest, actor *models.JWTClaims) (*dto.RoleWeightageResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid role weightage payload")
	}
	next := grading.RoleWeightage{Supervisor: *req.Supervisor, Moderator: *req.Moderator}
	if err := next.Validate(); err != nil {
		if errors.Is(err, grading.ErrInvalidRoleWeightage) {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidWeights.Code, appErrors.ErrInvalidWeights.Status, "supervisor and moderator weightages must sum to 100")
		}
		return nil, appErrors.Invalid(err, "invalid role weightage")
	}

	previous, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	updatedBy := userIDPtr(actor)
	rows := []models.RoleWeightageRow{
		{Role: string(grading.RoleSupervisor), WeightagePercent: next.Supervisor, UpdatedBy: updatedBy, UpdatedAt: now},
		{Role: string(grading.RoleModerator), WeightagePercent: next.Moderator, UpdatedBy: updatedBy, UpdatedAt: now},
	}
	if err := s.repo.Upsert(ctx, rows); err != nil {
		return nil, appErrors.Internal(err, "failed to update role weightages")
	}

	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, allGradingPattern())
	}
	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:    models.AuditActionWeightageUpdate,
		resource:  "role_weightage",
		oldValues: previous.Weightage(),
		newValues: next,
		source:    "role-weightage-service",
	})
	s.logger.Info("role weightage updated",
		zap.Float64("supervisor", next.Supervisor),
		zap.Float64("moderator", next.Moderator),
	)

	return &dto.RoleWeightageResponse{
		Supervisor: next.Supervisor,
		Moderator:  next.Moderator,
		Configured: true,
		UpdatedBy:  updatedBy,
		UpdatedAt:  &now,
	}, nil
}
