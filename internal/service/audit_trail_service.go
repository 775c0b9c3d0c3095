package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-grading-api/internal/dto"
	"github.com/noah-isme/fyp-grading-api/internal/models"
	appErrors "github.com/noah-isme/fyp-grading-api/pkg/errors"
	"github.com/noah-isme/fyp-grading-api/pkg/validation"
)

const defaultAuditPageSize = 50

type auditReader interface {
	List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, error)
}

// AuditTrailService answers "who changed what" questions about grading data.
type AuditTrailService struct {
	repo      auditReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuditTrailService constructs the service.
func NewAuditTrailService(repo auditReader, validate *validator.Validate, logger *zap.Logger) *AuditTrailService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditTrailService{repo: repo, validator: validate, logger: logger}
}

// List returns matching entries, newest first.
func (s *AuditTrailService) List(ctx context.Context, query dto.AuditQuery) ([]models.AuditLog, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Invalid(err, "invalid audit query")
	}
	limit := query.Limit
	if limit == 0 {
		limit = defaultAuditPageSize
	}
	entries, err := s.repo.List(ctx, models.AuditLogFilter{
		Resource:   query.Resource,
		ResourceID: query.ResourceID,
		UserID:     query.UserID,
		Action:     query.Action,
		Since:      query.Since,
		Limit:      limit,
	})
	if err != nil {
		s.logger.Error("failed to list audit logs", zap.Error(err))
		return nil, appErrors.Internal(err, "failed to list audit logs")
	}
	if entries == nil {
		entries = []models.AuditLog{}
	}
	return entries, nil
}
