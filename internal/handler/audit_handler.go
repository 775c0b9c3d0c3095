package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fyp-grading-api/internal/dto"
	"github.com/noah-isme/fyp-grading-api/internal/models"
	appErrors "github.com/noah-isme/fyp-grading-api/pkg/errors"
	"github.com/noah-isme/fyp-grading-api/pkg/response"
)

type auditTrailService interface {
	List(ctx context.Context, query dto.AuditQuery) ([]models.AuditLog, error)
}

// AuditHandler exposes the grading audit trail to administrators.
type AuditHandler struct {
	audit auditTrailService
}

// NewAuditHandler builds the handler.
func NewAuditHandler(audit auditTrailService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List godoc
// @Summary Audit trail of grading changes
// @Tags Audit
// @Produce json
// @Param resource query string false "Resource name"
// @Param resource_id query string false "Resource ID"
// @Param user_id query string false "Acting user"
// @Param action query string false "Action"
// @Param since query string false "RFC3339 lower bound"
// @Param limit query int false "Max entries (1-200)"
// @Success 200 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	var query dto.AuditQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid audit query"))
		return
	}
	entries, err := h.audit.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries)
}
