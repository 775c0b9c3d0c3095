package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fyp-grading-api/internal/dto"
	"github.com/noah-isme/fyp-grading-api/internal/middleware"
	"github.com/noah-isme/fyp-grading-api/internal/models"
	appErrors "github.com/noah-isme/fyp-grading-api/pkg/errors"
	"github.com/noah-isme/fyp-grading-api/pkg/response"
)

type gradeEntryService interface {
	Upsert(ctx context.Context, req dto.UpsertGradeRequest, actor *models.JWTClaims) (*models.RawGrade, error)
	BulkUpsert(ctx context.Context, req dto.BulkUpsertGradesRequest, actor *models.JWTClaims) ([]models.RawGrade, error)
	List(ctx context.Context, query dto.GradeQuery, actor *models.JWTClaims) ([]models.RawGrade, error)
}

// GradeHandler handles raw grade entry.
type GradeHandler struct {
	service gradeEntryService
}

// NewGradeHandler builds the handler.
func NewGradeHandler(service gradeEntryService) *GradeHandler {
	return &GradeHandler{service: service}
}

// List godoc
// @Summary List raw grades
// @Tags Grades
// @Produce json
// @Param semester_id query string false "Semester ID"
// @Param student_id query string false "Student ID"
// @Param component_id query string false "Component ID"
// @Param faculty_id query string false "Faculty ID"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	var query dto.GradeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid grade query"))
		return
	}
	items, err := h.service.List(c.Request.Context(), query, middleware.Claims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Upsert godoc
// @Summary Record one raw grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.UpsertGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /grades [put]
func (h *GradeHandler) Upsert(c *gin.Context) {
	var req dto.UpsertGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid grade payload"))
		return
	}
	grade, err := h.service.Upsert(c.Request.Context(), req, middleware.Claims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, grade)
}

// BulkUpsert godoc
// @Summary Record many raw grades atomically
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.BulkUpsertGradesRequest true "Grades payload"
// @Success 200 {object} response.Envelope
// @Router /grades/bulk [post]
func (h *GradeHandler) BulkUpsert(c *gin.Context) {
	var req dto.BulkUpsertGradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid bulk grade payload"))
		return
	}
	grades, err := h.service.BulkUpsert(c.Request.Context(), req, middleware.Claims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, grades)
}
