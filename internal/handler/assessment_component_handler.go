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

type assessmentComponentService interface {
	List(ctx context.Context, semesterID string) ([]models.AssessmentComponent, error)
	Get(ctx context.Context, id string) (*models.AssessmentComponent, error)
	Create(ctx context.Context, semesterID string, req dto.AssessmentComponentRequest, actor *models.JWTClaims) (*models.AssessmentComponent, error)
	Update(ctx context.Context, id string, req dto.AssessmentComponentRequest, actor *models.JWTClaims) (*models.AssessmentComponent, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

// AssessmentComponentHandler manages weighted grading components.
type AssessmentComponentHandler struct {
	service assessmentComponentService
}

// NewAssessmentComponentHandler builds the handler.
func NewAssessmentComponentHandler(service assessmentComponentService) *AssessmentComponentHandler {
	return &AssessmentComponentHandler{service: service}
}

// List godoc
// @Summary List assessment components of a semester
// @Tags Components
// @Produce json
// @Param id path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /semesters/{id}/components [get]
func (h *AssessmentComponentHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Create godoc
// @Summary Create assessment component
// @Tags Components
// @Accept json
// @Produce json
// @Param id path string true "Semester ID"
// @Param payload body dto.AssessmentComponentRequest true "Component payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /semesters/{id}/components [post]
func (h *AssessmentComponentHandler) Create(c *gin.Context) {
	var req dto.AssessmentComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid component payload"))
		return
	}
	created, err := h.service.Create(c.Request.Context(), c.Param("id"), req, middleware.Claims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Get godoc
// @Summary Get assessment component
// @Tags Components
// @Produce json
// @Param id path string true "Component ID"
// @Success 200 {object} response.Envelope
// @Router /components/{id} [get]
func (h *AssessmentComponentHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Update godoc
// @Summary Update assessment component
// @Tags Components
// @Accept json
// @Produce json
// @Param id path string true "Component ID"
// @Param payload body dto.AssessmentComponentRequest true "Component payload"
// @Success 200 {object} response.Envelope
// @Router /components/{id} [put]
func (h *AssessmentComponentHandler) Update(c *gin.Context) {
	var req dto.AssessmentComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid component payload"))
		return
	}
	updated, err := h.service.Update(c.Request.Context(), c.Param("id"), req, middleware.Claims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, updated)
}

// Delete godoc
// @Summary Delete assessment component and its raw grades
// @Tags Components
// @Param id path string true "Component ID"
// @Success 204
// @Router /components/{id} [delete]
func (h *AssessmentComponentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), middleware.Claims(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
