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

type roleWeightageService interface {
	Current(ctx context.Context) (*dto.RoleWeightageResponse, error)
	Update(ctx context.Context, req dto.UpdateRoleWeightageRequest, actor *models.JWTClaims) (*dto.RoleWeightageResponse, error)
}

// RoleWeightageHandler exposes the supervisor/moderator split.
type RoleWeightageHandler struct {
	service roleWeightageService
}

// NewRoleWeightageHandler builds the handler.
func NewRoleWeightageHandler(service roleWeightageService) *RoleWeightageHandler {
	return &RoleWeightageHandler{service: service}
}

// Get godoc
// @Summary Current role weightage
// @Tags Grading
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /role-weightages [get]
func (h *RoleWeightageHandler) Get(c *gin.Context) {
	current, err := h.service.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, current)
}

// Update godoc
// @Summary Replace role weightage
// @Tags Grading
// @Accept json
// @Produce json
// @Param payload body dto.UpdateRoleWeightageRequest true "Weightage payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /role-weightages [put]
func (h *RoleWeightageHandler) Update(c *gin.Context) {
	var req dto.UpdateRoleWeightageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid weightage payload"))
		return
	}
	updated, err := h.service.Update(c.Request.Context(), req, middleware.Claims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, updated)
}
