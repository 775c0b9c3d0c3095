package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fyp-grading-api/internal/dto"
	appErrors "github.com/noah-isme/fyp-grading-api/pkg/errors"
	"github.com/noah-isme/fyp-grading-api/pkg/response"
)

type resultService interface {
	StudentResult(ctx context.Context, semesterID, studentID string) (*dto.StudentResult, bool, error)
	SemesterResults(ctx context.Context, semesterID string) (*dto.SemesterResults, bool, error)
}

type statisticsService interface {
	Summary(ctx context.Context, semesterID string, query dto.StatisticsQuery) (*dto.StatisticsResponse, bool, error)
}

// ResultHandler serves computed project outcomes and dashboard statistics.
type ResultHandler struct {
	results    resultService
	statistics statisticsService
}

// NewResultHandler builds the handler.
func NewResultHandler(results resultService, statistics statisticsService) *ResultHandler {
	return &ResultHandler{results: results, statistics: statistics}
}

// SemesterResults godoc
// @Summary Results of every student in a semester
// @Tags Results
// @Produce json
// @Param id path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /semesters/{id}/results [get]
func (h *ResultHandler) SemesterResults(c *gin.Context) {
	start := time.Now()
	results, hit, err := h.results.SemesterResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, results, hit, start)
}

// StudentResult godoc
// @Summary Result of one student
// @Tags Results
// @Produce json
// @Param id path string true "Semester ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/{id}/students/{studentId}/result [get]
func (h *ResultHandler) StudentResult(c *gin.Context) {
	start := time.Now()
	result, hit, err := h.results.StudentResult(c.Request.Context(), c.Param("id"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, result, hit, start)
}

// Statistics godoc
// @Summary Score statistics and histogram for a semester
// @Tags Results
// @Produce json
// @Param id path string true "Semester ID"
// @Param score_type query string false "total, weighted, supervisor or moderator"
// @Param component_id query string false "Component ID, required unless score_type is total"
// @Param bins query int false "Histogram bins"
// @Success 200 {object} response.Envelope
// @Router /semesters/{id}/statistics [get]
func (h *ResultHandler) Statistics(c *gin.Context) {
	start := time.Now()
	var query dto.StatisticsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid statistics query"))
		return
	}
	stats, hit, err := h.statistics.Summary(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, stats, hit, start)
}
