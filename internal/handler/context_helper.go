package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fyp-grading-api/internal/middleware"
	"github.com/noah-isme/fyp-grading-api/pkg/response"
)

// respondCached writes data with cache and timing metadata attached.
func respondCached(c *gin.Context, data interface{}, cacheHit bool, start time.Time) {
	middleware.SetCacheHit(c, cacheHit)
	middleware.SetMeta(c, middleware.MetaProcessingTime, time.Since(start).Milliseconds())
	response.JSON(c, http.StatusOK, data, middleware.ExtractMeta(c))
}
