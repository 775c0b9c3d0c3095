package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-grading-api/internal/handler"
	"github.com/noah-isme/fyp-grading-api/internal/middleware"
	"github.com/noah-isme/fyp-grading-api/internal/models"
	"github.com/noah-isme/fyp-grading-api/pkg/config"
	"github.com/noah-isme/fyp-grading-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/fyp-grading-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/fyp-grading-api/pkg/middleware/requestid"
)

type routeHandlers struct {
	auth       *handler.AuthHandler
	weightage  *handler.RoleWeightageHandler
	components *handler.AssessmentComponentHandler
	grades     *handler.GradeHandler
	results    *handler.ResultHandler
	reports    *handler.ReportHandler
	audit      *handler.AuditHandler
	metrics    *handler.MetricsHandler
}

func newRouter(
	cfg *config.Config,
	logr *zap.Logger,
	tokens middleware.TokenValidator,
	observer middleware.RequestObserver,
	audit middleware.AuditWriter,
	h routeHandlers,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr,
		logger.WithQuietPaths("/health", "/ready", "/metrics"),
		logger.WithIdentity(middleware.UserID),
	))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(observer))

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	admin := string(models.RoleAdmin)
	faculty := string(models.RoleFaculty)
	student := string(models.RoleStudent)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())
	api.POST("/auth/login", h.auth.Login)
	if h.reports != nil {
		api.GET("/export/:token", middleware.OptionalJWT(tokens), middleware.Audit(audit, models.AuditActionReportDownload, "report_export"), h.reports.DownloadReport)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))

	secured.GET("/auth/me", h.auth.Me)

	secured.GET("/role-weightages", middleware.RBAC(admin, faculty, student), h.weightage.Get)
	secured.PUT("/role-weightages", middleware.RBAC(admin), h.weightage.Update)

	secured.GET("/semesters/:id/components", middleware.RBAC(admin, faculty, student), h.components.List)
	secured.POST("/semesters/:id/components", middleware.RBAC(admin), h.components.Create)
	secured.GET("/components/:id", middleware.RBAC(admin, faculty, student), h.components.Get)
	secured.PUT("/components/:id", middleware.RBAC(admin), h.components.Update)
	secured.DELETE("/components/:id", middleware.RBAC(admin), h.components.Delete)

	secured.GET("/grades", middleware.RBAC(admin, faculty), h.grades.List)
	secured.PUT("/grades", middleware.RBAC(admin, faculty), h.grades.Upsert)
	secured.POST("/grades/bulk", middleware.RBAC(admin, faculty), h.grades.BulkUpsert)

	secured.GET("/semesters/:id/results", middleware.RBAC(admin, faculty), h.results.SemesterResults)
	secured.GET("/semesters/:id/students/:studentId/result", middleware.RBAC(admin, faculty, middleware.RoleSelf), h.results.StudentResult)
	secured.GET("/semesters/:id/statistics", middleware.RBAC(admin, faculty), h.results.Statistics)

	if h.reports != nil {
		secured.POST("/reports", middleware.RBAC(admin, faculty), h.reports.GenerateReport)
		secured.GET("/reports", middleware.RBAC(admin, faculty), h.reports.ListMine)
		secured.GET("/reports/:id", middleware.RBAC(admin, faculty), h.reports.ReportStatus)
	}

	secured.GET("/audit-logs", middleware.RBAC(admin), h.audit.List)
	secured.GET("/metrics/summary", middleware.RBAC(admin), h.metrics.Summary)
	return r
}
