package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-grading-api/internal/dto"
	"github.com/noah-isme/fyp-grading-api/internal/models"
	"github.com/noah-isme/fyp-grading-api/internal/repository"
	appErrors "github.com/noah-isme/fyp-grading-api/pkg/errors"
	"github.com/noah-isme/fyp-grading-api/pkg/jobs"
	"github.com/noah-isme/fyp-grading-api/pkg/validation"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	ListByCreator(ctx context.Context, userID string, limit int) ([]models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListUnsettled(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
}

type exportFiles interface {
	ParseToken(token string, allowExpired bool) (reportID, relPath string, expiresAt time.Time, err error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
	Cleanup(ttl time.Duration) ([]string, error)
}

type reportMetrics interface {
	RecordReportJob(reportType models.ReportType, status models.ReportStatus)
}

// ReportService orchestrates report job lifecycle management.
type ReportService struct {
	repo      reportJobStore
	semesters semesterReader
	queue     jobDispatcher
	exporter  exportFiles
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportServiceConfig
}

// ReportServiceConfig governs queue recovery and cleanup.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	JobID     string
	File      *os.File
	Filename  string
	Format    models.ReportFormat
	ExpiresAt time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo reportJobStore, semesters semesterReader, queue jobDispatcher, exporter exportFiles, audit auditLogger, validate *validator.Validate, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &ReportService{
		repo:      repo,
		semesters: semesters,
		queue:     queue,
		exporter:  exporter,
		audit:     audit,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// CreateJob validates request, persists job, and enqueues processing.
func (s *ReportService) CreateJob(ctx context.Context, req dto.ReportRequest, actor *models.JWTClaims) (*dto.ReportJobResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid report request")
	}
	if s.semesters != nil {
		if _, err := s.semesters.FindByID(ctx, req.SemesterID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
			}
			return nil, appErrors.Internal(err, "failed to load semester")
		}
	}

	job := &models.ReportJob{
		Type:      req.Type,
		Params:    models.ReportJobParams{SemesterID: req.SemesterID, Format: req.Format},
		Status:    models.ReportStatusQueued,
		Progress:  0,
		CreatedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Internal(err, "failed to create report job")
	}
	if err := s.queue.Enqueue(queueJob(job)); err != nil {
		if markErr := s.repo.Update(ctx, job.ID, repository.JobFailed("failed to enqueue job", time.Now())); markErr != nil {
			s.logger.Warn("failed to settle unqueued job", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Internal(err, "failed to enqueue report job")
	}

	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		action:     models.AuditActionReportGenerate,
		resource:   "report_job",
		resourceID: job.ID,
		newValues:  job.Params,
		source:     "report-service",
	})
	return &dto.ReportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job metadata to clients, enforcing ownership for faculty.
func (s *ReportService) GetStatus(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ReportStatusResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Internal(err, "failed to load report job")
	}
	if actor.Role != models.RoleAdmin && !job.OwnedBy(actor.UserID) {
		return nil, appErrors.ErrForbidden
	}
	resp := toReportStatus(*job)
	return &resp, nil
}

// ListMine returns the caller's most recent report jobs.
func (s *ReportService) ListMine(ctx context.Context, actor *models.JWTClaims, limit int) ([]dto.ReportStatusResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	records, err := s.repo.ListByCreator(ctx, actor.UserID, limit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list report jobs")
	}
	out := make([]dto.ReportStatusResponse, 0, len(records))
	for _, job := range records {
		out = append(out, toReportStatus(job))
	}
	return out, nil
}

func toReportStatus(job models.ReportJob) dto.ReportStatusResponse {
	resp := dto.ReportStatusResponse{
		ID:         job.ID,
		Type:       job.Type,
		SemesterID: job.Params.SemesterID,
		Format:     job.Params.Format,
		Status:     job.Status,
		Progress:   job.Progress,
		ResultURL:  job.ResultURL,
		CreatedAt:  job.CreatedAt,
		FinishedAt: job.FinishedAt,
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp
}

// ResolveDownload validates token and opens the stored export file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	reportID, relPath, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Internal(err, "failed to load report job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report not ready")
	}
	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to open export file")
	}
	return &ReportDownload{
		JobID:     job.ID,
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// RecoverPendingJobs requeues jobs a previous process left QUEUED or PROCESSING.
func (s *ReportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListUnsettled(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued report jobs", "error", err)
		return
	}
	for _, job := range pending {
		if job.Status == models.ReportStatusProcessing {
			// Interrupted mid-render by the previous process.
			if err := s.repo.Update(ctx, job.ID, repository.JobRequeued("")); err != nil {
				s.logger.Sugar().Warnw("failed to reset interrupted job", "job_id", job.ID, "error", err)
				continue
			}
		}
		if err := s.queue.Enqueue(queueJob(&job)); err != nil {
			s.logger.Sugar().Warnw("failed to requeue pending job", "job_id", job.ID, "error", err)
		}
	}
	if len(pending) > 0 {
		s.logger.Info("recovered queued report jobs", zap.Int("count", len(pending)))
	}
}

// StartCleanup purges expired exports every CleanupInterval until ctx ends.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := s.cleanupExpired(ctx)
				if removed > 0 {
					s.logger.Info("purged expired report exports", zap.Int("files", removed))
				}
			}
		}
	}()
}

// cleanupExpired deletes the files of jobs finished more than ResultTTL ago,
// then sweeps storage for anything older that no job points at. It returns
// how many files were removed.
func (s *ReportService) cleanupExpired(ctx context.Context) int {
	const batch = 100
	removed := 0
	expired, err := s.repo.ListFinishedBefore(ctx, time.Now().Add(-s.cfg.ResultTTL), batch)
	if err != nil {
		s.logger.Sugar().Warnw("cleanup list failed", "error", err)
	}
	for _, job := range expired {
		relPath, ok := s.exportPath(job)
		if !ok {
			continue
		}
		switch err := s.exporter.Delete(relPath); {
		case err == nil:
			removed++
		case !errors.Is(err, os.ErrNotExist):
			s.logger.Sugar().Warnw("cleanup delete failed", "job_id", job.ID, "error", err)
		}
	}

	swept, err := s.exporter.Cleanup(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Sugar().Warnw("filesystem cleanup failed", "error", err)
	}
	return removed + len(swept)
}

// exportPath recovers the stored file of a finished job from its download
// token, ignoring the token's expiry.
func (s *ReportService) exportPath(job models.ReportJob) (string, bool) {
	if job.ResultURL == nil {
		return "", false
	}
	token := path.Base(*job.ResultURL)
	if token == "" || token == "." || token == "/" {
		return "", false
	}
	_, relPath, _, err := s.exporter.ParseToken(token, true)
	return relPath, err == nil
}

func queueJob(job *models.ReportJob) jobs.Job {
	return jobs.Job{ID: job.ID, Type: string(job.Type)}
}

// ReportWorker bridges queue jobs to ExportService.
type ReportWorker struct {
	repo       reportJobStore
	exporter   exportGenerator
	metrics    reportMetrics
	logger     *zap.Logger
	maxRetries int
}

// NewReportWorker constructs a worker.
func NewReportWorker(repo reportJobStore, exporter exportGenerator, metrics reportMetrics, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReportWorker{
		repo:       repo,
		exporter:   exporter,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return jobs.Permanent(err)
		}
		return err
	}
	if record.Status.Terminal() {
		w.logger.Sugar().Debugw("skipping settled report job", "job_id", job.ID, "status", record.Status)
		return nil
	}
	if err := w.repo.Update(ctx, job.ID, repository.JobProcessing()); err != nil {
		return err
	}

	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		return w.settleFailure(ctx, job, record.Type, err)
	}
	if err := w.repo.Update(ctx, job.ID, repository.JobFinished(result.URL, time.Now())); err != nil {
		w.logger.Sugar().Warnw("failed to mark job finished", "job_id", job.ID, "error", err)
		return err
	}
	w.record(record.Type, models.ReportStatusFinished)
	return nil
}

// settleFailure requeues the job while attempts remain. Missing data and
// invalid parameters will not improve on retry, so those fail at once.
func (w *ReportWorker) settleFailure(ctx context.Context, job jobs.Job, reportType models.ReportType, cause error) error {
	permanent := errors.Is(cause, appErrors.ErrNotFound) || errors.Is(cause, appErrors.ErrValidation)
	if !permanent && job.Attempt < w.maxRetries {
		if err := w.repo.Update(ctx, job.ID, repository.JobRequeued(cause.Error())); err != nil {
			w.logger.Sugar().Warnw("failed to mark job queued", "job_id", job.ID, "error", err)
		}
		return cause
	}

	if err := w.repo.Update(ctx, job.ID, repository.JobFailed(cause.Error(), time.Now())); err != nil {
		w.logger.Sugar().Warnw("failed to mark job failed", "job_id", job.ID, "error", err)
	}
	w.record(reportType, models.ReportStatusFailed)
	if permanent {
		return jobs.Permanent(cause)
	}
	return cause
}

func (w *ReportWorker) record(reportType models.ReportType, status models.ReportStatus) {
	if w.metrics != nil {
		w.metrics.RecordReportJob(reportType, status)
	}
}
