package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/fyp-grading-api/internal/dto"
	"github.com/noah-isme/fyp-grading-api/internal/grading"
	"github.com/noah-isme/fyp-grading-api/internal/models"
	appErrors "github.com/noah-isme/fyp-grading-api/pkg/errors"
	"github.com/noah-isme/fyp-grading-api/pkg/export"
	"github.com/noah-isme/fyp-grading-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix      string
	ResultTTL      time.Duration
	ZeroAsUngraded bool
	HistogramBins  int
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds grade report datasets and persists rendered files.
type ExportService struct {
	results semesterResultSource
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(results semesterResultSource, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		results: results,
		storage: storage,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Generate builds the dataset for job, renders it and stores the file.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.BuildDataset(ctx, job.Type, job.Params.SemesterID)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report format %q", job.Params.Format))
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (reportID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// BuildDataset computes semester results and lays them out for reportType.
// An unknown report type is a validation error and never loads results.
func (s *ExportService) BuildDataset(ctx context.Context, reportType models.ReportType, semesterID string) (export.Dataset, string, error) {
	if !reportType.Valid() {
		return export.Dataset{}, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report type %q", reportType))
	}
	results, _, err := s.results.SemesterResults(ctx, semesterID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	switch reportType {
	case models.ReportTypeComponents:
		return componentsDataset(results), fmt.Sprintf("Component Breakdown %s", semesterID), nil
	case models.ReportTypeStatistics:
		return s.statisticsDataset(results), fmt.Sprintf("Score Statistics %s", semesterID), nil
	default:
		return s.resultsDataset(results), fmt.Sprintf("Project Results %s", semesterID), nil
	}
}

func (s *ExportService) ungradedPolicy() grading.UngradedPolicy {
	if s.cfg.ZeroAsUngraded {
		return grading.ExcludeNonPositive
	}
	return grading.ExcludeAbsent
}

var resultHeaders = []string{"Student ID", "Student Name", "Project", "Total Score", "Max Score", "Percentage", "Status"}

func (s *ExportService) resultsDataset(results *dto.SemesterResults) export.Dataset {
	rows := make([]map[string]string, 0, len(results.Results))
	totals := make([]*float64, 0, len(results.Results))
	for _, r := range results.Results {
		rows = append(rows, map[string]string{
			"Student ID":   r.StudentID,
			"Student Name": r.StudentName,
			"Project":      r.ProjectTitle,
			"Total Score":  formatScore(&r.TotalScore),
			"Max Score":    formatScore(&r.MaxScore),
			"Percentage":   formatScore(r.Percentage),
			"Status":       string(r.Status),
		})
		totals = append(totals, gradedTotal(r))
	}

	notes := []string{
		policyNote(results),
		fmt.Sprintf("Pass %d, Fail %d, Pending %d", results.Counts.Pass, results.Counts.Fail, results.Counts.Pending),
	}
	if stats := grading.Summarize(totals, s.ungradedPolicy()); stats != nil {
		notes = append(notes, fmt.Sprintf("Graded %d of %d. Mean %.2f, median %.2f, std dev %.2f, range %.2f to %.2f",
			stats.Count, stats.TotalCount, stats.Mean, stats.Median, stats.StdDev, stats.Min, stats.Max))
	} else {
		notes = append(notes, noStatisticsMessage)
	}
	return export.Dataset{Headers: resultHeaders, Rows: rows, Notes: notes}
}

var componentHeaders = []string{"Student ID", "Student Name", "Component", "Weightage", "Supervisor", "Moderator", "Weighted", "Status", "Discrepancy"}

func componentsDataset(results *dto.SemesterResults) export.Dataset {
	rows := make([]map[string]string, 0, len(results.Results)*len(results.Components))
	for _, r := range results.Results {
		for _, line := range r.Components {
			rows = append(rows, map[string]string{
				"Student ID":   r.StudentID,
				"Student Name": r.StudentName,
				"Component":    line.ComponentName,
				"Weightage":    formatScore(&line.Weightage),
				"Supervisor":   formatScore(line.SupervisorScore),
				"Moderator":    formatScore(line.ModeratorScore),
				"Weighted":     formatScore(line.Weighted),
				"Status":       string(line.Status),
				"Discrepancy":  grading.FormatDiscrepancy(line.Discrepancy),
			})
		}
	}
	return export.Dataset{Headers: componentHeaders, Rows: rows, Notes: []string{policyNote(results)}}
}

var statisticsHeaders = []string{"Series", "Graded", "Students", "Mean", "Median", "Mode", "Min", "Max", "Q1", "Q3", "Std Dev"}

// statisticsDataset has one row for student totals and one per component's
// weighted scores, followed by a histogram of graded totals in the notes.
func (s *ExportService) statisticsDataset(results *dto.SemesterResults) export.Dataset {
	policy := s.ungradedPolicy()
	rows := make([]map[string]string, 0, len(results.Components)+1)

	totals, _ := scoreSeries(results, dto.StatisticsQuery{ScoreType: dto.ScoreTypeTotal})
	rows = append(rows, statisticsRow("Total", grading.Summarize(totals, policy), len(totals)))
	for _, c := range results.Components {
		series, err := scoreSeries(results, dto.StatisticsQuery{ScoreType: dto.ScoreTypeWeighted, ComponentID: c.ID})
		if err != nil {
			continue
		}
		rows = append(rows, statisticsRow(c.Name+" (weighted)", grading.Summarize(series, policy), len(series)))
	}

	notes := []string{policyNote(results)}
	bins := s.cfg.HistogramBins
	if bins < 1 {
		bins = grading.DefaultHistogramBins
	}
	histogram := grading.Histogram(grading.FilterGraded(totals, policy), bins)
	if len(histogram) == 0 {
		notes = append(notes, noStatisticsMessage)
	}
	for _, b := range histogram {
		notes = append(notes, fmt.Sprintf("Total %.2f to %.2f: %d", b.Start, b.End, b.Count))
	}
	return export.Dataset{Headers: statisticsHeaders, Rows: rows, Notes: notes}
}

func statisticsRow(series string, stats *grading.Statistics, students int) map[string]string {
	row := map[string]string{
		"Series":   series,
		"Graded":   "0",
		"Students": strconv.Itoa(students),
	}
	if stats == nil {
		return row
	}
	row["Graded"] = strconv.Itoa(stats.Count)
	for header, v := range map[string]float64{
		"Mean":    stats.Mean,
		"Median":  stats.Median,
		"Mode":    stats.Mode,
		"Min":     stats.Min,
		"Max":     stats.Max,
		"Q1":      stats.Q1,
		"Q3":      stats.Q3,
		"Std Dev": stats.StdDev,
	} {
		v := v
		row[header] = formatScore(&v)
	}
	return row
}

func policyNote(results *dto.SemesterResults) string {
	return fmt.Sprintf("Supervisor %.0f%% / Moderator %.0f%%, pass threshold %.0f%%",
		results.Weightage.For(grading.RoleSupervisor), results.Weightage.For(grading.RoleModerator), results.PassThreshold)
}

func formatScore(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	semesterPart := sanitizeFilename(job.Params.SemesterID)
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), semesterPart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
