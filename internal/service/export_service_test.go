package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-grading-api/internal/dto"
	"github.com/noah-isme/fyp-grading-api/internal/grading"
	"github.com/noah-isme/fyp-grading-api/internal/models"
	appErrors "github.com/noah-isme/fyp-grading-api/pkg/errors"
	"github.com/noah-isme/fyp-grading-api/pkg/export"
	"github.com/noah-isme/fyp-grading-api/pkg/storage"
)

func exportResultsFixture() *dto.SemesterResults {
	results := statisticsFixture()
	results.Weightage = grading.DefaultRoleWeightage()
	results.PassThreshold = 60
	for i := range results.Results {
		results.Results[i].StudentName = "Student " + results.Results[i].StudentID
		results.Results[i].MaxScore = 100
		results.Results[i].Components[0].ComponentName = "Report"
		results.Results[i].Components[0].Weightage = 100
		results.Results[i].Components[0].Discrepancy = grading.Discrepancy(
			results.Results[i].Components[0].SupervisorScore,
			results.Results[i].Components[0].ModeratorScore,
		)
	}
	results.Results[0].Status = grading.StatusFail
	results.Results[1].Status = grading.StatusPass
	results.Counts = dto.StatusCounts{Pass: 1, Fail: 1, Pending: 3}
	return results
}

func newExportServiceForTest(t *testing.T, results *dto.SemesterResults) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	svc := NewExportService(&semesterResultsStub{results: results}, store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	svc.now = func() time.Time { return time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC) }
	return svc
}

func readStored(t *testing.T, svc *ExportService, relPath string) string {
	t.Helper()
	f, err := svc.Open(relPath)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(data)
}

func TestExportServiceGenerateResultsCSV(t *testing.T) {
	svc := newExportServiceForTest(t, exportResultsFixture())
	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeResults,
		Params: models.ReportJobParams{SemesterID: "sem 1/2026", Format: models.ReportFormatCSV},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "results_sem_1-2026_20260504_103000.csv", result.RelativePath)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))
	assert.Equal(t, models.ReportFormatCSV, result.Format)

	body := readStored(t, svc, result.RelativePath)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, strings.Join(resultHeaders, ","), lines[0])
	assert.Contains(t, lines[1], "s1,Student s1")
	assert.Contains(t, lines[1], "50.00,100.00")
	assert.Equal(t, "s5,Student s5,,0.00,100.00,,", lines[5])

	reportID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", reportID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportServiceGenerateComponentsPDF(t *testing.T) {
	svc := newExportServiceForTest(t, exportResultsFixture())
	job := &models.ReportJob{
		ID:     "job-2",
		Type:   models.ReportTypeComponents,
		Params: models.ReportJobParams{SemesterID: "sem-1", Format: models.ReportFormatPDF},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(result.RelativePath, ".pdf"))
	assert.True(t, strings.HasPrefix(readStored(t, svc, result.RelativePath), "%PDF"))

	require.NoError(t, svc.Delete(result.RelativePath))
	_, err = svc.Open(result.RelativePath)
	assert.Error(t, err)
}

func TestExportServiceResultsDatasetNotes(t *testing.T) {
	svc := newExportServiceForTest(t, exportResultsFixture())
	dataset, title, err := svc.BuildDataset(context.Background(), models.ReportTypeResults, "sem-1")
	require.NoError(t, err)

	assert.Equal(t, "Project Results sem-1", title)
	require.Len(t, dataset.Rows, 5)
	assert.Equal(t, "", dataset.Rows[4]["Percentage"])
	require.Len(t, dataset.Notes, 3)
	assert.Equal(t, "Supervisor 70% / Moderator 30%, pass threshold 60%", dataset.Notes[0])
	assert.Equal(t, "Pass 1, Fail 1, Pending 3", dataset.Notes[1])
	assert.Contains(t, dataset.Notes[2], "Graded 4 of 5")
}

func TestExportServiceComponentsDatasetDiscrepancy(t *testing.T) {
	svc := newExportServiceForTest(t, exportResultsFixture())
	dataset, _, err := svc.BuildDataset(context.Background(), models.ReportTypeComponents, "sem-1")
	require.NoError(t, err)

	require.Len(t, dataset.Rows, 5)
	assert.Equal(t, "Report", dataset.Rows[0]["Component"])
	assert.Equal(t, "0.00", dataset.Rows[0]["Discrepancy"])
	assert.Equal(t, "30.00", dataset.Rows[2]["Discrepancy"])
	assert.Equal(t, "N/A", dataset.Rows[4]["Discrepancy"])
	assert.Equal(t, "", dataset.Rows[4]["Moderator"])
}

func TestExportServiceEmptySemester(t *testing.T) {
	svc := newExportServiceForTest(t, &dto.SemesterResults{SemesterID: "sem-2"})
	dataset, _, err := svc.BuildDataset(context.Background(), models.ReportTypeResults, "sem-2")
	require.NoError(t, err)
	assert.Empty(t, dataset.Rows)
	assert.Equal(t, noStatisticsMessage, dataset.Notes[len(dataset.Notes)-1])
}

func TestExportServiceRejectsUnknownTypeAndFormat(t *testing.T) {
	svc := newExportServiceForTest(t, exportResultsFixture())
	source := &semesterResultsStub{results: exportResultsFixture()}
	svc.results = source

	_, _, err := svc.BuildDataset(context.Background(), models.ReportType("transcript"), "sem-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Zero(t, source.calls)

	_, err = svc.Generate(context.Background(), &models.ReportJob{
		ID:     "job-3",
		Type:   models.ReportTypeResults,
		Params: models.ReportJobParams{SemesterID: "sem-1", Format: models.ReportFormat("xlsx")},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Generate(context.Background(), nil)
	assert.Error(t, err)
}

func TestExportServiceStatisticsDataset(t *testing.T) {
	svc := newExportServiceForTest(t, exportResultsFixture())
	dataset, title, err := svc.BuildDataset(context.Background(), models.ReportTypeStatistics, "sem-1")
	require.NoError(t, err)

	assert.Equal(t, "Score Statistics sem-1", title)
	assert.Equal(t, statisticsHeaders, dataset.Headers)
	require.Len(t, dataset.Rows, 2)

	total := dataset.Rows[0]
	assert.Equal(t, "Total", total["Series"])
	assert.Equal(t, "4", total["Graded"])
	assert.Equal(t, "5", total["Students"])
	assert.Equal(t, "45.00", total["Mean"])
	assert.Equal(t, "55.00", total["Median"])
	assert.Equal(t, "70.00", total["Mode"])
	assert.Equal(t, "0.00", total["Min"])
	assert.Equal(t, "50.00", total["Q1"])
	assert.Equal(t, "70.00", total["Q3"])

	weighted := dataset.Rows[1]
	assert.Equal(t, "Report (weighted)", weighted["Series"])
	assert.Equal(t, "71.00", weighted["Max"])

	require.Len(t, dataset.Notes, 1+grading.DefaultHistogramBins)
	assert.Equal(t, "Supervisor 70% / Moderator 30%, pass threshold 60%", dataset.Notes[0])
	assert.Equal(t, "Total 0.00 to 7.00: 1", dataset.Notes[1])
	assert.Equal(t, "Total 63.00 to 70.00: 1", dataset.Notes[len(dataset.Notes)-1])
}

func TestExportServiceStatisticsDatasetWithoutGrades(t *testing.T) {
	svc := newExportServiceForTest(t, &dto.SemesterResults{
		SemesterID: "sem-2",
		Components: []dto.ComponentSummary{{ID: "report", Name: "Report", WeightagePercent: 100}},
		Results:    []dto.StudentResult{{StudentID: "s1", Components: []dto.ComponentResult{line("report", f64(40), nil, nil)}}},
	})
	dataset, _, err := svc.BuildDataset(context.Background(), models.ReportTypeStatistics, "sem-2")
	require.NoError(t, err)

	require.Len(t, dataset.Rows, 2)
	assert.Equal(t, "0", dataset.Rows[0]["Graded"])
	assert.Equal(t, "1", dataset.Rows[0]["Students"])
	assert.Empty(t, dataset.Rows[0]["Mean"])
	assert.Equal(t, noStatisticsMessage, dataset.Notes[len(dataset.Notes)-1])
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "na", sanitizeFilename(""))
	assert.Equal(t, "a-b_c", sanitizeFilename("a/b c"))
	assert.Len(t, sanitizeFilename(strings.Repeat("x", 150)), 100)
}
