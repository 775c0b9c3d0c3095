package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportJobParamsScan(t *testing.T) {
	var p ReportJobParams
	require.NoError(t, p.Scan([]byte(`{"semesterId":"sem-1","format":"pdf"}`)))
	assert.Equal(t, ReportJobParams{SemesterID: "sem-1", Format: ReportFormatPDF}, p)

	require.NoError(t, p.Scan(nil))
	assert.Equal(t, ReportJobParams{}, p)

	require.NoError(t, p.Scan(`{"semesterId":"sem-2","format":"csv"}`))
	assert.Equal(t, "sem-2", p.SemesterID)

	assert.Error(t, p.Scan(42))
	assert.Error(t, p.Scan([]byte("{")))
}

func TestReportStatusTerminal(t *testing.T) {
	assert.True(t, ReportStatusFinished.Terminal())
	assert.True(t, ReportStatusFailed.Terminal())
	assert.False(t, ReportStatusQueued.Terminal())
	assert.False(t, ReportStatusProcessing.Terminal())
}

func TestReportJobOwnedBy(t *testing.T) {
	job := &ReportJob{CreatedBy: "fac-1"}
	assert.True(t, job.OwnedBy("fac-1"))
	assert.False(t, job.OwnedBy("fac-2"))
	assert.False(t, job.OwnedBy(""))

	var missing *ReportJob
	assert.False(t, missing.OwnedBy("fac-1"))
}

func TestReportFormatMIMEType(t *testing.T) {
	assert.Equal(t, "application/pdf", ReportFormatPDF.MIMEType())
	assert.Equal(t, "text/csv; charset=utf-8", ReportFormatCSV.MIMEType())
	assert.Equal(t, "application/octet-stream", ReportFormat("xlsx").MIMEType())
}
