package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReportType selects which grade export a job produces.
type ReportType string

const (
	// ReportTypeResults has one row per student with total and status.
	ReportTypeResults ReportType = "results"
	// ReportTypeComponents has one row per student and component, with the
	// supervisor/moderator discrepancy.
	ReportTypeComponents ReportType = "components"
	// ReportTypeStatistics summarises totals and weighted component scores
	// with descriptive statistics and a histogram of totals.
	ReportTypeStatistics ReportType = "statistics"
)

// Valid reports whether t is a known report type.
func (t ReportType) Valid() bool {
	switch t {
	case ReportTypeResults, ReportTypeComponents, ReportTypeStatistics:
		return true
	}
	return false
}

type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// MIMEType is the Content-Type used when serving a rendered export.
func (f ReportFormat) MIMEType() string {
	switch f {
	case ReportFormatCSV:
		return "text/csv; charset=utf-8"
	case ReportFormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// ReportStatus moves QUEUED -> PROCESSING -> FINISHED | FAILED. A retried job
// drops back to QUEUED.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// Terminal reports whether the job will not be picked up again.
func (s ReportStatus) Terminal() bool {
	return s == ReportStatusFinished || s == ReportStatusFailed
}

// ReportJob is a row of report_jobs.
type ReportJob struct {
	ID           string          `db:"id" json:"id"`
	Type         ReportType      `db:"type" json:"type"`
	Params       ReportJobParams `db:"params" json:"params"`
	Status       ReportStatus    `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// OwnedBy reports whether userID requested the job.
func (j *ReportJob) OwnedBy(userID string) bool {
	return j != nil && userID != "" && j.CreatedBy == userID
}

// ReportJobParams is stored in the JSONB params column.
type ReportJobParams struct {
	SemesterID string       `json:"semesterId"`
	Format     ReportFormat `json:"format"`
}

func (p ReportJobParams) Value() (driver.Value, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode report params: %w", err)
	}
	return raw, nil
}

func (p *ReportJobParams) Scan(src interface{}) error {
	*p = ReportJobParams{}
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("report params: cannot scan %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return fmt.Errorf("decode report params: %w", err)
	}
	return nil
}
