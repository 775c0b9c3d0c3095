package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin           = "LOGIN"
	AuditActionWeightageUpdate = "ROLE_WEIGHTAGE_UPDATE"
	AuditActionComponentCreate = "ASSESSMENT_COMPONENT_CREATE"
	AuditActionComponentUpdate = "ASSESSMENT_COMPONENT_UPDATE"
	AuditActionComponentDelete = "ASSESSMENT_COMPONENT_DELETE"
	AuditActionGradeUpsert     = "RAW_GRADE_UPSERT"
	AuditActionGradeBulkUpsert = "RAW_GRADE_BULK_UPSERT"
	AuditActionReportGenerate  = "REPORT_GENERATE"
	AuditActionReportDownload  = "REPORT_DOWNLOAD"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditLogFilter narrows audit trail queries. Zero values are ignored.
type AuditLogFilter struct {
	Resource   string
	ResourceID string
	UserID     string
	Action     string
	Since      *time.Time
	Limit      int
}
