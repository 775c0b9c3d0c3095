package dto

import "time"

// AuditQuery filters the grading audit trail.
type AuditQuery struct {
	Resource   string     `form:"resource" validate:"omitempty,oneof=auth role_weightage assessment_component raw_grade report_job report_export"`
	ResourceID string     `form:"resource_id" validate:"omitempty,max=64"`
	UserID     string     `form:"user_id" validate:"omitempty,max=64"`
	Action     string     `form:"action" validate:"omitempty,max=64"`
	Since      *time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit      int        `form:"limit" validate:"omitempty,min=1,max=200"`
}
