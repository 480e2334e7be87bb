package dto

import "github.com/noah-isme/epa-eval-api/internal/models"

// ReportRequest is the payload for queueing a progress report export.
type ReportRequest struct {
	StudentID int64               `json:"studentId"`
	Format    models.ReportFormat `json:"format"`
}

// ReportJobResponse acknowledges a queued report job.
type ReportJobResponse struct {
	ID     string              `json:"id"`
	Status models.ReportStatus `json:"status"`
}

// ReportStatusResponse describes where a job is in its lifecycle.
// ResultURL is only present once the job completed, Error only when it
// failed permanently.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
