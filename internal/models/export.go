package models

import "time"

// ExportKind enumerates downloadable reports.
type ExportKind string

const (
	// ExportSchedule is rendered by the upstream reporting service.
	ExportSchedule ExportKind = "schedule"
	// ExportWorkload and ExportConflicts are rendered by the gateway.
	ExportWorkload  ExportKind = "workload"
	ExportConflicts ExportKind = "conflicts"
)

// ExportFormat enumerates file formats.
type ExportFormat string

const (
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatDOCX ExportFormat = "docx"
	ExportFormatCSV  ExportFormat = "csv"
)

// ContentType returns the MIME type served for the format.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatPDF:
		return "application/pdf"
	case ExportFormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ExportFormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ExportFormatCSV:
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportQueued     ExportStatus = "QUEUED"
	ExportProcessing ExportStatus = "PROCESSING"
	ExportFinished   ExportStatus = "FINISHED"
	ExportFailed     ExportStatus = "FAILED"
)

// ExportParams are the report options chosen by the caller.
type ExportParams struct {
	Kind      ExportKind     `json:"kind"`
	Format    ExportFormat   `json:"format"`
	Filter    ScheduleFilter `json:"filter"`
	TeacherID ID             `json:"teacherId,omitempty"`
	TotalMode string         `json:"totalMode,omitempty"`
}

// ExportJob is the persisted state of one export request.
type ExportJob struct {
	ID           string       `json:"id"`
	Params       ExportParams `json:"params"`
	Status       ExportStatus `json:"status"`
	Attempts     int          `json:"attempts"`
	ResultPath   string       `json:"result_path,omitempty"`
	ResultURL    *string      `json:"result_url,omitempty"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
	CreatedBy    string       `json:"created_by"`
	CreatedAt    time.Time    `json:"created_at"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`
}
