package dto

import "github.com/noah-isme/sma-timetable/internal/models"

// ExportRequest captures POST /exports payload.
type ExportRequest struct {
	Kind      models.ExportKind   `json:"kind" validate:"required,oneof=schedule workload conflicts"`
	Format    models.ExportFormat `json:"format" validate:"required,oneof=pdf xlsx docx csv"`
	StartDate string              `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string              `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	GroupID   models.ID           `json:"groupId,omitempty"`
	TeacherID models.ID           `json:"teacherId,omitempty"`
	Mode      string              `json:"mode,omitempty" validate:"omitempty,oneof=running flat"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID     string              `json:"id"`
	Status models.ExportStatus `json:"status"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Kind      models.ExportKind   `json:"kind"`
	Format    models.ExportFormat `json:"format"`
	Status    models.ExportStatus `json:"status"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
