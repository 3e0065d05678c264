package dto

import "github.com/noah-isme/sma-timetable/internal/models"

// GenerateScheduleRequest is forwarded to the upstream generator.
type GenerateScheduleRequest struct {
	Semester  int         `json:"semester" validate:"required,oneof=1 2"`
	StartDate string      `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string      `json:"endDate" validate:"required,datetime=2006-01-02"`
	GroupIDs  []models.ID `json:"groupIds" validate:"required,min=1,dive,required"`
}

// GenerateScheduleResponse pairs the generated entries with the conflicts
// found among them.
type GenerateScheduleResponse struct {
	Message   string                 `json:"message"`
	Schedules []models.ScheduleEntry `json:"schedules"`
	Conflicts models.ConflictReport  `json:"conflicts"`
}

// ConflictQuery selects the conflict source and window.
type ConflictQuery struct {
	Source    string `form:"source" validate:"omitempty,oneof=local remote"`
	StartDate string `form:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"endDate" validate:"omitempty,datetime=2006-01-02"`
}

// WorkloadQuery narrows the workload report.
type WorkloadQuery struct {
	TeacherID string `form:"teacherId"`
	Mode      string `form:"mode" validate:"omitempty,oneof=running flat"`
}

// WorkloadReport is the aggregated workload table.
type WorkloadReport struct {
	Totals  []models.WorkloadTotal `json:"totals"`
	Skipped int                    `json:"skipped"`
	Mode    string                 `json:"mode"`
}
