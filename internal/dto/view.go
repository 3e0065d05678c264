package dto

import "github.com/noah-isme/sma-timetable/internal/models"

// RefreshViewRequest selects the window and scope a view loads.
type RefreshViewRequest struct {
	StartDate string    `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string    `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	GroupID   models.ID `json:"groupId,omitempty"`
	TeacherID models.ID `json:"teacherId,omitempty"`
}

// Filter converts the request into a schedule filter.
func (r RefreshViewRequest) Filter() models.ScheduleFilter {
	return models.ScheduleFilter{
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		GroupID:   r.GroupID,
		TeacherID: r.TeacherID,
	}
}

// ViewPageQuery is the search and page selection of a derived view.
type ViewPageQuery struct {
	Query string `form:"q"`
	Page  int    `form:"page" validate:"omitempty,min=1"`
}

// ViewResponse describes a session without its data.
type ViewResponse struct {
	ID        string                `json:"id"`
	Status    models.ViewStatus     `json:"status"`
	Filter    models.ScheduleFilter `json:"filter"`
	Seq       uint64                `json:"seq"`
	Error     string                `json:"error,omitempty"`
	Readiness models.Readiness      `json:"readiness"`
}

// EntriesPage is one page of filtered, highlighted entries.
type EntriesPage struct {
	Items     []models.HighlightedEntry `json:"items"`
	Query     string                    `json:"query"`
	PageReset bool                      `json:"pageReset"`
	Readiness models.Readiness          `json:"readiness"`
}

// GridPage is one page of grid rows.
type GridPage struct {
	Rows      []models.GridRow `json:"rows"`
	Labels    []string         `json:"labels"`
	Hidden    int              `json:"hidden"`
	Query     string           `json:"query"`
	PageReset bool             `json:"pageReset"`
	Readiness models.Readiness `json:"readiness"`
}
