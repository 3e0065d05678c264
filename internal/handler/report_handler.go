package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/response"
)

type workloadReporter interface {
	Report(ctx context.Context, session *models.Session, query dto.WorkloadQuery) (*dto.WorkloadReport, error)
	Charts() []models.WorkloadChart
}

type conflictReporter interface {
	Report(ctx context.Context, session *models.Session, query dto.ConflictQuery) (models.ConflictReport, error)
}

// ReportHandler exposes the workload and conflict reports.
type ReportHandler struct {
	workload  workloadReporter
	conflicts conflictReporter
}

// NewReportHandler constructs handler.
func NewReportHandler(workload workloadReporter, conflicts conflictReporter) *ReportHandler {
	return &ReportHandler{workload: workload, conflicts: conflicts}
}

// Workload godoc
// @Summary Teaching workload per teacher
// @Description Teachers only see their own row.
// @Tags Reports
// @Produce json
// @Param teacherId query string false "Teacher ID"
// @Param mode query string false "running or flat"
// @Success 200 {object} response.Envelope
// @Router /reports/workload [get]
func (h *ReportHandler) Workload(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var query dto.WorkloadQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	report, err := h.workload.Report(c.Request.Context(), session, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWithMeta(c, http.StatusOK, report, nil)
}

// WorkloadCharts godoc
// @Summary Chart tabs of the workload report
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/workload/charts [get]
func (h *ReportHandler) WorkloadCharts(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.workload.Charts(), nil)
}

// Conflicts godoc
// @Summary Classroom and teacher conflicts
// @Tags Reports
// @Produce json
// @Param source query string false "local or remote"
// @Param startDate query string false "Start date (YYYY-MM-DD)"
// @Param endDate query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /reports/conflicts [get]
func (h *ReportHandler) Conflicts(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var query dto.ConflictQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	report, err := h.conflicts.Report(c.Request.Context(), session, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWithMeta(c, http.StatusOK, report, nil)
}
