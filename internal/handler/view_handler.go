package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/middleware"
	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/response"
)

type viewService interface {
	Create(ctx context.Context, session *models.Session) (*dto.ViewResponse, error)
	Get(ctx context.Context, session *models.Session, id string) (*dto.ViewResponse, error)
	Refresh(ctx context.Context, session *models.Session, id string, filter models.ScheduleFilter) (*dto.ViewResponse, error)
	Retry(ctx context.Context, session *models.Session, id string) (*dto.ViewResponse, error)
	Delete(ctx context.Context, session *models.Session, id string) error
	Entries(ctx context.Context, session *models.Session, id string, q dto.ViewPageQuery) (*dto.EntriesPage, *models.Pagination, error)
	Grid(ctx context.Context, session *models.Session, id string, q dto.ViewPageQuery) (*dto.GridPage, *models.Pagination, error)
	Conflicts(ctx context.Context, session *models.Session, id string) (models.ConflictReport, error)
}

// ViewHandler exposes schedule view sessions.
type ViewHandler struct {
	service   viewService
	validator *validator.Validate
}

// NewViewHandler constructs the handler.
func NewViewHandler(service viewService, validate *validator.Validate) *ViewHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &ViewHandler{service: service, validator: validate}
}

// Create godoc
// @Summary Open a schedule view session
// @Tags Views
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /views [post]
func (h *ViewHandler) Create(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	view, err := h.service.Create(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Get godoc
// @Summary Get a view session state
// @Tags Views
// @Produce json
// @Param id path string true "View ID"
// @Success 200 {object} response.Envelope
// @Router /views/{id} [get]
func (h *ViewHandler) Get(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	view, err := h.service.Get(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetReadiness(c, view.Readiness)
	respondWithMeta(c, http.StatusOK, view, nil)
}

// Refresh godoc
// @Summary Load a new snapshot into the view
// @Description Only the latest refresh of a view applies; an overtaken request answers 409.
// @Tags Views
// @Accept json
// @Produce json
// @Param id path string true "View ID"
// @Param payload body dto.RefreshViewRequest false "Window and scope"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /views/{id}/refresh [post]
func (h *ViewHandler) Refresh(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.RefreshViewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid refresh payload"))
			return
		}
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid refresh payload"))
		return
	}
	view, err := h.service.Refresh(c.Request.Context(), session, c.Param("id"), req.Filter())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetReadiness(c, view.Readiness)
	respondWithMeta(c, http.StatusOK, view, nil)
}

// Retry godoc
// @Summary Retry a failed view load
// @Tags Views
// @Produce json
// @Param id path string true "View ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /views/{id}/retry [post]
func (h *ViewHandler) Retry(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	view, err := h.service.Retry(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetReadiness(c, view.Readiness)
	respondWithMeta(c, http.StatusOK, view, nil)
}

// Delete godoc
// @Summary Close a view session
// @Tags Views
// @Param id path string true "View ID"
// @Success 204
// @Router /views/{id} [delete]
func (h *ViewHandler) Delete(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), session, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Entries godoc
// @Summary List view entries with search highlights
// @Tags Views
// @Produce json
// @Param id path string true "View ID"
// @Param q query string false "Free-text search"
// @Param page query int false "Page number"
// @Success 200 {object} response.Envelope
// @Router /views/{id}/entries [get]
func (h *ViewHandler) Entries(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	query, ok := h.pageQuery(c)
	if !ok {
		return
	}
	page, pagination, err := h.service.Entries(c.Request.Context(), session, c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetReadiness(c, page.Readiness)
	respondWithMeta(c, http.StatusOK, page, pagination)
}

// Grid godoc
// @Summary Weekly grid of the view entries
// @Tags Views
// @Produce json
// @Param id path string true "View ID"
// @Param q query string false "Free-text search"
// @Param page query int false "Page number"
// @Success 200 {object} response.Envelope
// @Router /views/{id}/grid [get]
func (h *ViewHandler) Grid(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	query, ok := h.pageQuery(c)
	if !ok {
		return
	}
	grid, pagination, err := h.service.Grid(c.Request.Context(), session, c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetReadiness(c, grid.Readiness)
	respondWithMeta(c, http.StatusOK, grid, pagination)
}

// Conflicts godoc
// @Summary Conflicts inside the view snapshot
// @Tags Views
// @Produce json
// @Param id path string true "View ID"
// @Success 200 {object} response.Envelope
// @Router /views/{id}/conflicts [get]
func (h *ViewHandler) Conflicts(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	report, err := h.service.Conflicts(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWithMeta(c, http.StatusOK, report, nil)
}

func (h *ViewHandler) pageQuery(c *gin.Context) (dto.ViewPageQuery, bool) {
	var query dto.ViewPageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return query, false
	}
	if err := h.validator.Struct(query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return query, false
	}
	return query, true
}
