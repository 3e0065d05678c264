package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/service"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

type exportServiceMock struct {
	req         dto.ExportRequest
	createResp  *dto.ExportJobResponse
	createErr   error
	statusResp  *dto.ExportStatusResponse
	statusErr   error
	download    *service.ExportDownload
	downloadErr error
	token       string
}

func (m *exportServiceMock) CreateJob(_ context.Context, _ *models.Session, req dto.ExportRequest) (*dto.ExportJobResponse, error) {
	m.req = req
	return m.createResp, m.createErr
}

func (m *exportServiceMock) GetStatus(context.Context, *models.Session, string) (*dto.ExportStatusResponse, error) {
	return m.statusResp, m.statusErr
}

func (m *exportServiceMock) ResolveDownload(_ context.Context, token string) (*service.ExportDownload, error) {
	m.token = token
	return m.download, m.downloadErr
}

func TestExportHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{createResp: &dto.ExportJobResponse{ID: "job-1", Status: models.ExportQueued}}
	handler := NewExportHandler(mockSvc)

	payload, _ := json.Marshal(dto.ExportRequest{Kind: models.ExportWorkload, Format: models.ExportFormatCSV})
	c, w := newGinContext(http.MethodPost, "/exports", payload)
	withSession(c, models.RoleAdmin)
	handler.Create(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "exports/job-1", w.Header().Get("Location"))
	assert.Equal(t, models.ExportWorkload, mockSvc.req.Kind)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "QUEUED", envelope.Data["status"])
}

func TestExportHandlerCreateValidationError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(&exportServiceMock{createErr: appErrors.Clone(appErrors.ErrValidation, "invalid export request")})

	c, w := newGinContext(http.MethodPost, "/exports", []byte(`{"kind":"grades","format":"txt"}`))
	withSession(c, models.RoleAdmin)
	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	url := "/api/v1/exports/download?token=abc"
	handler := NewExportHandler(&exportServiceMock{statusResp: &dto.ExportStatusResponse{
		ID:        "job-1",
		Status:    models.ExportFinished,
		ResultURL: &url,
	}})

	c, w := newGinContext(http.MethodGet, "/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	withSession(c, models.RoleAdmin)
	handler.Status(c)

	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, url, envelope.Data["resultUrl"])
}

func TestExportHandlerDownloadRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{}
	handler := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/download", nil)
	handler.Download(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mockSvc.token)
}

func TestExportHandlerDownloadForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(&exportServiceMock{downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")})

	c, w := newGinContext(http.MethodGet, "/exports/download?token=bad", nil)
	handler.Download(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte("\ufeffДата;Группа\n"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	mockSvc := &exportServiceMock{download: &service.ExportDownload{
		File:     file,
		Filename: "Нагрузка.csv",
		Format:   models.ExportFormatCSV,
	}}
	handler := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/download?token=good", nil)
	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "good", mockSvc.token)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename*=utf-8''")
	assert.Equal(t, "\ufeffДата;Группа\n", w.Body.String())
}
