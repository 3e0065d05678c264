package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/storage"
)

type fakeReports struct {
	payload []byte
	err     error
	format  models.ExportFormat
	filter  models.ScheduleFilter
}

func (f *fakeReports) ScheduleReport(_ context.Context, _ *models.Session, format models.ExportFormat, filter models.ScheduleFilter) ([]byte, error) {
	f.format = format
	f.filter = filter
	return f.payload, f.err
}

type exportFixture struct {
	dir     string
	src     *fakeSource
	reports *fakeReports
	service *ExportService
}

func newExportFixture(t *testing.T) *exportFixture {
	t.Helper()
	dir := t.TempDir()
	files, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)

	src := newFakeSource()
	src.entries = []models.ScheduleEntry{
		scheduled("e1", "l1", "s1", "c1", "2024-03-04"),
		scheduled("e2", "l2", "s1", "c1", "2024-03-04"),
	}
	reports := &fakeReports{payload: []byte("PK-office-document")}
	workload := NewWorkloadService(src, nil, nil, nil, nil, WorkloadServiceConfig{})
	conflicts := newTestConflictService(src, nil, nil)
	signer := storage.NewSignedURLSigner("export-secret", time.Hour)
	svc := NewExportService(reports, src, workload, conflicts, files, signer, ExportConfig{APIPrefix: "/api/v1/"}, nil, nil, nil, nil)
	return &exportFixture{dir: dir, src: src, reports: reports, service: svc}
}

func exportJob(kind models.ExportKind, format models.ExportFormat) *models.ExportJob {
	return &models.ExportJob{
		ID: "job-1",
		Params: models.ExportParams{
			Kind:   kind,
			Format: format,
			Filter: models.ScheduleFilter{StartDate: "2024-03-04", EndDate: "2024-03-10"},
		},
	}
}

func readExport(t *testing.T, f *exportFixture, rel string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, rel))
	require.NoError(t, err)
	return data
}

func TestExportServiceScheduleFromUpstream(t *testing.T) {
	f := newExportFixture(t)

	result, err := f.service.Generate(context.Background(), adminSession, exportJob(models.ExportSchedule, models.ExportFormatXLSX))
	require.NoError(t, err)
	assert.Equal(t, models.ExportFormatXLSX, f.reports.format)
	assert.Equal(t, "2024-03-04", f.reports.filter.StartDate)
	assert.True(t, strings.HasPrefix(result.RelativePath, "job-1/schedule_2024-03-04_2024-03-10_"))
	assert.True(t, strings.HasSuffix(result.RelativePath, ".xlsx"))
	assert.Equal(t, "/api/v1/exports/download?token="+result.Token, result.URL)
	assert.Equal(t, []byte("PK-office-document"), readExport(t, f, result.RelativePath))

	jobID, rel, _, err := f.service.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, result.RelativePath, rel)
}

func TestExportServiceScheduleUpstreamFailure(t *testing.T) {
	f := newExportFixture(t)
	f.reports.err = errors.New("report service down")

	_, err := f.service.Generate(context.Background(), adminSession, exportJob(models.ExportSchedule, models.ExportFormatPDF))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFetchFailed.Code, appErrors.FromError(err).Code)
}

func TestExportServiceScheduleCSV(t *testing.T) {
	f := newExportFixture(t)

	result, err := f.service.Generate(context.Background(), adminSession, exportJob(models.ExportSchedule, models.ExportFormatCSV))
	require.NoError(t, err)
	data := readExport(t, f, result.RelativePath)
	assert.True(t, bytes.HasPrefix(data, []byte("\ufeff")))
	text := string(data)
	assert.Contains(t, text, "Дата,Время,Неделя,Группа,Дисциплина,Преподаватель,Аудитория")
	assert.Contains(t, text, "2024-03-04,08:30:00-10:00:00,Четная,ИС-21,Математика,Иванов И.П.,101")
	assert.Contains(t, text, "ПИ-22 (подгруппа 1)")
	assert.Empty(t, f.reports.format)
}

func TestExportServiceWorkloadAndConflicts(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	workload, err := f.service.Generate(ctx, adminSession, exportJob(models.ExportWorkload, models.ExportFormatCSV))
	require.NoError(t, err)
	text := string(readExport(t, f, workload.RelativePath))
	assert.Contains(t, text, "Преподаватель,1 семестр,2 семестр,Экзамены,Консультации,Курсовые,Дипломные,Всего")
	assert.Contains(t, text, "Иванов И.П.,10,0,0,0,0,0,10")

	pdf, err := f.service.Generate(ctx, adminSession, exportJob(models.ExportConflicts, models.ExportFormatPDF))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(readExport(t, f, pdf.RelativePath), []byte("%PDF")))

	sheet, err := f.service.Generate(ctx, adminSession, exportJob(models.ExportWorkload, models.ExportFormatXLSX))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(readExport(t, f, sheet.RelativePath), []byte("PK")))
	assert.Empty(t, f.reports.format)
}

func TestExportServiceRejectsUnsupportedFormat(t *testing.T) {
	f := newExportFixture(t)

	_, err := f.service.Generate(context.Background(), adminSession, exportJob(models.ExportWorkload, models.ExportFormatDOCX))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	assert.True(t, Supports(models.ExportSchedule, models.ExportFormatDOCX))
	assert.True(t, Supports(models.ExportConflicts, models.ExportFormatCSV))
	assert.True(t, Supports(models.ExportConflicts, models.ExportFormatXLSX))
	assert.False(t, Supports(models.ExportWorkload, models.ExportFormatDOCX))
	assert.False(t, Supports("attendance", models.ExportFormatCSV))
}

func TestExportServiceWorkloadForbiddenForStudents(t *testing.T) {
	f := newExportFixture(t)

	_, err := f.service.Generate(context.Background(), studentSession, exportJob(models.ExportWorkload, models.ExportFormatCSV))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "na", sanitizeFilename("_"))
	assert.Equal(t, "2024-03-04_2024-03-10", sanitizeFilename("2024-03-04_2024-03-10"))
	assert.Equal(t, "a-b-c", sanitizeFilename("a/b:c"))
	assert.Len(t, sanitizeFilename(strings.Repeat("x", 150)), 100)
}
