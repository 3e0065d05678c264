package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/export"
	"github.com/noah-isme/sma-timetable/pkg/storage"
)

// ReportSource renders the schedule report on the timetable backend.
type ReportSource interface {
	ScheduleReport(ctx context.Context, session *models.Session, format models.ExportFormat, filter models.ScheduleFilter) ([]byte, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService produces report files and persists them. Schedule reports
// in office formats come from the backend; the rest is rendered here.
type ExportService struct {
	reports   ReportSource
	fetcher   *fetcher
	workload  *WorkloadService
	conflicts *ConflictService
	storage   fileStorage
	csv       datasetRenderer
	pdf       datasetRenderer
	xlsx      datasetRenderer
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(reports ReportSource, source TimetableSource, workload *WorkloadService, conflicts *ConflictService, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv, pdf, xlsx datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter(export.WithBOM())
	}
	if pdf == nil {
		pdf = export.NewPDFExporter("")
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	return &ExportService{
		reports:   reports,
		fetcher:   newFetcher(source, nil, logger),
		workload:  workload,
		conflicts: conflicts,
		storage:   files,
		csv:       csv,
		pdf:       pdf,
		xlsx:      xlsx,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
	}
}

// Supports reports whether the kind can be produced in the format.
func Supports(kind models.ExportKind, format models.ExportFormat) bool {
	switch kind {
	case models.ExportSchedule:
		return format == models.ExportFormatPDF || format == models.ExportFormatXLSX ||
			format == models.ExportFormatDOCX || format == models.ExportFormatCSV
	case models.ExportWorkload, models.ExportConflicts:
		return format == models.ExportFormatPDF || format == models.ExportFormatXLSX || format == models.ExportFormatCSV
	default:
		return false
	}
}

// Generate produces the job's file, stores it and signs a download URL.
func (s *ExportService) Generate(ctx context.Context, session *models.Session, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	payload, err := s.render(ctx, session, job.Params)
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download?token=%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) render(ctx context.Context, session *models.Session, params models.ExportParams) ([]byte, error) {
	if !Supports(params.Kind, params.Format) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s report is not available as %s", params.Kind, params.Format))
	}
	if params.Kind == models.ExportSchedule && params.Format != models.ExportFormatCSV {
		if s.reports == nil {
			return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "schedule reports unavailable")
		}
		payload, err := s.reports.ScheduleReport(ctx, session, params.Format, params.Filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to fetch schedule report")
		}
		return payload, nil
	}

	dataset, err := s.buildDataset(ctx, session, params)
	if err != nil {
		return nil, err
	}
	switch params.Format {
	case models.ExportFormatPDF:
		return s.pdf.Render(dataset)
	case models.ExportFormatXLSX:
		return s.xlsx.Render(dataset)
	default:
		return s.csv.Render(dataset)
	}
}

func (s *ExportService) buildDataset(ctx context.Context, session *models.Session, params models.ExportParams) (export.Dataset, error) {
	switch params.Kind {
	case models.ExportSchedule:
		return s.buildScheduleDataset(ctx, session, params.Filter)
	case models.ExportWorkload:
		return s.buildWorkloadDataset(ctx, session, params)
	case models.ExportConflicts:
		return s.buildConflictDataset(ctx, session, params.Filter)
	default:
		return export.Dataset{}, fmt.Errorf("unsupported export kind %s", params.Kind)
	}
}

func (s *ExportService) buildScheduleDataset(ctx context.Context, session *models.Session, filter models.ScheduleFilter) (export.Dataset, error) {
	src, readiness, err := s.fetcher.fetch(ctx, session, filter, viewKinds, nil)
	if err != nil && !readiness.Loaded[models.KindSchedule] {
		return export.Dataset{}, err
	}
	resolved := timetable.NewResolver(timetable.IndexTables(src)).ResolveAll(src.Entries)

	headers := []string{"Дата", "Время", "Неделя", "Группа", "Дисциплина", "Преподаватель", "Аудитория"}
	rows := make([]map[string]string, 0, len(resolved))
	for _, entry := range resolved {
		rows = append(rows, map[string]string{
			"Дата":          entry.Date,
			"Время":         entry.TimeLabel,
			"Неделя":        entry.WeekType.Label(),
			"Группа":        entry.GroupName,
			"Дисциплина":    entry.DisciplineName,
			"Преподаватель": entry.TeacherName,
			"Аудитория":     entry.ClassroomNumber,
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Расписание %s - %s", filter.StartDate, filter.EndDate),
		Headers: headers,
		Rows:    rows,
	}, nil
}

func (s *ExportService) buildWorkloadDataset(ctx context.Context, session *models.Session, params models.ExportParams) (export.Dataset, error) {
	if s.workload == nil {
		return export.Dataset{}, appErrors.Clone(appErrors.ErrFeatureDisabled, "workload reports unavailable")
	}
	report, err := s.workload.Report(ctx, session, dto.WorkloadQuery{TeacherID: params.TeacherID.String(), Mode: params.TotalMode})
	if err != nil {
		return export.Dataset{}, err
	}
	labels := timetable.WorkloadLabels()
	keys := timetable.WorkloadCategories()
	headers := []string{"Преподаватель"}
	for _, key := range keys {
		headers = append(headers, labels[key])
	}
	rows := make([]map[string]string, 0, len(report.Totals))
	for _, total := range report.Totals {
		values := []int{total.Semester1, total.Semester2, total.Exams, total.Consultations, total.CourseWorks, total.DiplomaWorks, total.Total}
		row := map[string]string{"Преподаватель": total.TeacherName}
		for i, key := range keys {
			row[labels[key]] = strconv.Itoa(values[i])
		}
		rows = append(rows, row)
	}
	return export.Dataset{Title: "Нагрузка преподавателей", Headers: headers, Rows: rows}, nil
}

func (s *ExportService) buildConflictDataset(ctx context.Context, session *models.Session, filter models.ScheduleFilter) (export.Dataset, error) {
	if s.conflicts == nil {
		return export.Dataset{}, appErrors.Clone(appErrors.ErrFeatureDisabled, "conflict reports unavailable")
	}
	report, err := s.conflicts.Report(ctx, session, dto.ConflictQuery{StartDate: filter.StartDate, EndDate: filter.EndDate})
	if err != nil {
		return export.Dataset{}, err
	}
	headers := []string{"Тип", "Дата", "Неделя", "Время", "Аудитория", "Преподаватель", "Занятий", "Записи"}
	rows := make([]map[string]string, 0, len(report.Conflicts))
	for _, group := range report.Conflicts {
		ids := make([]string, 0, len(group.Entries))
		for _, entry := range group.Entries {
			ids = append(ids, entry.ID.String())
		}
		rows = append(rows, map[string]string{
			"Тип":           group.Dimension,
			"Дата":          group.Key.Date,
			"Неделя":        group.Key.WeekType.Label(),
			"Время":         group.Key.TimeSlotID.String(),
			"Аудитория":     group.Key.ClassroomID.String(),
			"Преподаватель": group.Key.TeacherID.String(),
			"Занятий":       strconv.Itoa(group.Count),
			"Записи":        strings.Join(ids, " "),
		})
	}
	return export.Dataset{Title: fmt.Sprintf("Конфликты: %d", report.Count), Headers: headers, Rows: rows}, nil
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	window := sanitizeFilename(job.Params.Filter.StartDate + "_" + job.Params.Filter.EndDate)
	return fmt.Sprintf("%s/%s_%s_%s.%s", job.ID, job.Params.Kind, window, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	raw = strings.Trim(raw, "_")
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
