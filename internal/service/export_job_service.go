package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
)

// ExportJobStore persists export job metadata.
type ExportJobStore interface {
	Save(ctx context.Context, job *models.ExportJob) error
	Get(ctx context.Context, id string) (*models.ExportJob, error)
	ListByStatus(ctx context.Context, status models.ExportStatus, limit int) ([]models.ExportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, session *models.Session, job *models.ExportJob) (*ExportResult, error)
}

// ExportJobService orchestrates export job lifecycle management.
type ExportJobService struct {
	repo      ExportJobStore
	queue     jobDispatcher
	exporter  *ExportService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportJobConfig
	now       func() time.Time
}

// ExportJobConfig governs queue recovery and cleanup.
type ExportJobConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// NewExportJobService constructs the service.
func NewExportJobService(repo ExportJobStore, queue jobDispatcher, exporter *ExportService, validate *validator.Validate, logger *zap.Logger, cfg ExportJobConfig) *ExportJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportJobService{
		repo:      repo,
		queue:     queue,
		exporter:  exporter,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// CreateJob validates the request, persists the job and enqueues it. The
// caller's session travels with the queued job only and is never stored.
func (s *ExportJobService) CreateJob(ctx context.Context, session *models.Session, req dto.ExportRequest) (*dto.ExportJobResponse, error) {
	if session == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	if !Supports(req.Kind, req.Format) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s report is not available as %s", req.Kind, req.Format))
	}
	filter, err := scopeFilter(session, models.ScheduleFilter{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		GroupID:   req.GroupID,
		TeacherID: req.TeacherID,
	}, s.now())
	if err != nil {
		return nil, err
	}

	job := &models.ExportJob{
		ID: uuid.NewString(),
		Params: models.ExportParams{
			Kind:      req.Kind,
			Format:    req.Format,
			Filter:    filter,
			TeacherID: req.TeacherID,
			TotalMode: req.Mode,
		},
		Status:    models.ExportQueued,
		CreatedBy: session.UserID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Params.Kind), Payload: session}); err != nil {
		msg := "failed to enqueue job"
		now := s.now().UTC()
		job.Status = models.ExportFailed
		job.ErrorMessage = &msg
		job.FinishedAt = &now
		_ = s.repo.Save(ctx, job)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status}, nil
}

// GetStatus exposes job metadata to clients, enforcing ownership for
// non-admins.
func (s *ExportJobService) GetStatus(ctx context.Context, session *models.Session, id string) (*dto.ExportStatusResponse, error) {
	job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil || (session.Role != models.RoleAdmin && job.CreatedBy != session.UserID) {
		return nil, appErrors.ErrForbidden
	}
	resp := &dto.ExportStatusResponse{
		ID:     job.ID,
		Kind:   job.Params.Kind,
		Format: job.Params.Format,
		Status: job.Status,
	}
	if job.ResultURL != nil {
		resp.ResultURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates token and opens the stored export file.
func (s *ExportJobService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ExportFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// RecoverPendingJobs replays queued jobs after a restart. Their sessions are
// gone, so the worker fails them with a resubmit hint.
func (s *ExportJobService) RecoverPendingJobs(ctx context.Context) {
	for _, status := range []models.ExportStatus{models.ExportQueued, models.ExportProcessing} {
		pending, err := s.repo.ListByStatus(ctx, status, 50)
		if err != nil {
			s.logger.Sugar().Warnw("failed to recover export jobs", "status", status, "error", err)
			return
		}
		for _, job := range pending {
			if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Params.Kind)}); err != nil {
				s.logger.Sugar().Warnw("failed to requeue pending job", "job_id", job.ID, "error", err)
			}
		}
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ExportJobService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ExportJobService) cleanupExpired(ctx context.Context) {
	finished, err := s.repo.ListByStatus(ctx, models.ExportFinished, 0)
	if err != nil {
		s.logger.Sugar().Warnw("cleanup list failed", "error", err)
		return
	}
	now := s.now()
	for _, job := range finished {
		if job.ExpiresAt == nil || job.ExpiresAt.After(now) || job.ResultPath == "" {
			continue
		}
		if err := s.exporter.Delete(job.ResultPath); err != nil {
			s.logger.Sugar().Warnw("cleanup delete failed", "job_id", job.ID, "error", err)
		}
	}
	if _, err := s.exporter.Cleanup(s.cfg.ResultTTL); err != nil {
		s.logger.Sugar().Warnw("filesystem cleanup failed", "error", err)
	}
}

func (s *ExportJobService) load(ctx context.Context, id string) (*models.ExportJob, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return job, nil
}

// ExportWorker bridges queue jobs to ExportService.
type ExportWorker struct {
	repo       ExportJobStore
	exporter   exportGenerator
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
}

// NewExportWorker constructs a worker.
func NewExportWorker(repo ExportJobStore, exporter exportGenerator, metrics *MetricsService, maxRetries int, logger *zap.Logger) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ExportWorker{
		repo:       repo,
		exporter:   exporter,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.Get(ctx, job.ID)
	if err != nil {
		return err
	}
	if record.Status == models.ExportFinished || record.Status == models.ExportFailed {
		return nil
	}
	session, _ := job.Payload.(*models.Session)
	if session == nil {
		w.fail(ctx, record, "export interrupted by restart, submit it again")
		return nil
	}

	record.Status = models.ExportProcessing
	record.Attempts = job.Attempt + 1
	if err := w.repo.Save(ctx, record); err != nil {
		return err
	}

	result, err := w.exporter.Generate(ctx, session, record)
	if err != nil {
		var appErr *appErrors.Error
		permanent := errors.As(err, &appErr) && appErr.Status < 500
		if permanent || job.Attempt >= w.maxRetries {
			w.fail(ctx, record, err.Error())
			if permanent {
				return nil
			}
		} else {
			msg := err.Error()
			record.Status = models.ExportQueued
			record.ErrorMessage = &msg
			if updateErr := w.repo.Save(ctx, record); updateErr != nil {
				w.logger.Sugar().Warnw("failed to mark job queued", "job_id", job.ID, "error", updateErr)
			}
		}
		return err
	}

	now := time.Now().UTC()
	url := result.URL
	expires := result.ExpiresAt
	record.Status = models.ExportFinished
	record.ResultPath = result.RelativePath
	record.ResultURL = &url
	record.ExpiresAt = &expires
	record.ErrorMessage = nil
	record.FinishedAt = &now
	if err := w.repo.Save(ctx, record); err != nil {
		w.logger.Sugar().Warnw("failed to mark job finished", "job_id", job.ID, "error", err)
		return err
	}
	w.metrics.IncExportJob(string(record.Params.Kind), string(record.Status))
	w.logger.Sugar().Infow("export finished", "job_id", job.ID, "kind", record.Params.Kind, "format", record.Params.Format)
	return nil
}

func (w *ExportWorker) fail(ctx context.Context, record *models.ExportJob, msg string) {
	now := time.Now().UTC()
	record.Status = models.ExportFailed
	record.ErrorMessage = &msg
	record.FinishedAt = &now
	if err := w.repo.Save(ctx, record); err != nil {
		w.logger.Sugar().Warnw("failed to mark job failed", "job_id", record.ID, "error", err)
	}
	w.metrics.IncExportJob(string(record.Params.Kind), string(record.Status))
}
