package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

// WorkloadServiceConfig tunes workload aggregation.
type WorkloadServiceConfig struct {
	DefaultMode timetable.TotalMode
	ChunkSize   int
	CacheTTL    time.Duration
}

// WorkloadService sums teaching-load hours per teacher.
type WorkloadService struct {
	fetcher   *fetcher
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       WorkloadServiceConfig
}

// NewWorkloadService constructs the service.
func NewWorkloadService(source TimetableSource, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg WorkloadServiceConfig) *WorkloadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = timetable.TotalRunning
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 500
	}
	return &WorkloadService{
		fetcher:   newFetcher(source, metrics, logger),
		cache:     cache,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Report aggregates the workload table. Teachers only see their own row.
func (s *WorkloadService) Report(ctx context.Context, session *models.Session, query dto.WorkloadQuery) (*dto.WorkloadReport, error) {
	if session == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid workload query")
	}
	teacherID := models.ID(strings.TrimSpace(query.TeacherID))
	switch session.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		if teacherID != "" && teacherID != session.TeacherID {
			return nil, appErrors.ErrForbidden
		}
		teacherID = session.TeacherID
	default:
		return nil, appErrors.ErrForbidden
	}
	mode := s.cfg.DefaultMode
	if query.Mode != "" {
		mode = timetable.TotalMode(query.Mode)
	}

	key := cacheKey("workload", string(session.Role), teacherID.String(), string(mode))
	report, hit, err := cached(ctx, s.cache, key, s.cfg.CacheTTL, func() (*dto.WorkloadReport, error) {
		return s.aggregate(ctx, session, teacherID, mode)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("workload report", zap.Bool("cache_hit", hit), zap.Int("teachers", len(report.Totals)), zap.Int("skipped", report.Skipped))
	return report, nil
}

// Charts lists the chart projections of the workload report.
func (s *WorkloadService) Charts() []models.WorkloadChart {
	return timetable.WorkloadCharts()
}

func (s *WorkloadService) aggregate(ctx context.Context, session *models.Session, teacherID models.ID, mode timetable.TotalMode) (*dto.WorkloadReport, error) {
	src, _, err := s.fetcher.fetch(ctx, session, models.ScheduleFilter{}, []string{models.KindTeacher, models.KindTeachingLoad}, nil)
	if err != nil {
		return nil, err
	}
	teachers := timetable.Index(src.Teachers, func(t models.Teacher) models.ID { return t.ID })
	agg := timetable.NewWorkloadAggregator(teachers, timetable.WorkloadOptions{TeacherID: teacherID, Mode: mode})
	for start := 0; start < len(src.TeachingLoads); start += s.cfg.ChunkSize {
		end := start + s.cfg.ChunkSize
		if end > len(src.TeachingLoads) {
			end = len(src.TeachingLoads)
		}
		agg.Add(src.TeachingLoads[start:end]...)
		if err := ctx.Err(); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "workload aggregation cancelled")
		}
	}
	if agg.Skipped() > 0 {
		s.logger.Warn("teaching loads without a known teacher skipped", zap.Int("skipped", agg.Skipped()))
	}
	return &dto.WorkloadReport{Totals: agg.Totals(), Skipped: agg.Skipped(), Mode: string(mode)}, nil
}
