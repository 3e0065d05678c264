package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

// Conflict report sources.
const (
	ConflictSourceLocal  = "local"
	ConflictSourceRemote = "remote"
)

// RemoteConflictSource is the backend's own conflict check.
type RemoteConflictSource interface {
	Conflicts(ctx context.Context, session *models.Session) ([]models.RemoteConflict, error)
}

// conflictTables are the collections used to order conflict groups and to
// find the teacher of an entry.
var conflictTables = []string{models.KindClassroom, models.KindTimeSlot, models.KindTeachingLoad}

// ConflictService reports double bookings either by running the detector
// over fetched entries or by regrouping the backend's conflict list.
type ConflictService struct {
	fetcher   *fetcher
	remote    RemoteConflictSource
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
	now       func() time.Time
}

// NewConflictService constructs the service.
func NewConflictService(source TimetableSource, remote RemoteConflictSource, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ConflictService{
		fetcher:   newFetcher(source, metrics, logger),
		remote:    remote,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cacheTTL:  cacheTTL,
		now:       time.Now,
	}
}

// Report returns conflict groups for the window. Both sources produce the
// same shape.
func (s *ConflictService) Report(ctx context.Context, session *models.Session, query dto.ConflictQuery) (models.ConflictReport, error) {
	if err := s.validator.Struct(query); err != nil {
		return models.ConflictReport{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict query")
	}
	filter, err := scopeFilter(session, models.ScheduleFilter{StartDate: query.StartDate, EndDate: query.EndDate}, s.now())
	if err != nil {
		return models.ConflictReport{}, err
	}
	source := query.Source
	if source == "" {
		source = ConflictSourceLocal
	}

	key := cacheKey("conflicts", source, string(session.Role), filter.StartDate, filter.EndDate, filter.GroupID.String(), filter.TeacherID.String())
	report, _, err := cached(ctx, s.cache, key, s.cacheTTL, func() (models.ConflictReport, error) {
		if source == ConflictSourceRemote {
			return s.remoteReport(ctx, session, filter)
		}
		return s.localReport(ctx, session, filter)
	})
	if err != nil {
		return models.ConflictReport{}, err
	}
	s.publish(report)
	return report, nil
}

// Detect runs the detector over entries that did not come from a view, for
// instance freshly generated ones. Reference tables are best effort.
func (s *ConflictService) Detect(ctx context.Context, session *models.Session, entries []models.ScheduleEntry) models.ConflictReport {
	tables, _, _ := s.fetcher.fetch(ctx, session, models.ScheduleFilter{}, conflictTables, nil)
	report := timetable.NewConflictDetector(timetable.IndexTables(tables)).Report(entries, true)
	s.publish(report)
	return report
}

// Invalidate drops cached conflict reports.
func (s *ConflictService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "conflicts:*"); err != nil {
		s.logger.Warn("failed to invalidate conflict cache", zap.Error(err))
	}
}

func (s *ConflictService) localReport(ctx context.Context, session *models.Session, filter models.ScheduleFilter) (models.ConflictReport, error) {
	kinds := append([]string{models.KindSchedule}, conflictTables...)
	src, readiness, err := s.fetcher.fetch(ctx, session, filter, kinds, nil)
	if err != nil {
		if !readiness.Loaded[models.KindSchedule] {
			return models.ConflictReport{}, err
		}
		s.logger.Warn("conflict ordering uses partial reference data", zap.Error(err))
	}
	return timetable.NewConflictDetector(timetable.IndexTables(src)).Report(src.Entries, true), nil
}

func (s *ConflictService) remoteReport(ctx context.Context, session *models.Session, filter models.ScheduleFilter) (models.ConflictReport, error) {
	if s.remote == nil {
		return models.ConflictReport{}, appErrors.Clone(appErrors.ErrFeatureDisabled, "remote conflict source unavailable")
	}
	start := time.Now()
	flagged, err := s.remote.Conflicts(ctx, session)
	s.metrics.ObserveUpstreamFetch("conflicts", time.Since(start), err)
	if err != nil {
		return models.ConflictReport{}, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to fetch conflicts")
	}
	tables, _, _ := s.fetcher.fetch(ctx, session, models.ScheduleFilter{}, conflictTables, nil)
	return RegroupConflicts(timetable.NewConflictDetector(timetable.IndexTables(tables)), flagged, filter), nil
}

// RegroupConflicts turns the backend's flat flagged-entry list into conflict
// groups. Entries dated outside the filter window are dropped; undated ones
// are kept.
func RegroupConflicts(detector *timetable.ConflictDetector, flagged []models.RemoteConflict, filter models.ScheduleFilter) models.ConflictReport {
	classrooms := detector.NewAccumulator(models.ConflictClassroom)
	teachers := detector.NewAccumulator(models.ConflictTeacher)
	for _, item := range flagged {
		if !inWindow(item.Date, filter) {
			continue
		}
		for _, kind := range item.ConflictTypes {
			switch kind {
			case models.ConflictClassroom:
				classrooms.Add(item.ScheduleEntry)
			case models.ConflictTeacher:
				teachers.Add(item.ScheduleEntry)
			}
		}
	}
	groups := append(classrooms.Groups(), teachers.Groups()...)
	if groups == nil {
		groups = []models.ConflictGroup{}
	}
	return models.ConflictReport{Count: len(groups), Conflicts: groups}
}

func inWindow(date string, filter models.ScheduleFilter) bool {
	if date == "" {
		return true
	}
	if filter.StartDate != "" && date < filter.StartDate {
		return false
	}
	if filter.EndDate != "" && date > filter.EndDate {
		return false
	}
	return true
}

func (s *ConflictService) publish(report models.ConflictReport) {
	counts := map[string]int{models.ConflictClassroom: 0, models.ConflictTeacher: 0}
	for _, group := range report.Conflicts {
		counts[group.Dimension]++
	}
	for dimension, n := range counts {
		s.metrics.SetConflictGroups(dimension, n)
	}
}
