package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

// TimetableSource is the read side of the timetable backend. Every call
// carries the caller's session explicitly.
type TimetableSource interface {
	ScheduleEntries(ctx context.Context, session *models.Session, filter models.ScheduleFilter) ([]models.ScheduleEntry, error)
	Groups(ctx context.Context, session *models.Session) ([]models.Group, error)
	Teachers(ctx context.Context, session *models.Session) ([]models.Teacher, error)
	Disciplines(ctx context.Context, session *models.Session) ([]models.Discipline, error)
	Classrooms(ctx context.Context, session *models.Session) ([]models.Classroom, error)
	TimeSlots(ctx context.Context, session *models.Session) ([]models.TimeSlot, error)
	TeachingLoads(ctx context.Context, session *models.Session) ([]models.TeachingLoad, error)
}

// viewKinds are the collections a schedule view loads.
var viewKinds = []string{
	models.KindSchedule,
	models.KindGroup,
	models.KindTeacher,
	models.KindDiscipline,
	models.KindClassroom,
	models.KindTimeSlot,
	models.KindTeachingLoad,
}

// arrival is called once per collection that loaded. It may be invoked from
// several goroutines at once.
type arrival func(kind string, apply func(*timetable.Sources))

// fetcher issues the collection fetches of one snapshot together and waits
// for all of them. A failing fetch never cancels its siblings, so whatever
// arrived stays usable.
type fetcher struct {
	source  TimetableSource
	metrics *MetricsService
	logger  *zap.Logger
}

func newFetcher(source TimetableSource, metrics *MetricsService, logger *zap.Logger) *fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fetcher{source: source, metrics: metrics, logger: logger}
}

// fetch loads the requested kinds. The returned error is the first fetch
// failure, already converted to FETCH_FAILED.
func (f *fetcher) fetch(ctx context.Context, session *models.Session, filter models.ScheduleFilter, kinds []string, onArrival arrival) (timetable.Sources, models.Readiness, error) {
	var (
		mu       sync.Mutex
		snapshot timetable.Sources
		g        errgroup.Group
	)
	readiness := models.Readiness{Loaded: make(map[string]bool, len(kinds))}
	for _, kind := range kinds {
		readiness.Loaded[kind] = false
	}

	deliver := func(kind string, apply func(*timetable.Sources)) {
		mu.Lock()
		apply(&snapshot)
		readiness.Loaded[kind] = true
		mu.Unlock()
		if onArrival != nil {
			onArrival(kind, apply)
		}
	}

	for _, kind := range kinds {
		kind := kind
		g.Go(func() error {
			start := time.Now()
			apply, err := f.load(ctx, session, filter, kind)
			f.metrics.ObserveUpstreamFetch(kind, time.Since(start), err)
			if err != nil {
				f.logger.Warn("timetable fetch failed", zap.String("collection", kind), zap.Error(err))
				return appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to fetch "+kind)
			}
			deliver(kind, apply)
			return nil
		})
	}
	err := g.Wait()

	mu.Lock()
	defer mu.Unlock()
	readiness = finishReadiness(readiness, snapshot)
	return snapshot, readiness, err
}

func (f *fetcher) load(ctx context.Context, session *models.Session, filter models.ScheduleFilter, kind string) (func(*timetable.Sources), error) {
	switch kind {
	case models.KindSchedule:
		items, err := f.source.ScheduleEntries(ctx, session, filter)
		return func(s *timetable.Sources) { s.Entries = items }, err
	case models.KindGroup:
		items, err := f.source.Groups(ctx, session)
		return func(s *timetable.Sources) { s.Groups = items }, err
	case models.KindTeacher:
		items, err := f.source.Teachers(ctx, session)
		return func(s *timetable.Sources) { s.Teachers = items }, err
	case models.KindDiscipline:
		items, err := f.source.Disciplines(ctx, session)
		return func(s *timetable.Sources) { s.Disciplines = items }, err
	case models.KindClassroom:
		items, err := f.source.Classrooms(ctx, session)
		return func(s *timetable.Sources) { s.Classrooms = items }, err
	case models.KindTimeSlot:
		items, err := f.source.TimeSlots(ctx, session)
		return func(s *timetable.Sources) { s.TimeSlots = items }, err
	case models.KindTeachingLoad:
		items, err := f.source.TeachingLoads(ctx, session)
		return func(s *timetable.Sources) { s.TeachingLoads = items }, err
	default:
		return nil, appErrors.Clone(appErrors.ErrInternal, "unknown collection "+kind)
	}
}

// finishReadiness derives the partial and empty flags from loaded kinds.
func finishReadiness(r models.Readiness, snapshot timetable.Sources) models.Readiness {
	r.Partial = false
	for _, loaded := range r.Loaded {
		if !loaded {
			r.Partial = true
			break
		}
	}
	_, wantsEntries := r.Loaded[models.KindSchedule]
	r.Empty = wantsEntries && r.Loaded[models.KindSchedule] && len(snapshot.Entries) == 0
	return r
}

// newReadiness starts a readiness record with nothing loaded.
func newReadiness(kinds []string) models.Readiness {
	r := models.Readiness{Loaded: make(map[string]bool, len(kinds))}
	for _, kind := range kinds {
		r.Loaded[kind] = false
	}
	r.Partial = true
	return r
}
