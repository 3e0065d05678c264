package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
)

var dashboardKinds = []string{models.KindGroup, models.KindTeacher, models.KindDiscipline, models.KindSchedule}

// DashboardService counts reference entities and scheduled classes.
type DashboardService struct {
	fetcher *fetcher
	logger  *zap.Logger
	now     func() time.Time
}

// NewDashboardService constructs the service.
func NewDashboardService(source TimetableSource, metrics *MetricsService, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{fetcher: newFetcher(source, metrics, logger), logger: logger, now: time.Now}
}

// Summary fetches every counted collection at once. Counts of collections
// that failed are zero and the summary is marked partial; only a total
// failure is an error.
func (s *DashboardService) Summary(ctx context.Context, session *models.Session, filter models.ScheduleFilter) (*models.DashboardSummary, error) {
	scoped, err := scopeFilter(session, filter, s.now())
	if err != nil {
		return nil, err
	}
	src, readiness, err := s.fetcher.fetch(ctx, session, scoped, dashboardKinds, nil)
	if err != nil {
		loaded := 0
		for _, ok := range readiness.Loaded {
			if ok {
				loaded++
			}
		}
		if loaded == 0 {
			return nil, err
		}
		s.logger.Warn("dashboard summary is partial", zap.Error(err))
	}
	return &models.DashboardSummary{
		Groups:      len(src.Groups),
		Teachers:    len(src.Teachers),
		Disciplines: len(src.Disciplines),
		Schedules:   len(src.Entries),
		Partial:     readiness.Partial,
	}, nil
}
