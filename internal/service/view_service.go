package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/repository"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

// ViewServiceConfig tunes schedule view sessions.
type ViewServiceConfig struct {
	PageSize     int
	MaxSessions  int
	FetchTimeout time.Duration
}

// ViewService runs schedule view sessions: one concurrent snapshot fetch per
// refresh, derived views memoised on the snapshot, last refresh wins.
type ViewService struct {
	fetcher *fetcher
	store   ViewStateStore
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ViewServiceConfig
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*viewSession
}

type filterKey struct {
	version uint64
	query   string
}

// viewSession owns one snapshot. version changes whenever a collection
// lands in the snapshot; seq changes only when a refresh starts.
type viewSession struct {
	mu       sync.Mutex
	state    models.ViewState
	sources  timetable.Sources
	version  uint64
	lastUsed time.Time

	resolved   timetable.Memo[uint64, []models.ResolvedScheduleEntry]
	filtered   timetable.Memo[filterKey, []models.ResolvedScheduleEntry]
	grid       timetable.Memo[filterKey, models.Grid]
	conflicts  timetable.Memo[uint64, models.ConflictReport]
	entryPages timetable.PageTracker
	gridPages  timetable.PageTracker
}

var viewTransitions = map[models.ViewStatus][]models.ViewStatus{
	models.ViewIdle:      {models.ViewLoading},
	models.ViewLoading:   {models.ViewLoading, models.ViewReady, models.ViewError},
	models.ViewReady:     {models.ViewFiltering, models.ViewLoading},
	models.ViewFiltering: {models.ViewReady},
	models.ViewError:     {models.ViewLoading},
}

func canTransition(from, to models.ViewStatus) bool {
	for _, next := range viewTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NewViewService constructs the service.
func NewViewService(source TimetableSource, store ViewStateStore, metrics *MetricsService, logger *zap.Logger, cfg ViewServiceConfig) *ViewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = NewMemoryViewStateStore()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = timetable.DefaultPageSize
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1000
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	return &ViewService{
		fetcher:  newFetcher(source, metrics, logger),
		store:    store,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*viewSession),
	}
}

// Create opens an idle session owned by the caller.
func (s *ViewService) Create(ctx context.Context, session *models.Session) (*dto.ViewResponse, error) {
	if session == nil {
		return nil, appErrors.ErrUnauthorized
	}
	now := s.now().UTC()
	sess := &viewSession{
		state: models.ViewState{
			ID:        uuid.NewString(),
			OwnerID:   session.UserID,
			Status:    models.ViewIdle,
			Page:      1,
			Readiness: newReadiness(viewKinds),
			UpdatedAt: now,
		},
		lastUsed: now,
	}

	s.mu.Lock()
	s.evictLocked(ctx)
	s.sessions[sess.state.ID] = sess
	count := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SetViewSessions(count)

	state := cloneState(sess.state)
	s.persist(ctx, &state)
	return viewResponse(state), nil
}

// Get returns the session state and readiness.
func (s *ViewService) Get(ctx context.Context, session *models.Session, id string) (*dto.ViewResponse, error) {
	sess, err := s.lookup(ctx, session, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return viewResponse(cloneState(sess.state)), nil
}

// Refresh starts a new snapshot for the filter and waits for it. A refresh
// that is overtaken by a newer one returns ErrSuperseded and changes nothing.
// Fetch failures are reported through the Error state, not as an error.
func (s *ViewService) Refresh(ctx context.Context, session *models.Session, id string, filter models.ScheduleFilter) (*dto.ViewResponse, error) {
	scoped, err := scopeFilter(session, filter, s.now())
	if err != nil {
		return nil, err
	}
	sess, err := s.lookup(ctx, session, id)
	if err != nil {
		return nil, err
	}
	seq, err := s.begin(ctx, sess, scoped, false)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, session, sess, seq, scoped)
}

// Retry reloads a failed session with its previous filter.
func (s *ViewService) Retry(ctx context.Context, session *models.Session, id string) (*dto.ViewResponse, error) {
	sess, err := s.lookup(ctx, session, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	filter := sess.state.Filter
	sess.mu.Unlock()

	seq, err := s.begin(ctx, sess, filter, true)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, session, sess, seq, filter)
}

// Delete closes a session.
func (s *ViewService) Delete(ctx context.Context, session *models.Session, id string) error {
	if _, err := s.lookup(ctx, session, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, id)
	count := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SetViewSessions(count)
	if err := s.store.Delete(ctx, id); err != nil {
		s.logger.Warn("failed to delete view state", zap.String("view_id", id), zap.Error(err))
	}
	return nil
}

// Entries returns one page of the filtered, highlighted entries. Data that
// already arrived is served while the session is still loading or failed.
func (s *ViewService) Entries(ctx context.Context, session *models.Session, id string, q dto.ViewPageQuery) (*dto.EntriesPage, *models.Pagination, error) {
	sess, err := s.lookup(ctx, session, id)
	if err != nil {
		return nil, nil, err
	}
	sess.mu.Lock()
	query := timetable.NormalizeQuery(q.Query)
	filtered := s.derive(sess, query)
	reset := turnPage(&sess.entryPages, pageIdentity(sess, query), q.Page)
	page := timetable.Paginate(filtered, sess.entryPages.Current, s.cfg.PageSize)

	items := make([]models.HighlightedEntry, 0, len(page.Items))
	for _, entry := range page.Items {
		items = append(items, timetable.HighlightEntry(entry, query))
	}
	changed := s.remember(sess, query, page.Page)
	state := cloneState(sess.state)
	sess.mu.Unlock()

	if changed {
		s.persist(ctx, &state)
	}
	return &dto.EntriesPage{
		Items:     items,
		Query:     query,
		PageReset: reset,
		Readiness: state.Readiness,
	}, pagination(page.Page, page.PageSize, page.TotalCount, page.TotalPages), nil
}

// Grid returns one page of grid rows built from the filtered entries.
func (s *ViewService) Grid(ctx context.Context, session *models.Session, id string, q dto.ViewPageQuery) (*dto.GridPage, *models.Pagination, error) {
	sess, err := s.lookup(ctx, session, id)
	if err != nil {
		return nil, nil, err
	}
	sess.mu.Lock()
	query := timetable.NormalizeQuery(q.Query)
	filtered := s.derive(sess, query)
	grid := sess.grid.Get(filterKey{version: sess.version, query: query}, func() models.Grid {
		return timetable.BuildGrid(filtered)
	})
	reset := turnPage(&sess.gridPages, pageIdentity(sess, query), q.Page)
	page := timetable.Paginate(grid.Rows, sess.gridPages.Current, s.cfg.PageSize)
	readiness := cloneState(sess.state).Readiness
	sess.mu.Unlock()

	return &dto.GridPage{
		Rows:      page.Items,
		Labels:    grid.Labels,
		Hidden:    timetable.HiddenCount(grid),
		Query:     query,
		PageReset: reset,
		Readiness: readiness,
	}, pagination(page.Page, page.PageSize, page.TotalCount, page.TotalPages), nil
}

// Conflicts detects classroom and teacher collisions in the session's
// snapshot.
func (s *ViewService) Conflicts(ctx context.Context, session *models.Session, id string) (models.ConflictReport, error) {
	sess, err := s.lookup(ctx, session, id)
	if err != nil {
		return models.ConflictReport{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.conflicts.Get(sess.version, func() models.ConflictReport {
		detector := timetable.NewConflictDetector(timetable.IndexTables(sess.sources))
		return detector.Report(sess.sources.Entries, true)
	}), nil
}

// begin moves the session to Loading and issues a new sequence token.
func (s *ViewService) begin(ctx context.Context, sess *viewSession, filter models.ScheduleFilter, retry bool) (uint64, error) {
	sess.mu.Lock()
	from := sess.state.Status
	if retry && from != models.ViewError {
		sess.mu.Unlock()
		return 0, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot retry a view in state %s", from))
	}
	if !canTransition(from, models.ViewLoading) {
		sess.mu.Unlock()
		return 0, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot refresh a view in state %s", from))
	}
	sess.state.Seq++
	seq := sess.state.Seq
	sess.state.Status = models.ViewLoading
	sess.state.Filter = filter
	sess.state.Error = ""
	sess.state.Page = 1
	sess.state.Readiness = newReadiness(viewKinds)
	sess.state.UpdatedAt = s.now().UTC()
	sess.sources = timetable.Sources{}
	sess.version++
	sess.lastUsed = s.now()
	state := cloneState(sess.state)
	sess.mu.Unlock()

	s.logger.Debug("view loading", zap.String("view_id", state.ID), zap.String("from", string(from)), zap.Uint64("seq", seq))
	s.persist(ctx, &state)
	return seq, nil
}

// load fetches the snapshot for seq. Collections are applied as they arrive
// as long as seq is still the latest token.
func (s *ViewService) load(ctx context.Context, session *models.Session, sess *viewSession, seq uint64, filter models.ScheduleFilter) (*dto.ViewResponse, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)
	defer cancel()

	_, readiness, fetchErr := s.fetcher.fetch(fetchCtx, session, filter, viewKinds, func(kind string, apply func(*timetable.Sources)) {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if sess.state.Seq != seq {
			return
		}
		apply(&sess.sources)
		sess.version++
		sess.state.Readiness.Loaded[kind] = true
		sess.state.Readiness = finishReadiness(sess.state.Readiness, sess.sources)
	})

	sess.mu.Lock()
	if sess.state.Seq != seq {
		latest := sess.state.Seq
		sess.mu.Unlock()
		s.metrics.IncStaleRefresh()
		s.logger.Info("discarded superseded refresh", zap.Uint64("seq", seq), zap.Uint64("latest", latest))
		return nil, appErrors.ErrSuperseded
	}
	sess.state.Readiness = readiness
	if fetchErr != nil {
		sess.state.Status = models.ViewError
		sess.state.Error = appErrors.FromError(fetchErr).Message
	} else {
		sess.state.Status = models.ViewReady
	}
	sess.state.UpdatedAt = s.now().UTC()
	state := cloneState(sess.state)
	sess.mu.Unlock()

	fields := []zap.Field{
		zap.String("view_id", state.ID),
		zap.Uint64("seq", seq),
		zap.String("status", string(state.Status)),
		zap.Bool("partial", state.Readiness.Partial),
		zap.Bool("empty", state.Readiness.Empty),
	}
	if fetchErr != nil {
		s.logger.Warn("view refresh failed", append(fields, zap.Error(fetchErr))...)
	} else {
		s.logger.Info("view refreshed", fields...)
	}
	s.persist(ctx, &state)
	return viewResponse(state), nil
}

// derive resolves and filters the snapshot. Caller holds sess.mu.
func (s *ViewService) derive(sess *viewSession, query string) []models.ResolvedScheduleEntry {
	sess.lastUsed = s.now()
	resolved := sess.resolved.Get(sess.version, func() []models.ResolvedScheduleEntry {
		resolver := timetable.NewResolver(timetable.IndexTables(sess.sources))
		return resolver.ResolveAll(sess.sources.Entries)
	})
	return sess.filtered.Get(filterKey{version: sess.version, query: query}, func() []models.ResolvedScheduleEntry {
		ready := sess.state.Status == models.ViewReady
		if ready && canTransition(models.ViewReady, models.ViewFiltering) {
			sess.state.Status = models.ViewFiltering
		}
		out := timetable.Filter(resolved, query)
		if ready && canTransition(sess.state.Status, models.ViewReady) {
			sess.state.Status = models.ViewReady
		}
		return out
	})
}

// remember records the query and page on the state. Caller holds sess.mu.
func (s *ViewService) remember(sess *viewSession, query string, page int) bool {
	if sess.state.Query == query && sess.state.Page == page {
		return false
	}
	sess.state.Query = query
	sess.state.Page = page
	sess.state.UpdatedAt = s.now().UTC()
	return true
}

// pageIdentity names the filtered set a page tracker follows. It changes when
// a collection lands mid-load, not only when a refresh starts.
func pageIdentity(sess *viewSession, query string) string {
	return fmt.Sprintf("%d|%s", sess.version, query)
}

// turnPage syncs the tracker with the set identity and applies the requested
// page. A request for a page other than 1 against a changed set is dropped
// and reported.
func turnPage(tracker *timetable.PageTracker, identity string, requested int) bool {
	if tracker.Sync(identity) {
		return requested > 1
	}
	tracker.Set(requested)
	return false
}

func (s *ViewService) lookup(ctx context.Context, session *models.Session, id string) (*viewSession, error) {
	if session == nil {
		return nil, appErrors.ErrUnauthorized
	}
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()

	if !ok {
		stored, err := s.store.Get(ctx, id)
		if err != nil {
			var appErr *appErrors.Error
			if errors.As(err, &appErr) && appErr.Code == appErrors.ErrNotFound.Code {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "view not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load view")
		}
		sess = s.rehydrate(ctx, stored)
	}

	sess.mu.Lock()
	owner := sess.state.OwnerID
	sess.mu.Unlock()
	if session.Role != models.RoleAdmin && owner != session.UserID {
		return nil, appErrors.ErrForbidden
	}
	return sess, nil
}

// rehydrate restores a session whose snapshot lives elsewhere. Only failed
// and idle sessions keep their status; the rest must reload.
func (s *ViewService) rehydrate(ctx context.Context, stored *models.ViewState) *viewSession {
	state := cloneState(*stored)
	if state.Status != models.ViewError {
		state.Status = models.ViewIdle
		state.Readiness = newReadiness(viewKinds)
	}
	sess := &viewSession{state: state, lastUsed: s.now()}

	s.mu.Lock()
	if existing, ok := s.sessions[state.ID]; ok {
		s.mu.Unlock()
		return existing
	}
	s.evictLocked(ctx)
	s.sessions[state.ID] = sess
	count := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SetViewSessions(count)
	return sess
}

// evictLocked drops the least recently used local snapshots above the
// limit. Their state stays in the store. Caller holds s.mu.
func (s *ViewService) evictLocked(_ context.Context) {
	if len(s.sessions) < s.cfg.MaxSessions {
		return
	}
	type usage struct {
		id   string
		used time.Time
	}
	usages := make([]usage, 0, len(s.sessions))
	for id, sess := range s.sessions {
		sess.mu.Lock()
		usages = append(usages, usage{id: id, used: sess.lastUsed})
		sess.mu.Unlock()
	}
	sort.Slice(usages, func(i, j int) bool { return usages[i].used.Before(usages[j].used) })
	for _, u := range usages[:len(s.sessions)-s.cfg.MaxSessions+1] {
		delete(s.sessions, u.id)
		s.logger.Debug("evicted view snapshot", zap.String("view_id", u.id))
	}
}

func (s *ViewService) persist(ctx context.Context, state *models.ViewState) {
	if err := s.store.Save(ctx, state); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			s.logger.Debug("skipped stale view state", zap.String("view_id", state.ID), zap.Uint64("seq", state.Seq))
			return
		}
		s.logger.Warn("failed to persist view state", zap.String("view_id", state.ID), zap.Error(err))
	}
}

func viewResponse(state models.ViewState) *dto.ViewResponse {
	return &dto.ViewResponse{
		ID:        state.ID,
		Status:    state.Status,
		Filter:    state.Filter,
		Seq:       state.Seq,
		Error:     state.Error,
		Readiness: state.Readiness,
	}
}

func pagination(page, size, total, pages int) *models.Pagination {
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total, TotalPages: pages}
}
