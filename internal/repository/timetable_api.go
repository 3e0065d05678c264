package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// UpstreamError carries a non-2xx reply from the timetable backend.
type UpstreamError struct {
	Path   string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: http %d: %s", e.Path, e.Status, e.Body)
}

// TimetableAPI talks to the timetable REST backend. Every call forwards the
// caller's credentials from the explicit session.
type TimetableAPI struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewTimetableAPI constructs the client. A nil httpClient gets a client with
// the given timeout.
func NewTimetableAPI(baseURL string, httpClient *http.Client, timeout time.Duration, logger *zap.Logger) *TimetableAPI {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableAPI{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// ScheduleEntries lists schedule entries inside the filter window.
func (c *TimetableAPI) ScheduleEntries(ctx context.Context, session *models.Session, filter models.ScheduleFilter) ([]models.ScheduleEntry, error) {
	query := url.Values{}
	if filter.StartDate != "" {
		query.Set("start_date", filter.StartDate)
	}
	if filter.EndDate != "" {
		query.Set("end_date", filter.EndDate)
	}
	if filter.GroupID != "" {
		query.Set("group_id", filter.GroupID.String())
	}
	if filter.TeacherID != "" {
		query.Set("teacher_id", filter.TeacherID.String())
	}
	return fetchList[models.ScheduleEntry](ctx, c, session, "/schedules/", query)
}

// Groups lists student groups.
func (c *TimetableAPI) Groups(ctx context.Context, session *models.Session) ([]models.Group, error) {
	return fetchList[models.Group](ctx, c, session, "/groups/", nil)
}

// Teachers lists teachers.
func (c *TimetableAPI) Teachers(ctx context.Context, session *models.Session) ([]models.Teacher, error) {
	return fetchList[models.Teacher](ctx, c, session, "/teachers/", nil)
}

// Disciplines lists disciplines.
func (c *TimetableAPI) Disciplines(ctx context.Context, session *models.Session) ([]models.Discipline, error) {
	return fetchList[models.Discipline](ctx, c, session, "/disciplines/", nil)
}

// Classrooms lists classrooms.
func (c *TimetableAPI) Classrooms(ctx context.Context, session *models.Session) ([]models.Classroom, error) {
	return fetchList[models.Classroom](ctx, c, session, "/classrooms/", nil)
}

// TimeSlots lists weekly time slots.
func (c *TimetableAPI) TimeSlots(ctx context.Context, session *models.Session) ([]models.TimeSlot, error) {
	return fetchList[models.TimeSlot](ctx, c, session, "/time-slots/", nil)
}

// TeachingLoads lists teaching loads.
func (c *TimetableAPI) TeachingLoads(ctx context.Context, session *models.Session) ([]models.TeachingLoad, error) {
	return fetchList[models.TeachingLoad](ctx, c, session, "/teaching-loads/", nil)
}

// GenerateSchedule asks the backend to generate entries for the request.
func (c *TimetableAPI) GenerateSchedule(ctx context.Context, session *models.Session, req models.GenerationRequest) (*models.GenerationResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal generation request: %w", err)
	}
	body, err := c.do(ctx, session, http.MethodPost, "/schedules/generate/", nil, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	var result models.GenerationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode generation result: %w", err)
	}
	return &result, nil
}

// Conflicts returns the entries the backend flags as colliding.
func (c *TimetableAPI) Conflicts(ctx context.Context, session *models.Session) ([]models.RemoteConflict, error) {
	body, err := c.do(ctx, session, http.MethodGet, "/schedules/conflicts/", nil, nil)
	if err != nil {
		return nil, err
	}
	var reply struct {
		Count     int                     `json:"count"`
		Conflicts []models.RemoteConflict `json:"conflicts"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("decode conflicts: %w", err)
	}
	return reply.Conflicts, nil
}

// ScheduleReport downloads a rendered schedule report.
func (c *TimetableAPI) ScheduleReport(ctx context.Context, session *models.Session, format models.ExportFormat, filter models.ScheduleFilter) ([]byte, error) {
	query := url.Values{}
	query.Set("type", string(format))
	if filter.StartDate != "" {
		query.Set("start_date", filter.StartDate)
	}
	if filter.EndDate != "" {
		query.Set("end_date", filter.EndDate)
	}
	if filter.GroupID != "" {
		query.Set("group_id", filter.GroupID.String())
	}
	return c.do(ctx, session, http.MethodGet, "/reports/schedule/", query, nil)
}

// Ping checks that the backend answers below 500.
func (c *TimetableAPI) Ping(ctx context.Context) error {
	_, err := c.do(ctx, nil, http.MethodGet, "/time-slots/", nil, nil)
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) && upstreamErr.Status < http.StatusInternalServerError {
		return nil
	}
	return err
}

func fetchList[T any](ctx context.Context, c *TimetableAPI, session *models.Session, path string, query url.Values) ([]T, error) {
	body, err := c.do(ctx, session, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeList[T](body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return items, nil
}

// decodeList accepts a bare JSON array or a paginated {"results": [...]} page.
func decodeList[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var page struct {
			Results []T `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, err
		}
		return page.Results, nil
	}
	var items []T
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *TimetableAPI) do(ctx context.Context, session *models.Session, method, path string, query url.Values, body io.Reader) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer := session.Bearer(); bearer != "" {
		req.Header.Set("Authorization", bearer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	c.logger.Debug("upstream call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode/100 != 2 {
		return nil, &UpstreamError{Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}
	return payload, nil
}
