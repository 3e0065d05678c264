package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

func intPtr(v int) *int { return &v }

var (
	adminSession   = &models.Session{UserID: "u-admin", Role: models.RoleAdmin, Token: "admin-token"}
	teacherSession = &models.Session{UserID: "u-teacher", Role: models.RoleTeacher, TeacherID: "t1", Token: "teacher-token"}
	studentSession = &models.Session{UserID: "u-student", Role: models.RoleStudent, GroupID: "g2", Token: "student-token"}
)

type fakeSource struct {
	mu      sync.Mutex
	entries []models.ScheduleEntry
	groups  []models.Group
	teacher []models.Teacher
	discs   []models.Discipline
	rooms   []models.Classroom
	slots   []models.TimeSlot
	loads   []models.TeachingLoad
	errs    map[string]error
	gate    func(filter models.ScheduleFilter)
	filters []models.ScheduleFilter
	calls   map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		groups: []models.Group{
			{ID: "g1", Name: "ИС-21"},
			{ID: "g2", Name: "ПИ-22", Subgroup: intPtr(1)},
		},
		teacher: []models.Teacher{
			{ID: "t1", LastName: "Иванов", FirstName: "Иван", MiddleName: "Петрович"},
			{ID: "t2", LastName: "Петрова", FirstName: "Анна"},
		},
		discs: []models.Discipline{
			{ID: "d1", Name: "Математика"},
			{ID: "d2", Name: "Физика"},
		},
		rooms: []models.Classroom{
			{ID: "c1", Number: "101", Type: models.ClassroomLecture},
			{ID: "c2", Number: "202", Type: models.ClassroomLab},
		},
		slots: []models.TimeSlot{
			{ID: "s1", DayOfWeek: 1, StartTime: "08:30:00", EndTime: "10:00:00"},
			{ID: "s2", DayOfWeek: 1, StartTime: "10:10:00", EndTime: "11:40:00"},
			{ID: "s3", DayOfWeek: 2, StartTime: "08:30:00", EndTime: "10:00:00"},
		},
		loads: []models.TeachingLoad{
			{
				ID: "l1", Discipline: models.RefTo[models.Discipline]("d1"), Group: models.RefTo[models.Group]("g1"),
				Teacher: models.RefTo[models.Teacher]("t1"), Semester1Hours: intPtr(10),
			},
			{
				ID: "l2", Discipline: models.RefTo[models.Discipline]("d2"), Group: models.RefTo[models.Group]("g2"),
				Teacher: models.RefTo[models.Teacher]("t2"), Semester1Hours: intPtr(4), Semester2Exams: intPtr(2),
			},
		},
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func scheduled(id models.ID, load, slot, room models.ID, date string) models.ScheduleEntry {
	return models.ScheduleEntry{
		ID:           id,
		Date:         date,
		WeekType:     models.WeekEven,
		TeachingLoad: models.RefTo[models.TeachingLoad](load),
		TimeSlot:     models.RefTo[models.TimeSlot](slot),
		Classroom:    models.RefTo[models.Classroom](room),
	}
}

// manyEntries builds n entries spread over the fixture slots without
// classroom collisions.
func manyEntries(n int) []models.ScheduleEntry {
	out := make([]models.ScheduleEntry, 0, n)
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		load := models.ID("l1")
		if i%2 == 1 {
			load = "l2"
		}
		date := start.AddDate(0, 0, i).Format(dateLayout)
		out = append(out, scheduled(models.ID(fmt.Sprintf("e%02d", i+1)), load, "s1", "c1", date))
	}
	return out
}

func (f *fakeSource) record(kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[kind]++
	return f.errs[kind]
}

func (f *fakeSource) ScheduleEntries(_ context.Context, session *models.Session, filter models.ScheduleFilter) ([]models.ScheduleEntry, error) {
	if session == nil {
		return nil, errors.New("missing session")
	}
	f.mu.Lock()
	f.filters = append(f.filters, filter)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		gate(filter)
	}
	if err := f.record(models.KindSchedule); err != nil {
		return nil, err
	}
	return f.entries, nil
}

func (f *fakeSource) Groups(context.Context, *models.Session) ([]models.Group, error) {
	return f.groups, f.record(models.KindGroup)
}

func (f *fakeSource) Teachers(context.Context, *models.Session) ([]models.Teacher, error) {
	return f.teacher, f.record(models.KindTeacher)
}

func (f *fakeSource) Disciplines(context.Context, *models.Session) ([]models.Discipline, error) {
	return f.discs, f.record(models.KindDiscipline)
}

func (f *fakeSource) Classrooms(context.Context, *models.Session) ([]models.Classroom, error) {
	return f.rooms, f.record(models.KindClassroom)
}

func (f *fakeSource) TimeSlots(context.Context, *models.Session) ([]models.TimeSlot, error) {
	return f.slots, f.record(models.KindTimeSlot)
}

func (f *fakeSource) TeachingLoads(context.Context, *models.Session) ([]models.TeachingLoad, error) {
	return f.loads, f.record(models.KindTeachingLoad)
}

func (f *fakeSource) lastFilter() models.ScheduleFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.filters) == 0 {
		return models.ScheduleFilter{}
	}
	return f.filters[len(f.filters)-1]
}

func (f *fakeSource) callCount(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

// memoryCacheRepo is an in-process CacheRepository storing JSON like the
// Redis repository does.
type memoryCacheRepo struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{values: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.values {
		if strings.HasPrefix(key, prefix) {
			delete(m.values, key)
		}
	}
	return nil
}

func (m *memoryCacheRepo) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}
