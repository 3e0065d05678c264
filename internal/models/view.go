package models

import "time"

// DaysPerWeek is the number of teaching days rendered in the grid (Mon..Sat).
const DaysPerWeek = 6

// Reference kinds used for placeholders and readiness reporting.
const (
	KindGroup        = "group"
	KindTeacher      = "teacher"
	KindDiscipline   = "discipline"
	KindClassroom    = "classroom"
	KindTimeSlot     = "time_slot"
	KindTeachingLoad = "teaching_load"
	KindSchedule     = "schedule"
)

// ResolvedScheduleEntry is a schedule entry with every reference expanded to
// a display record. Gaps lists the kinds that fell back to placeholders.
type ResolvedScheduleEntry struct {
	ID             ID         `json:"id"`
	Date           string     `json:"date,omitempty"`
	WeekType       WeekType   `json:"week_type,omitempty"`
	TeachingLoadID ID         `json:"teaching_load_id"`
	TimeSlot       *TimeSlot  `json:"time_slot,omitempty"`
	Classroom      Classroom  `json:"classroom"`
	Group          Group      `json:"group"`
	Teacher        Teacher    `json:"teacher"`
	Discipline     Discipline `json:"discipline"`

	GroupName       string   `json:"group_name"`
	TeacherName     string   `json:"teacher_name"`
	DisciplineName  string   `json:"discipline_name"`
	ClassroomNumber string   `json:"classroom_number"`
	TimeLabel       string   `json:"time_label,omitempty"`
	Gaps            []string `json:"gaps,omitempty"`
}

// Conflict dimensions.
const (
	ConflictClassroom = "classroom"
	ConflictTeacher   = "teacher"
)

// ConflictKey is the coordinate on which entries collide. Empty strings stand
// for absent values and match each other.
type ConflictKey struct {
	TimeSlotID  ID       `json:"time_slot"`
	ClassroomID ID       `json:"classroom,omitempty"`
	TeacherID   ID       `json:"teacher,omitempty"`
	WeekType    WeekType `json:"week_type"`
	Date        string   `json:"date"`
}

// ConflictGroup lists entries sharing one coordinate. Count is always >= 2.
type ConflictGroup struct {
	Dimension string          `json:"dimension"`
	Key       ConflictKey     `json:"key"`
	Entries   []ScheduleEntry `json:"entries"`
	Count     int             `json:"count"`
}

// ConflictReport is the shape shared by local detection and the upstream
// conflicts endpoint. Count is the number of groups.
type ConflictReport struct {
	Count     int             `json:"count"`
	Conflicts []ConflictGroup `json:"conflicts"`
}

// WorkloadTotal sums a teacher's hours into fixed categories.
type WorkloadTotal struct {
	Teacher       Teacher `json:"teacher"`
	TeacherName   string  `json:"teacher_name"`
	Semester1     int     `json:"semester1"`
	Semester2     int     `json:"semester2"`
	Exams         int     `json:"exams"`
	Consultations int     `json:"consultations"`
	CourseWorks   int     `json:"courseWorks"`
	DiplomaWorks  int     `json:"diplomaWorks"`
	Total         int     `json:"total"`
}

// CategorySum adds every category except Total.
func (w WorkloadTotal) CategorySum() int {
	return w.Semester1 + w.Semester2 + w.Exams + w.Consultations + w.CourseWorks + w.DiplomaWorks
}

// WorkloadChart describes one tab of the workload chart.
type WorkloadChart struct {
	Key    string            `json:"key"`
	Title  string            `json:"title"`
	Series []string          `json:"series"`
	Labels map[string]string `json:"labels"`
}

// GridRow holds, per day, the entry placed in this time-slot row. Hidden
// counts entries that shared the cell and lost to the first one.
type GridRow struct {
	Label  string                              `json:"label"`
	Cells  [DaysPerWeek]*ResolvedScheduleEntry `json:"cells"`
	Hidden [DaysPerWeek]int                    `json:"hidden"`
}

// Grid is the day x time-slot projection of a schedule.
type Grid struct {
	Days   [DaysPerWeek][]ResolvedScheduleEntry `json:"days"`
	Labels []string                             `json:"labels"`
	Rows   []GridRow                            `json:"rows"`
}

// Segment is a piece of highlighted text.
type Segment struct {
	Text    string `json:"text"`
	Matched bool   `json:"matched"`
}

// HighlightedEntry pairs an entry with highlighted display fields.
type HighlightedEntry struct {
	Entry      ResolvedScheduleEntry `json:"entry"`
	Highlights map[string][]Segment  `json:"highlights,omitempty"`
}

// ViewStatus is a state of a schedule view session.
type ViewStatus string

const (
	ViewIdle      ViewStatus = "idle"
	ViewLoading   ViewStatus = "loading"
	ViewReady     ViewStatus = "ready"
	ViewFiltering ViewStatus = "filtering"
	ViewError     ViewStatus = "error"
)

// Readiness reports which inputs of a view have arrived.
type Readiness struct {
	Loaded  map[string]bool `json:"loaded"`
	Partial bool            `json:"partial"`
	Empty   bool            `json:"empty"`
}

// ViewState is the persisted, data-free part of a view session.
type ViewState struct {
	ID        string         `json:"id"`
	OwnerID   string         `json:"owner_id"`
	Status    ViewStatus     `json:"status"`
	Filter    ScheduleFilter `json:"filter"`
	Query     string         `json:"query"`
	Page      int            `json:"page"`
	Seq       uint64         `json:"seq"`
	Error     string         `json:"error,omitempty"`
	Readiness Readiness      `json:"readiness"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// DashboardSummary counts reference entities and scheduled classes.
type DashboardSummary struct {
	Groups      int  `json:"groups"`
	Teachers    int  `json:"teachers"`
	Disciplines int  `json:"disciplines"`
	Schedules   int  `json:"schedules"`
	Partial     bool `json:"partial"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}
