package models

// WeekType tags alternating-week occurrences.
type WeekType string

const (
	WeekEven WeekType = "ч"
	WeekOdd  WeekType = "з"
)

// Label returns the human readable week parity.
func (w WeekType) Label() string {
	switch w {
	case WeekEven:
		return "Четная"
	case WeekOdd:
		return "Нечетная"
	default:
		return ""
	}
}

// ClassroomType enumerates room kinds.
type ClassroomType string

const (
	ClassroomLecture  ClassroomType = "lecture"
	ClassroomLab      ClassroomType = "lab"
	ClassroomPractice ClassroomType = "practice"
)

// Label returns the display name of the classroom type.
func (t ClassroomType) Label() string {
	switch t {
	case ClassroomLecture:
		return "Лекционная"
	case ClassroomLab:
		return "Лаборатория"
	case ClassroomPractice:
		return "Практическая"
	default:
		return string(t)
	}
}

// Specialty is a field of study.
type Specialty struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// Course is a year of study.
type Course struct {
	ID     ID  `json:"id"`
	Number int `json:"number"`
}

// Group is a student cohort, optionally split into numbered subgroups.
type Group struct {
	ID        ID             `json:"id"`
	Name      string         `json:"name"`
	Specialty Ref[Specialty] `json:"specialty"`
	Course    Ref[Course]    `json:"course"`
	StudyForm string         `json:"study_form,omitempty"`
	Subgroup  *int           `json:"subgroup,omitempty"`
}

// Teacher is an instructor.
type Teacher struct {
	ID         ID     `json:"id"`
	LastName   string `json:"last_name"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name,omitempty"`
}

// Discipline is a taught subject.
type Discipline struct {
	ID        ID             `json:"id"`
	Name      string         `json:"name"`
	Specialty Ref[Specialty] `json:"specialty"`
}

// Classroom is a bookable room.
type Classroom struct {
	ID       ID            `json:"id"`
	Number   string        `json:"number"`
	Capacity *int          `json:"capacity,omitempty"`
	Type     ClassroomType `json:"type"`
}

// TimeSlot is a weekly period. Times are zero padded "HH:MM:SS".
type TimeSlot struct {
	ID        ID     `json:"id"`
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Label renders the slot as "start-end".
func (s TimeSlot) Label() string {
	return s.StartTime + "-" + s.EndTime
}

// TeachingLoad assigns a discipline for a group to a teacher with hour
// breakdowns. Absent hour fields count as zero.
type TeachingLoad struct {
	ID         ID              `json:"id"`
	Discipline Ref[Discipline] `json:"discipline"`
	Group      Ref[Group]      `json:"group"`
	Teacher    Ref[Teacher]    `json:"teacher"`

	TotalHours             *int `json:"total_hours,omitempty"`
	SelfStudyHours         *int `json:"self_study_hours,omitempty"`
	CurrentYearHours       *int `json:"current_year_hours,omitempty"`
	Semester1Hours         *int `json:"semester1_hours,omitempty"`
	Semester2Hours         *int `json:"semester2_hours,omitempty"`
	HoursToIssue           *int `json:"hours_to_issue,omitempty"`
	CourseDesignHours      *int `json:"course_design_hours,omitempty"`
	Semester1Exams         *int `json:"semester1_exams,omitempty"`
	Semester2Exams         *int `json:"semester2_exams,omitempty"`
	CourseWorkCheckHours   *int `json:"course_work_check_hours,omitempty"`
	ConsultationsHours     *int `json:"consultations_hours,omitempty"`
	DPReviewHours          *int `json:"dp_review_hours,omitempty"`
	DPGuidanceHours        *int `json:"dp_guidance_hours,omitempty"`
	TotalTeachingHours     *int `json:"total_teaching_hours,omitempty"`
	MasterTrainingHours    *int `json:"master_training_hours,omitempty"`
	AdvancedLevelHours     *int `json:"advanced_level_hours,omitempty"`
	NotebookCheck10Percent *int `json:"notebook_check_10_percent,omitempty"`
	NotebookCheck15Percent *int `json:"notebook_check_15_percent,omitempty"`
}

// Hours dereferences an optional hour count.
func Hours(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// ScheduleEntry is one generated class occurrence.
type ScheduleEntry struct {
	ID           ID                `json:"id"`
	Date         string            `json:"date,omitempty"`
	WeekType     WeekType          `json:"week_type,omitempty"`
	TeachingLoad Ref[TeachingLoad] `json:"teaching_load"`
	TimeSlot     Ref[TimeSlot]     `json:"time_slot"`
	Classroom    Ref[Classroom]    `json:"classroom"`
}

// ScheduleFilter narrows a schedule fetch.
type ScheduleFilter struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	GroupID   ID     `json:"groupId,omitempty"`
	TeacherID ID     `json:"teacherId,omitempty"`
}

// GenerationRequest is forwarded to the upstream generator.
type GenerationRequest struct {
	Semester  int    `json:"semester"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	GroupIDs  []ID   `json:"groupIds"`
}

// GenerationResult is the upstream generator reply.
type GenerationResult struct {
	Message   string          `json:"message"`
	Schedules []ScheduleEntry `json:"schedules"`
}

// EntityID implementations let generic code read ids off expanded records.
func (g Group) EntityID() ID        { return g.ID }
func (t Teacher) EntityID() ID      { return t.ID }
func (d Discipline) EntityID() ID   { return d.ID }
func (c Classroom) EntityID() ID    { return c.ID }
func (s TimeSlot) EntityID() ID     { return s.ID }
func (l TeachingLoad) EntityID() ID { return l.ID }

// RemoteConflict is an entry flagged by the upstream conflicts endpoint with
// the dimensions it collides on.
type RemoteConflict struct {
	ScheduleEntry
	ConflictTypes []string `json:"conflict_types"`
}
