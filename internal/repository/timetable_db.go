package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// TimetableDBSource reads the backend's tables directly. It is read-only and
// returns entries with unresolved references, like the REST list endpoints.
type TimetableDBSource struct {
	db *sqlx.DB
}

// NewTimetableDBSource constructs a TimetableDBSource.
func NewTimetableDBSource(db *sqlx.DB) *TimetableDBSource {
	return &TimetableDBSource{db: db}
}

type scheduleRow struct {
	ID             string         `db:"id"`
	Date           sql.NullString `db:"date"`
	WeekType       sql.NullString `db:"week_type"`
	TeachingLoadID sql.NullString `db:"teaching_load_id"`
	TimeSlotID     sql.NullString `db:"time_slot_id"`
	ClassroomID    sql.NullString `db:"classroom_id"`
}

const scheduleColumns = `s.id::text AS id, to_char(s.date, 'YYYY-MM-DD') AS date, s.week_type,
	s.teaching_load_id::text AS teaching_load_id, s.time_slot_id::text AS time_slot_id, s.classroom_id::text AS classroom_id`

// ScheduleEntries lists entries in the filter window ordered by date and
// slot start time. The session is not consulted; scoping is applied by the
// caller through the filter.
func (r *TimetableDBSource) ScheduleEntries(ctx context.Context, _ *models.Session, filter models.ScheduleFilter) ([]models.ScheduleEntry, error) {
	var conditions []string
	var args []interface{}

	if filter.StartDate != "" {
		args = append(args, filter.StartDate)
		conditions = append(conditions, fmt.Sprintf("s.date >= $%d", len(args)))
	}
	if filter.EndDate != "" {
		args = append(args, filter.EndDate)
		conditions = append(conditions, fmt.Sprintf("s.date <= $%d", len(args)))
	}
	if filter.GroupID != "" {
		args = append(args, filter.GroupID.String())
		conditions = append(conditions, fmt.Sprintf("tl.group_id::text = $%d", len(args)))
	}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID.String())
		conditions = append(conditions, fmt.Sprintf("tl.teacher_id::text = $%d", len(args)))
	}

	query := "SELECT " + scheduleColumns + " FROM schedule s " +
		"LEFT JOIN teaching_loads tl ON tl.id = s.teaching_load_id " +
		"LEFT JOIN time_slots ts ON ts.id = s.time_slot_id"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY s.date, ts.start_time, s.id"

	var rows []scheduleRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}

	entries := make([]models.ScheduleEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, models.ScheduleEntry{
			ID:           models.ID(row.ID),
			Date:         row.Date.String,
			WeekType:     models.WeekType(row.WeekType.String),
			TeachingLoad: models.RefTo[models.TeachingLoad](models.ID(row.TeachingLoadID.String)),
			TimeSlot:     models.RefTo[models.TimeSlot](models.ID(row.TimeSlotID.String)),
			Classroom:    models.RefTo[models.Classroom](models.ID(row.ClassroomID.String)),
		})
	}
	return entries, nil
}

type groupRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	SpecialtyID sql.NullString `db:"specialty_id"`
	CourseID    sql.NullString `db:"course_id"`
	StudyForm   sql.NullString `db:"study_form"`
	Subgroup    sql.NullInt64  `db:"subgroup"`
}

// Groups lists student groups.
func (r *TimetableDBSource) Groups(ctx context.Context, _ *models.Session) ([]models.Group, error) {
	const query = `SELECT id::text AS id, name, specialty_id::text AS specialty_id, course_id::text AS course_id, study_form, subgroup
		FROM student_groups ORDER BY name, subgroup NULLS FIRST`
	var rows []groupRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	groups := make([]models.Group, 0, len(rows))
	for _, row := range rows {
		group := models.Group{
			ID:        models.ID(row.ID),
			Name:      row.Name,
			Specialty: models.RefTo[models.Specialty](models.ID(row.SpecialtyID.String)),
			Course:    models.RefTo[models.Course](models.ID(row.CourseID.String)),
			StudyForm: row.StudyForm.String,
		}
		if row.Subgroup.Valid {
			n := int(row.Subgroup.Int64)
			group.Subgroup = &n
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// Teachers lists teachers.
func (r *TimetableDBSource) Teachers(ctx context.Context, _ *models.Session) ([]models.Teacher, error) {
	const query = `SELECT id::text AS id, last_name, first_name, COALESCE(middle_name, '') AS middle_name
		FROM teachers ORDER BY last_name, first_name`
	var rows []teacherRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	teachers := make([]models.Teacher, 0, len(rows))
	for _, row := range rows {
		teachers = append(teachers, models.Teacher{
			ID:         models.ID(row.ID),
			LastName:   row.LastName,
			FirstName:  row.FirstName,
			MiddleName: row.MiddleName,
		})
	}
	return teachers, nil
}

type teacherRow struct {
	ID         string `db:"id"`
	LastName   string `db:"last_name"`
	FirstName  string `db:"first_name"`
	MiddleName string `db:"middle_name"`
}

type disciplineRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	SpecialtyID sql.NullString `db:"specialty_id"`
}

// Disciplines lists disciplines.
func (r *TimetableDBSource) Disciplines(ctx context.Context, _ *models.Session) ([]models.Discipline, error) {
	const query = `SELECT id::text AS id, name, specialty_id::text AS specialty_id FROM disciplines ORDER BY name`
	var rows []disciplineRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list disciplines: %w", err)
	}
	out := make([]models.Discipline, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.Discipline{
			ID:        models.ID(row.ID),
			Name:      row.Name,
			Specialty: models.RefTo[models.Specialty](models.ID(row.SpecialtyID.String)),
		})
	}
	return out, nil
}

type classroomRow struct {
	ID       string        `db:"id"`
	Number   string        `db:"number"`
	Capacity sql.NullInt64 `db:"capacity"`
	Type     string        `db:"type"`
}

// Classrooms lists classrooms.
func (r *TimetableDBSource) Classrooms(ctx context.Context, _ *models.Session) ([]models.Classroom, error) {
	const query = `SELECT id::text AS id, number, capacity, type FROM classrooms ORDER BY number`
	var rows []classroomRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	out := make([]models.Classroom, 0, len(rows))
	for _, row := range rows {
		room := models.Classroom{ID: models.ID(row.ID), Number: row.Number, Type: models.ClassroomType(row.Type)}
		if row.Capacity.Valid {
			capacity := int(row.Capacity.Int64)
			room.Capacity = &capacity
		}
		out = append(out, room)
	}
	return out, nil
}

// TimeSlots lists weekly time slots with zero padded times.
func (r *TimetableDBSource) TimeSlots(ctx context.Context, _ *models.Session) ([]models.TimeSlot, error) {
	const query = `SELECT id::text AS id, day_of_week, to_char(start_time, 'HH24:MI:SS') AS start_time, to_char(end_time, 'HH24:MI:SS') AS end_time
		FROM time_slots ORDER BY day_of_week, start_time`
	var slots []timeSlotRow
	if err := r.db.SelectContext(ctx, &slots, query); err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	out := make([]models.TimeSlot, 0, len(slots))
	for _, row := range slots {
		out = append(out, models.TimeSlot{ID: models.ID(row.ID), DayOfWeek: row.DayOfWeek, StartTime: row.StartTime, EndTime: row.EndTime})
	}
	return out, nil
}

type timeSlotRow struct {
	ID        string `db:"id"`
	DayOfWeek int    `db:"day_of_week"`
	StartTime string `db:"start_time"`
	EndTime   string `db:"end_time"`
}

type teachingLoadRow struct {
	ID           string         `db:"id"`
	DisciplineID sql.NullString `db:"discipline_id"`
	GroupID      sql.NullString `db:"group_id"`
	TeacherID    sql.NullString `db:"teacher_id"`

	TotalHours             sql.NullInt64 `db:"total_hours"`
	SelfStudyHours         sql.NullInt64 `db:"self_study_hours"`
	CurrentYearHours       sql.NullInt64 `db:"current_year_hours"`
	Semester1Hours         sql.NullInt64 `db:"semester1_hours"`
	Semester2Hours         sql.NullInt64 `db:"semester2_hours"`
	HoursToIssue           sql.NullInt64 `db:"hours_to_issue"`
	CourseDesignHours      sql.NullInt64 `db:"course_design_hours"`
	Semester1Exams         sql.NullInt64 `db:"semester1_exams"`
	Semester2Exams         sql.NullInt64 `db:"semester2_exams"`
	CourseWorkCheckHours   sql.NullInt64 `db:"course_work_check_hours"`
	ConsultationsHours     sql.NullInt64 `db:"consultations_hours"`
	DPReviewHours          sql.NullInt64 `db:"dp_review_hours"`
	DPGuidanceHours        sql.NullInt64 `db:"dp_guidance_hours"`
	TotalTeachingHours     sql.NullInt64 `db:"total_teaching_hours"`
	MasterTrainingHours    sql.NullInt64 `db:"master_training_hours"`
	AdvancedLevelHours     sql.NullInt64 `db:"advanced_level_hours"`
	NotebookCheck10Percent sql.NullInt64 `db:"notebook_check_10_percent"`
	NotebookCheck15Percent sql.NullInt64 `db:"notebook_check_15_percent"`
}

const teachingLoadColumns = `id::text AS id, discipline_id::text AS discipline_id, group_id::text AS group_id, teacher_id::text AS teacher_id,
	total_hours, self_study_hours, current_year_hours, semester1_hours, semester2_hours, hours_to_issue,
	course_design_hours, semester1_exams, semester2_exams, course_work_check_hours, consultations_hours,
	dp_review_hours, dp_guidance_hours, total_teaching_hours, master_training_hours, advanced_level_hours,
	notebook_check_10_percent, notebook_check_15_percent`

// TeachingLoads lists teaching loads in id order.
func (r *TimetableDBSource) TeachingLoads(ctx context.Context, _ *models.Session) ([]models.TeachingLoad, error) {
	query := "SELECT " + teachingLoadColumns + " FROM teaching_loads ORDER BY id"
	var rows []teachingLoadRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list teaching loads: %w", err)
	}
	out := make([]models.TeachingLoad, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// Ping verifies the connection.
func (r *TimetableDBSource) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (row teachingLoadRow) toModel() models.TeachingLoad {
	return models.TeachingLoad{
		ID:                     models.ID(row.ID),
		Discipline:             models.RefTo[models.Discipline](models.ID(row.DisciplineID.String)),
		Group:                  models.RefTo[models.Group](models.ID(row.GroupID.String)),
		Teacher:                models.RefTo[models.Teacher](models.ID(row.TeacherID.String)),
		TotalHours:             nullHours(row.TotalHours),
		SelfStudyHours:         nullHours(row.SelfStudyHours),
		CurrentYearHours:       nullHours(row.CurrentYearHours),
		Semester1Hours:         nullHours(row.Semester1Hours),
		Semester2Hours:         nullHours(row.Semester2Hours),
		HoursToIssue:           nullHours(row.HoursToIssue),
		CourseDesignHours:      nullHours(row.CourseDesignHours),
		Semester1Exams:         nullHours(row.Semester1Exams),
		Semester2Exams:         nullHours(row.Semester2Exams),
		CourseWorkCheckHours:   nullHours(row.CourseWorkCheckHours),
		ConsultationsHours:     nullHours(row.ConsultationsHours),
		DPReviewHours:          nullHours(row.DPReviewHours),
		DPGuidanceHours:        nullHours(row.DPGuidanceHours),
		TotalTeachingHours:     nullHours(row.TotalTeachingHours),
		MasterTrainingHours:    nullHours(row.MasterTrainingHours),
		AdvancedLevelHours:     nullHours(row.AdvancedLevelHours),
		NotebookCheck10Percent: nullHours(row.NotebookCheck10Percent),
		NotebookCheck15Percent: nullHours(row.NotebookCheck15Percent),
	}
}

func nullHours(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
