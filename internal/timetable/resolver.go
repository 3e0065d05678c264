package timetable

import "github.com/noah-isme/sma-timetable/internal/models"

// Sources is one snapshot of everything fetched for a view.
type Sources struct {
	Entries       []models.ScheduleEntry
	Groups        []models.Group
	Teachers      []models.Teacher
	Disciplines   []models.Discipline
	Classrooms    []models.Classroom
	TimeSlots     []models.TimeSlot
	TeachingLoads []models.TeachingLoad
}

// Tables are the reference lists keyed by entity id. Any of them may be
// empty while loading is still in progress.
type Tables struct {
	Groups        map[models.ID]models.Group
	Teachers      map[models.ID]models.Teacher
	Disciplines   map[models.ID]models.Discipline
	Classrooms    map[models.ID]models.Classroom
	TimeSlots     map[models.ID]models.TimeSlot
	TeachingLoads map[models.ID]models.TeachingLoad
}

// Index builds an id keyed lookup. Later duplicates overwrite earlier ones.
func Index[T any](items []T, id func(T) models.ID) map[models.ID]T {
	out := make(map[models.ID]T, len(items))
	for _, item := range items {
		out[id(item)] = item
	}
	return out
}

// IndexTables keys every reference list of the snapshot.
func IndexTables(src Sources) Tables {
	return Tables{
		Groups:        Index(src.Groups, func(g models.Group) models.ID { return g.ID }),
		Teachers:      Index(src.Teachers, func(t models.Teacher) models.ID { return t.ID }),
		Disciplines:   Index(src.Disciplines, func(d models.Discipline) models.ID { return d.ID }),
		Classrooms:    Index(src.Classrooms, func(c models.Classroom) models.ID { return c.ID }),
		TimeSlots:     Index(src.TimeSlots, func(s models.TimeSlot) models.ID { return s.ID }),
		TeachingLoads: Index(src.TeachingLoads, func(l models.TeachingLoad) models.ID { return l.ID }),
	}
}

// Resolver expands foreign keys against reference tables. It never fails:
// ids missing from a table resolve to placeholders.
type Resolver struct {
	tables Tables
}

// NewResolver builds a resolver over the given tables.
func NewResolver(tables Tables) *Resolver {
	return &Resolver{tables: tables}
}

func expand[T any](ref models.Ref[T], table map[models.ID]T) models.Ref[T] {
	if ref.Resolved() || ref.ID == "" {
		return ref
	}
	if record, ok := table[ref.ID]; ok {
		return models.RefWith(ref.ID, record)
	}
	return ref
}

// ExpandLoad fills the discipline, group and teacher references it can.
func (r *Resolver) ExpandLoad(load models.TeachingLoad) models.TeachingLoad {
	load.Discipline = expand(load.Discipline, r.tables.Disciplines)
	load.Group = expand(load.Group, r.tables.Groups)
	load.Teacher = expand(load.Teacher, r.tables.Teachers)
	return load
}

// ExpandEntry returns a copy of the entry with every resolvable reference
// expanded, including the references nested in its teaching load.
func (r *Resolver) ExpandEntry(entry models.ScheduleEntry) models.ScheduleEntry {
	load := expand(entry.TeachingLoad, r.tables.TeachingLoads)
	if load.Resolved() {
		load = models.RefWith(load.ID, r.ExpandLoad(*load.Record))
	}
	entry.TeachingLoad = load
	entry.TimeSlot = expand(entry.TimeSlot, r.tables.TimeSlots)
	entry.Classroom = expand(entry.Classroom, r.tables.Classrooms)
	return entry
}

// Teacher resolves a teacher reference without placeholders.
func (r *Resolver) Teacher(ref models.Ref[models.Teacher]) (models.Teacher, bool) {
	ref = expand(ref, r.tables.Teachers)
	if !ref.Resolved() {
		return models.Teacher{}, false
	}
	return *ref.Record, true
}

// Resolve dereferences an entry into display records.
func (r *Resolver) Resolve(entry models.ScheduleEntry) models.ResolvedScheduleEntry {
	entry = r.ExpandEntry(entry)
	out := models.ResolvedScheduleEntry{
		ID:             entry.ID,
		Date:           entry.Date,
		WeekType:       entry.WeekType,
		TeachingLoadID: entry.TeachingLoad.ID,
	}

	switch {
	case entry.TimeSlot.Resolved():
		slot := *entry.TimeSlot.Record
		out.TimeSlot = &slot
		out.TimeLabel = slot.Label()
	case entry.TimeSlot.ID != "":
		out.TimeSlot = &models.TimeSlot{ID: entry.TimeSlot.ID}
		out.TimeLabel = Placeholder(models.KindTimeSlot, entry.TimeSlot.ID)
		out.Gaps = append(out.Gaps, models.KindTimeSlot)
	}

	switch {
	case entry.Classroom.Resolved():
		out.Classroom = *entry.Classroom.Record
	case entry.Classroom.ID != "":
		out.Classroom = models.Classroom{ID: entry.Classroom.ID, Number: Placeholder(models.KindClassroom, entry.Classroom.ID)}
		out.Gaps = append(out.Gaps, models.KindClassroom)
	}
	out.ClassroomNumber = out.Classroom.Number

	if !entry.TeachingLoad.Resolved() {
		marker := Placeholder(models.KindTeachingLoad, entry.TeachingLoad.ID)
		out.Group = models.Group{Name: marker}
		out.Teacher = models.Teacher{LastName: marker}
		out.Discipline = models.Discipline{Name: marker}
		out.GroupName, out.TeacherName, out.DisciplineName = marker, marker, marker
		out.Gaps = append(out.Gaps, models.KindTeachingLoad)
		return out
	}

	load := entry.TeachingLoad.Record
	if load.Group.Resolved() {
		out.Group = *load.Group.Record
		out.GroupName = GroupDisplayName(out.Group)
	} else {
		out.GroupName = Placeholder(models.KindGroup, load.Group.ID)
		out.Group = models.Group{ID: load.Group.ID, Name: out.GroupName}
		out.Gaps = append(out.Gaps, models.KindGroup)
	}
	if load.Teacher.Resolved() {
		out.Teacher = *load.Teacher.Record
		out.TeacherName = TeacherShortName(out.Teacher)
	} else {
		out.TeacherName = Placeholder(models.KindTeacher, load.Teacher.ID)
		out.Teacher = models.Teacher{ID: load.Teacher.ID, LastName: out.TeacherName}
		out.Gaps = append(out.Gaps, models.KindTeacher)
	}
	if load.Discipline.Resolved() {
		out.Discipline = *load.Discipline.Record
		out.DisciplineName = out.Discipline.Name
	} else {
		out.DisciplineName = Placeholder(models.KindDiscipline, load.Discipline.ID)
		out.Discipline = models.Discipline{ID: load.Discipline.ID, Name: out.DisciplineName}
		out.Gaps = append(out.Gaps, models.KindDiscipline)
	}
	return out
}

// ResolveAll resolves entries preserving order.
func (r *Resolver) ResolveAll(entries []models.ScheduleEntry) []models.ResolvedScheduleEntry {
	out := make([]models.ResolvedScheduleEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, r.Resolve(entry))
	}
	return out
}
