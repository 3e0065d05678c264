package timetable

import (
	"sort"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// ConflictDetector finds entries that collide on the same coordinate. The
// tables are only consulted for ordering keys and, in the teacher dimension,
// to find an entry's teacher; ids are reported as they appear on entries.
type ConflictDetector struct {
	tables Tables
}

// NewConflictDetector builds a detector. Empty tables are allowed.
func NewConflictDetector(tables Tables) *ConflictDetector {
	return &ConflictDetector{tables: tables}
}

// Classrooms reports double-booked (time slot, classroom, week type, date)
// coordinates.
func (d *ConflictDetector) Classrooms(entries []models.ScheduleEntry) []models.ConflictGroup {
	acc := d.NewAccumulator(models.ConflictClassroom)
	acc.Add(entries...)
	return acc.Groups()
}

// Teachers reports teachers booked twice on one (time slot, week type, date).
func (d *ConflictDetector) Teachers(entries []models.ScheduleEntry) []models.ConflictGroup {
	acc := d.NewAccumulator(models.ConflictTeacher)
	acc.Add(entries...)
	return acc.Groups()
}

// Report combines classroom conflicts with, optionally, teacher conflicts.
func (d *ConflictDetector) Report(entries []models.ScheduleEntry, withTeachers bool) models.ConflictReport {
	groups := d.Classrooms(entries)
	if withTeachers {
		groups = append(groups, d.Teachers(entries)...)
	}
	if groups == nil {
		groups = []models.ConflictGroup{}
	}
	return models.ConflictReport{Count: len(groups), Conflicts: groups}
}

// ConflictAccumulator groups entries fed in any number of chunks. The
// result only depends on the concatenated input.
type ConflictAccumulator struct {
	detector  *ConflictDetector
	dimension string
	order     []models.ConflictKey
	members   map[models.ConflictKey][]models.ScheduleEntry
}

// NewAccumulator starts an empty grouping for one dimension.
func (d *ConflictDetector) NewAccumulator(dimension string) *ConflictAccumulator {
	return &ConflictAccumulator{
		detector:  d,
		dimension: dimension,
		members:   make(map[models.ConflictKey][]models.ScheduleEntry),
	}
}

// Add groups a chunk of entries.
func (a *ConflictAccumulator) Add(entries ...models.ScheduleEntry) {
	for _, entry := range entries {
		key, ok := a.detector.key(a.dimension, entry)
		if !ok {
			continue
		}
		if _, seen := a.members[key]; !seen {
			a.order = append(a.order, key)
		}
		a.members[key] = append(a.members[key], entry)
	}
}

// Groups returns colliding coordinates ordered by member count descending,
// then slot start time, then classroom number (teacher name for the teacher
// dimension).
func (a *ConflictAccumulator) Groups() []models.ConflictGroup {
	type ranked struct {
		group models.ConflictGroup
		start string
		name  string
	}
	var list []ranked
	for _, key := range a.order {
		members := a.members[key]
		if len(members) < 2 {
			continue
		}
		entries := make([]models.ScheduleEntry, len(members))
		copy(entries, members)
		list = append(list, ranked{
			group: models.ConflictGroup{Dimension: a.dimension, Key: key, Entries: entries, Count: len(entries)},
			start: a.detector.startTime(entries[0]),
			name:  a.detector.sortName(a.dimension, entries[0]),
		})
	}

	sort.SliceStable(list, func(i, j int) bool {
		l, r := list[i], list[j]
		if l.group.Count != r.group.Count {
			return l.group.Count > r.group.Count
		}
		if l.start != r.start {
			return l.start < r.start
		}
		if l.name != r.name {
			return l.name < r.name
		}
		return keyLess(l.group.Key, r.group.Key)
	})

	out := make([]models.ConflictGroup, 0, len(list))
	for _, item := range list {
		out = append(out, item.group)
	}
	return out
}

func (d *ConflictDetector) key(dimension string, entry models.ScheduleEntry) (models.ConflictKey, bool) {
	key := models.ConflictKey{
		TimeSlotID: refID(entry.TimeSlot),
		WeekType:   entry.WeekType,
		Date:       entry.Date,
	}
	switch dimension {
	case models.ConflictTeacher:
		teacher := d.teacherID(entry)
		if teacher == "" {
			return models.ConflictKey{}, false
		}
		key.TeacherID = teacher
	default:
		key.ClassroomID = refID(entry.Classroom)
	}
	return key, true
}

func (d *ConflictDetector) teacherID(entry models.ScheduleEntry) models.ID {
	var load models.TeachingLoad
	switch {
	case entry.TeachingLoad.Resolved():
		load = *entry.TeachingLoad.Record
	default:
		found, ok := d.tables.TeachingLoads[entry.TeachingLoad.ID]
		if !ok {
			return ""
		}
		load = found
	}
	return refID(load.Teacher)
}

func (d *ConflictDetector) startTime(entry models.ScheduleEntry) string {
	if entry.TimeSlot.Resolved() {
		return entry.TimeSlot.Record.StartTime
	}
	if slot, ok := d.tables.TimeSlots[entry.TimeSlot.ID]; ok {
		return slot.StartTime
	}
	return ""
}

func (d *ConflictDetector) sortName(dimension string, entry models.ScheduleEntry) string {
	if dimension == models.ConflictTeacher {
		id := d.teacherID(entry)
		if teacher, ok := d.tables.Teachers[id]; ok {
			return TeacherShortName(teacher)
		}
		return id.String()
	}
	if entry.Classroom.Resolved() {
		return entry.Classroom.Record.Number
	}
	if room, ok := d.tables.Classrooms[entry.Classroom.ID]; ok {
		return room.Number
	}
	return entry.Classroom.ID.String()
}

func refID[T any](ref models.Ref[T]) models.ID {
	if ref.ID != "" || ref.Record == nil {
		return ref.ID
	}
	if identified, ok := any(ref.Record).(interface{ EntityID() models.ID }); ok {
		return identified.EntityID()
	}
	return ""
}

func keyLess(a, b models.ConflictKey) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	if a.WeekType != b.WeekType {
		return a.WeekType < b.WeekType
	}
	if a.TimeSlotID != b.TimeSlotID {
		return a.TimeSlotID < b.TimeSlotID
	}
	if a.ClassroomID != b.ClassroomID {
		return a.ClassroomID < b.ClassroomID
	}
	return a.TeacherID < b.TeacherID
}
