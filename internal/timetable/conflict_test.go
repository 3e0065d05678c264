package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
)

func TestConflictDetectorSameRoomSameSlot(t *testing.T) {
	detector := NewConflictDetector(Tables{})
	entries := []models.ScheduleEntry{
		entry("e1", "l1", "A", "101", "2024-03-04"),
		entry("e2", "l2", "A", "101", "2024-03-04"),
	}

	groups := detector.Classrooms(entries)

	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, models.ID("101"), groups[0].Key.ClassroomID)
	assert.Equal(t, models.ID("A"), groups[0].Key.TimeSlotID)
}

func TestConflictDetectorRequiresFullKeyMatch(t *testing.T) {
	detector := NewConflictDetector(Tables{})
	odd := entry("e3", "l1", "A", "101", "2024-03-04")
	odd.WeekType = models.WeekOdd
	entries := []models.ScheduleEntry{
		entry("e1", "l1", "A", "101", "2024-03-04"),
		entry("e2", "l1", "A", "101", "2024-03-05"),
		odd,
		entry("e4", "l1", "B", "101", "2024-03-04"),
	}

	assert.Empty(t, detector.Classrooms(entries))
}

func TestConflictDetectorNullsMatchNulls(t *testing.T) {
	detector := NewConflictDetector(Tables{})
	a := entry("e1", "l1", "A", "101", "")
	b := entry("e2", "l2", "A", "101", "")
	a.WeekType, b.WeekType = "", ""

	groups := detector.Classrooms([]models.ScheduleEntry{a, b})

	require.Len(t, groups, 1)
	assert.Equal(t, "", groups[0].Key.Date)
}

func TestConflictDetectorOrdering(t *testing.T) {
	tables := IndexTables(sampleSources())
	detector := NewConflictDetector(tables)
	entries := []models.ScheduleEntry{
		entry("e1", "l1", "s2", "c101", "2024-03-04"),
		entry("e2", "l1", "s2", "c101", "2024-03-04"),
		entry("e3", "l1", "s1", "c202", "2024-03-04"),
		entry("e4", "l1", "s1", "c202", "2024-03-04"),
		entry("e5", "l1", "s1", "c101", "2024-03-04"),
		entry("e6", "l1", "s1", "c101", "2024-03-04"),
		entry("e7", "l1", "s2", "c202", "2024-03-04"),
		entry("e8", "l1", "s2", "c202", "2024-03-04"),
		entry("e9", "l1", "s2", "c202", "2024-03-04"),
	}

	groups := detector.Classrooms(entries)

	require.Len(t, groups, 4)
	assert.Equal(t, 3, groups[0].Count)
	assert.Equal(t, models.ID("c202"), groups[0].Key.ClassroomID)
	assert.Equal(t, models.ID("s1"), groups[1].Key.TimeSlotID)
	assert.Equal(t, models.ID("c101"), groups[1].Key.ClassroomID)
	assert.Equal(t, models.ID("s1"), groups[2].Key.TimeSlotID)
	assert.Equal(t, models.ID("c202"), groups[2].Key.ClassroomID)
	assert.Equal(t, models.ID("s2"), groups[3].Key.TimeSlotID)
}

func TestConflictDetectorGroupsAreUniqueAndPlural(t *testing.T) {
	detector := NewConflictDetector(Tables{})
	var entries []models.ScheduleEntry
	for i := 0; i < 30; i++ {
		slot := models.ID([]string{"A", "B", "C"}[i%3])
		room := models.ID([]string{"1", "2"}[i%2])
		entries = append(entries, entry(models.IDFromInt(int64(i)), "l1", slot, room, "2024-03-04"))
	}
	entries = append(entries, entry("solo", "l1", "Z", "9", "2024-03-04"))

	groups := detector.Classrooms(entries)

	seen := map[models.ConflictKey]bool{}
	total := 0
	for _, g := range groups {
		assert.GreaterOrEqual(t, g.Count, 2)
		assert.Len(t, g.Entries, g.Count)
		assert.False(t, seen[g.Key])
		seen[g.Key] = true
		total += g.Count
	}
	assert.Equal(t, 30, total)
}

func TestConflictAccumulatorChunkingIsDeterministic(t *testing.T) {
	detector := NewConflictDetector(IndexTables(sampleSources()))
	entries := []models.ScheduleEntry{
		entry("e1", "l1", "s1", "c101", "2024-03-04"),
		entry("e2", "l2", "s1", "c101", "2024-03-04"),
		entry("e3", "l1", "s2", "c202", "2024-03-04"),
		entry("e4", "l2", "s2", "c202", "2024-03-04"),
		entry("e5", "l2", "s2", "c202", "2024-03-04"),
	}
	want := detector.Classrooms(entries)

	acc := detector.NewAccumulator(models.ConflictClassroom)
	for i := 0; i < len(entries); i += 2 {
		end := i + 2
		if end > len(entries) {
			end = len(entries)
		}
		acc.Add(entries[i:end]...)
	}

	assert.Equal(t, want, acc.Groups())
}

func TestConflictDetectorSameIDsBeforeAndAfterResolution(t *testing.T) {
	tables := IndexTables(sampleSources())
	detector := NewConflictDetector(tables)
	resolver := NewResolver(tables)
	raw := []models.ScheduleEntry{
		entry("e1", "l1", "s1", "c101", "2024-03-04"),
		entry("e2", "l2", "s1", "c101", "2024-03-04"),
	}
	expanded := make([]models.ScheduleEntry, len(raw))
	for i, e := range raw {
		expanded[i] = resolver.ExpandEntry(e)
	}

	before := detector.Classrooms(raw)
	after := detector.Classrooms(expanded)

	require.Len(t, before, 1)
	require.Len(t, after, 1)
	assert.Equal(t, before[0].Key, after[0].Key)
}

func TestConflictDetectorTeacherDimension(t *testing.T) {
	detector := NewConflictDetector(IndexTables(sampleSources()))
	entries := []models.ScheduleEntry{
		entry("e1", "l1", "s1", "c101", "2024-03-04"),
		entry("e2", "l1", "s1", "c202", "2024-03-04"),
		entry("e3", "l2", "s1", "c202", "2024-03-05"),
		entry("e4", "l9", "s1", "c202", "2024-03-06"),
	}

	report := detector.Report(entries, true)

	require.Equal(t, 1, report.Count)
	assert.Equal(t, models.ConflictTeacher, report.Conflicts[0].Dimension)
	assert.Equal(t, models.ID("t1"), report.Conflicts[0].Key.TeacherID)
}

func TestConflictReportEmpty(t *testing.T) {
	report := NewConflictDetector(Tables{}).Report(nil, true)
	assert.Equal(t, 0, report.Count)
	assert.NotNil(t, report.Conflicts)
}
