package timetable

import (
	"strings"
	"unicode"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// Highlightable display fields of a resolved entry.
const (
	FieldDate       = "date"
	FieldWeekType   = "week_type"
	FieldClassroom  = "classroom_number"
	FieldGroup      = "group_name"
	FieldDiscipline = "discipline_name"
	FieldTeacher    = "teacher_name"
	FieldTime       = "time_label"
)

// NormalizeQuery trims and lower-cases a free-text query.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func searchFields(entry models.ResolvedScheduleEntry) []string {
	fields := []string{
		entry.Date,
		string(entry.WeekType),
		entry.ClassroomNumber,
		entry.GroupName,
		entry.DisciplineName,
		entry.TeacherName,
	}
	if entry.TimeSlot != nil {
		fields = append(fields, entry.TimeSlot.StartTime, entry.TimeSlot.EndTime)
	}
	return fields
}

// Matches reports whether the query occurs in any searchable field. An empty
// query matches everything.
func Matches(entry models.ResolvedScheduleEntry, query string) bool {
	needle := foldRunes(strings.TrimSpace(query))
	if len(needle) == 0 {
		return true
	}
	for _, field := range searchFields(entry) {
		if indexFold(foldRunes(field), needle, 0) >= 0 {
			return true
		}
	}
	return false
}

// Filter keeps the entries matching the query, preserving order.
func Filter(entries []models.ResolvedScheduleEntry, query string) []models.ResolvedScheduleEntry {
	out := make([]models.ResolvedScheduleEntry, 0, len(entries))
	for _, entry := range entries {
		if Matches(entry, query) {
			out = append(out, entry)
		}
	}
	return out
}

// Highlight splits text into matched and plain segments using
// case-insensitive matching. Non-matching text is returned untouched and an
// empty query yields a single plain segment.
func Highlight(text, query string) []models.Segment {
	needle := foldRunes(strings.TrimSpace(query))
	source := []rune(text)
	if len(needle) == 0 || len(source) == 0 {
		return []models.Segment{{Text: text}}
	}

	folded := foldRunes(text)
	var segments []models.Segment
	plainStart := 0
	for pos := indexFold(folded, needle, 0); pos >= 0; pos = indexFold(folded, needle, plainStart) {
		if pos > plainStart {
			segments = append(segments, models.Segment{Text: string(source[plainStart:pos])})
		}
		end := pos + len(needle)
		segments = append(segments, models.Segment{Text: string(source[pos:end]), Matched: true})
		plainStart = end
	}
	if plainStart < len(source) {
		segments = append(segments, models.Segment{Text: string(source[plainStart:])})
	}
	return segments
}

// HighlightEntry annotates the display fields of an entry.
func HighlightEntry(entry models.ResolvedScheduleEntry, query string) models.HighlightedEntry {
	out := models.HighlightedEntry{Entry: entry}
	if NormalizeQuery(query) == "" {
		return out
	}
	out.Highlights = map[string][]models.Segment{
		FieldDate:       Highlight(entry.Date, query),
		FieldWeekType:   Highlight(string(entry.WeekType), query),
		FieldClassroom:  Highlight(entry.ClassroomNumber, query),
		FieldGroup:      Highlight(entry.GroupName, query),
		FieldDiscipline: Highlight(entry.DisciplineName, query),
		FieldTeacher:    Highlight(entry.TeacherName, query),
		FieldTime:       Highlight(entry.TimeLabel, query),
	}
	return out
}

// foldRunes lower-cases rune by rune so positions line up with the source.
func foldRunes(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		runes[i] = unicode.ToLower(r)
	}
	return runes
}

func indexFold(haystack, needle []rune, from int) int {
	for i := from; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
