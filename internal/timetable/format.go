package timetable

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/noah-isme/sma-timetable/internal/models"
)

var kindTitles = map[string]string{
	models.KindGroup:        "Group",
	models.KindTeacher:      "Teacher",
	models.KindDiscipline:   "Discipline",
	models.KindClassroom:    "Classroom",
	models.KindTimeSlot:     "Time slot",
	models.KindTeachingLoad: "Teaching load",
}

// Placeholder renders the marker shown for an id missing from its table.
func Placeholder(kind string, id models.ID) string {
	title, ok := kindTitles[kind]
	if !ok {
		title = "Entity"
	}
	return fmt.Sprintf("%s (ID: %s)", title, id)
}

// TeacherShortName formats "Last F.M.", dropping the middle initial when absent.
func TeacherShortName(t models.Teacher) string {
	var b strings.Builder
	b.WriteString(t.LastName)
	if initial := firstRune(t.FirstName); initial != "" {
		b.WriteString(" ")
		b.WriteString(initial)
		b.WriteString(".")
		if middle := firstRune(t.MiddleName); middle != "" {
			b.WriteString(middle)
			b.WriteString(".")
		}
	}
	return b.String()
}

// GroupDisplayName renders "Name (подгруппа N)" for subgroups.
func GroupDisplayName(g models.Group) string {
	if g.Subgroup == nil {
		return g.Name
	}
	return fmt.Sprintf("%s (подгруппа %d)", g.Name, *g.Subgroup)
}

func firstRune(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(s)
	return string(r)
}
