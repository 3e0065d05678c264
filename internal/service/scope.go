package service

import (
	"time"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

const dateLayout = "2006-01-02"

// scopeFilter pins the filter to what the caller may see and fills in the
// default window. Teachers only see their own classes and students only
// their group; admins may narrow freely.
func scopeFilter(session *models.Session, filter models.ScheduleFilter, now time.Time) (models.ScheduleFilter, error) {
	if session == nil {
		return filter, appErrors.ErrUnauthorized
	}
	switch session.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		if session.TeacherID == "" {
			return filter, appErrors.Clone(appErrors.ErrForbidden, "teacher profile missing")
		}
		filter.TeacherID = session.TeacherID
	case models.RoleStudent:
		if session.GroupID == "" {
			return filter, appErrors.Clone(appErrors.ErrForbidden, "student group missing")
		}
		filter.GroupID = session.GroupID
		filter.TeacherID = ""
	default:
		return filter, appErrors.ErrForbidden
	}

	if filter.StartDate == "" || filter.EndDate == "" {
		monday, sunday := currentWeek(now)
		if filter.StartDate == "" {
			filter.StartDate = monday.Format(dateLayout)
		}
		if filter.EndDate == "" {
			filter.EndDate = sunday.Format(dateLayout)
		}
	}
	start, err := time.Parse(dateLayout, filter.StartDate)
	if err != nil {
		return filter, appErrors.Clone(appErrors.ErrValidation, "startDate must be YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, filter.EndDate)
	if err != nil {
		return filter, appErrors.Clone(appErrors.ErrValidation, "endDate must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return filter, appErrors.Clone(appErrors.ErrValidation, "endDate must not be before startDate")
	}
	return filter, nil
}

// currentWeek returns Monday and Sunday of the week containing now.
func currentWeek(now time.Time) (time.Time, time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 6)
}
