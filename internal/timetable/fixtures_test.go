package timetable

import "github.com/noah-isme/sma-timetable/internal/models"

func intPtr(v int) *int { return &v }

func sampleSources() Sources {
	return Sources{
		Groups: []models.Group{
			{ID: "g1", Name: "ИС-21"},
			{ID: "g2", Name: "ИС-22", Subgroup: intPtr(2)},
		},
		Teachers: []models.Teacher{
			{ID: "t1", LastName: "Иванов", FirstName: "Иван", MiddleName: "Петрович"},
			{ID: "t2", LastName: "Петрова", FirstName: "Анна"},
		},
		Disciplines: []models.Discipline{
			{ID: "d1", Name: "Математика"},
			{ID: "d2", Name: "Физика"},
		},
		Classrooms: []models.Classroom{
			{ID: "c101", Number: "101", Type: models.ClassroomLecture},
			{ID: "c202", Number: "202", Type: models.ClassroomLab},
		},
		TimeSlots: []models.TimeSlot{
			{ID: "s1", DayOfWeek: 1, StartTime: "08:30:00", EndTime: "10:00:00"},
			{ID: "s2", DayOfWeek: 1, StartTime: "10:10:00", EndTime: "11:40:00"},
			{ID: "s3", DayOfWeek: 3, StartTime: "08:30:00", EndTime: "10:00:00"},
			{ID: "s7", DayOfWeek: 7, StartTime: "09:00:00", EndTime: "10:30:00"},
		},
		TeachingLoads: []models.TeachingLoad{
			{ID: "l1", Discipline: models.RefTo[models.Discipline]("d1"), Group: models.RefTo[models.Group]("g1"), Teacher: models.RefTo[models.Teacher]("t1")},
			{ID: "l2", Discipline: models.RefTo[models.Discipline]("d2"), Group: models.RefTo[models.Group]("g2"), Teacher: models.RefTo[models.Teacher]("t2")},
		},
	}
}

func entry(id models.ID, load, slot, room models.ID, date string) models.ScheduleEntry {
	return models.ScheduleEntry{
		ID:           id,
		Date:         date,
		WeekType:     models.WeekEven,
		TeachingLoad: models.RefTo[models.TeachingLoad](load),
		TimeSlot:     models.RefTo[models.TimeSlot](slot),
		Classroom:    models.RefTo[models.Classroom](room),
	}
}
