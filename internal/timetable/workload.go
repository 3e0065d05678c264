package timetable

import (
	"sort"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// TotalMode selects how WorkloadTotal.Total accumulates.
type TotalMode string

const (
	// TotalRunning adds the teacher's cumulative category sum after every
	// processed load, matching the figures the legacy report produced.
	TotalRunning TotalMode = "running"
	// TotalFlat keeps Total equal to the sum of the categories.
	TotalFlat TotalMode = "flat"
)

// WorkloadOptions narrows and tunes an aggregation.
type WorkloadOptions struct {
	TeacherID models.ID
	Mode      TotalMode
}

// WorkloadAggregator sums teaching-load hours per teacher. Loads may be fed
// in chunks; results depend only on the order of the concatenated input.
type WorkloadAggregator struct {
	teachers map[models.ID]models.Teacher
	opts     WorkloadOptions
	order    []models.ID
	totals   map[models.ID]*models.WorkloadTotal
	skipped  int
}

// NewWorkloadAggregator starts an aggregation over the teacher table.
func NewWorkloadAggregator(teachers map[models.ID]models.Teacher, opts WorkloadOptions) *WorkloadAggregator {
	if opts.Mode == "" {
		opts.Mode = TotalRunning
	}
	return &WorkloadAggregator{
		teachers: teachers,
		opts:     opts,
		totals:   make(map[models.ID]*models.WorkloadTotal),
	}
}

// Add accumulates a chunk of loads. Loads whose teacher cannot be resolved
// are skipped.
func (a *WorkloadAggregator) Add(loads ...models.TeachingLoad) {
	for _, load := range loads {
		id := refID(load.Teacher)
		if a.opts.TeacherID != "" && id != a.opts.TeacherID {
			continue
		}
		teacher, ok := a.teacher(load.Teacher)
		if !ok {
			a.skipped++
			continue
		}

		acc, seen := a.totals[id]
		if !seen {
			acc = &models.WorkloadTotal{Teacher: teacher, TeacherName: TeacherShortName(teacher)}
			a.totals[id] = acc
			a.order = append(a.order, id)
		}

		acc.Semester1 += models.Hours(load.Semester1Hours)
		acc.Semester2 += models.Hours(load.Semester2Hours)
		acc.Exams += models.Hours(load.Semester1Exams) + models.Hours(load.Semester2Exams)
		acc.Consultations += models.Hours(load.ConsultationsHours)
		acc.CourseWorks += models.Hours(load.CourseWorkCheckHours)
		acc.DiplomaWorks += models.Hours(load.DPReviewHours) + models.Hours(load.DPGuidanceHours)

		switch a.opts.Mode {
		case TotalFlat:
			acc.Total = acc.CategorySum()
		default:
			acc.Total += acc.CategorySum()
		}
	}
}

// Skipped counts loads dropped because their teacher was unknown.
func (a *WorkloadAggregator) Skipped() int {
	return a.skipped
}

// Totals returns per-teacher sums ordered by Total descending. Ties keep the
// order in which teachers were first seen.
func (a *WorkloadAggregator) Totals() []models.WorkloadTotal {
	out := make([]models.WorkloadTotal, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, *a.totals[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total > out[j].Total
	})
	return out
}

func (a *WorkloadAggregator) teacher(ref models.Ref[models.Teacher]) (models.Teacher, bool) {
	if ref.Resolved() {
		return *ref.Record, true
	}
	if ref.ID == "" {
		return models.Teacher{}, false
	}
	teacher, ok := a.teachers[ref.ID]
	return teacher, ok
}

// AggregateWorkload runs a one-shot aggregation.
func AggregateWorkload(loads []models.TeachingLoad, teachers map[models.ID]models.Teacher, opts WorkloadOptions) []models.WorkloadTotal {
	agg := NewWorkloadAggregator(teachers, opts)
	agg.Add(loads...)
	return agg.Totals()
}

// WorkloadCategories lists the category keys in report column order.
func WorkloadCategories() []string {
	return []string{"semester1", "semester2", "exams", "consultations", "courseWorks", "diplomaWorks", "total"}
}

// WorkloadLabels maps category keys to their display labels.
func WorkloadLabels() map[string]string {
	return map[string]string{
		"semester1":     "1 семестр",
		"semester2":     "2 семестр",
		"exams":         "Экзамены",
		"consultations": "Консультации",
		"courseWorks":   "Курсовые",
		"diplomaWorks":  "Дипломные",
		"total":         "Всего",
	}
}

// WorkloadCharts lists the chart tabs of the workload report.
func WorkloadCharts() []models.WorkloadChart {
	labels := WorkloadLabels()
	pick := func(keys ...string) map[string]string {
		out := make(map[string]string, len(keys))
		for _, k := range keys {
			out[k] = labels[k]
		}
		return out
	}
	return []models.WorkloadChart{
		{Key: "semesters", Title: "По семестрам", Series: []string{"semester1", "semester2"}, Labels: pick("semester1", "semester2")},
		{Key: "additional", Title: "Доп. нагрузки", Series: []string{"exams", "consultations", "courseWorks", "diplomaWorks"}, Labels: pick("exams", "consultations", "courseWorks", "diplomaWorks")},
		{Key: "total", Title: "Общая нагрузка", Series: []string{"total"}, Labels: pick("total")},
	}
}
