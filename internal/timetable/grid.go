package timetable

import (
	"sort"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// BuildGrid projects resolved entries onto a Monday..Saturday x time-slot
// matrix. Entries without a time slot, or whose day falls outside 1..6, are
// left out. When several entries of one day share a row label the first in
// start-time order takes the cell and the rest are counted in Hidden.
func BuildGrid(entries []models.ResolvedScheduleEntry) models.Grid {
	var grid models.Grid

	for _, entry := range entries {
		if entry.TimeSlot == nil {
			continue
		}
		day := entry.TimeSlot.DayOfWeek
		if day < 1 || day > models.DaysPerWeek {
			continue
		}
		grid.Days[day-1] = append(grid.Days[day-1], entry)
	}

	labels := make(map[string]struct{})
	for d := range grid.Days {
		bucket := grid.Days[d]
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].TimeSlot.StartTime < bucket[j].TimeSlot.StartTime
		})
		for _, entry := range bucket {
			labels[entry.TimeSlot.Label()] = struct{}{}
		}
	}

	grid.Labels = make([]string, 0, len(labels))
	for label := range labels {
		grid.Labels = append(grid.Labels, label)
	}
	sort.Strings(grid.Labels)

	grid.Rows = make([]models.GridRow, 0, len(grid.Labels))
	for _, label := range grid.Labels {
		row := models.GridRow{Label: label}
		for d := range grid.Days {
			for i := range grid.Days[d] {
				if grid.Days[d][i].TimeSlot.Label() != label {
					continue
				}
				if row.Cells[d] == nil {
					row.Cells[d] = &grid.Days[d][i]
				} else {
					row.Hidden[d]++
				}
			}
		}
		grid.Rows = append(grid.Rows, row)
	}

	return grid
}

// HiddenCount sums the entries that lost a grid cell to another entry.
func HiddenCount(grid models.Grid) int {
	total := 0
	for _, row := range grid.Rows {
		for _, n := range row.Hidden {
			total += n
		}
	}
	return total
}
