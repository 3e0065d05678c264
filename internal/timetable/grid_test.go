package timetable

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
)

func resolvedFixture(entries ...models.ScheduleEntry) []models.ResolvedScheduleEntry {
	return NewResolver(IndexTables(sampleSources())).ResolveAll(entries)
}

func TestBuildGridBucketsByDay(t *testing.T) {
	resolved := resolvedFixture(
		entry("e1", "l1", "s2", "c101", "2024-03-04"),
		entry("e2", "l1", "s1", "c101", "2024-03-04"),
		entry("e3", "l2", "s3", "c202", "2024-03-06"),
		entry("e4", "l2", "s7", "c202", "2024-03-10"),
	)
	resolved = append(resolved, models.ResolvedScheduleEntry{ID: "no-slot"})

	grid := BuildGrid(resolved)

	require.Len(t, grid.Days[0], 2)
	assert.Equal(t, models.ID("e2"), grid.Days[0][0].ID)
	assert.Equal(t, models.ID("e1"), grid.Days[0][1].ID)
	require.Len(t, grid.Days[2], 1)
	assert.Equal(t, []string{"08:30:00-10:00:00", "10:10:00-11:40:00"}, grid.Labels)

	require.Len(t, grid.Rows, 2)
	first := grid.Rows[0]
	require.NotNil(t, first.Cells[0])
	assert.Equal(t, models.ID("e2"), first.Cells[0].ID)
	require.NotNil(t, first.Cells[2])
	assert.Equal(t, models.ID("e3"), first.Cells[2].ID)
	assert.Nil(t, first.Cells[1])
	assert.Equal(t, models.ID("e1"), grid.Rows[1].Cells[0].ID)
}

func TestBuildGridFirstEntryWinsAndHiddenIsCounted(t *testing.T) {
	resolved := resolvedFixture(
		entry("e1", "l1", "s1", "c101", "2024-03-04"),
		entry("e2", "l2", "s1", "c202", "2024-03-04"),
	)

	grid := BuildGrid(resolved)

	require.Len(t, grid.Rows, 1)
	assert.Equal(t, models.ID("e1"), grid.Rows[0].Cells[0].ID)
	assert.Equal(t, 1, grid.Rows[0].Hidden[0])
	assert.Equal(t, 1, HiddenCount(grid))
}

func TestBuildGridEntryAppearsOnce(t *testing.T) {
	resolved := resolvedFixture(
		entry("e1", "l1", "s1", "c101", "2024-03-04"),
		entry("e2", "l1", "s2", "c101", "2024-03-04"),
		entry("e3", "l1", "s3", "c101", "2024-03-06"),
	)

	grid := BuildGrid(resolved)

	placements := map[models.ID]int{}
	for _, row := range grid.Rows {
		for _, cell := range row.Cells {
			if cell != nil {
				placements[cell.ID]++
			}
		}
	}
	buckets := map[models.ID]int{}
	for _, day := range grid.Days {
		for _, e := range day {
			buckets[e.ID]++
		}
	}
	for _, e := range resolved {
		assert.Equal(t, 1, placements[e.ID], "row placements of %s", e.ID)
		assert.Equal(t, 1, buckets[e.ID], "day buckets of %s", e.ID)
	}
}

func TestBuildGridEmpty(t *testing.T) {
	grid := BuildGrid(nil)
	assert.Empty(t, grid.Rows)
	assert.Empty(t, grid.Labels)
}

func TestGridRowsPaginate(t *testing.T) {
	var resolved []models.ResolvedScheduleEntry
	for i := 0; i < 25; i++ {
		start := slotStart(i)
		resolved = append(resolved, models.ResolvedScheduleEntry{
			ID:       models.IDFromInt(int64(i)),
			TimeSlot: &models.TimeSlot{DayOfWeek: 1 + i%6, StartTime: start, EndTime: start + "~"},
		})
	}

	grid := BuildGrid(resolved)
	require.Len(t, grid.Rows, 25)

	page := Paginate(grid.Rows, 3, DefaultPageSize)
	require.Len(t, page.Items, 5)
	assert.Equal(t, grid.Rows[20:25], page.Items)
	assert.Equal(t, 3, page.TotalPages)
}

func slotStart(i int) string {
	return fmt.Sprintf("%02d:%02d:00", 7+i/4, (i%4)*15)
}
