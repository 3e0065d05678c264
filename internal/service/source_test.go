package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

func TestFetcherLoadsEveryCollection(t *testing.T) {
	src := newFakeSource()
	src.entries = manyEntries(3)
	f := newFetcher(src, NewMetricsService(), nil)

	var mu sync.Mutex
	arrived := map[string]bool{}
	snapshot, readiness, err := f.fetch(context.Background(), adminSession, models.ScheduleFilter{}, viewKinds, func(kind string, _ func(*timetable.Sources)) {
		mu.Lock()
		arrived[kind] = true
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.Len(t, snapshot.Entries, 3)
	assert.Len(t, snapshot.Groups, 2)
	assert.Len(t, snapshot.TeachingLoads, 2)
	assert.False(t, readiness.Partial)
	assert.False(t, readiness.Empty)
	assert.Len(t, arrived, len(viewKinds))
}

func TestFetcherKeepsSiblingsOnFailure(t *testing.T) {
	src := newFakeSource()
	src.entries = manyEntries(2)
	src.errs[models.KindTeacher] = errors.New("connection reset")
	f := newFetcher(src, nil, nil)

	snapshot, readiness, err := f.fetch(context.Background(), adminSession, models.ScheduleFilter{}, viewKinds, nil)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrFetchFailed.Code, appErr.Code)

	assert.Len(t, snapshot.Entries, 2)
	assert.Len(t, snapshot.Groups, 2)
	assert.Empty(t, snapshot.Teachers)
	assert.True(t, readiness.Partial)
	assert.False(t, readiness.Loaded[models.KindTeacher])
	assert.True(t, readiness.Loaded[models.KindSchedule])
	assert.Equal(t, 1, src.callCount(models.KindTeacher))
}

func TestFetcherFlagsEmptySchedule(t *testing.T) {
	src := newFakeSource()
	f := newFetcher(src, nil, nil)

	_, readiness, err := f.fetch(context.Background(), adminSession, models.ScheduleFilter{}, viewKinds, nil)
	require.NoError(t, err)
	assert.True(t, readiness.Empty)
	assert.False(t, readiness.Partial)
}

func TestFetcherEmptyIgnoredWithoutSchedule(t *testing.T) {
	src := newFakeSource()
	f := newFetcher(src, nil, nil)

	_, readiness, err := f.fetch(context.Background(), adminSession, models.ScheduleFilter{}, []string{models.KindTeacher}, nil)
	require.NoError(t, err)
	assert.False(t, readiness.Empty)
	assert.Equal(t, 0, src.callCount(models.KindSchedule))
}
