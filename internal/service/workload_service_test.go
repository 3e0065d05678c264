package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

func TestWorkloadServiceReportAdmin(t *testing.T) {
	src := newFakeSource()
	svc := NewWorkloadService(src, nil, nil, nil, nil, WorkloadServiceConfig{ChunkSize: 1})

	report, err := svc.Report(context.Background(), adminSession, dto.WorkloadQuery{})
	require.NoError(t, err)
	require.Len(t, report.Totals, 2)
	assert.Equal(t, string(timetable.TotalRunning), report.Mode)
	assert.Equal(t, "Иванов И.П.", report.Totals[0].TeacherName)
	assert.Equal(t, 10, report.Totals[0].Total)
	assert.Equal(t, "Петрова А.", report.Totals[1].TeacherName)
	assert.Equal(t, 4, report.Totals[1].Semester1)
	assert.Equal(t, 2, report.Totals[1].Exams)
	assert.Zero(t, report.Skipped)
	assert.Zero(t, src.callCount(models.KindSchedule))
}

func TestWorkloadServiceTeacherScope(t *testing.T) {
	src := newFakeSource()
	svc := NewWorkloadService(src, nil, nil, nil, nil, WorkloadServiceConfig{})
	ctx := context.Background()

	report, err := svc.Report(ctx, teacherSession, dto.WorkloadQuery{})
	require.NoError(t, err)
	require.Len(t, report.Totals, 1)
	assert.Equal(t, models.ID("t1"), report.Totals[0].Teacher.ID)

	_, err = svc.Report(ctx, teacherSession, dto.WorkloadQuery{TeacherID: "t2"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Report(ctx, studentSession, dto.WorkloadQuery{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Report(ctx, nil, dto.WorkloadQuery{})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestWorkloadServiceValidatesMode(t *testing.T) {
	svc := NewWorkloadService(newFakeSource(), nil, nil, nil, nil, WorkloadServiceConfig{})

	_, err := svc.Report(context.Background(), adminSession, dto.WorkloadQuery{Mode: "weekly"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestWorkloadServiceFlatModeAndCache(t *testing.T) {
	src := newFakeSource()
	src.loads = append(src.loads, models.TeachingLoad{
		ID: "l3", Discipline: models.RefTo[models.Discipline]("d2"), Group: models.RefTo[models.Group]("g1"),
		Teacher: models.RefTo[models.Teacher]("t1"), Semester2Hours: intPtr(6),
	}, models.TeachingLoad{
		ID: "l4", Teacher: models.RefTo[models.Teacher]("ghost"), Semester1Hours: intPtr(99),
	})
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, NewMetricsService(), 0, nil, true)
	svc := NewWorkloadService(src, cache, nil, nil, nil, WorkloadServiceConfig{})
	ctx := context.Background()

	flat, err := svc.Report(ctx, adminSession, dto.WorkloadQuery{Mode: "flat"})
	require.NoError(t, err)
	require.Len(t, flat.Totals, 2)
	assert.Equal(t, 16, flat.Totals[0].Total)
	assert.Equal(t, 1, flat.Skipped)

	running, err := svc.Report(ctx, adminSession, dto.WorkloadQuery{})
	require.NoError(t, err)
	assert.Equal(t, 26, running.Totals[0].Total)
	assert.Equal(t, 2, src.callCount(models.KindTeachingLoad))

	again, err := svc.Report(ctx, adminSession, dto.WorkloadQuery{Mode: "flat"})
	require.NoError(t, err)
	assert.Equal(t, flat.Totals[0].Total, again.Totals[0].Total)
	assert.Equal(t, 2, src.callCount(models.KindTeachingLoad))
	assert.Equal(t, 2, repo.size())
}

func TestWorkloadServiceCharts(t *testing.T) {
	svc := NewWorkloadService(newFakeSource(), nil, nil, nil, nil, WorkloadServiceConfig{})
	charts := svc.Charts()
	require.Len(t, charts, 3)
	assert.Equal(t, []string{"semester1", "semester2"}, charts[0].Series)
	assert.Equal(t, "Всего", charts[2].Labels["total"])
}
