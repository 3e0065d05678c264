package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
)

type recordingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type exportJobFixture struct {
	*exportFixture
	store   *MemoryExportJobStore
	queue   *recordingQueue
	jobsSvc *ExportJobService
	worker  *ExportWorker
}

func newExportJobFixture(t *testing.T) *exportJobFixture {
	t.Helper()
	f := newExportFixture(t)
	store := NewMemoryExportJobStore()
	queue := &recordingQueue{}
	svc := NewExportJobService(store, queue, f.service, nil, nil, ExportJobConfig{ResultTTL: time.Hour})
	svc.now = func() time.Time { return wednesday }
	return &exportJobFixture{
		exportFixture: f,
		store:         store,
		queue:         queue,
		jobsSvc:       svc,
		worker:        NewExportWorker(store, f.service, NewMetricsService(), 2, nil),
	}
}

func downloadToken(url string) string {
	parts := strings.SplitN(url, "token=", 2)
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

func TestExportJobFlow(t *testing.T) {
	f := newExportJobFixture(t)
	ctx := context.Background()

	created, err := f.jobsSvc.CreateJob(ctx, teacherSession, dto.ExportRequest{Kind: models.ExportSchedule, Format: models.ExportFormatCSV})
	require.NoError(t, err)
	assert.Equal(t, models.ExportQueued, created.Status)
	require.Len(t, f.queue.jobs, 1)
	assert.Same(t, teacherSession, f.queue.jobs[0].Payload)

	stored, err := f.store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ID("t1"), stored.Params.Filter.TeacherID)
	assert.Equal(t, "2024-03-04", stored.Params.Filter.StartDate)
	assert.Equal(t, "u-teacher", stored.CreatedBy)

	require.NoError(t, f.worker.Handle(ctx, f.queue.jobs[0]))

	status, err := f.jobsSvc.GetStatus(ctx, teacherSession, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportFinished, status.Status)
	require.NotNil(t, status.ResultURL)
	assert.Nil(t, status.Error)

	_, err = f.jobsSvc.GetStatus(ctx, studentSession, created.ID)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	_, err = f.jobsSvc.GetStatus(ctx, adminSession, created.ID)
	assert.NoError(t, err)

	download, err := f.jobsSvc.ResolveDownload(ctx, downloadToken(*status.ResultURL))
	require.NoError(t, err)
	defer download.File.Close() //nolint:errcheck
	assert.Equal(t, models.ExportFormatCSV, download.Format)
	assert.True(t, strings.HasSuffix(download.Filename, ".csv"))
	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Дата,Время")

	_, err = f.jobsSvc.ResolveDownload(ctx, "garbage")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.jobsSvc.GetStatus(ctx, adminSession, "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportJobCreateValidation(t *testing.T) {
	f := newExportJobFixture(t)
	ctx := context.Background()

	_, err := f.jobsSvc.CreateJob(ctx, adminSession, dto.ExportRequest{Kind: models.ExportWorkload, Format: models.ExportFormatDOCX})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.jobsSvc.CreateJob(ctx, adminSession, dto.ExportRequest{Kind: "attendance", Format: models.ExportFormatCSV})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.jobsSvc.CreateJob(ctx, adminSession, dto.ExportRequest{Kind: models.ExportSchedule, Format: models.ExportFormatCSV, StartDate: "2024-03-10", EndDate: "2024-03-01"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.jobsSvc.CreateJob(ctx, nil, dto.ExportRequest{Kind: models.ExportSchedule, Format: models.ExportFormatCSV})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
	assert.Empty(t, f.queue.jobs)
}

func TestExportJobEnqueueFailure(t *testing.T) {
	f := newExportJobFixture(t)
	f.queue.err = errors.New("queue full")
	ctx := context.Background()

	_, err := f.jobsSvc.CreateJob(ctx, adminSession, dto.ExportRequest{Kind: models.ExportSchedule, Format: models.ExportFormatPDF})
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)

	failed, err := f.store.ListByStatus(ctx, models.ExportFailed, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "failed to enqueue job", *failed[0].ErrorMessage)
}

func TestExportWorkerPermanentFailure(t *testing.T) {
	f := newExportJobFixture(t)
	ctx := context.Background()

	created, err := f.jobsSvc.CreateJob(ctx, studentSession, dto.ExportRequest{Kind: models.ExportWorkload, Format: models.ExportFormatPDF})
	require.NoError(t, err)

	assert.NoError(t, f.worker.Handle(ctx, f.queue.jobs[0]))
	status, err := f.jobsSvc.GetStatus(ctx, studentSession, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportFailed, status.Status)
	require.NotNil(t, status.Error)
	assert.Nil(t, status.ResultURL)
}

func TestExportWorkerRetriesUpstreamFailures(t *testing.T) {
	f := newExportJobFixture(t)
	f.reports.err = errors.New("report service down")
	ctx := context.Background()

	created, err := f.jobsSvc.CreateJob(ctx, adminSession, dto.ExportRequest{Kind: models.ExportSchedule, Format: models.ExportFormatDOCX})
	require.NoError(t, err)
	job := f.queue.jobs[0]

	require.Error(t, f.worker.Handle(ctx, job))
	stored, _ := f.store.Get(ctx, created.ID)
	assert.Equal(t, models.ExportQueued, stored.Status)
	assert.Equal(t, 1, stored.Attempts)

	job.Attempt = 2
	require.Error(t, f.worker.Handle(ctx, job))
	stored, _ = f.store.Get(ctx, created.ID)
	assert.Equal(t, models.ExportFailed, stored.Status)
	assert.NotNil(t, stored.FinishedAt)

	assert.NoError(t, f.worker.Handle(ctx, job))
}

func TestExportJobRecoveryFailsOrphans(t *testing.T) {
	f := newExportJobFixture(t)
	ctx := context.Background()

	created, err := f.jobsSvc.CreateJob(ctx, adminSession, dto.ExportRequest{Kind: models.ExportSchedule, Format: models.ExportFormatCSV})
	require.NoError(t, err)
	f.queue.jobs = nil

	f.jobsSvc.RecoverPendingJobs(ctx)
	require.Len(t, f.queue.jobs, 1)
	assert.Nil(t, f.queue.jobs[0].Payload)

	require.NoError(t, f.worker.Handle(ctx, f.queue.jobs[0]))
	stored, _ := f.store.Get(ctx, created.ID)
	assert.Equal(t, models.ExportFailed, stored.Status)
	assert.Equal(t, "export interrupted by restart, submit it again", *stored.ErrorMessage)
}

func TestExportJobCleanupRemovesExpiredFiles(t *testing.T) {
	f := newExportJobFixture(t)
	ctx := context.Background()

	created, err := f.jobsSvc.CreateJob(ctx, adminSession, dto.ExportRequest{Kind: models.ExportSchedule, Format: models.ExportFormatCSV})
	require.NoError(t, err)
	require.NoError(t, f.worker.Handle(ctx, f.queue.jobs[0]))

	stored, _ := f.store.Get(ctx, created.ID)
	past := wednesday.Add(-time.Minute)
	stored.ExpiresAt = &past
	require.NoError(t, f.store.Save(ctx, stored))

	f.jobsSvc.cleanupExpired(ctx)
	_, err = f.service.Open(stored.ResultPath)
	assert.Error(t, err)
}
