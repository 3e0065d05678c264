package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisRepositoryDefaults(t *testing.T) {
	views := NewViewStateRepository(nil, 0)
	assert.Equal(t, 2*time.Hour, views.ttl)
	assert.Equal(t, "timetable:views:v1", views.key("v1"))

	exports := NewExportJobRepository(nil, 0)
	assert.Equal(t, 24*time.Hour, exports.ttl)
}

func TestViewStateRepositoryConnectionErrors(t *testing.T) {
	repo := NewViewStateRepository(unreachableRedis(t), time.Minute)
	ctx := context.Background()

	_, err := repo.Get(ctx, "v1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Contains(t, err.Error(), "redis get view v1")

	err = repo.Save(ctx, &models.ViewState{ID: "v1", Seq: 3})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrStaleState))

	assert.Error(t, repo.Delete(ctx, "v1"))
}

func TestExportJobRepositoryConnectionErrors(t *testing.T) {
	repo := NewExportJobRepository(unreachableRedis(t), time.Minute)
	ctx := context.Background()

	err := repo.Save(ctx, &models.ExportJob{ID: "job-1", Status: models.ExportQueued})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set export job job-1")

	_, err = repo.Get(ctx, "job-1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = repo.ListByStatus(ctx, models.ExportQueued, 10)
	require.Error(t, err)
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var dest map[string]int

	err := repo.Get(context.Background(), "workload", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(context.Background(), "workload", map[string]int{"a": 1}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "workload*"))
	assert.NoError(t, repo.Ping(context.Background()))
	assert.NoError(t, repo.Close())
}
