package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

// ExportJobRepository stores export job metadata in Redis with a retention TTL.
type ExportJobRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewExportJobRepository constructs the repository.
func NewExportJobRepository(client *redis.Client, ttl time.Duration) *ExportJobRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ExportJobRepository{client: client, prefix: "timetable:exports:", ttl: ttl}
}

// Save creates or replaces a job.
func (r *ExportJobRepository) Save(ctx context.Context, job *models.ExportJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal export job %s: %w", job.ID, err)
	}
	if err := r.client.Set(ctx, r.prefix+job.ID, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set export job %s: %w", job.ID, err)
	}
	return nil
}

// Get loads a job.
func (r *ExportJobRepository) Get(ctx context.Context, id string) (*models.ExportJob, error) {
	raw, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("redis get export job %s: %w", id, err)
	}
	var job models.ExportJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("unmarshal export job %s: %w", id, err)
	}
	return &job, nil
}

// ListByStatus scans stored jobs with the given status, up to limit.
func (r *ExportJobRepository) ListByStatus(ctx context.Context, status models.ExportStatus, limit int) ([]models.ExportJob, error) {
	var out []models.ExportJob
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("redis get %s: %w", iter.Val(), err)
		}
		var job models.ExportJob
		if err := json.Unmarshal(raw, &job); err != nil {
			continue
		}
		if job.Status != status {
			continue
		}
		out = append(out, job)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan export jobs: %w", err)
	}
	return out, nil
}
