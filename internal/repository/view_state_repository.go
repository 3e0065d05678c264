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

// ErrStaleState is returned when a save carries an older sequence token than
// the stored state.
var ErrStaleState = errors.New("view state superseded")

const viewStateRetries = 5

// ViewStateRepository keeps view session state in Redis. Saves are
// compare-and-set on the sequence token so an older request never overwrites
// a newer one, whichever instance finishes last.
type ViewStateRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewViewStateRepository constructs the repository.
func NewViewStateRepository(client *redis.Client, ttl time.Duration) *ViewStateRepository {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &ViewStateRepository{client: client, prefix: "timetable:views:", ttl: ttl}
}

func (r *ViewStateRepository) key(id string) string {
	return r.prefix + id
}

// Get loads a view state.
func (r *ViewStateRepository) Get(ctx context.Context, id string) (*models.ViewState, error) {
	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("redis get view %s: %w", id, err)
	}
	var state models.ViewState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("unmarshal view %s: %w", id, err)
	}
	return &state, nil
}

// Save stores the state unless a state with a higher sequence is present.
func (r *ViewStateRepository) Save(ctx context.Context, state *models.ViewState) error {
	key := r.key(state.ID)
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal view %s: %w", state.ID, err)
	}

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("redis get view %s: %w", state.ID, err)
		default:
			var current models.ViewState
			if err := json.Unmarshal(raw, &current); err == nil && current.Seq > state.Seq {
				return ErrStaleState
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < viewStateRetries; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("save view %s: too much contention", state.ID)
}

// Delete removes a view state.
func (r *ViewStateRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete view %s: %w", id, err)
	}
	return nil
}
