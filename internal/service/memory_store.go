package service

import (
	"context"
	"sort"
	"sync"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

// ViewStateStore persists the data-free part of view sessions.
type ViewStateStore interface {
	Get(ctx context.Context, id string) (*models.ViewState, error)
	Save(ctx context.Context, state *models.ViewState) error
	Delete(ctx context.Context, id string) error
}

// MemoryViewStateStore is the process-local ViewStateStore used when Redis
// state is disabled. It applies the same sequence check as the Redis store.
type MemoryViewStateStore struct {
	mu     sync.RWMutex
	states map[string]models.ViewState
}

// NewMemoryViewStateStore constructs an empty store.
func NewMemoryViewStateStore() *MemoryViewStateStore {
	return &MemoryViewStateStore{states: make(map[string]models.ViewState)}
}

// Get returns a copy of the stored state.
func (m *MemoryViewStateStore) Get(_ context.Context, id string) (*models.ViewState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	cp := cloneState(state)
	return &cp, nil
}

// Save stores the state unless a newer sequence is already present.
func (m *MemoryViewStateStore) Save(_ context.Context, state *models.ViewState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.states[state.ID]; ok && current.Seq > state.Seq {
		return repository.ErrStaleState
	}
	m.states[state.ID] = cloneState(*state)
	return nil
}

// Delete removes a state.
func (m *MemoryViewStateStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	return nil
}

func cloneState(state models.ViewState) models.ViewState {
	loaded := make(map[string]bool, len(state.Readiness.Loaded))
	for k, v := range state.Readiness.Loaded {
		loaded[k] = v
	}
	state.Readiness.Loaded = loaded
	return state
}

// MemoryExportJobStore keeps export jobs in process when Redis is disabled.
type MemoryExportJobStore struct {
	mu   sync.RWMutex
	jobs map[string]models.ExportJob
}

// NewMemoryExportJobStore constructs an empty store.
func NewMemoryExportJobStore() *MemoryExportJobStore {
	return &MemoryExportJobStore{jobs: make(map[string]models.ExportJob)}
}

// Save creates or replaces a job.
func (m *MemoryExportJobStore) Save(_ context.Context, job *models.ExportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

// Get returns a copy of a job.
func (m *MemoryExportJobStore) Get(_ context.Context, id string) (*models.ExportJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	return &job, nil
}

// ListByStatus returns up to limit jobs in the status, oldest first.
func (m *MemoryExportJobStore) ListByStatus(_ context.Context, status models.ExportStatus, limit int) ([]models.ExportJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ExportJob
	for _, job := range m.jobs {
		if job.Status == status {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
