package tracker

import (
	"context"
	"sort"
	"sync"

	"github.com/feedreel/feed-video-backend/types"
)

// MemoryStore keeps render job records in process memory. Records live for
// the process lifetime; a restart clears them.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*types.RenderJob
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*types.RenderJob)}
}

// Get retrieves a record by render ID
func (s *MemoryStore) Get(ctx context.Context, renderID string) (*types.RenderJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[renderID]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

// Put stores a record, replacing any previous version
func (s *MemoryStore) Put(ctx context.Context, job *types.RenderJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = job.Clone()
	return nil
}

// List returns all records, newest first
func (s *MemoryStore) List(ctx context.Context) ([]*types.RenderJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.RenderJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
