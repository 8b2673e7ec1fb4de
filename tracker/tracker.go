/*
Package tracker keeps the process-wide record of remote render jobs.

Two independent writers keep a record current: the polling render client and
the inbound webhook handler. Merge is the sole coordination mechanism between
them: it is an atomic read-modify-write per key, idempotent for terminal
states, and never moves a status backwards.

The backing store is pluggable: an in-memory map by default, Google Cloud
Datastore when a project is configured.
*/
package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/feedreel/feed-video-backend/types"
)

// ErrNotFound is returned when no record exists for a render ID
var ErrNotFound = errors.New("render job not found")

// Store is the persistence backend for render job records
type Store interface {
	Get(ctx context.Context, renderID string) (*types.RenderJob, error)
	Put(ctx context.Context, job *types.RenderJob) error
	List(ctx context.Context) ([]*types.RenderJob, error)
}

// Tracker owns render job records and serializes concurrent updates per key
type Tracker struct {
	store  Store
	logger *logrus.Logger
	now    func() time.Time
	locks  *keyLocks
}

// New creates a Tracker over the given store
func New(store Store, logger *logrus.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger,
		now:    time.Now,
		locks:  newKeyLocks(),
	}
}

// Merge applies a partial status observation to the record for renderID,
// creating the record if it does not exist yet. Merge rules:
//   - status only moves forward along queued -> fetching -> rendering ->
//     saving -> done/failed; lower-ranked observations keep the recorded
//     status
//   - once terminal, only Metadata and UpdatedAt are refreshed
//   - fields absent from the update preserve the existing values
//
// The returned record is a copy; callers never share tracker state.
func (t *Tracker) Merge(ctx context.Context, renderID string, update types.StatusUpdate) (*types.RenderJob, error) {
	unlock := t.locks.lock(renderID)
	defer unlock()

	now := t.now()

	job, err := t.store.Get(ctx, renderID)
	switch {
	case errors.Is(err, ErrNotFound):
		job = &types.RenderJob{
			ID:        renderID,
			Status:    types.StatusUnknown,
			CreatedAt: now,
		}
	case err != nil:
		return nil, err
	}

	applyUpdate(job, update, now)

	if err := t.store.Put(ctx, job); err != nil {
		return nil, err
	}

	t.logger.WithFields(logrus.Fields{
		"render_id": renderID,
		"status":    job.Status,
	}).Debug("Render status merged")

	return job.Clone(), nil
}

// Get returns a copy of the record for renderID, or ErrNotFound
func (t *Tracker) Get(ctx context.Context, renderID string) (*types.RenderJob, error) {
	job, err := t.store.Get(ctx, renderID)
	if err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

// List returns copies of all tracked records
func (t *Tracker) List(ctx context.Context) ([]*types.RenderJob, error) {
	jobs, err := t.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*types.RenderJob, len(jobs))
	for i, j := range jobs {
		out[i] = j.Clone()
	}
	return out, nil
}

// Record implements the render client's observation sink
func (t *Tracker) Record(ctx context.Context, renderID string, update types.StatusUpdate) (*types.RenderJob, error) {
	return t.Merge(ctx, renderID, update)
}

// Lookup implements the render client's short-circuit read
func (t *Tracker) Lookup(ctx context.Context, renderID string) (*types.RenderJob, error) {
	return t.Get(ctx, renderID)
}

// applyUpdate merges a partial update into job in place
func applyUpdate(job *types.RenderJob, update types.StatusUpdate, now time.Time) {
	terminal := job.Status.IsTerminal()

	if !terminal && update.Status != "" {
		if update.Status.Rank() >= job.Status.Rank() {
			job.Status = update.Status
		}
	}

	if !terminal {
		if update.URL != "" {
			job.URL = update.URL
		}
		if update.Error != "" {
			job.Error = update.Error
		}
	}

	if update.Metadata != nil {
		if job.Metadata == nil {
			job.Metadata = make(map[string]interface{}, len(update.Metadata))
		}
		for k, v := range update.Metadata {
			job.Metadata[k] = v
		}
	}

	job.UpdatedAt = now
}
