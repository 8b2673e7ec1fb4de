package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cloud.google.com/go/datastore"

	"github.com/feedreel/feed-video-backend/types"
)

const renderJobKind = "RenderJob"

// DatastoreClient is the subset of the Datastore client the store needs
type DatastoreClient interface {
	Get(ctx context.Context, key *datastore.Key, dst interface{}) error
	Put(ctx context.Context, key *datastore.Key, src interface{}) (*datastore.Key, error)
	GetAll(ctx context.Context, q *datastore.Query, dst interface{}) ([]*datastore.Key, error)
}

// renderJobEntity is the Datastore representation of a render job record.
// Metadata is stored as a JSON blob since its shape is free-form.
type renderJobEntity struct {
	ID        string    `datastore:"id"`
	Status    string    `datastore:"status"`
	URL       string    `datastore:"url,noindex"`
	Error     string    `datastore:"error,noindex"`
	CreatedAt time.Time `datastore:"created_at"`
	UpdatedAt time.Time `datastore:"updated_at"`
	Metadata  string    `datastore:"metadata,noindex"`
}

// DatastoreStore persists render job records in Google Cloud Datastore,
// keyed by render ID so repeated merges update a single entity.
type DatastoreStore struct {
	client DatastoreClient
}

// NewDatastoreStore creates a store over the given Datastore client
func NewDatastoreStore(client DatastoreClient) *DatastoreStore {
	return &DatastoreStore{client: client}
}

// Get retrieves a record by render ID
func (s *DatastoreStore) Get(ctx context.Context, renderID string) (*types.RenderJob, error) {
	key := datastore.NameKey(renderJobKind, renderID, nil)

	var entity renderJobEntity
	err := s.client.Get(ctx, key, &entity)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entityToJob(&entity), nil
}

// Put stores a record, replacing any previous version
func (s *DatastoreStore) Put(ctx context.Context, job *types.RenderJob) error {
	key := datastore.NameKey(renderJobKind, job.ID, nil)
	_, err := s.client.Put(ctx, key, jobToEntity(job))
	return err
}

// List returns all records, newest first
func (s *DatastoreStore) List(ctx context.Context) ([]*types.RenderJob, error) {
	query := datastore.NewQuery(renderJobKind).Order("-created_at")

	var entities []*renderJobEntity
	if _, err := s.client.GetAll(ctx, query, &entities); err != nil {
		return nil, err
	}

	jobs := make([]*types.RenderJob, len(entities))
	for i, entity := range entities {
		jobs[i] = entityToJob(entity)
	}
	return jobs, nil
}

func jobToEntity(job *types.RenderJob) *renderJobEntity {
	entity := &renderJobEntity{
		ID:        job.ID,
		Status:    string(job.Status),
		URL:       job.URL,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if job.Metadata != nil {
		if raw, err := json.Marshal(job.Metadata); err == nil {
			entity.Metadata = string(raw)
		}
	}
	return entity
}

func entityToJob(entity *renderJobEntity) *types.RenderJob {
	job := &types.RenderJob{
		ID:        entity.ID,
		Status:    types.ParseRenderStatus(entity.Status),
		URL:       entity.URL,
		Error:     entity.Error,
		CreatedAt: entity.CreatedAt,
		UpdatedAt: entity.UpdatedAt,
	}
	if entity.Metadata != "" {
		var meta map[string]interface{}
		if err := json.Unmarshal([]byte(entity.Metadata), &meta); err == nil {
			job.Metadata = meta
		}
	}
	return job
}
