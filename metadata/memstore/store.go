// Package memstore keeps object metadata in process memory.
package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/gostratum/blobx"
	"go.uber.org/fx"
)

// Store is a thread-safe in-memory blobx.MetadataStore.
type Store struct {
	mu      sync.RWMutex
	records map[uuid.UUID]blobx.ObjectMetadata
	opts    *blobx.Options
}

var _ blobx.MetadataStore = (*Store)(nil)

// New creates an empty store. WithClock and WithIDGenerator are honoured.
func New(opts ...blobx.Option) *Store {
	return &Store{
		records: make(map[uuid.UUID]blobx.ObjectMetadata),
		opts:    blobx.NewOptions(opts...),
	}
}

// Module provides the in-memory store as the blobx.MetadataStore.
func Module() fx.Option {
	return fx.Module("blobx-memstore",
		fx.Provide(func() blobx.MetadataStore { return New() }),
	)
}

func (s *Store) Create(ctx context.Context, loc blobx.Location) (blobx.ObjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return blobx.ObjectMetadata{}, err
	}
	if err := loc.Validate(); err != nil {
		return blobx.ObjectMetadata{}, err
	}

	now := s.opts.GetClock()().UTC()
	meta := blobx.ObjectMetadata{
		ID:          s.opts.GetIDGenerator()(),
		Location:    loc,
		AuditFields: blobx.AuditFields{CreatedAt: now, UpdatedAt: now},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[meta.ID] = meta
	return meta, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (blobx.ObjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return blobx.ObjectMetadata{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.records[id]
	if !ok {
		return blobx.ObjectMetadata{}, blobx.MetadataNotFound(id)
	}
	return meta, nil
}

func (s *Store) Update(ctx context.Context, id uuid.UUID, loc blobx.Location) (blobx.ObjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return blobx.ObjectMetadata{}, err
	}
	if err := loc.Validate(); err != nil {
		return blobx.ObjectMetadata{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.records[id]
	if !ok {
		return blobx.ObjectMetadata{}, blobx.MetadataNotFound(id)
	}
	meta.Location = loc
	meta.UpdatedAt = s.opts.GetClock()().UTC()
	s.records[id] = meta
	return meta, nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *Store) List(ctx context.Context) ([]blobx.ObjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]blobx.ObjectMetadata, 0, len(s.records))
	for _, meta := range s.records {
		out = append(out, meta)
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
