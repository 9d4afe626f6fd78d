// Package cachestore adds a read-through TTL cache in front of any
// blobx.MetadataStore.
package cachestore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gostratum/blobx"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/fx"
)

// Store caches Get results of an inner store. Writes go to the inner store
// first and only then update the cache.
//
// A read-through fill is dropped when any write to the store began or ended
// after the fill's inner read started, so a Get racing a Delete or Update
// cannot re-cache the old record.
type Store struct {
	inner    blobx.MetadataStore
	cache    *ttlcache.Cache[uuid.UUID, blobx.ObjectMetadata]
	stopOnce sync.Once

	mu    sync.Mutex
	epoch uint64
}

var _ blobx.MetadataStore = (*Store)(nil)

// New wraps inner with a cache whose entries expire after ttl. A capacity of
// zero leaves the cache unbounded.
func New(inner blobx.MetadataStore, ttl time.Duration, capacity uint64) *Store {
	opts := []ttlcache.Option[uuid.UUID, blobx.ObjectMetadata]{
		ttlcache.WithTTL[uuid.UUID, blobx.ObjectMetadata](ttl),
		ttlcache.WithDisableTouchOnHit[uuid.UUID, blobx.ObjectMetadata](),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[uuid.UUID, blobx.ObjectMetadata](capacity))
	}

	cache := ttlcache.New[uuid.UUID, blobx.ObjectMetadata](opts...)
	go cache.Start()

	return &Store{inner: inner, cache: cache}
}

// Module decorates the MetadataStore in the graph when Config.Metadata.CacheTTL
// is positive. The decoration is applied at the application level so every
// consumer of blobx.MetadataStore sees the cached store.
func Module() fx.Option {
	return fx.Decorate(func(cfg *blobx.Config, inner blobx.MetadataStore) blobx.MetadataStore {
		if cfg.Metadata.CacheTTL <= 0 {
			return inner
		}
		return New(inner, cfg.Metadata.CacheTTL, cfg.Metadata.CacheCapacity)
	})
}

func (s *Store) Create(ctx context.Context, loc blobx.Location) (blobx.ObjectMetadata, error) {
	meta, err := s.inner.Create(ctx, loc)
	if err != nil {
		return blobx.ObjectMetadata{}, err
	}
	s.cache.Set(meta.ID, meta, ttlcache.DefaultTTL)
	return meta, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (blobx.ObjectMetadata, error) {
	if item := s.cache.Get(id); item != nil {
		return item.Value(), nil
	}

	epoch := s.currentEpoch()
	meta, err := s.inner.Get(ctx, id)
	if err != nil {
		return blobx.ObjectMetadata{}, err
	}

	s.mu.Lock()
	if s.epoch == epoch {
		s.cache.Set(id, meta, ttlcache.DefaultTTL)
	}
	s.mu.Unlock()
	return meta, nil
}

func (s *Store) Update(ctx context.Context, id uuid.UUID, loc blobx.Location) (blobx.ObjectMetadata, error) {
	s.invalidate(id)
	meta, err := s.inner.Update(ctx, id, loc)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	if err != nil {
		s.cache.Delete(id)
		return blobx.ObjectMetadata{}, err
	}
	s.cache.Set(id, meta, ttlcache.DefaultTTL)
	return meta, nil
}

// Delete evicts id before and after the inner delete. The second eviction
// also runs when the inner delete fails.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.invalidate(id)
	err := s.inner.Delete(ctx, id)
	s.invalidate(id)
	return err
}

func (s *Store) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *Store) invalidate(id uuid.UUID) {
	s.mu.Lock()
	s.epoch++
	s.cache.Delete(id)
	s.mu.Unlock()
}

func (s *Store) List(ctx context.Context) ([]blobx.ObjectMetadata, error) {
	return s.inner.List(ctx)
}

// Stop halts the expiry loop. It does not close the inner store.
func (s *Store) Stop() {
	s.stopOnce.Do(s.cache.Stop)
}

// Close stops the cache and closes the inner store when it is closable.
func (s *Store) Close() error {
	s.Stop()
	if closer, ok := s.inner.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
