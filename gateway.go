package blobx

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/gostratum/core/logx"
)

// Gateway exposes get/upload/delete by metadata id and dispatches each call
// to the backend recorded for the object. It never retries; every failure
// is returned to the caller.
type Gateway struct {
	registry *Registry
	policy   SelectionPolicy
	store    MetadataStore
	logger   logx.Logger
	instr    *Instrumenter
}

// NewGateway wires a gateway over the given collaborators.
func NewGateway(registry *Registry, policy SelectionPolicy, store MetadataStore, opts ...Option) (*Gateway, error) {
	if registry == nil {
		return nil, ErrNoProviders
	}
	if policy == nil {
		return nil, fmt.Errorf("%w: selection policy is required", ErrInvalidConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: metadata store is required", ErrInvalidConfig)
	}

	o := NewOptions(opts...)
	return &Gateway{
		registry: registry,
		policy:   policy,
		store:    store,
		logger:   o.GetLogger(),
		instr:    o.GetInstrumenter(),
	}, nil
}

// Registry returns the backend registry the gateway dispatches through.
func (g *Gateway) Registry() *Registry { return g.registry }

// GetObject streams the object recorded under id.
func (g *Gateway) GetObject(ctx context.Context, id uuid.UUID) (*StoredObject, error) {
	meta, err := g.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var obj *StoredObject
	err = g.instr.TraceOperation(ctx, "get", meta.Provider, g.spanAttrs(meta.Location, id), func(ctx context.Context) error {
		backend, err := g.resolve("get", meta.Location)
		if err != nil {
			return err
		}
		obj, err = backend.Get(ctx, meta.Bucket, meta.Key)
		return err
	})
	if err != nil {
		g.logger.Warn("Failed to get object", g.fields(meta.Location, id, err)...)
		return nil, withID(err, id.String())
	}

	g.logger.Debug("Object retrieved", g.fields(meta.Location, id, nil)...)
	return obj, nil
}

// UploadObject stores content in bucket under fileName on the provider picked
// by the selection policy and returns the id of the new metadata record.
func (g *Gateway) UploadObject(ctx context.Context, bucket, fileName string, content io.Reader, contentType string) (uuid.UUID, error) {
	return g.upload(ctx, g.policy.Choose(), bucket, fileName, content, contentType)
}

// UploadObjectTo is UploadObject with an explicit provider.
func (g *Gateway) UploadObjectTo(ctx context.Context, provider Provider, bucket, fileName string, content io.Reader, contentType string) (uuid.UUID, error) {
	if !provider.IsValid() {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidProvider, provider)
	}
	return g.upload(ctx, provider, bucket, fileName, content, contentType)
}

func (g *Gateway) upload(ctx context.Context, provider Provider, bucket, fileName string, content io.Reader, contentType string) (uuid.UUID, error) {
	loc := Location{Provider: provider, Bucket: bucket, Key: fileName}
	if err := requireCoordinates(bucket, fileName); err != nil {
		return uuid.Nil, err
	}
	if content == nil {
		return uuid.Nil, fmt.Errorf("%w: content is required", ErrInvalidArgument)
	}

	counter := &countingReader{r: content}
	err := g.instr.TraceOperation(ctx, "upload", provider, g.spanAttrs(loc, uuid.Nil), func(ctx context.Context) error {
		backend, err := g.resolve("upload", loc)
		if err != nil {
			return err
		}
		return backend.Upload(ctx, bucket, fileName, counter, contentType)
	})
	if err != nil {
		g.logger.Warn("Failed to upload object", g.fields(loc, uuid.Nil, err)...)
		return uuid.Nil, err
	}
	g.instr.RecordUploadSize(provider, counter.n)

	meta, err := g.store.Create(ctx, loc)
	if err != nil {
		// The blob is kept: the same bucket/key may back an older record.
		g.instr.RecordOrphan(provider)
		g.logger.Warn("Object stored without metadata", g.fields(loc, uuid.Nil, err)...)
		return uuid.Nil, &StorageError{Op: "upload", Provider: provider, Bucket: bucket, Key: fileName, Err: err}
	}

	g.logger.Info("Object uploaded", g.fields(loc, meta.ID, nil)...)
	return meta.ID, nil
}

// DeleteObject removes the object recorded under id and then its metadata.
// When the backend delete fails the metadata is kept so the call can be
// repeated.
func (g *Gateway) DeleteObject(ctx context.Context, id uuid.UUID) error {
	meta, err := g.store.Get(ctx, id)
	if err != nil {
		return err
	}

	err = g.instr.TraceOperation(ctx, "delete", meta.Provider, g.spanAttrs(meta.Location, id), func(ctx context.Context) error {
		backend, err := g.resolve("delete", meta.Location)
		if err != nil {
			return err
		}
		return backend.Delete(ctx, meta.Bucket, meta.Key)
	})
	if err != nil {
		g.logger.Warn("Failed to delete object, metadata retained", g.fields(meta.Location, id, err)...)
		return withID(err, id.String())
	}

	if err := g.store.Delete(ctx, id); err != nil {
		g.logger.Error("Object deleted but metadata removal failed", g.fields(meta.Location, id, err)...)
		return err
	}

	g.logger.Info("Object deleted", g.fields(meta.Location, id, nil)...)
	return nil
}

// ListObjectMetadata returns every metadata record.
func (g *Gateway) ListObjectMetadata(ctx context.Context) ([]ObjectMetadata, error) {
	return g.store.List(ctx)
}

// GetObjectMetadata returns the metadata record for id.
func (g *Gateway) GetObjectMetadata(ctx context.Context, id uuid.UUID) (ObjectMetadata, error) {
	return g.store.Get(ctx, id)
}

// UpdateObjectMetadata repoints id at a new location. The provider must have
// a registered backend.
func (g *Gateway) UpdateObjectMetadata(ctx context.Context, id uuid.UUID, loc Location) (ObjectMetadata, error) {
	if err := loc.Validate(); err != nil {
		return ObjectMetadata{}, err
	}
	if !g.registry.Has(loc.Provider) {
		return ObjectMetadata{}, fmt.Errorf("%w: %s", ErrUnknownProvider, loc.Provider)
	}

	meta, err := g.store.Update(ctx, id, loc)
	if err != nil {
		return ObjectMetadata{}, err
	}

	g.logger.Info("Object metadata updated", g.fields(loc, id, nil)...)
	return meta, nil
}

// GetDirect reads bucket/key from provider without consulting metadata.
// An empty bucket selects the provider's default bucket.
func (g *Gateway) GetDirect(ctx context.Context, provider Provider, bucket, key string) (*StoredObject, error) {
	loc, backend, err := g.direct("get", provider, bucket, key)
	if err != nil {
		return nil, err
	}

	var obj *StoredObject
	err = g.instr.TraceOperation(ctx, "direct_get", provider, g.spanAttrs(loc, uuid.Nil), func(ctx context.Context) error {
		var err error
		obj, err = backend.Get(ctx, loc.Bucket, loc.Key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// UploadDirect writes bucket/key on provider without creating metadata.
// An empty bucket selects the provider's default bucket.
func (g *Gateway) UploadDirect(ctx context.Context, provider Provider, bucket, key string, content io.Reader, contentType string) error {
	loc, backend, err := g.direct("upload", provider, bucket, key)
	if err != nil {
		return err
	}
	if content == nil {
		return fmt.Errorf("%w: content is required", ErrInvalidArgument)
	}

	return g.instr.TraceOperation(ctx, "direct_upload", provider, g.spanAttrs(loc, uuid.Nil), func(ctx context.Context) error {
		return backend.Upload(ctx, loc.Bucket, loc.Key, content, contentType)
	})
}

// DeleteDirect removes bucket/key on provider without touching metadata.
// An empty bucket selects the provider's default bucket.
func (g *Gateway) DeleteDirect(ctx context.Context, provider Provider, bucket, key string) error {
	loc, backend, err := g.direct("delete", provider, bucket, key)
	if err != nil {
		return err
	}

	return g.instr.TraceOperation(ctx, "direct_delete", provider, g.spanAttrs(loc, uuid.Nil), func(ctx context.Context) error {
		return backend.Delete(ctx, loc.Bucket, loc.Key)
	})
}

func (g *Gateway) direct(op string, provider Provider, bucket, key string) (Location, Backend, error) {
	if !provider.IsValid() {
		return Location{}, nil, fmt.Errorf("%w: %q", ErrInvalidProvider, provider)
	}
	backend, err := g.resolve(op, Location{Provider: provider, Bucket: bucket, Key: key})
	if err != nil {
		return Location{}, nil, err
	}
	if bucket == "" {
		def, ok := g.registry.DefaultBucket(provider)
		if !ok || def == "" {
			return Location{}, nil, fmt.Errorf("%w: no bucket given and %s has no default bucket", ErrInvalidArgument, provider)
		}
		bucket = def
	}
	if err := requireCoordinates(bucket, key); err != nil {
		return Location{}, nil, err
	}

	return Location{Provider: provider, Bucket: bucket, Key: key}, backend, nil
}

// resolve looks up the backend for loc. A miss is reported as a storage
// failure that still matches ErrUnknownProvider.
func (g *Gateway) resolve(op string, loc Location) (Backend, error) {
	backend, err := g.registry.Resolve(loc.Provider)
	if err != nil {
		return nil, &StorageError{Op: op, Provider: loc.Provider, Bucket: loc.Bucket, Key: loc.Key, Err: err}
	}
	return backend, nil
}

func (g *Gateway) spanAttrs(loc Location, id uuid.UUID) map[string]any {
	attrs := map[string]any{
		"blobx.bucket": loc.Bucket,
		"blobx.key":    loc.Key,
	}
	if id != uuid.Nil {
		attrs["blobx.id"] = id.String()
	}
	return attrs
}

func (g *Gateway) fields(loc Location, id uuid.UUID, err error) []logx.Field {
	args := []any{
		"provider", string(loc.Provider),
		"bucket", loc.Bucket,
		"key", loc.Key,
	}
	if id != uuid.Nil {
		args = append(args, "id", id.String())
	}
	if err != nil {
		args = append(args, "error", err)
	}
	return ArgsToFields(args...)
}

func requireCoordinates(bucket, key string) error {
	if strings.TrimSpace(bucket) == "" {
		return fmt.Errorf("%w: bucket name is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: file name is required", ErrInvalidArgument)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
