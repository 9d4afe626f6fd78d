package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/gostratum/blobx"
	"github.com/gostratum/core/logx"
)

// Backend stores objects in Google Cloud Storage
type Backend struct {
	client *storage.Client
	config *blobx.GCSConfig
	logger logx.Logger
	owned  bool
}

var _ blobx.Backend = (*Backend)(nil)

// NewBackend creates a GCS backend and its client from cfg
func NewBackend(ctx context.Context, cfg *blobx.GCSConfig, opts ...blobx.Option) (*Backend, error) {
	options := blobx.NewOptions(opts...)

	client, err := NewClient(ctx, cfg, options.GetLogger())
	if err != nil {
		return nil, err
	}

	b := NewBackendFromClient(client, cfg, opts...)
	b.owned = true
	return b, nil
}

// NewBackendFromClient wraps an existing client. The caller keeps ownership
// of the client.
func NewBackendFromClient(client *storage.Client, cfg *blobx.GCSConfig, opts ...blobx.Option) *Backend {
	options := blobx.NewOptions(opts...)
	if cfg == nil {
		cfg = &blobx.GCSConfig{}
	}
	return &Backend{
		client: client,
		config: cfg,
		logger: options.GetLogger(),
	}
}

// Client returns the underlying storage client
func (b *Backend) Client() *storage.Client { return b.client }

func (b *Backend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.config.RequestTimeout > 0 {
		return context.WithTimeout(ctx, b.config.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// Get opens a reader on bucket/key. The returned body must be closed.
// RequestTimeout bounds opening the reader only; reading the body is
// limited by ctx alone.
func (b *Backend) Get(ctx context.Context, bucket, key string) (*blobx.StoredObject, error) {
	b.logger.Debug("Getting object", blobx.ArgsToFields("bucket", bucket, "key", key)...)

	ctx, cancel := context.WithCancel(ctx)
	var timer *time.Timer
	if b.config.RequestTimeout > 0 {
		timer = time.AfterFunc(b.config.RequestTimeout, cancel)
	}

	r, err := b.client.Bucket(bucket).Object(key).NewReader(ctx)
	if timer != nil && !timer.Stop() {
		if err == nil {
			_ = r.Close()
		}
		cancel()
		return nil, MapGCSError(fmt.Errorf("open reader after %s: %w", b.config.RequestTimeout, context.DeadlineExceeded), "get", bucket, key)
	}
	if err != nil {
		cancel()
		return nil, MapGCSError(err, "get", bucket, key)
	}

	return &blobx.StoredObject{
		FileName:    key,
		ContentType: r.Attrs.ContentType,
		Size:        r.Attrs.Size,
		Body:        &cancelOnClose{ReadCloser: r, cancel: cancel},
	}, nil
}

// cancelOnClose releases the read context when the body is closed
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// Upload streams content into bucket/key. A failed copy cancels the writer
// so no object is finalized.
func (b *Backend) Upload(ctx context.Context, bucket, key string, content io.Reader, contentType string) error {
	b.logger.Debug("Uploading object", blobx.ArgsToFields(
		"bucket", bucket,
		"key", key,
		"content_type", contentType,
	)...)

	wctx, cancel := b.withTimeout(ctx)
	defer cancel()

	w := b.client.Bucket(bucket).Object(key).NewWriter(wctx)
	w.ContentType = contentType
	w.ChunkSize = b.config.ChunkSize

	if _, err := io.Copy(w, content); err != nil {
		cancel()
		_ = w.Close()
		return MapGCSError(fmt.Errorf("failed to write object: %w", err), "upload", bucket, key)
	}

	if err := w.Close(); err != nil {
		return MapGCSError(err, "upload", bucket, key)
	}
	return nil
}

// Delete removes bucket/key. A missing object yields ErrNotApplied.
func (b *Backend) Delete(ctx context.Context, bucket, key string) error {
	b.logger.Debug("Deleting object", blobx.ArgsToFields("bucket", bucket, "key", key)...)

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	if err := b.client.Bucket(bucket).Object(key).Delete(ctx); err != nil {
		return MapGCSError(err, "delete", bucket, key)
	}
	return nil
}

// BucketExists reports whether bucket is reachable
func (b *Backend) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := b.client.Bucket(bucket).Attrs(ctx)
	if errors.Is(err, storage.ErrBucketNotExist) {
		return false, nil
	}
	if err != nil {
		return false, MapGCSError(err, "head_bucket", bucket, "")
	}
	return true, nil
}

// Close releases the client when the backend created it
func (b *Backend) Close() error {
	if !b.owned {
		return nil
	}
	return b.client.Close()
}
