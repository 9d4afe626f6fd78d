// Package minio implements the MINIO blobx.Backend on minio-go.
package minio

import (
	"context"
	"fmt"
	"io"

	"github.com/gostratum/blobx"
	"github.com/gostratum/core/logx"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Backend stores objects in a MinIO (or other S3-compatible) server
type Backend struct {
	client *minio.Client
	config *blobx.MinIOConfig
	logger logx.Logger
}

var _ blobx.Backend = (*Backend)(nil)

// NewClient creates a minio client from cfg. It does not contact the server.
func NewClient(cfg *blobx.MinIOConfig) (*minio.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return client, nil
}

// NewBackend creates a backend and its client from cfg
func NewBackend(cfg *blobx.MinIOConfig, opts ...blobx.Option) (*Backend, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	b := NewBackendFromClient(client, cfg, opts...)
	b.logger.Info("MinIO client created", blobx.ArgsToFields(
		"endpoint", cfg.Endpoint,
		"use_ssl", cfg.UseSSL,
		"region", cfg.Region,
	)...)
	return b, nil
}

// NewBackendFromClient wraps an existing client
func NewBackendFromClient(client *minio.Client, cfg *blobx.MinIOConfig, opts ...blobx.Option) *Backend {
	options := blobx.NewOptions(opts...)
	if cfg == nil {
		cfg = &blobx.MinIOConfig{}
	}
	return &Backend{
		client: client,
		config: cfg,
		logger: options.GetLogger(),
	}
}

// Client returns the underlying minio client
func (b *Backend) Client() *minio.Client { return b.client }

// Get opens bucket/key. The object is stat'ed first so a missing key fails
// here rather than on the first read.
func (b *Backend) Get(ctx context.Context, bucket, key string) (*blobx.StoredObject, error) {
	b.logger.Debug("Getting object", blobx.ArgsToFields("bucket", bucket, "key", key)...)

	obj, err := b.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, MapMinIOError(err, "get", bucket, key)
	}

	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, MapMinIOError(err, "get", bucket, key)
	}

	return &blobx.StoredObject{
		FileName:    key,
		ContentType: info.ContentType,
		Size:        info.Size,
		Body:        obj,
	}, nil
}

// Upload streams content of unknown length. minio-go buffers PartSize bytes
// per part and aborts the multipart upload on a read error.
func (b *Backend) Upload(ctx context.Context, bucket, key string, content io.Reader, contentType string) error {
	b.logger.Debug("Uploading object", blobx.ArgsToFields(
		"bucket", bucket,
		"key", key,
		"content_type", contentType,
	)...)

	_, err := b.client.PutObject(ctx, bucket, key, content, -1, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    b.config.PartSize,
	})
	if err != nil {
		return MapMinIOError(err, "upload", bucket, key)
	}
	return nil
}

// Delete removes bucket/key. MinIO reports success for missing keys.
func (b *Backend) Delete(ctx context.Context, bucket, key string) error {
	b.logger.Debug("Deleting object", blobx.ArgsToFields("bucket", bucket, "key", key)...)

	if err := b.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return MapMinIOError(err, "delete", bucket, key)
	}
	return nil
}

// EnsureBucket creates bucket when it does not exist
func (b *Backend) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := b.client.BucketExists(ctx, bucket)
	if err != nil {
		return MapMinIOError(err, "head_bucket", bucket, "")
	}
	if exists {
		return nil
	}

	b.logger.Info("Creating bucket", blobx.ArgsToFields("bucket", bucket)...)
	if err := b.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: b.config.Region}); err != nil {
		return MapMinIOError(err, "create_bucket", bucket, "")
	}
	return nil
}
