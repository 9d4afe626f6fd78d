// Package s3 implements the AWS_S3 blobx.Backend on aws-sdk-go-v2.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gostratum/blobx"
	"github.com/gostratum/core/logx"
)

// Backend stores objects in S3. Uploads above the multipart threshold are
// split into parts; a failed multipart upload is aborted before returning.
type Backend struct {
	client *ClientManager
	logger logx.Logger
}

var _ blobx.Backend = (*Backend)(nil)

// NewBackend creates an S3 backend from configuration
func NewBackend(ctx context.Context, cfg *blobx.S3Config, opts ...blobx.Option) (*Backend, error) {
	options := blobx.NewOptions(opts...)

	clientManager, err := NewClientManager(ctx, ClientConfig{
		Config: cfg,
		Logger: options.GetLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client manager: %w", err)
	}

	return NewBackendFromClientManager(clientManager, opts...), nil
}

// NewBackendFromClientManager creates a backend over an existing client manager
func NewBackendFromClientManager(cm *ClientManager, opts ...blobx.Option) *Backend {
	options := blobx.NewOptions(opts...)
	return &Backend{
		client: cm,
		logger: options.GetLogger(),
	}
}

// ClientManager exposes the underlying client manager
func (b *Backend) ClientManager() *ClientManager { return b.client }

// Get streams bucket/key. The returned body must be closed by the caller.
func (b *Backend) Get(ctx context.Context, bucket, key string) (*blobx.StoredObject, error) {
	b.logger.Debug("Getting object", blobx.ArgsToFields("bucket", bucket, "key", key)...)

	out, err := b.client.GetS3Client().GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, MapS3Error(err, "get", bucket, key)
	}

	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}

	return &blobx.StoredObject{
		FileName:    key,
		ContentType: aws.ToString(out.ContentType),
		Size:        size,
		Body:        out.Body,
	}, nil
}

// Upload writes content to bucket/key. Small objects go through a single
// PutObject; larger ones through a multipart upload.
func (b *Backend) Upload(ctx context.Context, bucket, key string, content io.Reader, contentType string) error {
	cfg := b.client.GetConfig()

	// Buffer up to the threshold to decide between a single put and multipart.
	head, err := io.ReadAll(io.LimitReader(content, cfg.MultipartThreshold+1))
	if err != nil {
		return MapS3Error(fmt.Errorf("failed to read content: %w", err), "upload", bucket, key)
	}

	if int64(len(head)) <= cfg.MultipartThreshold {
		return b.putObject(ctx, bucket, key, head, contentType)
	}

	uploader := newMultipartUploader(b.client.GetS3Client(), b.logger, cfg.PartSize, cfg.Parallel)
	return uploader.upload(ctx, bucket, key, io.MultiReader(bytes.NewReader(head), content), contentType)
}

func (b *Backend) putObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	b.logger.Debug("Putting object", blobx.ArgsToFields(
		"bucket", bucket,
		"key", key,
		"size", len(data),
		"content_type", contentType,
	)...)

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := b.client.GetS3Client().PutObject(ctx, input); err != nil {
		return MapS3Error(err, "upload", bucket, key)
	}
	return nil
}

// Delete removes bucket/key. S3 reports success for keys that do not exist.
func (b *Backend) Delete(ctx context.Context, bucket, key string) error {
	b.logger.Debug("Deleting object", blobx.ArgsToFields("bucket", bucket, "key", key)...)

	_, err := b.client.GetS3Client().DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return MapS3Error(err, "delete", bucket, key)
	}
	return nil
}
