package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gostratum/blobx"
	"github.com/gostratum/core/logx"
	"golang.org/x/sync/errgroup"
)

const minPartSize = 5 << 20 // S3 minimum for every part but the last

// abortTimeout bounds the cleanup call made after a failed upload, which
// runs on a fresh context because the request context may be cancelled.
const abortTimeout = 30 * time.Second

// multipartUploader uploads one object as parts through a bounded pool
type multipartUploader struct {
	client      *s3.Client
	logger      logx.Logger
	partSize    int64
	concurrency int
}

func newMultipartUploader(client *s3.Client, logger logx.Logger, partSize int64, concurrency int) *multipartUploader {
	if partSize < minPartSize {
		partSize = minPartSize
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &multipartUploader{
		client:      client,
		logger:      logger,
		partSize:    partSize,
		concurrency: concurrency,
	}
}

// upload runs create, parts and complete. Any failure after create aborts
// the upload so no parts or partial object remain.
func (mu *multipartUploader) upload(ctx context.Context, bucket, key string, src io.Reader, contentType string) (err error) {
	createInput := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		createInput.ContentType = aws.String(contentType)
	}

	created, err := mu.client.CreateMultipartUpload(ctx, createInput)
	if err != nil {
		return MapS3Error(err, "upload", bucket, key)
	}
	uploadID := aws.ToString(created.UploadId)

	mu.logger.Info("Starting multipart upload", blobx.ArgsToFields(
		"bucket", bucket,
		"key", key,
		"upload_id", uploadID,
		"part_size_mb", mu.partSize/(1<<20),
		"concurrency", mu.concurrency,
	)...)

	defer func() {
		if err == nil {
			return
		}
		abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
		defer cancel()
		if _, abortErr := mu.client.AbortMultipartUpload(abortCtx, &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(bucket),
			Key:      aws.String(key),
			UploadId: aws.String(uploadID),
		}); abortErr != nil {
			mu.logger.Warn("Failed to abort multipart upload", blobx.ArgsToFields(
				"bucket", bucket,
				"key", key,
				"upload_id", uploadID,
				"error", abortErr,
			)...)
		}
	}()

	parts, err := mu.uploadParts(ctx, bucket, key, uploadID, src)
	if err != nil {
		return MapS3Error(err, "upload", bucket, key)
	}

	_, err = mu.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return MapS3Error(err, "upload", bucket, key)
	}

	mu.logger.Info("Multipart upload completed", blobx.ArgsToFields(
		"bucket", bucket,
		"key", key,
		"upload_id", uploadID,
		"parts", len(parts),
	)...)
	return nil
}

// uploadParts reads src in partSize chunks and uploads them concurrently.
// A read error fails the whole upload.
func (mu *multipartUploader) uploadParts(ctx context.Context, bucket, key, uploadID string, src io.Reader) ([]types.CompletedPart, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mu.concurrency)

	var (
		partsMu sync.Mutex
		parts   []types.CompletedPart
	)

	for partNumber := int32(1); ; partNumber++ {
		if err := gctx.Err(); err != nil {
			break
		}

		buf := make([]byte, mu.partSize)
		n, readErr := io.ReadFull(src, buf)
		if readErr != nil && !errors.Is(readErr, io.EOF) && !errors.Is(readErr, io.ErrUnexpectedEOF) {
			_ = g.Wait()
			return nil, fmt.Errorf("failed to read part %d: %w", partNumber, readErr)
		}
		if n == 0 {
			break
		}

		data := buf[:n]
		num := partNumber
		g.Go(func() error {
			out, err := mu.client.UploadPart(gctx, &s3.UploadPartInput{
				Bucket:        aws.String(bucket),
				Key:           aws.String(key),
				PartNumber:    aws.Int32(num),
				UploadId:      aws.String(uploadID),
				Body:          bytes.NewReader(data),
				ContentLength: aws.Int64(int64(len(data))),
			})
			if err != nil {
				return fmt.Errorf("part %d: %w", num, err)
			}

			partsMu.Lock()
			parts = append(parts, types.CompletedPart{ETag: out.ETag, PartNumber: aws.Int32(num)})
			partsMu.Unlock()

			mu.logger.Debug("Part uploaded", blobx.ArgsToFields("key", key, "part_number", num)...)
			return nil
		})

		if readErr != nil {
			break
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// A cancelled context can stop the read loop without any part failing.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(parts, func(i, j int) bool {
		return aws.ToInt32(parts[i].PartNumber) < aws.ToInt32(parts[j].PartNumber)
	})
	return parts, nil
}
