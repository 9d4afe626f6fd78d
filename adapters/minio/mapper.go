package minio

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gostratum/blobx"
	"github.com/minio/minio-go/v7"
)

// MapMinIOError converts minio-go errors to a *blobx.StorageError
func MapMinIOError(err error, op, bucket, key string) error {
	if err == nil {
		return nil
	}

	var storageErr *blobx.StorageError
	if errors.As(err, &storageErr) {
		return err
	}

	return &blobx.StorageError{
		Op:       op,
		Provider: blobx.ProviderMinIO,
		Bucket:   bucket,
		Key:      key,
		Err:      classify(err),
	}
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", blobx.ErrAborted, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", blobx.ErrTimeout, err)
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey":
		return blobx.ErrObjectNotFound
	case "NoSuchBucket":
		return fmt.Errorf("%w: bucket does not exist", blobx.ErrObjectNotFound)
	case "NoSuchUpload":
		return fmt.Errorf("%w: %s", blobx.ErrAborted, resp.Message)
	case "RequestTimeout":
		return fmt.Errorf("%w: %s", blobx.ErrTimeout, resp.Message)
	}
	if resp.StatusCode == http.StatusNotFound {
		return blobx.ErrObjectNotFound
	}

	return err
}
