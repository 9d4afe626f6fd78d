package gcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/storage"
	"github.com/gostratum/blobx"
	"google.golang.org/api/googleapi"
)

// MapGCSError converts storage client errors to a *blobx.StorageError
func MapGCSError(err error, op, bucket, key string) error {
	if err == nil {
		return nil
	}

	var storageErr *blobx.StorageError
	if errors.As(err, &storageErr) {
		return err
	}

	return &blobx.StorageError{
		Op:       op,
		Provider: blobx.ProviderGCP,
		Bucket:   bucket,
		Key:      key,
		Err:      classify(err, op),
	}
}

func classify(err error, op string) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", blobx.ErrAborted, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", blobx.ErrTimeout, err)
	}

	if errors.Is(err, storage.ErrObjectNotExist) {
		// Deleting an object that is already gone is reported as not applied.
		if op == "delete" {
			return fmt.Errorf("%w: %v", blobx.ErrNotApplied, err)
		}
		return blobx.ErrObjectNotFound
	}
	if errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: bucket does not exist", blobx.ErrObjectNotFound)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			return blobx.ErrObjectNotFound
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("%w: %s", blobx.ErrTimeout, apiErr.Message)
		case http.StatusPreconditionFailed:
			return fmt.Errorf("%w: %s", blobx.ErrNotApplied, apiErr.Message)
		}
	}

	return err
}
