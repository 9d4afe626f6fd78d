package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/gostratum/blobx"
)

// MapS3Error converts S3 SDK errors to a *blobx.StorageError carrying the
// matching domain error.
func MapS3Error(err error, op, bucket, key string) error {
	if err == nil {
		return nil
	}

	var storageErr *blobx.StorageError
	if errors.As(err, &storageErr) {
		return err
	}

	return &blobx.StorageError{
		Op:       op,
		Provider: blobx.ProviderAWSS3,
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

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return blobx.ErrObjectNotFound
	}

	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return fmt.Errorf("%w: bucket does not exist", blobx.ErrObjectNotFound)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return blobx.ErrObjectNotFound
		case "NoSuchBucket":
			return fmt.Errorf("%w: bucket does not exist", blobx.ErrObjectNotFound)
		case "NoSuchUpload", "InvalidPart", "InvalidPartOrder":
			return fmt.Errorf("%w: multipart upload error: %s", blobx.ErrAborted, apiErr.ErrorMessage())
		case "RequestTimeout":
			return fmt.Errorf("%w: %s", blobx.ErrTimeout, apiErr.ErrorMessage())
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return blobx.ErrObjectNotFound
	}

	return err
}
