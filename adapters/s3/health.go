package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gostratum/core"
)

// s3HealthCheck implements core.Check for S3 connectivity
type s3HealthCheck struct {
	backend *lazyBackend
}

func (s *s3HealthCheck) Name() string { return "blobx.s3" }

func (s *s3HealthCheck) Kind() core.Kind { return core.Readiness }

func (s *s3HealthCheck) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	b, err := s.backend.wait(ctx)
	if err != nil {
		return err
	}

	cm := b.ClientManager()
	bucket := cm.GetConfig().DefaultBucket
	if bucket == "" {
		// Without a default bucket, listing buckets is the cheapest probe.
		if _, err := cm.GetS3Client().ListBuckets(ctx, &s3.ListBucketsInput{}); err != nil {
			return fmt.Errorf("s3 list buckets failed: %w", err)
		}
		return nil
	}

	if _, err := cm.GetS3Client().HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return fmt.Errorf("s3 head bucket failed: %w", err)
	}
	return nil
}
