package minio

import (
	"context"
	"fmt"
	"time"

	"github.com/gostratum/core"
)

// minioHealthCheck implements core.Check for the default bucket
type minioHealthCheck struct {
	backend *Backend
	bucket  string
}

func (m *minioHealthCheck) Name() string { return "blobx.minio" }

func (m *minioHealthCheck) Kind() core.Kind { return core.Readiness }

func (m *minioHealthCheck) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if m.bucket == "" {
		if _, err := m.backend.Client().ListBuckets(ctx); err != nil {
			return fmt.Errorf("minio list buckets failed: %w", err)
		}
		return nil
	}

	exists, err := m.backend.Client().BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("minio bucket exists failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("minio bucket %q does not exist", m.bucket)
	}
	return nil
}
