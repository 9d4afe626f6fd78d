package gcs

import (
	"context"
	"fmt"
	"time"

	"github.com/gostratum/core"
)

// gcsHealthCheck implements core.Check for the default bucket
type gcsHealthCheck struct {
	backend *Backend
	bucket  string
}

func (g *gcsHealthCheck) Name() string { return "blobx.gcs" }

func (g *gcsHealthCheck) Kind() core.Kind { return core.Readiness }

func (g *gcsHealthCheck) Check(ctx context.Context) error {
	if g.bucket == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	exists, err := g.backend.BucketExists(ctx, g.bucket)
	if err != nil {
		return fmt.Errorf("gcs bucket attrs failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("gcs bucket %q does not exist", g.bucket)
	}
	return nil
}
