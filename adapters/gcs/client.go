// Package gcs implements the GCP blobx.Backend on cloud.google.com/go/storage.
package gcs

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/gostratum/blobx"
	"github.com/gostratum/core/logx"
	"google.golang.org/api/option"
)

// NewClient creates a storage client from cfg. Emulator endpoints are
// normalised to the JSON API base path.
func NewClient(ctx context.Context, cfg *blobx.GCSConfig, logger logx.Logger) (*storage.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = logx.NewNoopLogger()
	}

	credSource := "application-default"
	var opts []option.ClientOption

	switch {
	case cfg.WithoutAuth:
		opts = append(opts, option.WithoutAuthentication())
		credSource = "none"
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		credSource = "credentials-file"
	}

	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(apiEndpoint(cfg.Endpoint)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}

	logger.Info("GCS client created", blobx.ArgsToFields(
		"project_id", cfg.ProjectID,
		"endpoint", cfg.Endpoint,
		"cred_source", credSource,
	)...)

	return client, nil
}

// apiEndpoint appends the JSON API path to a bare emulator address
func apiEndpoint(endpoint string) string {
	endpoint = strings.TrimRight(endpoint, "/")
	if strings.HasSuffix(endpoint, "/storage/v1") {
		return endpoint + "/"
	}
	return endpoint + "/storage/v1/"
}
