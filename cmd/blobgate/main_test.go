package main

import (
	"testing"
	"time"

	"github.com/gostratum/blobx"
	"github.com/stretchr/testify/assert"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func testConfig() *blobx.Config {
	cfg := blobx.DefaultConfig()
	cfg.AWS.Enabled = true
	cfg.AWS.AccessKey = "test"
	cfg.AWS.SecretKey = "test"
	cfg.GCP.Enabled = true
	cfg.GCP.WithoutAuth = true
	cfg.MinIO.Enabled = true
	cfg.MinIO.Endpoint = "localhost:9000"
	cfg.Metadata.Driver = blobx.DriverMemory
	return cfg
}

func TestAppOptions_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*blobx.Config)
	}{
		{"all providers in memory", func(*blobx.Config) {}},
		{"sqlite metadata", func(cfg *blobx.Config) {
			cfg.Metadata.Driver = blobx.DriverSQLite
			cfg.Metadata.DSN = "file:" + t.TempDir() + "/blobx.db"
		}},
		{"cached metadata", func(cfg *blobx.Config) { cfg.Metadata.CacheTTL = time.Minute }},
		{"s3 only", func(cfg *blobx.Config) {
			cfg.GCP.Enabled = false
			cfg.MinIO.Enabled = false
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			err := fx.ValidateApp(appOptions(cfg, zap.NewNop())...)
			assert.NoError(t, err)
		})
	}
}
