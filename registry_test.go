package blobx_test

import (
	"testing"

	"github.com/gostratum/blobx"
	"github.com/gostratum/blobx/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	aws := testutil.NewMemoryBackend(blobx.ProviderAWSS3)
	minio := testutil.NewMemoryBackend(blobx.ProviderMinIO)

	reg, err := blobx.NewRegistry(
		blobx.Registration{Provider: blobx.ProviderMinIO, Backend: minio},
		blobx.Registration{Provider: blobx.ProviderAWSS3, Backend: aws, DefaultBucket: "bucket-a"},
	)
	require.NoError(t, err)

	assert.Equal(t, []blobx.Provider{blobx.ProviderAWSS3, blobx.ProviderMinIO}, reg.Providers())

	got, err := reg.Resolve(blobx.ProviderAWSS3)
	require.NoError(t, err)
	assert.Same(t, aws, got)

	_, err = reg.Resolve(blobx.ProviderGCP)
	assert.ErrorIs(t, err, blobx.ErrUnknownProvider)

	assert.True(t, reg.Has(blobx.ProviderMinIO))
	assert.False(t, reg.Has(blobx.ProviderGCP))

	bucket, ok := reg.DefaultBucket(blobx.ProviderAWSS3)
	assert.True(t, ok)
	assert.Equal(t, "bucket-a", bucket)

	_, ok = reg.DefaultBucket(blobx.ProviderMinIO)
	assert.False(t, ok)
	_, ok = reg.DefaultBucket(blobx.ProviderGCP)
	assert.False(t, ok)
}

func TestRegistry_ProvidersIsACopy(t *testing.T) {
	reg, err := blobx.NewRegistry(blobx.Registration{Provider: blobx.ProviderGCP, Backend: testutil.NewMemoryBackend(blobx.ProviderGCP)})
	require.NoError(t, err)

	providers := reg.Providers()
	providers[0] = blobx.ProviderMinIO
	assert.Equal(t, []blobx.Provider{blobx.ProviderGCP}, reg.Providers())
}

func TestNewRegistry_Errors(t *testing.T) {
	backend := testutil.NewMemoryBackend(blobx.ProviderGCP)

	tests := []struct {
		name    string
		regs    []blobx.Registration
		wantErr error
	}{
		{name: "empty", wantErr: blobx.ErrNoProviders},
		{
			name:    "invalid tag",
			regs:    []blobx.Registration{{Provider: "gcs", Backend: backend}},
			wantErr: blobx.ErrInvalidProvider,
		},
		{
			name:    "nil backend",
			regs:    []blobx.Registration{{Provider: blobx.ProviderGCP}},
			wantErr: blobx.ErrInvalidConfig,
		},
		{
			name: "duplicate",
			regs: []blobx.Registration{
				{Provider: blobx.ProviderGCP, Backend: backend},
				{Provider: blobx.ProviderGCP, Backend: backend},
			},
			wantErr: blobx.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := blobx.NewRegistry(tt.regs...)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
