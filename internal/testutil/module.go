package testutil

import (
	"github.com/gostratum/blobx"
	"github.com/gostratum/blobx/metadata/memstore"
	"go.uber.org/fx"
)

// Backends bundles the in-memory backends registered by TestModule so tests
// can inject faults.
type Backends struct {
	AWS *MemoryBackend
	GCP *MemoryBackend
}

// TestModule provides a test configuration, in-memory AWS_S3 and GCP
// backends and an in-memory metadata store. Combine it with blobx.Module()
// to get a working *blobx.Gateway without external services.
//
// Example usage:
//
//	func TestMyApp(t *testing.T) {
//	    app := fxtest.New(t,
//	        testutil.TestModule,
//	        blobx.Module(),
//	        fx.Invoke(func(gw *blobx.Gateway) {
//	            // Use the gateway
//	        }),
//	    )
//	    // ...
//	}
var TestModule = fx.Module("blobx-test",
	fx.Provide(
		NewTestConfig,
		NewTestBackends,
		func() blobx.MetadataStore { return memstore.New() },
		fx.Annotated{
			Group:  blobx.BackendGroup,
			Target: func(b *Backends) blobx.Registration { return b.awsRegistration() },
		},
		fx.Annotated{
			Group:  blobx.BackendGroup,
			Target: func(b *Backends) blobx.Registration { return b.gcpRegistration() },
		},
	),
)

// NewTestConfig creates a configuration suitable for unit tests: AWS_S3 and
// GCP enabled with static credentials, in-memory metadata.
func NewTestConfig() *blobx.Config {
	cfg := blobx.DefaultConfig()
	cfg.AWS.Enabled = true
	cfg.AWS.DefaultBucket = "test-bucket"
	cfg.AWS.Endpoint = "http://localhost:9000"
	cfg.AWS.UsePathStyle = true
	cfg.AWS.AccessKey = "test-access"
	cfg.AWS.SecretKey = "test-secret"
	cfg.AWS.DisableSSL = true
	cfg.GCP.Enabled = true
	cfg.GCP.DefaultBucket = "test-bucket"
	cfg.GCP.Endpoint = "http://localhost:4443"
	cfg.GCP.WithoutAuth = true
	cfg.Metadata.Driver = blobx.DriverMemory
	cfg.HTTP.ListenAddr = "127.0.0.1:0"
	return cfg
}

// NewTestBackends creates fresh in-memory backends.
func NewTestBackends() *Backends {
	return &Backends{
		AWS: NewMemoryBackend(blobx.ProviderAWSS3),
		GCP: NewMemoryBackend(blobx.ProviderGCP),
	}
}

func (b *Backends) awsRegistration() blobx.Registration {
	return blobx.Registration{Provider: blobx.ProviderAWSS3, Backend: b.AWS, DefaultBucket: "test-bucket"}
}

func (b *Backends) gcpRegistration() blobx.Registration {
	return blobx.Registration{Provider: blobx.ProviderGCP, Backend: b.GCP, DefaultBucket: "test-bucket"}
}
