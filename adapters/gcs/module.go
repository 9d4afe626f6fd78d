package gcs

import (
	"context"

	"github.com/gostratum/blobx"
	"github.com/gostratum/core"
	"github.com/gostratum/core/logx"
	"go.uber.org/fx"
)

// Module registers the GCP backend built from Config.GCP
func Module() fx.Option {
	return fx.Module("blobx-gcs",
		fx.Provide(
			provideBackend,
			fx.Annotated{
				Group: blobx.BackendGroup,
				Target: func(cfg *blobx.Config, b *Backend) blobx.Registration {
					return blobx.Registration{
						Provider:      blobx.ProviderGCP,
						Backend:       b,
						DefaultBucket: cfg.GCP.DefaultBucket,
					}
				},
			},
		),
		fx.Provide(
			fx.Annotated{
				Target: func(cfg *blobx.Config, b *Backend) core.Check {
					return &gcsHealthCheck{backend: b, bucket: cfg.GCP.DefaultBucket}
				},
				Group: "health_checkers",
			},
		),
	)
}

type backendParams struct {
	fx.In

	Config *blobx.Config
	Logger logx.Logger `optional:"true"`
}

// provideBackend creates the client eagerly. Client construction does not
// contact the service, so no lifecycle hook is needed.
func provideBackend(params backendParams) (*Backend, error) {
	return NewBackend(context.Background(), &params.Config.GCP, blobx.WithLogger(params.Logger))
}
