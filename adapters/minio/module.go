package minio

import (
	"github.com/gostratum/blobx"
	"github.com/gostratum/core"
	"github.com/gostratum/core/logx"
	"go.uber.org/fx"
)

// Module registers the MINIO backend built from Config.MinIO
func Module() fx.Option {
	return fx.Module("blobx-minio",
		fx.Provide(
			provideBackend,
			fx.Annotated{
				Group: blobx.BackendGroup,
				Target: func(cfg *blobx.Config, b *Backend) blobx.Registration {
					return blobx.Registration{
						Provider:      blobx.ProviderMinIO,
						Backend:       b,
						DefaultBucket: cfg.MinIO.DefaultBucket,
					}
				},
			},
		),
		fx.Provide(
			fx.Annotated{
				Target: func(cfg *blobx.Config, b *Backend) core.Check {
					return &minioHealthCheck{backend: b, bucket: cfg.MinIO.DefaultBucket}
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

func provideBackend(params backendParams) (*Backend, error) {
	return NewBackend(&params.Config.MinIO, blobx.WithLogger(params.Logger))
}
