package gormstore

import (
	"context"
	"fmt"
	"time"

	"github.com/gostratum/blobx"
	"github.com/gostratum/core"
	"github.com/gostratum/core/logx"
	"go.uber.org/fx"
)

// Module provides a gorm-backed blobx.MetadataStore built from
// Config.Metadata, plus a readiness check for the database.
func Module() fx.Option {
	return fx.Module("blobx-gormstore",
		fx.Provide(
			provideStore,
			func(s *Store) blobx.MetadataStore { return s },
		),
		fx.Provide(
			fx.Annotated{
				Target: func(s *Store) core.Check {
					return &dbHealthCheck{store: s}
				},
				Group: "health_checkers",
			},
		),
	)
}

type storeParams struct {
	fx.In

	Config *blobx.Config
	Logger logx.Logger `optional:"true"`
}

func provideStore(params storeParams) (*Store, error) {
	db, err := Open(params.Config.Metadata)
	if err != nil {
		return nil, err
	}
	if params.Logger != nil {
		params.Logger.Info("Metadata database opened", blobx.ArgsToFields("driver", params.Config.Metadata.Driver)...)
	}
	return New(db, blobx.WithLogger(params.Logger)), nil
}

// dbHealthCheck implements core.Check for the metadata database
type dbHealthCheck struct {
	store *Store
}

func (c *dbHealthCheck) Name() string { return "blobx.metadata" }

func (c *dbHealthCheck) Kind() core.Kind { return core.Readiness }

func (c *dbHealthCheck) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("metadata database ping failed: %w", err)
	}
	return nil
}
