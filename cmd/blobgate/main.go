package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gostratum/blobx"
	"github.com/gostratum/blobx/adapters/gcs"
	"github.com/gostratum/blobx/adapters/minio"
	"github.com/gostratum/blobx/adapters/s3"
	"github.com/gostratum/blobx/httpapi"
	"github.com/gostratum/blobx/internal/appconfig"
	"github.com/gostratum/blobx/metadata/cachestore"
	"github.com/gostratum/blobx/metadata/gormstore"
	"github.com/gostratum/blobx/metadata/memstore"
	"github.com/gostratum/core/logx"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "",
		Usage:   "path to a YAML config file (default: blobx.yaml in ., ./config, /etc/blobx)",
		EnvVars: []string{"BLOBX_CONFIG"},
	},
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "",
		Usage: "address to listen on for the HTTP API (overrides gateway.http.listen_addr)",
	},
	&cli.StringFlag{
		Name:  "policy",
		Value: "",
		Usage: "provider selection policy: random, round_robin, weighted or fixed",
	},
	&cli.BoolFlag{
		Name:  "log-debug",
		Value: false,
		Usage: "log debug messages",
	},
	&cli.BoolFlag{
		Name:  "check-config",
		Value: false,
		Usage: "validate the configuration and exit",
	},
}

func main() {
	app := &cli.App{
		Name:   "blobgate",
		Usage:  "Serve a provider-agnostic object storage gateway",
		Flags:  flags,
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	zl, err := appconfig.NewLogger(cCtx.Bool("log-debug"))
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	v, err := appconfig.New(cCtx.String("config"))
	if err != nil {
		return err
	}
	if addr := cCtx.String("listen-addr"); addr != "" {
		v.Set("gateway.http.listen_addr", addr)
	}
	if policy := cCtx.String("policy"); policy != "" {
		v.Set("gateway.policy.name", policy)
	}

	cfg, err := appconfig.Load(v)
	if err != nil {
		return err
	}

	logger := logx.ProvideAdapter(zl)
	logger.Info("Configuration loaded", logx.Any("config", cfg))

	if cCtx.Bool("check-config") {
		fmt.Println("configuration OK:", cfg.String())
		return nil
	}

	app := fx.New(appOptions(cfg, zl)...)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(cCtx.Context, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	sig := <-app.Done()
	logger.Info("Shutting down", logx.Any("signal", sig.String()))

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	return app.Stop(stopCtx)
}

// appOptions assembles the fx graph for cfg: one adapter module per enabled
// provider, the configured metadata store, and the HTTP API.
func appOptions(cfg *blobx.Config, zl *zap.Logger) []fx.Option {
	opts := []fx.Option{
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zl.Named("fx")}
		}),
		fx.Supply(cfg),
		fx.Provide(func() logx.Logger { return logx.ProvideAdapter(zl) }),
		blobx.Module(),
		httpapi.Module(),
	}

	if cfg.AWS.Enabled {
		opts = append(opts, s3.Module())
	}
	if cfg.GCP.Enabled {
		opts = append(opts, gcs.Module())
	}
	if cfg.MinIO.Enabled {
		opts = append(opts, minio.Module())
	}

	if cfg.Metadata.Driver == blobx.DriverMemory {
		opts = append(opts, memstore.Module())
	} else {
		opts = append(opts, gormstore.Module())
	}
	opts = append(opts, cachestore.Module())

	return opts
}
