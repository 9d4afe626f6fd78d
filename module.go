package blobx

import (
	"context"
	"fmt"

	"github.com/gostratum/core/configx"
	"github.com/gostratum/core/logx"
	"github.com/gostratum/metricsx"
	"github.com/gostratum/tracingx"
	"go.uber.org/fx"
)

// BackendGroup is the fx value group adapters contribute Registrations to.
const BackendGroup = "blob_backends"

// Module provides the registry, selection policy, instrumenter and gateway.
// It does not provide *Config, a MetadataStore or any backend: include
// ConfigModule (or supply a *Config), a metadata module and at least one
// adapter module.
//
// Example usage:
//
//	app := core.New(
//	    blobx.ConfigModule(),
//	    blobx.Module(),
//	    s3.Module(),
//	    gormstore.Module(),
//	    fx.Invoke(func(gw *blobx.Gateway) {
//	        // Use the gateway...
//	    }),
//	)
func Module() fx.Option {
	return fx.Module("blobx",
		fx.Provide(
			NewRegistryFromGroup,
			NewSelectionPolicy,
			NewObservabilityInstrumenter,
			NewGatewayFromParams,
		),
		fx.Invoke(registerLifecycle),
	)
}

// ConfigModule provides *Config bound from the configx loader.
func ConfigModule() fx.Option {
	return fx.Module("blobx-config", fx.Provide(NewConfig))
}

// NewConfig creates a new configuration from the configx loader
func NewConfig(loader configx.Loader) (*Config, error) {
	cfg := DefaultConfig()
	if err := loader.Bind(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg = cfg.Normalize()
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// RegistryParams collects the backends contributed by adapter modules
type RegistryParams struct {
	fx.In

	Registrations []Registration `group:"blob_backends"`
	Logger        logx.Logger    `optional:"true"`
}

// NewRegistryFromGroup builds the registry from the blob_backends group. It
// fails when no adapter module contributed a backend.
func NewRegistryFromGroup(params RegistryParams) (*Registry, error) {
	reg, err := NewRegistry(params.Registrations...)
	if err != nil {
		return nil, err
	}
	if params.Logger != nil {
		params.Logger.Info("Backend registry ready", ArgsToFields("providers", reg.Providers())...)
	}
	return reg, nil
}

// PolicyParams defines the parameters needed for policy creation
type PolicyParams struct {
	fx.In

	Config     *Config
	Registry   *Registry
	Randomizer Randomizer `optional:"true"`
}

// NewSelectionPolicy builds the configured selection policy
func NewSelectionPolicy(params PolicyParams) (SelectionPolicy, error) {
	return NewPolicy(params.Config.Policy, params.Registry, params.Randomizer)
}

// ObservabilityDeps defines optional observability dependencies
type ObservabilityDeps struct {
	fx.In

	Metrics metricsx.Metrics `optional:"true"`
	Tracer  tracingx.Tracer  `optional:"true"`
}

// NewObservabilityInstrumenter creates an instrumenter for gateway operations
func NewObservabilityInstrumenter(deps ObservabilityDeps) *Instrumenter {
	return NewInstrumenter(deps.Metrics, deps.Tracer)
}

// GatewayParams defines the parameters needed for gateway creation
type GatewayParams struct {
	fx.In

	Registry     *Registry
	Policy       SelectionPolicy
	Store        MetadataStore
	Instrumenter *Instrumenter `optional:"true"`
	Logger       logx.Logger   `optional:"true"`
}

// NewGatewayFromParams is the fx constructor for *Gateway
func NewGatewayFromParams(params GatewayParams) (*Gateway, error) {
	return NewGateway(params.Registry, params.Policy, params.Store,
		WithLogger(params.Logger),
		WithInstrumenter(params.Instrumenter),
	)
}

// LifecycleParams defines parameters for lifecycle management
type LifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Registry  *Registry
	Store     MetadataStore
	Logger    logx.Logger `optional:"true"`
}

// registerLifecycle logs startup and closes the metadata store and any
// closable backends on shutdown.
func registerLifecycle(params LifecycleParams) {
	logger := params.Logger
	if logger == nil {
		logger = logx.NewNoopLogger()
	}

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Blob gateway started", ArgsToFields("providers", params.Registry.Providers())...)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Blob gateway stopping")

			var firstErr error
			for _, p := range params.Registry.Providers() {
				backend, _ := params.Registry.Resolve(p)
				if closer, ok := backend.(interface{ Close() error }); ok {
					if err := closer.Close(); err != nil {
						logger.Error("Error closing backend", ArgsToFields("provider", p, "error", err)...)
						if firstErr == nil {
							firstErr = err
						}
					}
				}
			}
			if closer, ok := params.Store.(interface{ Close() error }); ok {
				if err := closer.Close(); err != nil {
					logger.Error("Error closing metadata store", ArgsToFields("error", err)...)
					if firstErr == nil {
						firstErr = err
					}
				}
			}

			logger.Info("Blob gateway stopped")
			return firstErr
		},
	})
}

// WithCustomBackend contributes a ready-made backend to the registry.
// Useful for tests or for applications that construct backends outside of
// adapter modules.
func WithCustomBackend(provider Provider, backend Backend, defaultBucket string) fx.Option {
	return fx.Provide(fx.Annotated{
		Group: BackendGroup,
		Target: func() Registration {
			return Registration{
				Provider:      provider,
				Backend:       backend,
				DefaultBucket: defaultBucket,
			}
		},
	})
}
