package s3

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gostratum/blobx"
	"github.com/gostratum/core"
	"github.com/gostratum/core/logx"
	"go.uber.org/fx"
)

// Module returns an fx.Module which registers the AWS_S3 backend.
// Consumers opt in explicitly (e.g. s3.Module()) when Config.AWS.Enabled.
func Module() fx.Option {
	return fx.Module("blobx-s3",
		fx.Provide(
			provideLazyBackend,
			fx.Annotated{
				Group:  blobx.BackendGroup,
				Target: registration,
			},
		),
		fx.Provide(
			fx.Annotated{
				Target: func(b *lazyBackend) core.Check {
					return &s3HealthCheck{backend: b}
				},
				Group: "health_checkers",
			},
		),
	)
}

type backendParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *blobx.Config
	Logger    logx.Logger `optional:"true"`
}

// provideLazyBackend returns a backend whose real client is created in
// OnStart, so construction can use the lifecycle context and its timeout.
func provideLazyBackend(params backendParams) *lazyBackend {
	cfg := &params.Config.AWS
	proxy := newLazyBackend()

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			b, err := NewBackend(ctx, cfg, blobx.WithLogger(params.Logger))
			if err != nil {
				proxy.setErr(err)
				return err
			}
			proxy.setBackend(b)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			proxy.setErr(fmt.Errorf("%w: s3 backend stopped", blobx.ErrAborted))
			return nil
		},
	})

	return proxy
}

func registration(cfg *blobx.Config, b *lazyBackend) blobx.Registration {
	return blobx.Registration{
		Provider:      blobx.ProviderAWSS3,
		Backend:       b,
		DefaultBucket: cfg.AWS.DefaultBucket,
	}
}

// lazyBackend is a blobx.Backend that waits for the real backend to be
// created during the fx OnStart hook. Calls fail if startup failed.
type lazyBackend struct {
	mu      sync.RWMutex
	backend *Backend
	err     error
	ready   chan struct{}
	once    sync.Once
}

var _ blobx.Backend = (*lazyBackend)(nil)

func newLazyBackend() *lazyBackend {
	return &lazyBackend{ready: make(chan struct{})}
}

func (p *lazyBackend) setBackend(b *Backend) {
	p.mu.Lock()
	p.backend = b
	p.mu.Unlock()
	p.once.Do(func() { close(p.ready) })
}

func (p *lazyBackend) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.backend = nil
	p.mu.Unlock()
	p.once.Do(func() { close(p.ready) })
}

func (p *lazyBackend) wait(ctx context.Context) (*Backend, error) {
	select {
	case <-p.ready:
	case <-ctx.Done():
		return nil, &blobx.StorageError{
			Op:       "wait",
			Provider: blobx.ProviderAWSS3,
			Err:      fmt.Errorf("%w: %v", blobx.ErrAborted, ctx.Err()),
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.err != nil {
		return nil, &blobx.StorageError{Op: "wait", Provider: blobx.ProviderAWSS3, Err: p.err}
	}
	return p.backend, nil
}

func (p *lazyBackend) Get(ctx context.Context, bucket, key string) (*blobx.StoredObject, error) {
	b, err := p.wait(ctx)
	if err != nil {
		return nil, err
	}
	return b.Get(ctx, bucket, key)
}

func (p *lazyBackend) Upload(ctx context.Context, bucket, key string, content io.Reader, contentType string) error {
	b, err := p.wait(ctx)
	if err != nil {
		return err
	}
	return b.Upload(ctx, bucket, key, content, contentType)
}

func (p *lazyBackend) Delete(ctx context.Context, bucket, key string) error {
	b, err := p.wait(ctx)
	if err != nil {
		return err
	}
	return b.Delete(ctx, bucket, key)
}
