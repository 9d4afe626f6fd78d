package blobx

import (
	"time"

	"github.com/google/uuid"
	"github.com/gostratum/core/logx"
)

// Options holds functional options shared by the gateway, backends and
// metadata stores.
type Options struct {
	logger       logx.Logger
	clock        func() time.Time
	idGenerator  func() uuid.UUID
	instrumenter *Instrumenter
}

// Option is a functional option for configuring blobx components
type Option func(*Options)

// WithLogger sets a custom core logx.Logger
func WithLogger(logger logx.Logger) Option {
	return func(opts *Options) {
		opts.logger = logger
	}
}

// WithClock sets a custom time provider (useful for testing)
func WithClock(clock func() time.Time) Option {
	return func(opts *Options) {
		opts.clock = clock
	}
}

// WithIDGenerator sets the function metadata stores use to mint record ids
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(opts *Options) {
		opts.idGenerator = gen
	}
}

// WithInstrumenter attaches metrics and tracing to gateway operations
func WithInstrumenter(i *Instrumenter) Option {
	return func(opts *Options) {
		opts.instrumenter = i
	}
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	o.applyDefaults()
	return o
}

// applyDefaults applies default values to unset options
func (opts *Options) applyDefaults() {
	if opts.logger == nil {
		opts.logger = logx.NewNoopLogger()
	}
	if opts.clock == nil {
		opts.clock = time.Now
	}
	if opts.idGenerator == nil {
		opts.idGenerator = uuid.New
	}
	if opts.instrumenter == nil {
		opts.instrumenter = NewInstrumenter(nil, nil)
	}
}

// GetLogger returns the configured logger
func (opts *Options) GetLogger() logx.Logger {
	if opts.logger == nil {
		return logx.NewNoopLogger()
	}
	return opts.logger
}

// GetClock returns the configured clock function
func (opts *Options) GetClock() func() time.Time {
	if opts.clock == nil {
		return time.Now
	}
	return opts.clock
}

// GetIDGenerator returns the configured id generator
func (opts *Options) GetIDGenerator() func() uuid.UUID {
	if opts.idGenerator == nil {
		return uuid.New
	}
	return opts.idGenerator
}

// GetInstrumenter returns the configured instrumenter
func (opts *Options) GetInstrumenter() *Instrumenter {
	if opts.instrumenter == nil {
		return NewInstrumenter(nil, nil)
	}
	return opts.instrumenter
}
