package blobx

import (
	"context"
	"time"

	"github.com/gostratum/metricsx"
	"github.com/gostratum/tracingx"
)

// Instrumenter wraps gateway operations with metrics and tracing. Both
// collaborators are optional; a zero Instrumenter only runs the operation.
type Instrumenter struct {
	metrics metricsx.Metrics
	tracer  tracingx.Tracer
}

// NewInstrumenter creates a new instrumenter with optional metrics and tracing
func NewInstrumenter(metrics metricsx.Metrics, tracer tracingx.Tracer) *Instrumenter {
	return &Instrumenter{
		metrics: metrics,
		tracer:  tracer,
	}
}

// TraceOperation runs fn inside a span and records its outcome.
func (i *Instrumenter) TraceOperation(ctx context.Context, operation string, provider Provider, attrs map[string]any, fn func(ctx context.Context) error) error {
	if i == nil {
		return fn(ctx)
	}

	var span tracingx.Span
	if i.tracer != nil {
		spanAttrs := map[string]any{
			"blobx.operation": operation,
		}
		if provider != "" {
			spanAttrs["blobx.provider"] = string(provider)
		}
		for k, v := range attrs {
			spanAttrs[k] = v
		}
		ctx, span = i.tracer.Start(ctx, "blobx."+operation,
			tracingx.WithSpanKind(tracingx.SpanKindClient),
			tracingx.WithAttributes(spanAttrs),
		)
		defer span.End()
	}

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start).Seconds()

	if i.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}

		i.metrics.Counter("blobx_operations_total",
			metricsx.WithHelp("Total number of gateway operations"),
			metricsx.WithLabels("operation", "provider", "status"),
		).Inc(operation, string(provider), status)

		i.metrics.Histogram("blobx_operation_duration_seconds",
			metricsx.WithHelp("Gateway operation duration in seconds"),
			metricsx.WithLabels("operation", "provider"),
			metricsx.WithBuckets(.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10),
		).Observe(duration, operation, string(provider))
	}

	if span != nil && err != nil {
		span.SetError(err)
	}

	return err
}

// RecordUploadSize records the number of bytes written to a provider
func (i *Instrumenter) RecordUploadSize(provider Provider, size int64) {
	if i == nil || i.metrics == nil || size < 0 {
		return
	}
	i.metrics.Histogram("blobx_upload_bytes",
		metricsx.WithHelp("Uploaded object size in bytes"),
		metricsx.WithLabels("provider"),
		metricsx.WithBuckets(1024, 10240, 102400, 1024000, 10240000, 104857600, 1073741824),
	).Observe(float64(size), string(provider))
}

// RecordOrphan counts blobs written without a metadata record
func (i *Instrumenter) RecordOrphan(provider Provider) {
	if i == nil || i.metrics == nil {
		return
	}
	i.metrics.Counter("blobx_orphaned_blobs_total",
		metricsx.WithHelp("Blobs written whose metadata record could not be created"),
		metricsx.WithLabels("provider"),
	).Inc(string(provider))
}
