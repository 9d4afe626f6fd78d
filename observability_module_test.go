package blobx

import (
	"context"
	"testing"

	"github.com/gostratum/metricsx"
	"github.com/gostratum/tracingx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func TestNewObservabilityInstrumenter_OptionalDeps(t *testing.T) {
	metrics := newRecordingMetrics()
	tracer := &recordingTracer{}

	tests := []struct {
		name        string
		supply      []fx.Option
		wantMetrics bool
		wantTracer  bool
	}{
		{name: "neither module present"},
		{
			name:        "metrics only",
			supply:      []fx.Option{fx.Supply(fx.Annotate(metrics, fx.As(new(metricsx.Metrics))))},
			wantMetrics: true,
		},
		{
			name: "metrics and tracer",
			supply: []fx.Option{
				fx.Supply(fx.Annotate(metrics, fx.As(new(metricsx.Metrics)))),
				fx.Supply(fx.Annotate(tracer, fx.As(new(tracingx.Tracer)))),
			},
			wantMetrics: true,
			wantTracer:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var instr *Instrumenter
			app := fxtest.New(t,
				fx.Options(tt.supply...),
				fx.Provide(NewObservabilityInstrumenter),
				fx.Populate(&instr),
			)
			defer app.RequireStart().RequireStop()

			require.NotNil(t, instr)
			assert.Equal(t, tt.wantMetrics, instr.metrics != nil)
			assert.Equal(t, tt.wantTracer, instr.tracer != nil)

			ran := false
			err := instr.TraceOperation(context.Background(), "get", ProviderMinIO, nil, func(context.Context) error {
				ran = true
				return nil
			})
			require.NoError(t, err)
			assert.True(t, ran)
		})
	}
}
