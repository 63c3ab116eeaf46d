package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "miniftpd", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	tp, shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	assert.IsType(t, noop.TracerProvider{}, tp)
	assert.NoError(t, shutdown(ctx))

	_, span := tp.Tracer("test").Start(ctx, "ftp.STOR")
	assert.False(t, span.IsRecording())
	span.End()
}

func TestInitEnabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = true
	// Nothing listens here; the exporter connects lazily.
	cfg.Endpoint = "127.0.0.1:1"

	tp, shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &sdktrace.TracerProvider{}, tp)
	_ = shutdown(ctx)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), sampler(0.25).Description())
}
