package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitTracing_None(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "mindlog-test", Exporter: "none"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_UnknownExporter(t *testing.T) {
	_, err := InitTracing(TracingConfig{ServiceName: "mindlog-test", Exporter: "zipkin"})
	assert.Error(t, err)
}

func TestStartSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "graph", "Build", attribute.Int("log.id", 1))
	require.NotNil(t, ctx)
	EndSpan(span, errors.New("boom"))
}
