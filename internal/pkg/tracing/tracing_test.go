package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_DisabledStillProducesSpans(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{ServiceName: "marketbridge-test", Environment: "test"})
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	_, span := Tracer().Start(context.Background(), "order.create")
	defer span.End()

	assert.True(t, span.SpanContext().IsValid())
}

func TestSampleRatio(t *testing.T) {
	assert.Equal(t, 1.0, sampleRatio(0))
	assert.Equal(t, 1.0, sampleRatio(7))
	assert.Equal(t, 0.25, sampleRatio(0.25))
}
