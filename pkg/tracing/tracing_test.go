package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/insight-compliance-api/pkg/config"
)

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TracingConfig{}, "test", nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitRejectsUnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), config.TracingConfig{Enabled: true, Exporter: "zipkin"}, "test", nil)
	assert.Error(t, err)
}

func TestStartAndEnd(t *testing.T) {
	ctx, span := Start(context.Background(), "unit")
	assert.NotNil(t, ctx)
	End(span, errors.New("boom"))
}

func TestClampRatio(t *testing.T) {
	assert.Equal(t, 0.0, clampRatio(-1))
	assert.Equal(t, 1.0, clampRatio(3))
	assert.Equal(t, 0.25, clampRatio(0.25))
}
