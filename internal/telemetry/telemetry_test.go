package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NotNil(t, cfg)
	assert.True(t, cfg.Enabled)
	assert.Empty(t, cfg.DSN)
	assert.Equal(t, ServiceVersion, cfg.Release)
	assert.Equal(t, 0.2, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	assert.NoError(t, Init(Config{Enabled: false}))
}

func TestInitEmptyDSN(t *testing.T) {
	// Sentry treats an empty DSN as a no-op client.
	assert.NoError(t, Init(Config{Enabled: true, Environment: "test"}))
}

func TestCaptureErrorNilSafe(t *testing.T) {
	CaptureError(nil, "price_fetch")
	CaptureError(errors.New("boom"), "price_fetch")
	Flush(10 * time.Millisecond)
	assert.NoError(t, Shutdown())
}
