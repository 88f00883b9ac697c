package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20.0, cfg.DefaultFPS)
	assert.Equal(t, "libx264", cfg.Codec)
	assert.Equal(t, "/image_raw", cfg.Topic)
	assert.Equal(t, "video.mp4", cfg.VideoName)
	assert.Empty(t, cfg.MetricsFile)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("BAG2VIDEO_DEFAULT_FPS", "29.97")
	t.Setenv("BAG2VIDEO_TOPIC", "/camera/color/image_raw")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 29.97, cfg.DefaultFPS)
	assert.Equal(t, "/camera/color/image_raw", cfg.Topic)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("BAG2VIDEO_DEFAULT_FPS", "fast")

	_, err := Load()
	assert.Error(t, err)
}
