// Package config reads settings from the environment. Command line flags take
// precedence over the values loaded here.
package config

import (
	"github.com/caarlos0/env/v11"
)

type Config struct {
	DefaultFPS float64 `env:"BAG2VIDEO_DEFAULT_FPS" envDefault:"20"`
	Codec      string  `env:"BAG2VIDEO_CODEC"       envDefault:"libx264"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	Root        string `env:"BAG2VIDEO_ROOT"         envDefault:"/recordings"`
	Topic       string `env:"BAG2VIDEO_TOPIC"        envDefault:"/image_raw"`
	VideoName   string `env:"BAG2VIDEO_VIDEO_NAME"   envDefault:"video.mp4"`
	MetricsFile string `env:"BAG2VIDEO_METRICS_FILE"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
