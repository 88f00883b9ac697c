// Package logging builds the zap loggers of the commands.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Format string

const (
	ConsoleFormat Format = "console"
	JSONFormat    Format = "json"
)

// New returns a logger writing to stderr at level ("debug", "info", "warn", ...).
func New(format Format, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	switch format {
	case JSONFormat:
		cfg = zap.NewProductionConfig()
	case ConsoleFormat, "":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unexpected log format: %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	return cfg.Build()
}
