package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"timeplan/config"
)

// Service is attached to every entry so timeplan's lines can be picked out of
// a shared log stream.
const Service = "timeplan"

// New builds the root logger for timeplan. main derives the "scraper",
// "cache" and "site" loggers from it with Named, so every entry carries the
// component that wrote it next to the service field.
//
// Format "console" gives the colored development encoder for local runs; any
// other value gives JSON on stderr, which is what the deployed service uses.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	return build(cfg, []string{"stderr"})
}

func build(cfg config.LogConfig, outputs []string) (*zap.Logger, error) {
	var zapCfg zap.Config

	switch cfg.Format {
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = outputs
	zapCfg.InitialFields = map[string]any{"service": Service}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("error building logger: %w", err)
	}
	return logger, nil
}
