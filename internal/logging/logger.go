// Package logging constructs the single zap.Logger instance main wires
// explicitly through Coordinator, Dispatcher, Store and PushHub. No package
// in this repo reaches for a package-level logger global.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger for the given environment and level. format is
// "json" or "console"; any other value keeps the environment's default
// encoding ("json" in production, "console" otherwise).
func New(environment, level, format string) (*zap.Logger, error) {
	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	if format == "json" {
		cfg.Encoding = "json"
	} else if format == "console" {
		cfg.Encoding = "console"
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}
