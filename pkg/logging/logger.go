package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MustNewLogger builds the service logger. Dev gets console encoding,
// everything else gets production JSON. Panics on a bad config because
// a service without a logger should not start.
func MustNewLogger(service, env string) *zap.Logger {
	var cfg zap.Config
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := cfg.Build(zap.Fields(
		zap.String("service", service),
		zap.String("env", env),
	))
	if err != nil {
		panic(err)
	}
	return logger
}
