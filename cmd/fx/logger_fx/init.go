package logger_fx

import (
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"cicerone/pkg/logger"
)

var Module = fx.Provide(provideLogger)

func provideLogger() (*zap.Logger, error) {
	lg, err := logger.New(
		getEnvWithDefault("LOG_LEVEL", "info"),
		getEnvWithDefault("LOG_FORMAT", "json"),
	)
	if err != nil {
		return nil, err
	}

	// Error helpers log through the package-level logger.
	zap.ReplaceGlobals(lg)
	return lg, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
