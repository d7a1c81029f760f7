// Package logging builds the engine's zap logger and scrubs sensitive
// material (credentials, tokens, raw SQL) before anything reaches a log
// sink.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the process-wide zap logger. Local environments get the
// human-readable development encoder; everything else logs JSON at INFO.
func NewLogger(env string) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	if env == "local" || env == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger.With(zap.String("service", "querygate")), nil
}
