// Package logging constructs fhirstore's structured logger.
package logging

import "go.uber.org/zap"

// Environment selects the zap preset used to build the logger.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// New builds a *zap.Logger for env, falling back to a no-op logger if
// construction fails so a broken logging config never blocks startup.
func New(env Environment) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)

	switch env {
	case Production:
		logger, err = zap.NewProduction()
	default:
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
