// Package telemetry constructs the process-wide zap logger and
// Prometheus metrics collector shared by every other package.
package telemetry

import "go.uber.org/zap"

// NewLogger builds the process logger: structured JSON in production,
// a human-readable console encoder otherwise.
func NewLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
