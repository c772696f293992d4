package logging

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/r3e-network/healthcheck/health"
)

// HealthRunnerLogger adapts Logger to health.RunnerLogger, logging every
// not-ok result as a structured warning with its activated axes and the
// description of each fault-bearing status part.
type HealthRunnerLogger struct {
	*Logger
}

// NewHealthRunnerLogger wraps logger for use as a health.CheckRunner's
// RunnerLogger.
func NewHealthRunnerLogger(logger *Logger) *HealthRunnerLogger {
	return &HealthRunnerLogger{Logger: logger}
}

// NotOk implements health.RunnerLogger.
func (l *HealthRunnerLogger) NotOk(name string, result *health.CheckResult) {
	entry := l.WithContext(context.Background()).WithFields(logrus.Fields{
		"check":   name,
		"crashed": result.Crashed(),
		"slow":    result.Slow(),
	})

	activated := result.AggregatedAxes.Active().Slice()
	if len(activated) > 0 {
		entry = entry.WithField("axes", activated)
	}

	descriptions := make([]string, 0, len(result.Parts))
	for _, part := range result.Parts {
		if !part.Ok() {
			if wa, ok := part.(health.WithAxes); ok {
				descriptions = append(descriptions, wa.Description)
			} else if wt, ok := part.(health.WithThrowable); ok {
				descriptions = append(descriptions, wt.Description)
			}
		}
	}
	if len(descriptions) > 0 {
		entry = entry.WithField("faults", descriptions)
	}

	entry.Warn("health check not ok")
}
