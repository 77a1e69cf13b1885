package goSession

import (
	"errors"

	"go.uber.org/zap"
)

// degrade applies the availability policy to a read that failed with err.
//
// Only backend failures are subject to the policy; other errors pass
// through. Under fail-open it returns nil and the caller answers with its
// negative value. Under fail-closed the backend error is returned.
func (e *Engine) degrade(op string, err error) error {
	if err == nil || !errors.Is(err, ErrBackendUnavailable) {
		return err
	}

	e.metricInc(MetricBackendError)
	if e.config.Availability.FailOpen {
		e.metricInc(MetricFailOpen)
		e.logger.Warn("backend error absorbed by fail-open policy",
			zap.String("op", op),
			zap.String("backend", e.backend.Name),
			zap.Error(err),
		)
		return nil
	}

	e.logger.Warn("backend error", zap.String("op", op), zap.Error(err))
	return err
}

// writeFailed records a backend error on a write path and returns it
// unchanged. Writes are never absorbed.
func (e *Engine) writeFailed(op string, err error) error {
	if err != nil && errors.Is(err, ErrBackendUnavailable) {
		e.metricInc(MetricBackendError)
		e.logger.Warn("backend write failed", zap.String("op", op), zap.Error(err))
	}
	return err
}
