// Package persistence holds backend-agnostic persistence support shared by
// the concrete stores.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/angryss/idp/application/ports"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// Monitor probes the active backend with one cheap call behind a circuit
// breaker, so a dead backend fails readiness fast instead of stacking up
// timed-out probes.
type Monitor struct {
	provider string
	timeout  time.Duration
	probe    func(ctx context.Context) error
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// NewMonitor wraps probe for the named provider. The breaker opens after
// three consecutive failures and retries a single probe after 15 seconds.
func NewMonitor(provider string, timeout time.Duration, probe func(ctx context.Context) error, logger *zap.Logger) *Monitor {
	m := &Monitor{
		provider: provider,
		timeout:  timeout,
		probe:    probe,
		logger:   logger,
	}
	m.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider + "-health",
		MaxRequests: 1,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("health breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return m
}

var _ ports.HealthChecker = (*Monitor)(nil)

// Check runs one bounded probe through the breaker and maps the outcome to
// the coarse health states: connectivity failures and an open breaker are
// unavailable, a reachable backend that still errors is degraded.
func (m *Monitor) Check(ctx context.Context) ports.HealthStatus {
	status := ports.HealthStatus{
		Provider: m.provider,
		Checked:  time.Now().UTC(),
	}

	_, err := m.breaker.Execute(func() (any, error) {
		probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		return nil, m.probe(probeCtx)
	})

	switch {
	case err == nil:
		status.State = ports.HealthAvailable
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		status.State = ports.HealthUnavailable
		status.Detail = "probe circuit open"
	case pkgerrors.IsUnavailable(err) || errors.Is(err, context.DeadlineExceeded):
		status.State = ports.HealthUnavailable
		status.Detail = err.Error()
	default:
		status.State = ports.HealthDegraded
		status.Detail = err.Error()
	}

	if status.State != ports.HealthAvailable {
		m.logger.Warn("backend probe failed",
			zap.String("provider", m.provider),
			zap.String("state", string(status.State)),
			zap.String("detail", status.Detail),
		)
	}
	return status
}
