package services

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tidal-mcp/internal/metrics"
	"github.com/desertthunder/tidal-mcp/internal/shared"
	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	defaultBreakerMaxRequests = 3
	defaultBreakerInterval    = 60 * time.Second
	defaultBreakerTimeout     = 30 * time.Second
	defaultFailureThreshold   = 5
)

// NewBreaker creates a circuit breaker that opens after cfg.FailureThreshold consecutive upstream failures.
//
// Only [shared.ErrUpstreamUnavailable] counts as a failure; auth and not-found answers are the caller's problem.
func NewBreaker[T any](name string, cfg shared.BreakerConfig, logger *log.Logger) *gobreaker.CircuitBreaker[T] {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = defaultBreakerMaxRequests
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultBreakerInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultBreakerTimeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}

	metrics.SetBreakerState(name, int(gobreaker.StateClosed))

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, shared.ErrUpstreamUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			metrics.SetBreakerState(name, int(to))
		},
	})
}
