// Package breaker builds the circuit breakers guarding outbound calls.
package breaker

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// New returns a breaker that opens after three consecutive failures and
// lets one probe request through after timeout.
func New(name string, timeout time.Duration, logger *zerolog.Logger) *gobreaker.CircuitBreaker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 2
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			}
		},
	})
}

// Call runs fn through cb and returns its typed result.
func Call[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	out, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out.(T), nil
}
